package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/evan-axel/stock-scanner/internal/ratelimit"
)

var (
	// ErrQuotaExceeded is returned once the run has used up its call ceiling.
	ErrQuotaExceeded = errors.New("daily api call limit reached")
	// ErrRetriesExhausted is matched by every *RetryError.
	ErrRetriesExhausted = errors.New("api call retries exhausted")
)

// RetryError reports a request that failed on every attempt.
type RetryError struct {
	Attempts int
	Last     error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("api call failed after %d retries: %v", e.Attempts, e.Last)
}

// Unwrap exposes both the sentinel and the last transport error.
func (e *RetryError) Unwrap() []error {
	return []error{ErrRetriesExhausted, e.Last}
}

// CallerOptions parameterise the bounded caller.
type CallerOptions struct {
	MaxCalls     int
	MaxAttempts  int
	RetryBackoff time.Duration
	ThrottleStep time.Duration
	Timeout      time.Duration
	UserAgent    string
}

// Caller issues GET requests against the market-data provider while
// enforcing the run's call ceiling, retry policy, and throttle.
// It is not safe for concurrent use.
type Caller struct {
	opts    CallerOptions
	client  HTTPClient
	sleeper ratelimit.Sleeper
	logger  zerolog.Logger
	calls   int
}

// NewCaller constructs a Caller. A nil client gets a plain http.Client with
// the configured timeout; a nil sleeper sleeps on the wall clock.
func NewCaller(opts CallerOptions, client HTTPClient, sleeper ratelimit.Sleeper, logger zerolog.Logger) *Caller {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.MaxCalls <= 0 {
		opts.MaxCalls = 250
	}
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	if sleeper == nil {
		sleeper = ratelimit.Clock{}
	}
	return &Caller{
		opts:    opts,
		client:  client,
		sleeper: sleeper,
		logger:  logger.With().Str("component", "api_caller").Logger(),
	}
}

// Calls returns how many attempts have been counted so far.
func (c *Caller) Calls() int {
	return c.calls
}

// Call fetches endpoint and decodes the JSON body into out.
func (c *Caller) Call(ctx context.Context, endpoint string, out any) error {
	var lastErr error
	for attempt := 1; attempt <= c.opts.MaxAttempts; attempt++ {
		c.calls++
		if c.calls > c.opts.MaxCalls {
			return fmt.Errorf("%w (%d calls)", ErrQuotaExceeded, c.opts.MaxCalls)
		}

		body, err := c.get(ctx, endpoint)
		if err == nil {
			if err := c.sleeper.Sleep(ctx, time.Duration(attempt)*c.opts.ThrottleStep); err != nil {
				return err
			}
			if err := json.Unmarshal(body, out); err != nil {
				return fmt.Errorf("decode %s: %w", redact(endpoint), err)
			}
			return nil
		}

		lastErr = err
		c.logger.Warn().Err(err).
			Int("attempt", attempt).
			Int("calls", c.calls).
			Str("endpoint", redact(endpoint)).
			Msg("api call failed")

		if attempt == c.opts.MaxAttempts {
			break
		}
		if err := c.sleeper.Sleep(ctx, time.Duration(attempt)*c.opts.RetryBackoff); err != nil {
			return err
		}
	}

	return &RetryError{Attempts: c.opts.MaxAttempts, Last: lastErr}
}

func (c *Caller) get(ctx context.Context, endpoint string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, parseHTTPError(resp.StatusCode, payload)
	}
	return payload, nil
}

type errorResponse struct {
	ErrorMessage string `json:"Error Message"`
	Message      string `json:"message"`
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.ErrorMessage != "" {
			return fmt.Errorf("fmp api error (%d): %s", status, apiErr.ErrorMessage)
		}
		if apiErr.Message != "" {
			return fmt.Errorf("fmp api error (%d): %s", status, apiErr.Message)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("fmp api error (%d): %s", status, truncate(strings.TrimSpace(string(payload)), 200))
	}
	return fmt.Errorf("fmp api error (%d)", status)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// redact hides credentials carried in the query string.
func redact(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "<invalid url>"
	}
	q := u.Query()
	if q.Has("apikey") {
		q.Set("apikey", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
