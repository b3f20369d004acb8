package fetcher

import (
	"bytes"
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
	"github.com/shopspring/decimal"
)

const (
	quotaPath  = "/api/v3/quota"
	quotesPath = "/api/v3/quotes/"
)

// FMPOptions parameterise the Financial Modeling Prep client.
type FMPOptions struct {
	BaseURL           string
	APIKey            string
	Exchange          string
	Timeout           time.Duration
	MinRemainingCalls int
	UserAgent         string
}

// FMP talks to Financial Modeling Prep. Snapshot requests go through the
// bounded Caller; the quota probe is a single uncounted request.
type FMP struct {
	opts    FMPOptions
	caller  *Caller
	client  HTTPClient
	logger  zerolog.Logger
	baseURL string
}

// NewFMP constructs the provider client.
func NewFMP(opts FMPOptions, caller *Caller, client HTTPClient, logger zerolog.Logger) *FMP {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Exchange == "" {
		opts.Exchange = "nasdaq"
	}
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://financialmodelingprep.com"
	}

	return &FMP{
		opts:    opts,
		caller:  caller,
		client:  client,
		logger:  logger.With().Str("component", "fmp").Logger(),
		baseURL: baseURL,
	}
}

// Remaining asks the provider how many calls are left on the key.
func (f *FMP) Remaining(ctx context.Context) (int, error) {
	if f.opts.APIKey == "" {
		return 0, errors.New("fmp api key not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.endpoint(quotaPath), nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("quota request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read quota response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, parseHTTPError(resp.StatusCode, payload)
	}

	var body struct {
		RemainingCalls *json.Number `json:"remainingCalls"`
	}
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		return 0, fmt.Errorf("decode quota response: %w", err)
	}
	if body.RemainingCalls == nil {
		return 0, errors.New("quota response missing remainingCalls")
	}

	remaining, err := decimal.NewFromString(body.RemainingCalls.String())
	if err != nil {
		return 0, fmt.Errorf("parse remainingCalls: %w", err)
	}
	return int(remaining.IntPart()), nil
}

// HasQuota reports whether more than MinRemainingCalls remain. Any failure
// is logged and treated as no quota.
func (f *FMP) HasQuota(ctx context.Context) bool {
	remaining, err := f.Remaining(ctx)
	if err != nil {
		f.logger.Error().Err(err).Msg("error checking api quota")
		return false
	}
	f.logger.Info().Int("remaining_calls", remaining).Msg("api quota checked")
	return remaining > f.opts.MinRemainingCalls
}

// FetchQuotes downloads the quote snapshot for the configured exchange.
func (f *FMP) FetchQuotes(ctx context.Context) ([]Quote, error) {
	if f.caller == nil {
		return nil, errors.New("fmp caller not configured")
	}

	var rows []rawQuote
	if err := f.caller.Call(ctx, f.endpoint(quotesPath+url.PathEscape(f.opts.Exchange)), &rows); err != nil {
		return nil, fmt.Errorf("fetch %s quotes: %w", f.opts.Exchange, err)
	}

	quotes := make([]Quote, 0, len(rows))
	for _, row := range rows {
		quotes = append(quotes, Quote{
			Symbol:  row.Symbol,
			Price:   parseNumber(row.Price),
			YearLow: parseNumber(row.YearLow),
		})
	}

	f.logger.Debug().Int("quotes", len(quotes)).Msg("quote snapshot fetched")
	return quotes, nil
}

func (f *FMP) endpoint(path string) string {
	q := url.Values{}
	q.Set("apikey", f.opts.APIKey)
	return f.baseURL + path + "?" + q.Encode()
}

type rawQuote struct {
	Symbol  string          `json:"symbol"`
	Price   json.RawMessage `json:"price"`
	YearLow json.RawMessage `json:"yearLow"`
}

// parseNumber accepts only JSON number literals.
func parseNumber(raw json.RawMessage) decimal.NullDecimal {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" || strings.HasPrefix(s, `"`) {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

var (
	_ QuotaChecker = (*FMP)(nil)
	_ QuoteSource  = (*FMP)(nil)
	_ CallCounter  = (*Caller)(nil)
)
