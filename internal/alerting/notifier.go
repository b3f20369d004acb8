package alerting

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

	"github.com/evan-axel/stock-scanner/internal/scanner"
)

const (
	// DefaultMaxLength is the WhatsApp body ceiling enforced by Twilio.
	DefaultMaxLength = 1600

	truncationNotice = "\n\n(Message truncated due to length)"
	timestampLayout  = "2006-01-02 15:04:05"
)

// Notification is the content of one scan summary.
type Notification struct {
	Records     []scanner.EnrichedRecord
	CallsUsed   int
	GeneratedAt time.Time
}

// Notifier delivers a scan summary and returns the provider's message id.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) (string, error)
}

// TwilioOptions parameterise the Twilio messaging client.
type TwilioOptions struct {
	AccountSID string
	AuthToken  string
	From       string
	To         string
	APIBase    string
	Timeout    time.Duration
	MaxLength  int
}

// TwilioNotifier sends WhatsApp messages through the Twilio Messages API.
type TwilioNotifier struct {
	opts    TwilioOptions
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

// NewTwilioNotifier constructs the Twilio notifier.
func NewTwilioNotifier(opts TwilioOptions, logger zerolog.Logger) *TwilioNotifier {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxLength <= 0 {
		opts.MaxLength = DefaultMaxLength
	}
	if opts.APIBase == "" {
		opts.APIBase = "https://api.twilio.com"
	}

	return &TwilioNotifier{
		opts:    opts,
		baseURL: strings.TrimRight(opts.APIBase, "/"),
		client:  &http.Client{Timeout: opts.Timeout},
		logger:  logger.With().Str("component", "alert_twilio").Logger(),
	}
}

// Notify renders the summary and posts it to the Messages resource.
func (n *TwilioNotifier) Notify(ctx context.Context, note Notification) (string, error) {
	if n.opts.AccountSID == "" || n.opts.AuthToken == "" {
		return "", errors.New("twilio credentials not configured")
	}
	if n.opts.From == "" || n.opts.To == "" {
		return "", errors.New("twilio from/to numbers not configured")
	}

	form := url.Values{}
	form.Set("Body", RenderMessage(note, n.opts.MaxLength))
	form.Set("From", n.opts.From)
	form.Set("To", n.opts.To)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", n.baseURL, url.PathEscape(n.opts.AccountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create twilio request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(n.opts.AccountSID, n.opts.AuthToken)

	resp, err := n.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send twilio request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read twilio response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", parseTwilioError(resp.StatusCode, payload)
	}

	var result struct {
		SID    string `json:"sid"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(payload, &result); err != nil {
		return "", fmt.Errorf("decode twilio response: %w", err)
	}
	if result.SID == "" {
		return "", errors.New("twilio response missing sid")
	}

	n.logger.Info().Str("sid", result.SID).
		Str("status", result.Status).
		Int("records", len(note.Records)).
		Msg("whatsapp message sent")
	return result.SID, nil
}

func parseTwilioError(status int, payload []byte) error {
	var apiErr struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(payload, &apiErr); err == nil && apiErr.Message != "" {
		return fmt.Errorf("twilio api error (%d, code %d): %s", status, apiErr.Code, apiErr.Message)
	}
	return fmt.Errorf("twilio api error (%d)", status)
}

// RenderMessage builds the summary text. Bodies longer than maxLen runes are
// cut to maxLen-100 runes and suffixed with a truncation notice.
func RenderMessage(note Notification, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultMaxLength
	}

	builder := strings.Builder{}
	builder.WriteString("🚨 *Small Cap Stocks at 52-Week Lows* 🚨\n\n")
	for _, r := range note.Records {
		builder.WriteString(fmt.Sprintf("*%s - %s*\n", r.Symbol, r.CompanyName))
		builder.WriteString(fmt.Sprintf("💵 Price: $%s\n", scanner.FormatNumber(r.Price)))
		builder.WriteString(fmt.Sprintf("📊 From Low: %s\n", r.DistanceDisplay()))
		builder.WriteString(fmt.Sprintf("🏢 Industry: %s\n", r.Industry))
		builder.WriteString(fmt.Sprintf("💰 Market Cap: %s\n\n", r.MarketCapDisplay))
	}

	generated := note.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}
	builder.WriteString(fmt.Sprintf("Generated: %s\n", generated.Format(timestampLayout)))
	builder.WriteString(fmt.Sprintf("FMP API Calls Used: %d", note.CallsUsed))

	body := builder.String()
	runes := []rune(body)
	if len(runes) > maxLen {
		keep := maxLen - 100
		if keep < 0 {
			keep = 0
		}
		body = string(runes[:keep]) + truncationNotice
	}
	return body
}

var _ Notifier = (*TwilioNotifier)(nil)
