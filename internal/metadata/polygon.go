package metadata

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// PolygonOptions parameterise the Polygon.io backend.
type PolygonOptions struct {
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Polygon reads ticker details and the previous session's volume from Polygon.io.
type Polygon struct {
	client *polygon.Client
	logger zerolog.Logger
}

// NewPolygon constructs the Polygon backend.
func NewPolygon(opts PolygonOptions, logger zerolog.Logger) *Polygon {
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}

	return &Polygon{
		client: polygon.NewWithClient(opts.APIKey, hc),
		logger: logger.With().Str("component", "metadata_polygon").Logger(),
	}
}

// Lookup fetches the company profile for symbol.
func (p *Polygon) Lookup(ctx context.Context, symbol string) (Profile, error) {
	details, err := p.client.GetTickerDetails(ctx, &models.GetTickerDetailsParams{Ticker: symbol})
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "not found") {
			return Profile{}, fmt.Errorf("%s: %w", symbol, ErrNotFound)
		}
		return Profile{}, fmt.Errorf("get ticker details %s: %w", symbol, err)
	}
	if details == nil || details.Results.Ticker == "" {
		return Profile{}, fmt.Errorf("%s: %w", symbol, ErrNotFound)
	}

	t := details.Results
	profile := Profile{
		Symbol:      symbol,
		Name:        t.Name,
		MarketCap:   decimal.NewFromFloat(t.MarketCap),
		Industry:    titleCase(t.SICDescription),
		Sector:      SectorForSIC(t.SICCode),
		Description: strings.TrimSpace(t.Description),
	}

	volume, err := p.previousVolume(ctx, symbol)
	if err != nil {
		p.logger.Debug().Err(err).Str("symbol", symbol).Msg("volume unavailable")
	}
	profile.Volume = volume

	return profile, nil
}

func (p *Polygon) previousVolume(ctx context.Context, symbol string) (int64, error) {
	res, err := p.client.GetPreviousCloseAgg(ctx, &models.GetPreviousCloseAggParams{Ticker: symbol})
	if err != nil {
		return 0, fmt.Errorf("get previous close %s: %w", symbol, err)
	}
	if res == nil || len(res.Results) == 0 {
		return 0, nil
	}
	return int64(res.Results[0].Volume), nil
}

// titleCase turns SIC descriptions such as "SERVICES-PREPACKAGED SOFTWARE"
// into "Services-Prepackaged Software".
func titleCase(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	runes := []rune(strings.ToLower(s))
	upper := true
	for i, r := range runes {
		if upper && r >= 'a' && r <= 'z' {
			runes[i] = r - ('a' - 'A')
		}
		upper = r == ' ' || r == '-' || r == '/' || r == '&' || r == '('
	}
	return string(runes)
}

var _ Source = (*Polygon)(nil)
