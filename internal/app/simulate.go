package app

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/evan-axel/stock-scanner/internal/fetcher"
	"github.com/evan-axel/stock-scanner/internal/metadata"
	"github.com/evan-axel/stock-scanner/internal/scanner"
	"github.com/evan-axel/stock-scanner/internal/service"
)

// SimulateAlert runs the pipeline against a fixed sample quote and delivers
// the resulting message through the configured notifier.
func (a *App) SimulateAlert(ctx context.Context, symbol string, price, yearLow, marketCap decimal.Decimal) error {
	if !a.Config.TwilioReady() {
		return errors.New("twilio credentials not configured")
	}

	quotes := &staticQuotes{quotes: []fetcher.Quote{{
		Symbol:  symbol,
		Price:   decimal.NewNullDecimal(price),
		YearLow: decimal.NewNullDecimal(yearLow),
	}}}
	source := &staticSource{profile: metadata.Profile{
		Symbol:      symbol,
		Name:        "Simulated " + symbol,
		MarketCap:   marketCap,
		Industry:    "Simulation",
		Sector:      "Simulation",
		Description: "Simulated alert generated by stockscanner simulate-alert.",
	}}

	svc := service.New(
		staticQuota{},
		scanner.NewScanner(quotes, a.criteria(), a.Logger),
		scanner.NewEnricher(source, nil, a.criteria(), a.Logger),
		quotes,
		a.newNotifier(),
		service.Options{},
		a.Logger,
	)

	report := svc.Run(ctx)
	a.logDiagnostics(report)
	if report.Err != nil {
		return report.Err
	}
	if len(report.Records) == 0 {
		return errors.New("simulated quote did not pass the screening criteria")
	}
	if !report.Notified {
		return errors.New("simulated alert was not delivered; see logs")
	}
	return nil
}

type staticQuota struct{}

func (staticQuota) HasQuota(ctx context.Context) bool { return true }

type staticQuotes struct {
	quotes []fetcher.Quote
}

func (s *staticQuotes) FetchQuotes(ctx context.Context) ([]fetcher.Quote, error) {
	return s.quotes, nil
}

func (s *staticQuotes) Calls() int { return 0 }

type staticSource struct {
	profile metadata.Profile
}

func (s *staticSource) Lookup(ctx context.Context, symbol string) (metadata.Profile, error) {
	return s.profile, nil
}

var (
	_ fetcher.QuotaChecker = staticQuota{}
	_ fetcher.QuoteSource  = (*staticQuotes)(nil)
	_ metadata.Source      = (*staticSource)(nil)
)
