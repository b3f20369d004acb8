package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/evan-axel/stock-scanner/internal/alerting"
	"github.com/evan-axel/stock-scanner/internal/config"
	"github.com/evan-axel/stock-scanner/internal/fetcher"
	"github.com/evan-axel/stock-scanner/internal/metadata"
	"github.com/evan-axel/stock-scanner/internal/ratelimit"
	"github.com/evan-axel/stock-scanner/internal/scanner"
	"github.com/evan-axel/stock-scanner/internal/service"
	"github.com/evan-axel/stock-scanner/internal/version"
)

// Output formats for dry runs.
const (
	OutputTable = "table"
	OutputCSV   = "csv"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	// Out receives dry-run results; Progress receives enrichment progress.
	Out      io.Writer
	Progress io.Writer
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{
		Config:   cfg,
		Logger:   logger.With().Str("component", "app").Logger(),
		Out:      os.Stdout,
		Progress: os.Stderr,
	}
}

// ScanOptions configure the scan command.
type ScanOptions struct {
	DryRun       bool
	Output       string
	ShowProgress bool
}

func (a *App) newCaller() *fetcher.Caller {
	cfg := a.Config.FMP
	return fetcher.NewCaller(fetcher.CallerOptions{
		MaxCalls:     cfg.MaxDailyCalls,
		MaxAttempts:  cfg.MaxAttempts,
		RetryBackoff: cfg.RetryBackoff,
		ThrottleStep: cfg.ThrottleStep,
		Timeout:      cfg.RequestTimeout,
		UserAgent:    version.UserAgent(),
	}, nil, ratelimit.Clock{}, a.Logger)
}

func (a *App) newFMP(caller *fetcher.Caller) *fetcher.FMP {
	cfg := a.Config.FMP
	return fetcher.NewFMP(fetcher.FMPOptions{
		BaseURL:           cfg.BaseURL,
		APIKey:            cfg.APIKey,
		Exchange:          cfg.Exchange,
		Timeout:           cfg.RequestTimeout,
		MinRemainingCalls: cfg.MinRemainingCalls,
		UserAgent:         version.UserAgent(),
	}, caller, nil, a.Logger)
}

func (a *App) newMetadataSource() metadata.Source {
	cfg := a.Config.Metadata
	if strings.EqualFold(cfg.Provider, config.MetadataYahoo) {
		return metadata.NewYahoo(a.Logger)
	}
	if cfg.Polygon.APIKey == "" {
		a.Logger.Warn().Msg("metadata.polygon.api_key not configured; lookups will fail")
	}
	return metadata.NewPolygon(metadata.PolygonOptions{
		APIKey:  cfg.Polygon.APIKey,
		Timeout: cfg.RequestTimeout,
	}, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	cfg := a.Config.Twilio
	if !a.Config.TwilioReady() {
		a.Logger.Warn().Msg("twilio credentials incomplete; delivery will fail")
	}
	return alerting.NewTwilioNotifier(alerting.TwilioOptions{
		AccountSID: cfg.AccountSID,
		AuthToken:  cfg.AuthToken,
		From:       cfg.FromNumber,
		To:         cfg.ToNumber,
		APIBase:    cfg.APIBase,
		Timeout:    cfg.RequestTimeout,
		MaxLength:  cfg.MaxMessageLength,
	}, a.Logger)
}

func (a *App) criteria() scanner.Criteria {
	return scanner.Criteria{
		NearLowRatio:     decimal.NewFromFloat(a.Config.Scan.NearLowRatio),
		MinMarketCap:     decimal.NewFromFloat(a.Config.Scan.MinMarketCap),
		MaxMarketCap:     decimal.NewFromFloat(a.Config.Scan.MaxMarketCap),
		DescriptionLimit: a.Config.Scan.DescriptionLimit,
	}
}

func (a *App) newEnricher(source metadata.Source, show bool) *scanner.Enricher {
	limiter := ratelimit.NewMinInterval(a.Config.Metadata.SymbolInterval)
	enricher := scanner.NewEnricher(source, limiter, a.criteria(), a.Logger)
	if show && a.Progress != nil {
		enricher.OnProgress(func(done, total int) error {
			_, err := fmt.Fprintf(a.Progress, "\rProcessing: %d/%d (%.1f%%)", done, total, float64(done)/float64(total)*100)
			if done == total {
				_, _ = fmt.Fprintln(a.Progress)
			}
			return err
		})
	}
	return enricher
}

// Scan runs the full pipeline once. Failures are logged, never returned,
// except for dry-run rendering errors.
func (a *App) Scan(ctx context.Context, opts ScanOptions) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	caller := a.newCaller()
	fmp := a.newFMP(caller)

	var notifier alerting.Notifier
	if !opts.DryRun {
		notifier = a.newNotifier()
	}

	svc := service.New(
		fmp,
		scanner.NewScanner(fmp, a.criteria(), a.Logger),
		a.newEnricher(a.newMetadataSource(), opts.ShowProgress),
		caller,
		notifier,
		service.Options{DryRun: opts.DryRun},
		a.Logger,
	)

	report := svc.Run(ctx)
	a.logDiagnostics(report)

	if opts.DryRun && len(report.Records) > 0 {
		return a.render(opts.Output, report.Records)
	}
	return nil
}

// Quota prints the remaining provider calls.
func (a *App) Quota(ctx context.Context) error {
	fmp := a.newFMP(nil)
	remaining, err := fmp.Remaining(ctx)
	if err != nil {
		return fmt.Errorf("check quota: %w", err)
	}
	sufficient := remaining > a.Config.FMP.MinRemainingCalls
	fmt.Fprintf(a.Out, "remaining calls: %d (sufficient: %t)\n", remaining, sufficient)
	return nil
}

func (a *App) render(format string, records []scanner.EnrichedRecord) error {
	switch strings.ToLower(format) {
	case "", OutputTable:
		return RenderTable(a.Out, records)
	case OutputCSV:
		return RenderCSV(a.Out, records)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func (a *App) logDiagnostics(report service.Report) {
	for _, skip := range report.Diagnostics {
		event := a.Logger.Debug()
		if skip.Stage != scanner.StageEnrich {
			event = a.Logger.Warn()
		}
		event.Str("run_id", report.RunID).
			Str("stage", skip.Stage).
			Str("symbol", skip.Symbol).
			Str("reason", skip.Reason).
			AnErr("cause", skip.Err).
			Msg("skipped")
	}
}
