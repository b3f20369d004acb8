package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/evan-axel/stock-scanner/internal/alerting"
	"github.com/evan-axel/stock-scanner/internal/fetcher"
	"github.com/evan-axel/stock-scanner/internal/logging"
	"github.com/evan-axel/stock-scanner/internal/scanner"
)

// StageNotify marks a delivery failure in Report.Diagnostics.
const StageNotify = "notify"

// CandidateScanner produces near-low candidates.
type CandidateScanner interface {
	ScanCandidates(ctx context.Context) ([]scanner.Candidate, []scanner.Skip)
}

// RecordEnricher joins candidates with company metadata.
type RecordEnricher interface {
	Enrich(ctx context.Context, candidates []scanner.Candidate) ([]scanner.EnrichedRecord, []scanner.Skip)
}

// Report summarises one run.
type Report struct {
	RunID       string
	Aborted     bool
	Candidates  int
	Records     []scanner.EnrichedRecord
	Diagnostics []scanner.Skip
	CallsUsed   int
	Notified    bool
	MessageSID  string
	Err         error
}

// Options tune a run.
type Options struct {
	// DryRun skips delivery; records are left on the Report.
	DryRun bool
	Now    func() time.Time
}

// Service sequences quota gate, scan, enrichment and notification.
type Service struct {
	quota    fetcher.QuotaChecker
	scan     CandidateScanner
	enrich   RecordEnricher
	counter  fetcher.CallCounter
	notifier alerting.Notifier
	opts     Options
	logger   zerolog.Logger
}

// New constructs the orchestrator. notifier may be nil for dry runs.
func New(quota fetcher.QuotaChecker, scan CandidateScanner, enrich RecordEnricher, counter fetcher.CallCounter, notifier alerting.Notifier, opts Options, logger zerolog.Logger) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		quota:    quota,
		scan:     scan,
		enrich:   enrich,
		counter:  counter,
		notifier: notifier,
		opts:     opts,
		logger:   logger.With().Str("component", "service").Logger(),
	}
}

// Run executes one scan. It never returns an error: every failure is logged
// and recorded on the Report.
func (s *Service) Run(ctx context.Context) (report Report) {
	report.RunID = uuid.NewString()
	logger := logging.WithRun(s.logger, report.RunID)

	defer func() {
		if r := recover(); r != nil {
			report.Err = fmt.Errorf("scanner panicked: %v", r)
			logger.Error().Err(report.Err).Msg("error running scanner")
		}
		report.CallsUsed = s.calls()
	}()

	if !s.quota.HasQuota(ctx) {
		report.Aborted = true
		logger.Warn().Msg("insufficient api calls remaining")
		return report
	}

	candidates, skips := s.scan.ScanCandidates(ctx)
	report.Candidates = len(candidates)
	report.Diagnostics = append(report.Diagnostics, skips...)

	records, skips := s.enrich.Enrich(ctx, candidates)
	report.Records = records
	report.Diagnostics = append(report.Diagnostics, skips...)

	if len(records) == 0 {
		logger.Info().Int("candidates", len(candidates)).Msg("no small cap stocks found at 52-week lows")
		return report
	}

	if s.opts.DryRun {
		logger.Info().Int("records", len(records)).Msg("dry run: notification not sent")
		return report
	}

	s.deliver(ctx, logger, &report)

	logger.Info().Int("records", len(records)).
		Int("skipped", len(report.Diagnostics)).
		Int("api_calls", s.calls()).
		Bool("notified", report.Notified).
		Msg("successfully processed stocks")
	return report
}

func (s *Service) deliver(ctx context.Context, logger zerolog.Logger, report *Report) {
	if s.notifier == nil {
		report.Diagnostics = append(report.Diagnostics, scanner.Skip{Stage: StageNotify, Reason: "notifier not configured"})
		logger.Warn().Msg("notifier not configured; skipping delivery")
		return
	}

	note := alerting.Notification{
		Records:     report.Records,
		CallsUsed:   s.calls(),
		GeneratedAt: s.opts.Now(),
	}
	sid, err := s.notifier.Notify(ctx, note)
	if err != nil {
		report.Diagnostics = append(report.Diagnostics, scanner.Skip{Stage: StageNotify, Reason: "delivery failed", Err: err})
		logger.Error().Err(err).Msg("error sending whatsapp message")
		return
	}
	report.Notified = true
	report.MessageSID = sid
}

func (s *Service) calls() int {
	if s.counter == nil {
		return 0
	}
	return s.counter.Calls()
}
