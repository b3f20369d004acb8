package scanner

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/evan-axel/stock-scanner/internal/fetcher"
)

// Stages recorded on a Skip.
const (
	StageScan   = "scan"
	StageEnrich = "enrich"
)

// Candidate is a quote trading close to its 52-week low.
type Candidate struct {
	Symbol  string
	Price   decimal.Decimal
	YearLow decimal.Decimal
}

// Skip records why a stage dropped work instead of failing the run.
type Skip struct {
	Stage  string
	Symbol string
	Reason string
	Err    error
}

// Criteria are the screening thresholds.
type Criteria struct {
	NearLowRatio     decimal.Decimal
	MinMarketCap     decimal.Decimal
	MaxMarketCap     decimal.Decimal
	DescriptionLimit int
}

// DefaultCriteria screens for small caps within 2% of their yearly low.
func DefaultCriteria() Criteria {
	return Criteria{
		NearLowRatio:     decimal.RequireFromString("1.02"),
		MinMarketCap:     decimal.NewFromInt(10_000_000),
		MaxMarketCap:     decimal.NewFromInt(300_000_000),
		DescriptionLimit: 200,
	}
}

// Scanner pulls the exchange snapshot and keeps near-low quotes.
type Scanner struct {
	source   fetcher.QuoteSource
	criteria Criteria
	logger   zerolog.Logger
}

// NewScanner constructs a Scanner.
func NewScanner(source fetcher.QuoteSource, criteria Criteria, logger zerolog.Logger) *Scanner {
	return &Scanner{
		source:   source,
		criteria: criteria,
		logger:   logger.With().Str("component", "scanner").Logger(),
	}
}

// ScanCandidates never fails: a provider error yields no candidates and a
// single scan-stage Skip.
func (s *Scanner) ScanCandidates(ctx context.Context) ([]Candidate, []Skip) {
	quotes, err := s.source.FetchQuotes(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("error fetching initial stock data")
		return nil, []Skip{{Stage: StageScan, Reason: "quote snapshot unavailable", Err: err}}
	}

	candidates := FilterCandidates(quotes, s.criteria.NearLowRatio)
	s.logger.Info().Int("quotes", len(quotes)).Int("candidates", len(candidates)).Msg("found stocks at 52-week lows")
	return candidates, nil
}

// FilterCandidates keeps quotes with positive price and year-low where
// price <= yearLow*ratio. Quotes with missing fields are dropped silently.
func FilterCandidates(quotes []fetcher.Quote, ratio decimal.Decimal) []Candidate {
	candidates := make([]Candidate, 0)
	for _, q := range quotes {
		if !q.Price.Valid || !q.YearLow.Valid {
			continue
		}
		price, low := q.Price.Decimal, q.YearLow.Decimal
		if !price.IsPositive() || !low.IsPositive() {
			continue
		}
		if price.GreaterThan(low.Mul(ratio)) {
			continue
		}
		candidates = append(candidates, Candidate{Symbol: q.Symbol, Price: price, YearLow: low})
	}
	return candidates
}
