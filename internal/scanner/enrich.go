package scanner

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/evan-axel/stock-scanner/internal/metadata"
	"github.com/evan-axel/stock-scanner/internal/ratelimit"
)

const notAvailable = "N/A"

var (
	hundred = decimal.NewFromInt(100)
	million = decimal.NewFromInt(1_000_000)
)

// EnrichedRecord is a candidate joined with company metadata.
type EnrichedRecord struct {
	Symbol           string
	CompanyName      string
	Price            decimal.Decimal
	YearLow          decimal.Decimal
	DistanceFromLow  decimal.Decimal
	MarketCap        decimal.Decimal
	MarketCapDisplay string
	Industry         string
	Sector           string
	Volume           int64
	Description      string
}

// DistanceDisplay renders the distance from the yearly low, e.g. "-1.0%".
func (r EnrichedRecord) DistanceDisplay() string {
	return FormatNumber(r.DistanceFromLow) + "%"
}

// ProgressFunc receives enrichment progress. Returned errors are logged only.
type ProgressFunc func(done, total int) error

// Enricher looks up metadata for candidates one at a time.
type Enricher struct {
	source   metadata.Source
	limiter  *ratelimit.MinInterval
	criteria Criteria
	progress ProgressFunc
	logger   zerolog.Logger
}

// NewEnricher constructs an Enricher. limiter spaces out metadata lookups
// and may be nil.
func NewEnricher(source metadata.Source, limiter *ratelimit.MinInterval, criteria Criteria, logger zerolog.Logger) *Enricher {
	return &Enricher{
		source:   source,
		limiter:  limiter,
		criteria: criteria,
		logger:   logger.With().Str("component", "enricher").Logger(),
	}
}

// OnProgress installs a progress reporter.
func (e *Enricher) OnProgress(fn ProgressFunc) {
	e.progress = fn
}

// Enrich processes candidates in input order. A failure on one symbol is
// recorded as a Skip and the batch continues.
func (e *Enricher) Enrich(ctx context.Context, candidates []Candidate) ([]EnrichedRecord, []Skip) {
	records := make([]EnrichedRecord, 0)
	var skips []Skip

	total := len(candidates)
	e.logger.Info().Int("total", total).Msg("enriching candidates")

	for i, c := range candidates {
		e.report(i+1, total)

		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				for _, rest := range candidates[i:] {
					skips = append(skips, Skip{Stage: StageEnrich, Symbol: rest.Symbol, Reason: "cancelled", Err: err})
				}
				break
			}
		}

		record, skip := e.enrichOne(ctx, c)
		if skip != nil {
			if skip.Err != nil {
				e.logger.Error().Err(skip.Err).Str("symbol", c.Symbol).Msg("error processing symbol")
			} else {
				e.logger.Debug().Str("symbol", c.Symbol).Str("reason", skip.Reason).Msg("candidate skipped")
			}
			skips = append(skips, *skip)
			continue
		}
		records = append(records, record)
	}

	e.logger.Info().Int("enriched", len(records)).Int("skipped", len(skips)).Msg("data enrichment complete")
	return records, skips
}

func (e *Enricher) enrichOne(ctx context.Context, c Candidate) (EnrichedRecord, *Skip) {
	profile, err := e.source.Lookup(ctx, c.Symbol)
	if err != nil {
		return EnrichedRecord{}, &Skip{Stage: StageEnrich, Symbol: c.Symbol, Reason: "metadata unavailable", Err: err}
	}

	if !profile.MarketCap.IsPositive() {
		return EnrichedRecord{}, &Skip{Stage: StageEnrich, Symbol: c.Symbol, Reason: "market cap unavailable"}
	}
	if profile.MarketCap.LessThan(e.criteria.MinMarketCap) || profile.MarketCap.GreaterThan(e.criteria.MaxMarketCap) {
		return EnrichedRecord{}, &Skip{
			Stage:  StageEnrich,
			Symbol: c.Symbol,
			Reason: fmt.Sprintf("market cap %s outside band", FormatMarketCap(profile.MarketCap)),
		}
	}
	if !c.YearLow.IsPositive() {
		return EnrichedRecord{}, &Skip{Stage: StageEnrich, Symbol: c.Symbol, Reason: "year low not positive"}
	}

	return EnrichedRecord{
		Symbol:           c.Symbol,
		CompanyName:      orNA(profile.Name),
		Price:            c.Price.Round(2),
		YearLow:          c.YearLow.Round(2),
		DistanceFromLow:  DistanceFromLow(c.Price, c.YearLow),
		MarketCap:        profile.MarketCap,
		MarketCapDisplay: FormatMarketCap(profile.MarketCap),
		Industry:         orNA(profile.Industry),
		Sector:           orNA(profile.Sector),
		Volume:           profile.Volume,
		Description:      Summarize(profile.Description, e.criteria.DescriptionLimit),
	}, nil
}

func (e *Enricher) report(done, total int) {
	e.logger.Debug().Int("done", done).Int("total", total).Msg("processing")
	if e.progress == nil {
		return
	}
	if err := e.progress(done, total); err != nil {
		e.logger.Warn().Err(err).Msg("progress report failed")
	}
}

// DistanceFromLow is (price/yearLow - 1) * 100 rounded to two places.
func DistanceFromLow(price, yearLow decimal.Decimal) decimal.Decimal {
	return price.Div(yearLow).Sub(decimal.NewFromInt(1)).Mul(hundred).Round(2)
}

// FormatMarketCap renders a market cap in millions, e.g. "$50.0M".
func FormatMarketCap(cap decimal.Decimal) string {
	return "$" + cap.Div(million).StringFixed(1) + "M"
}

// FormatNumber prints d with at least one decimal place: 2 -> "2.0", 9.9 -> "9.9".
func FormatNumber(d decimal.Decimal) string {
	s := d.String()
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// Summarize keeps the first limit characters of a description.
func Summarize(text string, limit int) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return notAvailable
	}
	runes := []rune(text)
	if limit > 0 && len(runes) > limit {
		runes = runes[:limit]
	}
	return string(runes) + "..."
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return notAvailable
	}
	return s
}
