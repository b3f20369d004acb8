package scanner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/evan-axel/stock-scanner/internal/metadata"
	"github.com/evan-axel/stock-scanner/internal/ratelimit"
)

type stubSource struct {
	profiles map[string]metadata.Profile
	errs     map[string]error
	calls    []string
}

func (s *stubSource) Lookup(ctx context.Context, symbol string) (metadata.Profile, error) {
	s.calls = append(s.calls, symbol)
	if err, ok := s.errs[symbol]; ok {
		return metadata.Profile{}, err
	}
	p, ok := s.profiles[symbol]
	if !ok {
		return metadata.Profile{}, metadata.ErrNotFound
	}
	return p, nil
}

func candidate(symbol, price, low string) Candidate {
	return Candidate{Symbol: symbol, Price: decimal.RequireFromString(price), YearLow: decimal.RequireFromString(low)}
}

func TestEnrichEndToEndRecord(t *testing.T) {
	src := &stubSource{profiles: map[string]metadata.Profile{
		"ABC": {Symbol: "ABC", Name: "ABC Corp", MarketCap: decimal.NewFromInt(50_000_000), Industry: "Software", Volume: 1000},
	}}
	e := NewEnricher(src, nil, DefaultCriteria(), zerolog.Nop())

	records, skips := e.Enrich(context.Background(), []Candidate{candidate("ABC", "9.9", "10.0")})
	require.Empty(t, skips)
	require.Len(t, records, 1)

	r := records[0]
	require.Equal(t, "ABC", r.Symbol)
	require.Equal(t, "ABC Corp", r.CompanyName)
	require.Equal(t, "-1.0%", r.DistanceDisplay())
	require.Equal(t, "$50.0M", r.MarketCapDisplay)
	require.Equal(t, "9.9", FormatNumber(r.Price))
	require.Equal(t, "10.0", FormatNumber(r.YearLow))
	require.Equal(t, "Software", r.Industry)
	require.Equal(t, "N/A", r.Sector)
	require.Equal(t, "N/A", r.Description)
	require.Equal(t, int64(1000), r.Volume)
}

func TestEnrichMarketCapBandIsInclusive(t *testing.T) {
	src := &stubSource{profiles: map[string]metadata.Profile{
		"LOW":  {MarketCap: decimal.NewFromInt(10_000_000)},
		"HIGH": {MarketCap: decimal.NewFromInt(300_000_000)},
		"TINY": {MarketCap: decimal.NewFromInt(9_999_999)},
		"BIG":  {MarketCap: decimal.NewFromInt(300_000_001)},
		"NONE": {MarketCap: decimal.Zero},
	}}
	e := NewEnricher(src, nil, DefaultCriteria(), zerolog.Nop())

	records, skips := e.Enrich(context.Background(), []Candidate{
		candidate("LOW", "1", "1"),
		candidate("TINY", "1", "1"),
		candidate("HIGH", "1", "1"),
		candidate("BIG", "1", "1"),
		candidate("NONE", "1", "1"),
	})

	require.Len(t, records, 2)
	require.Equal(t, "LOW", records[0].Symbol)
	require.Equal(t, "HIGH", records[1].Symbol)

	skipped := map[string]string{}
	for _, s := range skips {
		require.Equal(t, StageEnrich, s.Stage)
		skipped[s.Symbol] = s.Reason
	}
	require.Len(t, skipped, 3)
	require.Equal(t, "market cap unavailable", skipped["NONE"])
	require.Contains(t, skipped["BIG"], "outside band")
}

func TestEnrichContinuesAfterSymbolFailure(t *testing.T) {
	src := &stubSource{
		profiles: map[string]metadata.Profile{
			"OK1": {MarketCap: decimal.NewFromInt(20_000_000), Description: "A long business summary"},
			"OK2": {MarketCap: decimal.NewFromInt(30_000_000)},
		},
		errs: map[string]error{"BAD": errors.New("connection reset")},
	}

	rec := &ratelimit.Recorder{}
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	limiter := &ratelimit.MinInterval{Interval: 100 * time.Millisecond, Sleeper: rec, Now: func() time.Time { return now }}

	e := NewEnricher(src, limiter, DefaultCriteria(), zerolog.Nop())
	var progress []int
	e.OnProgress(func(done, total int) error {
		progress = append(progress, done)
		return errors.New("terminal closed")
	})

	records, skips := e.Enrich(context.Background(), []Candidate{
		candidate("OK1", "5", "5"),
		candidate("BAD", "5", "5"),
		candidate("MISSING", "5", "5"),
		candidate("OK2", "5", "5"),
	})

	require.Equal(t, []string{"OK1", "BAD", "MISSING", "OK2"}, src.calls)
	require.Len(t, records, 2)
	require.Equal(t, "OK1", records[0].Symbol)
	require.Equal(t, "A long business summary...", records[0].Description)
	require.Equal(t, "OK2", records[1].Symbol)

	require.Len(t, skips, 2)
	require.Equal(t, "BAD", skips[0].Symbol)
	require.Error(t, skips[0].Err)
	require.ErrorIs(t, skips[1].Err, metadata.ErrNotFound)

	require.Equal(t, []int{1, 2, 3, 4}, progress)
	// Clock is frozen, so every lookup after the first waits the full interval.
	require.Len(t, rec.Waits(), 3)
	for _, w := range rec.Waits() {
		require.Equal(t, 100*time.Millisecond, w)
	}
}

func TestEnrichStopsOnCancellation(t *testing.T) {
	src := &stubSource{profiles: map[string]metadata.Profile{"A": {MarketCap: decimal.NewFromInt(20_000_000)}}}
	ctx, cancel := context.WithCancel(context.Background())
	limiter := &ratelimit.MinInterval{
		Interval: time.Hour,
		Sleeper: ratelimit.SleeperFunc(func(ctx context.Context, d time.Duration) error {
			cancel()
			return ctx.Err()
		}),
	}

	e := NewEnricher(src, limiter, DefaultCriteria(), zerolog.Nop())
	records, skips := e.Enrich(ctx, []Candidate{candidate("A", "1", "1"), candidate("B", "1", "1"), candidate("C", "1", "1")})

	require.Len(t, records, 1)
	require.Len(t, skips, 2)
	require.Equal(t, "cancelled", skips[0].Reason)
}
