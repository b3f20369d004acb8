package scanner

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/evan-axel/stock-scanner/internal/fetcher"
)

type stubQuotes struct {
	quotes []fetcher.Quote
	err    error
}

func (s stubQuotes) FetchQuotes(ctx context.Context) ([]fetcher.Quote, error) {
	return s.quotes, s.err
}

func quote(symbol, price, low string) fetcher.Quote {
	q := fetcher.Quote{Symbol: symbol}
	if price != "" {
		q.Price = decimal.NewNullDecimal(decimal.RequireFromString(price))
	}
	if low != "" {
		q.YearLow = decimal.NewNullDecimal(decimal.RequireFromString(low))
	}
	return q
}

func TestFilterCandidates(t *testing.T) {
	quotes := []fetcher.Quote{
		quote("ABC", "9.9", "10.0"),
		quote("XYZ", "50", "10.0"),
		quote("EDGE", "10.2", "10"),
		quote("OVER", "10.2001", "10"),
		quote("ZERO", "0", "10"),
		quote("NEGL", "1", "-1"),
		quote("NOPR", "", "10"),
		quote("NOLO", "5", ""),
	}

	got := FilterCandidates(quotes, DefaultCriteria().NearLowRatio)

	symbols := make([]string, 0, len(got))
	for _, c := range got {
		symbols = append(symbols, c.Symbol)
	}
	require.Equal(t, []string{"ABC", "EDGE"}, symbols)
}

func TestScanCandidatesDegradesOnProviderError(t *testing.T) {
	s := NewScanner(stubQuotes{err: errors.New("api call failed after 3 retries")}, DefaultCriteria(), zerolog.Nop())

	candidates, skips := s.ScanCandidates(context.Background())
	require.Empty(t, candidates)
	require.Len(t, skips, 1)
	require.Equal(t, StageScan, skips[0].Stage)
	require.Error(t, skips[0].Err)
}

func TestScanCandidates(t *testing.T) {
	s := NewScanner(stubQuotes{quotes: []fetcher.Quote{
		quote("ABC", "9.9", "10.0"),
		quote("XYZ", "50", "10.0"),
	}}, DefaultCriteria(), zerolog.Nop())

	candidates, skips := s.ScanCandidates(context.Background())
	require.Empty(t, skips)
	require.Len(t, candidates, 1)
	require.Equal(t, "ABC", candidates[0].Symbol)
}

func TestFormatting(t *testing.T) {
	d := DistanceFromLow(decimal.RequireFromString("9.9"), decimal.NewFromInt(10))
	require.Equal(t, "-1.0", FormatNumber(d))
	require.Equal(t, "1.5", FormatNumber(DistanceFromLow(decimal.RequireFromString("10.15"), decimal.NewFromInt(10))))
	require.Equal(t, "0.33", FormatNumber(DistanceFromLow(decimal.NewFromInt(301), decimal.NewFromInt(300))))

	require.Equal(t, "$50.0M", FormatMarketCap(decimal.NewFromInt(50_000_000)))
	require.Equal(t, "$123.5M", FormatMarketCap(decimal.NewFromInt(123_456_789)))

	require.Equal(t, "N/A", Summarize("   ", 200))
	require.Equal(t, "short...", Summarize("short", 200))
	require.Equal(t, "abc...", Summarize("abcdef", 3))
	require.Equal(t, "héé...", Summarize("hééllo", 3))
}
