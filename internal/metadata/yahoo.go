package metadata

import (
	"context"
	"fmt"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/equity"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Yahoo reads equity quotes from Yahoo Finance. The quote endpoint carries
// name, market cap and volume but no industry, sector or business summary.
type Yahoo struct {
	get    func(symbol string) (*finance.Equity, error)
	logger zerolog.Logger
}

// NewYahoo constructs the Yahoo backend.
func NewYahoo(logger zerolog.Logger) *Yahoo {
	return &Yahoo{
		get:    equity.Get,
		logger: logger.With().Str("component", "metadata_yahoo").Logger(),
	}
}

// Lookup fetches the equity quote for symbol.
func (y *Yahoo) Lookup(ctx context.Context, symbol string) (Profile, error) {
	if err := ctx.Err(); err != nil {
		return Profile{}, err
	}

	eq, err := y.get(symbol)
	if err != nil {
		return Profile{}, fmt.Errorf("get equity %s: %w", symbol, err)
	}
	if eq == nil {
		return Profile{}, fmt.Errorf("%s: %w", symbol, ErrNotFound)
	}

	name := eq.LongName
	if name == "" {
		name = eq.ShortName
	}

	return Profile{
		Symbol:    symbol,
		Name:      name,
		MarketCap: decimal.NewFromInt(eq.MarketCap),
		Volume:    int64(eq.RegularMarketVolume),
	}, nil
}

var _ Source = (*Yahoo)(nil)
