package metadata

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when the provider has no record for a symbol.
var ErrNotFound = errors.New("metadata not found")

// Profile is the company metadata joined onto a candidate.
// Empty strings mean the provider did not report the field.
type Profile struct {
	Symbol      string
	Name        string
	MarketCap   decimal.Decimal
	Industry    string
	Sector      string
	Volume      int64
	Description string
}

// Source looks up company metadata by ticker symbol.
type Source interface {
	Lookup(ctx context.Context, symbol string) (Profile, error)
}
