package fetcher

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"
)

// HTTPClient is the transport used for every provider request.
//
//go:generate mockgen -package=fetcher_test -destination=mock_http_client_test.go -source=fetcher.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Quote is a single row of the exchange quote snapshot.
// Price and YearLow are invalid when the provider omitted them or sent a non-number.
type Quote struct {
	Symbol  string
	Price   decimal.NullDecimal
	YearLow decimal.NullDecimal
}

// QuotaChecker is the pre-flight budget check against the market-data provider.
type QuotaChecker interface {
	HasQuota(ctx context.Context) bool
}

// QuoteSource returns the full quote snapshot for the configured exchange.
type QuoteSource interface {
	FetchQuotes(ctx context.Context) ([]Quote, error)
}

// CallCounter exposes the number of provider calls made in this run.
type CallCounter interface {
	Calls() int
}
