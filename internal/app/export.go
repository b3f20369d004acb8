package app

import (
	"io"

	"github.com/gocarina/gocsv"

	"github.com/evan-axel/stock-scanner/internal/scanner"
)

type recordRow struct {
	Symbol          string `csv:"symbol"`
	CompanyName     string `csv:"company_name"`
	Price           string `csv:"current_price"`
	YearLow         string `csv:"year_low"`
	DistanceFromLow string `csv:"distance_from_low_pct"`
	MarketCap       string `csv:"market_cap"`
	Industry        string `csv:"industry"`
	Sector          string `csv:"sector"`
	Volume          int64  `csv:"volume"`
	Description     string `csv:"description"`
}

// RenderCSV writes records as CSV with a header row.
func RenderCSV(w io.Writer, records []scanner.EnrichedRecord) error {
	rows := make([]*recordRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, &recordRow{
			Symbol:          r.Symbol,
			CompanyName:     r.CompanyName,
			Price:           r.Price.StringFixed(2),
			YearLow:         r.YearLow.StringFixed(2),
			DistanceFromLow: r.DistanceFromLow.StringFixed(2),
			MarketCap:       r.MarketCap.StringFixed(0),
			Industry:        r.Industry,
			Sector:          r.Sector,
			Volume:          r.Volume,
			Description:     r.Description,
		})
	}
	return gocsv.Marshal(rows, w)
}
