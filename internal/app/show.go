package app

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/evan-axel/stock-scanner/internal/scanner"
)

// RenderTable prints records as an aligned table.
func RenderTable(w io.Writer, records []scanner.EnrichedRecord) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "no stocks found")
		return err
	}

	p := message.NewPrinter(language.English)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Symbol", "Company", "Price", "52W Low", "From Low", "Market Cap", "Volume", "Industry", "Sector"})
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	for _, r := range records {
		table.Append([]string{
			r.Symbol,
			r.CompanyName,
			"$" + scanner.FormatNumber(r.Price),
			"$" + scanner.FormatNumber(r.YearLow),
			r.DistanceDisplay(),
			r.MarketCapDisplay,
			p.Sprintf("%d", r.Volume),
			r.Industry,
			r.Sector,
		})
	}

	table.Render()
	return nil
}
