package cli

import (
	"errors"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	simulateSymbol    string
	simulatePrice     float64
	simulateYearLow   float64
	simulateMarketCap float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Send a WhatsApp alert built from a synthetic quote",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateSymbol == "" {
			return errors.New("--symbol must not be empty")
		}
		if simulatePrice <= 0 || simulateYearLow <= 0 || simulateMarketCap <= 0 {
			return errors.New("--price, --year-low and --market-cap must be greater than 0")
		}

		return getApp().SimulateAlert(cmd.Context(), simulateSymbol,
			decimal.NewFromFloat(simulatePrice),
			decimal.NewFromFloat(simulateYearLow),
			decimal.NewFromFloat(simulateMarketCap),
		)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateSymbol, "symbol", "TEST", "Ticker symbol")
	simulateCmd.Flags().Float64Var(&simulatePrice, "price", 9.9, "Current price")
	simulateCmd.Flags().Float64Var(&simulateYearLow, "year-low", 10, "52-week low")
	simulateCmd.Flags().Float64Var(&simulateMarketCap, "market-cap", 50_000_000, "Market capitalisation in USD")
}
