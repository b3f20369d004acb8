package cli

import (
	"github.com/spf13/cobra"

	"github.com/evan-axel/stock-scanner/internal/app"
)

var (
	scanDryRun   bool
	scanOutput   string
	scanProgress bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one scan and send the WhatsApp alert",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Scan(cmd.Context(), app.ScanOptions{
			DryRun:       scanDryRun,
			Output:       scanOutput,
			ShowProgress: scanProgress,
		})
	},
}

func init() {
	scanCmd.Flags().BoolVar(&scanDryRun, "dry-run", false, "Print results instead of sending the alert")
	scanCmd.Flags().StringVar(&scanOutput, "output", app.OutputTable, "Dry-run output format (table|csv)")
	scanCmd.Flags().BoolVar(&scanProgress, "progress", true, "Report enrichment progress on stderr")
}
