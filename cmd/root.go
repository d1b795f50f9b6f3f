package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"vendorsync/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "vendorsync",
	Short: "VendorSync - vendor spend, payments and invoice reconciliation",
	Long: `VendorSync reads vendors and invoices from the vendor API and turns them
into dashboard views: KPIs, vendor summaries, alerts, renewals, a payment
calendar and spend trends.

It also records payments, edits invoices, uploads scanned invoices through
an extractor, exports summaries to Google Sheets and serves every view as
JSON over HTTP.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().Int("timeout", 60, "Command timeout in seconds")
	rootCmd.PersistentFlags().Bool("no-persist", false, "Keep total spend in memory only")
	rootCmd.PersistentFlags().StringP("output", "o", "", "Output file path (default: stdout)")
}
