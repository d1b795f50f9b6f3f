package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"vendorsync/internal/logger"
)

var renewalsCmd = &cobra.Command{
	Use:   "renewals",
	Short: "List contract renewals per vendor",
	Long: `List one renewal row per vendor. The vendor API does not expose contract
data yet, so every row is reported as Unavailable.`,
	Args: cobra.NoArgs,
	RunE: runRenewals,
}

func init() {
	rootCmd.AddCommand(renewalsCmd)
}

func runRenewals(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("renewals")

	a, _, cancel, err := loadApp(cmd, log)
	if err != nil {
		return err
	}
	defer cancel()
	defer a.Close()

	renewals, err := a.svc.Renewals()
	if err != nil {
		return handleAPIError(err, log)
	}

	return writeOutput(cmd, renewals, func(w io.Writer) error {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "VENDOR\tCONTRACT\tRENEWS\tSTATUS")
		for _, r := range renewals {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Vendor, r.Contract, dateOrDash(r.Renews), r.Status)
		}
		return tw.Flush()
	}, log)
}
