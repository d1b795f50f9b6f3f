package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"vendorsync/internal/logger"
	"vendorsync/internal/reconcile"
	"vendorsync/pkg/models"
)

var vendorsCmd = &cobra.Command{
	Use:   "vendors",
	Short: "List vendor summaries",
	Long: `Print one row per vendor with spend, invoice count, overdue count,
compliance status, next payment and score, sorted by spend.

With --query the raw vendor list is searched by name or email instead.`,
	Example: `  vendorsync vendors
  vendorsync vendors --query acme --json`,
	Args: cobra.NoArgs,
	RunE: runVendors,
}

func init() {
	rootCmd.AddCommand(vendorsCmd)

	vendorsCmd.Flags().StringP("query", "q", "", "Search vendors by name or email")
}

func runVendors(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("vendors")
	query, _ := cmd.Flags().GetString("query")

	a, _, cancel, err := loadApp(cmd, log)
	if err != nil {
		return err
	}
	defer cancel()
	defer a.Close()

	if query != "" {
		all, err := a.svc.RawVendors()
		if err != nil {
			return handleAPIError(err, log)
		}
		matches := reconcile.SearchVendors(query, all)
		if matches == nil {
			matches = []models.Vendor{}
		}
		return writeOutput(cmd, matches, func(w io.Writer) error {
			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tEMAIL")
			for _, v := range matches {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", v.ID, v.Name, v.Email)
			}
			return tw.Flush()
		}, log)
	}

	rows, err := a.svc.Vendors()
	if err != nil {
		return handleAPIError(err, log)
	}

	return writeOutput(cmd, rows, func(w io.Writer) error {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "VENDOR\tSPEND\tINVOICES\tOVERDUE\tCOMPLIANCE\tNEXT PAY\tSCORE")
		for _, r := range rows {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\t%d\n",
				r.Name, money(r.Spend), r.InvoiceCount, r.OverdueCount, r.Compliance, r.NextPay, r.Score)
		}
		return tw.Flush()
	}, log)
}
