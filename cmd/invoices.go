package cmd

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"vendorsync/internal/aggregate"
	"vendorsync/internal/logger"
	"vendorsync/internal/normalize"
	"vendorsync/pkg/models"
)

var invoicesCmd = &cobra.Command{
	Use:   "invoices",
	Short: "List invoices on the open or history payments tab",
	Long: `List invoices the way the payments page shows them.

  open     unpaid invoices, earliest due date first
  history  paid invoices, most recent payment first

--query filters by invoice number or vendor name.`,
	Example: `  vendorsync invoices
  vendorsync invoices --tab history --query acme`,
	Args: cobra.NoArgs,
	RunE: runInvoices,
}

// InvoiceRow is an invoice plus the calendar days until it is due. DaysLeft
// is negative once overdue and null when the invoice has no due date.
type InvoiceRow struct {
	models.Invoice
	DaysLeft *int `json:"daysLeft"`
}

func invoiceRows(invoices []models.Invoice, now time.Time) []InvoiceRow {
	rows := make([]InvoiceRow, 0, len(invoices))
	for _, inv := range invoices {
		rows = append(rows, InvoiceRow{
			Invoice:  inv,
			DaysLeft: normalize.DaysFromToday(normalize.DueTs(inv.DueDate), now),
		})
	}
	return rows
}

func daysOrDash(d *int) string {
	if d == nil {
		return "-"
	}
	return strconv.Itoa(*d)
}

func init() {
	rootCmd.AddCommand(invoicesCmd)

	invoicesCmd.Flags().String("tab", aggregate.TabOpen, "Payments tab: open or history")
	invoicesCmd.Flags().StringP("query", "q", "", "Filter by invoice number or vendor name")
}

func runInvoices(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("invoices")
	tab, _ := cmd.Flags().GetString("tab")
	query, _ := cmd.Flags().GetString("query")

	a, _, cancel, err := loadApp(cmd, log)
	if err != nil {
		return err
	}
	defer cancel()
	defer a.Close()

	invoices, err := a.svc.Payments(tab, query)
	if err != nil {
		return handleAPIError(err, log)
	}
	rows := invoiceRows(invoices, time.Now())

	log.Debug().Str("tab", tab).Int("count", len(rows)).Msg("Invoices listed")

	return writeOutput(cmd, rows, func(w io.Writer) error {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNUMBER\tVENDOR\tTOTAL\tDUE\tDAYS LEFT\tPAID\tSTATUS")
		for _, row := range rows {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				row.ID, row.InvoiceNumber, a.svc.VendorName(row.Invoice), money(row.TotalAmount),
				dateOrDash(row.DueDate), daysOrDash(row.DaysLeft), dateOrDash(row.PaidDate), row.Status)
		}
		return tw.Flush()
	}, log)
}
