package cmd

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"vendorsync/internal/logger"
	"vendorsync/pkg/models"
)

var payCmd = &cobra.Command{
	Use:   "pay <invoice-id>",
	Short: "Mark an invoice as paid",
	Long: `Mark an invoice as paid today. The invoice total is added to the running
total spend; if the API call fails the local change is rolled back.`,
	Example: `  vendorsync pay 64f1c2
  vendorsync pay 64f1c2 --no-persist`,
	Args: cobra.ExactArgs(1),
	RunE: runPay,
}

var unpayCmd = &cobra.Command{
	Use:   "unpay <invoice-id>",
	Short: "Mark a paid invoice as pending again",
	Args:  cobra.ExactArgs(1),
	RunE:  runUnpay,
}

func init() {
	rootCmd.AddCommand(payCmd)
	rootCmd.AddCommand(unpayCmd)
}

func runPay(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("pay")

	a, ctx, cancel, err := loadApp(cmd, log)
	if err != nil {
		return err
	}
	defer cancel()
	defer a.Close()

	inv, err := a.svc.MarkPaid(ctx, args[0])
	if err != nil {
		return handleAPIError(err, log)
	}
	return printInvoiceChange(cmd, a, inv, "paid", log)
}

func runUnpay(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("unpay")

	a, ctx, cancel, err := loadApp(cmd, log)
	if err != nil {
		return err
	}
	defer cancel()
	defer a.Close()

	inv, err := a.svc.MarkUnpaid(ctx, args[0])
	if err != nil {
		return handleAPIError(err, log)
	}
	return printInvoiceChange(cmd, a, inv, "marked pending", log)
}

// InvoiceChangeOutput is the JSON shape of invoice mutation commands.
type InvoiceChangeOutput struct {
	Invoice    models.Invoice `json:"invoice"`
	TotalSpend float64        `json:"totalSpend"`
}

func printInvoiceChange(cmd *cobra.Command, a *app, inv models.Invoice, verb string, log zerolog.Logger) error {
	out := InvoiceChangeOutput{Invoice: inv, TotalSpend: a.ledger.Total()}
	return writeOutput(cmd, out, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "Invoice %s (%s) %s. Total spend: %s\n",
			inv.InvoiceNumber, a.svc.VendorName(inv), verb, money(out.TotalSpend))
		return err
	}, log)
}
