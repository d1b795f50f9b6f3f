package cmd

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"vendorsync/internal/logger"
	"vendorsync/internal/normalize"
	"vendorsync/pkg/models"
)

var editInvoiceCmd = &cobra.Command{
	Use:   "edit-invoice <invoice-id>",
	Short: "Edit fields of an invoice",
	Long: `Change one or more invoice fields. Only the flags you pass are sent.

Editing the total of a paid invoice moves the running total spend by the
difference.`,
	Example: `  vendorsync edit-invoice 64f1c2 --total 1250.00
  vendorsync edit-invoice 64f1c2 --due-date 2025-07-31 --terms "2/10, Net 30"`,
	Args: cobra.ExactArgs(1),
	RunE: runEditInvoice,
}

var deleteInvoiceCmd = &cobra.Command{
	Use:   "delete-invoice <invoice-id>",
	Short: "Delete an invoice",
	Long: `Delete an invoice from the vendor API. Deleting a paid invoice subtracts
its total from the running total spend.`,
	Args: cobra.ExactArgs(1),
	RunE: runDeleteInvoice,
}

func init() {
	rootCmd.AddCommand(editInvoiceCmd)
	rootCmd.AddCommand(deleteInvoiceCmd)

	f := editInvoiceCmd.Flags()
	f.String("number", "", "Invoice number")
	f.String("date", "", "Invoice date (YYYY-MM-DD)")
	f.String("due-date", "", "Due date (YYYY-MM-DD)")
	f.Float64("subtotal", 0, "Subtotal")
	f.Float64("total", 0, "Total amount")
	f.String("terms", "", "Payment terms")
	f.Float64("discount", 0, "Early-pay discount percentage")
	f.Float64("late-fee", 0, "Late fee percentage")
}

// patchFromFlags builds an InvoicePatch from the flags that were set.
func patchFromFlags(cmd *cobra.Command) (models.InvoicePatch, error) {
	var patch models.InvoicePatch
	f := cmd.Flags()

	if f.Changed("number") {
		v, _ := f.GetString("number")
		patch.InvoiceNumber = &v
	}
	for _, name := range []string{"date", "due-date"} {
		if !f.Changed(name) {
			continue
		}
		raw, _ := f.GetString(name)
		t := normalize.ParseTime(raw)
		if t == nil {
			return patch, fmt.Errorf("--%s: cannot parse %q as a date", name, raw)
		}
		if name == "date" {
			patch.Date = t
		} else {
			patch.DueDate = t
		}
	}
	floats := map[string]**float64{
		"subtotal": &patch.Subtotal,
		"total":    &patch.TotalAmount,
		"discount": &patch.EarlyPayDiscount,
		"late-fee": &patch.LateFee,
	}
	for name, dst := range floats {
		if f.Changed(name) {
			v, _ := f.GetFloat64(name)
			*dst = &v
		}
	}
	if f.Changed("terms") {
		v, _ := f.GetString("terms")
		patch.PaymentTerms = &v
	}
	return patch, nil
}

func runEditInvoice(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("edit-invoice")

	patch, err := patchFromFlags(cmd)
	if err != nil {
		return err
	}

	a, ctx, cancel, err := loadApp(cmd, log)
	if err != nil {
		return err
	}
	defer cancel()
	defer a.Close()

	inv, err := a.svc.EditInvoice(ctx, args[0], patch)
	if err != nil {
		return handleAPIError(err, log)
	}
	return printInvoiceChange(cmd, a, inv, "updated", log)
}

func runDeleteInvoice(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("delete-invoice")

	a, ctx, cancel, err := loadApp(cmd, log)
	if err != nil {
		return err
	}
	defer cancel()
	defer a.Close()

	if err := a.svc.DeleteInvoice(ctx, args[0]); err != nil {
		return handleAPIError(err, log)
	}
	return printDeleted(cmd, "invoice", args[0], a.ledger.Total(), log)
}

func printDeleted(cmd *cobra.Command, kind, id string, totalSpend float64, log zerolog.Logger) error {
	out := map[string]any{"deleted": id, "kind": kind, "totalSpend": totalSpend}
	return writeOutput(cmd, out, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "Deleted %s %s. Total spend: %s\n", kind, id, money(totalSpend))
		return err
	}, log)
}
