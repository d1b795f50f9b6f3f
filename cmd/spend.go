package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"vendorsync/internal/ledger"
	"vendorsync/internal/logger"
)

var spendCmd = &cobra.Command{
	Use:   "spend",
	Short: "Show, reset or reconcile the running total spend",
	Long: `The running total spend is the sum of paid invoice totals, kept in the
configured store (SPEND_STORE: file, redis or memory) and updated by pay,
unpay, edit-invoice and delete-invoice.

  --reconcile  recompute the total from the paid invoices in the API
  --reset      set the total to zero and remove it from the store`,
	Example: `  vendorsync spend
  vendorsync spend --reconcile
  vendorsync spend --reset`,
	Args: cobra.NoArgs,
	RunE: runSpend,
}

// SpendOutput is the JSON shape of the spend command.
type SpendOutput struct {
	TotalSpend float64       `json:"totalSpend"`
	Drift      *ledger.Drift `json:"drift,omitempty"`
	Reset      bool          `json:"reset,omitempty"`
}

func init() {
	rootCmd.AddCommand(spendCmd)

	spendCmd.Flags().Bool("reset", false, "Reset the total to zero")
	spendCmd.Flags().Bool("reconcile", false, "Recompute the total from paid invoices")
	spendCmd.MarkFlagsMutuallyExclusive("reset", "reconcile")
}

func runSpend(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("spend")
	reset, _ := cmd.Flags().GetBool("reset")
	reconcile, _ := cmd.Flags().GetBool("reconcile")

	ctx, cancel := commandContext(cmd, log)
	defer cancel()

	a, err := buildApp(ctx, cmd, log)
	if err != nil {
		return err
	}
	defer a.Close()

	var out SpendOutput
	switch {
	case reset:
		if err := a.ledger.Reset(ctx); err != nil {
			return handleAPIError(err, log)
		}
		out.Reset = true
		log.Info().Msg("Total spend reset")
	case reconcile:
		// Loading the invoices reconciles the ledger against them.
		if err := a.svc.Init(ctx); err != nil {
			return handleAPIError(err, log)
		}
		drift := a.svc.LastDrift()
		out.Drift = &drift
		log.Info().
			Float64("previous", drift.Previous).
			Float64("current", drift.Current).
			Int("skipped", drift.Skipped).
			Msg("Total spend reconciled")
	}
	out.TotalSpend = a.ledger.Total()

	return writeOutput(cmd, out, func(w io.Writer) error {
		switch {
		case out.Reset:
			fmt.Fprintln(w, "Total spend reset.")
		case out.Drift != nil && out.Drift.HasDrift():
			fmt.Fprintf(w, "Reconciled: %s -> %s\n", money(out.Drift.Previous), money(out.Drift.Current))
		case out.Drift != nil:
			fmt.Fprintln(w, "Total spend already matches paid invoices.")
		}
		_, err := fmt.Fprintf(w, "Total spend: %s\n", money(out.TotalSpend))
		return err
	}, log)
}
