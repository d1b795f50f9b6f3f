package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"vendorsync/internal/logger"
	"vendorsync/pkg/models"
)

var trendsCmd = &cobra.Command{
	Use:   "trends",
	Short: "Show the savings series and monthly invoice totals",
	Args:  cobra.NoArgs,
	RunE:  runTrends,
}

// TrendsOutput is the JSON shape of the trends command.
type TrendsOutput struct {
	Savings models.SavingsSeries `json:"savings"`
	Monthly models.MonthlyTotals `json:"monthly"`
}

func init() {
	rootCmd.AddCommand(trendsCmd)
}

func runTrends(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("trends")

	a, _, cancel, err := loadApp(cmd, log)
	if err != nil {
		return err
	}
	defer cancel()
	defer a.Close()

	var out TrendsOutput
	if out.Savings, err = a.svc.SavingsSeries(); err != nil {
		return handleAPIError(err, log)
	}
	if out.Monthly, err = a.svc.MonthlyTotals(); err != nil {
		return handleAPIError(err, log)
	}

	return writeOutput(cmd, out, func(w io.Writer) error {
		label := "Savings"
		if out.Savings.Synthetic {
			label = "Savings (placeholder, no performance data)"
		}
		fmt.Fprintf(w, "%s:\n", label)
		for i, p := range out.Savings.Points {
			fmt.Fprintf(w, "  %2d  %10.2f\n", i+1, p)
		}
		fmt.Fprintln(w, "Monthly invoice totals:")
		for i, m := range out.Monthly.Months {
			if _, err := fmt.Fprintf(w, "  %s  %s\n", m, money(out.Monthly.Amounts[i])); err != nil {
				return err
			}
		}
		return nil
	}, log)
}
