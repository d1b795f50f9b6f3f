package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"vendorsync/internal/logger"
)

var kpisCmd = &cobra.Command{
	Use:   "kpis",
	Short: "Show the headline dashboard figures",
	Long: `Load vendors and invoices from the vendor API and print the headline
figures: vendor count, active contracts, upcoming payments, projected
early-pay savings, total spend and the average invoice amount.`,
	Example: `  vendorsync kpis
  vendorsync kpis --json -o kpis.json`,
	Args: cobra.NoArgs,
	RunE: runKPIs,
}

func init() {
	rootCmd.AddCommand(kpisCmd)
}

func runKPIs(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("kpis")

	a, _, cancel, err := loadApp(cmd, log)
	if err != nil {
		return err
	}
	defer cancel()
	defer a.Close()

	kpis, err := a.svc.KPIs()
	if err != nil {
		return handleAPIError(err, log)
	}

	log.Debug().
		Int("vendors", kpis.TotalVendors).
		Float64("total_spend", kpis.TotalSpend).
		Msg("KPIs computed")

	return writeOutput(cmd, kpis, func(w io.Writer) error {
		_, err := fmt.Fprintf(w,
			"Total vendors:      %d\nActive contracts:   %d\nUpcoming payments:  %d\nProjected savings:  %s\nTotal spend:        %s\nAverage invoice:    %s\n",
			kpis.TotalVendors, kpis.ActiveContracts, kpis.UpcomingPayments,
			money(kpis.ProjectedSavings), money(kpis.TotalSpend), money(kpis.AverageInvoiceAmount))
		return err
	}, log)
}
