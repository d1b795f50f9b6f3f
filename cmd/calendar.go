package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"vendorsync/internal/logger"
)

var calendarCmd = &cobra.Command{
	Use:   "calendar",
	Short: "Show the payment calendar",
	Long: `Print payment events by day of month: early-pay discount deadlines (save),
payments due within a week (soon), later payments (future) and overdue
payments (due).

Without --year and --month every unpaid invoice is shown.`,
	Example: `  vendorsync calendar
  vendorsync calendar --year 2025 --month 7`,
	Args: cobra.NoArgs,
	RunE: runCalendar,
}

func init() {
	rootCmd.AddCommand(calendarCmd)

	calendarCmd.Flags().Int("year", 0, "Only events in this year")
	calendarCmd.Flags().Int("month", 0, "Only events in this month (1-12)")
}

func runCalendar(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("calendar")

	var year, month *int
	if cmd.Flags().Changed("year") {
		y, _ := cmd.Flags().GetInt("year")
		year = &y
	}
	if cmd.Flags().Changed("month") {
		m, _ := cmd.Flags().GetInt("month")
		if m < 1 || m > 12 {
			return fmt.Errorf("--month must be between 1 and 12")
		}
		month = &m
	}

	a, _, cancel, err := loadApp(cmd, log)
	if err != nil {
		return err
	}
	defer cancel()
	defer a.Close()

	events, err := a.svc.CalendarEvents(year, month)
	if err != nil {
		return handleAPIError(err, log)
	}

	return writeOutput(cmd, events, func(w io.Writer) error {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "DAY\tTYPE\tVENDOR")
		for _, e := range events {
			fmt.Fprintf(tw, "%d\t%s\t%s\n", e.Day, e.Type, e.FullVendorName)
		}
		return tw.Flush()
	}, log)
}
