package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"vendorsync/internal/logger"
)

var alertsCmd = &cobra.Command{
	Use:     "alerts",
	Short:   "Show overdue, due-soon and discount alerts",
	Args:    cobra.NoArgs,
	Example: `  vendorsync alerts --json`,
	RunE:    runAlerts,
}

func init() {
	rootCmd.AddCommand(alertsCmd)
}

func runAlerts(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("alerts")

	a, _, cancel, err := loadApp(cmd, log)
	if err != nil {
		return err
	}
	defer cancel()
	defer a.Close()

	alerts, err := a.svc.Alerts()
	if err != nil {
		return handleAPIError(err, log)
	}

	return writeOutput(cmd, alerts, func(w io.Writer) error {
		for _, al := range alerts {
			if _, err := fmt.Fprintf(w, "[%s] %s\n", strings.ToUpper(al.Level), al.Text); err != nil {
				return err
			}
		}
		return nil
	}, log)
}
