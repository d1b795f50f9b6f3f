package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"vendorsync/internal/logger"
	"vendorsync/internal/sheets"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export vendor summaries and alerts to Google Sheets",
	Long: `Write the vendor table to the "Vendors" sheet and append the current alerts
to the "Alerts" sheet of the spreadsheet in GOOGLE_SHEET_URL. Sheets and
headers are created when missing. Notes typed into the Vendors sheet are
kept across exports.

Required environment variables:
  GOOGLE_SHEET_URL - Spreadsheet URL or ID
  GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS - Service account
  with edit access to the spreadsheet`,
	Example: `  vendorsync export
  vendorsync export --sheet https://docs.google.com/spreadsheets/d/1AbC.../edit --skip-alerts`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

// ExportOutput is the JSON shape of the export command.
type ExportOutput struct {
	Vendors int `json:"vendors"`
	Alerts  int `json:"alerts"`
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().String("sheet", "", "Spreadsheet URL or ID (default from GOOGLE_SHEET_URL)")
	exportCmd.Flags().Bool("skip-alerts", false, "Only export the vendor table")
}

func runExport(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("export")
	sheetURL, _ := cmd.Flags().GetString("sheet")
	skipAlerts, _ := cmd.Flags().GetBool("skip-alerts")

	a, ctx, cancel, err := loadApp(cmd, log)
	if err != nil {
		return err
	}
	defer cancel()
	defer a.Close()

	if sheetURL == "" {
		sheetURL = a.cfg.GoogleSheetURL
	}
	if sheetURL == "" {
		return fmt.Errorf("no spreadsheet configured. Set GOOGLE_SHEET_URL or pass --sheet")
	}

	exporter, err := sheets.NewExporter(ctx, sheetURL, sheets.Credentials{
		File: a.cfg.GoogleCredentialsFile,
		JSON: a.cfg.GoogleCredentialsJSON,
	})
	if err != nil {
		return handleSheetsError(err, log)
	}

	rows, err := a.svc.Vendors()
	if err != nil {
		return handleAPIError(err, log)
	}

	var out ExportOutput
	if out.Vendors, err = exporter.ExportVendors(ctx, rows); err != nil {
		return handleSheetsError(err, log)
	}

	if !skipAlerts {
		alerts, err := a.svc.Alerts()
		if err != nil {
			return handleAPIError(err, log)
		}
		vendors, err := a.svc.RawVendors()
		if err != nil {
			return handleAPIError(err, log)
		}
		if out.Alerts, err = exporter.ExportAlerts(ctx, alerts, vendors); err != nil {
			return handleSheetsError(err, log)
		}
	}

	log.Info().
		Int("vendors", out.Vendors).
		Int("alerts", out.Alerts).
		Msg("Export completed")

	return writeOutput(cmd, out, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "Exported %d vendor row(s) and %d alert(s)\n", out.Vendors, out.Alerts)
		return err
	}, log)
}

func handleSheetsError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("Sheets export failed")

	if errors.Is(err, sheets.ErrMissingCredentials) {
		return fmt.Errorf("Google credentials not configured. Set GOOGLE_APPLICATION_CREDENTIALS " +
			"to a service account JSON file or GOOGLE_CREDENTIALS to its contents, and share the " +
			"spreadsheet with the service account's email")
	}
	return handleAPIError(err, log)
}
