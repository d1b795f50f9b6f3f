package sheets

import (
	"context"
	"fmt"

	"google.golang.org/api/sheets/v4"

	"vendorsync/internal/reconcile"
	"vendorsync/pkg/models"
)

// Worksheet names.
const (
	VendorsSheet = "Vendors"
	AlertsSheet  = "Alerts"
)

const timestampLayout = "2006-01-02 15:04:05"

var vendorHeaders = []interface{}{
	"Vendor", "Email", "Spend", "Invoices", "Overdue", "Compliance",
	"Next Payment", "Score", "Last Invoice", "Address", "Exported", "Notes",
}

// notesColumn is kept from the previous export so hand-written notes survive.
const notesColumn = 11

var alertHeaders = []interface{}{"Exported", "Level", "Vendor", "Alert"}

// ExportVendors replaces the vendor table. Notes typed into the sheet are
// carried over to the row of the same vendor.
func (e *Exporter) ExportVendors(ctx context.Context, rows []models.VendorSummary) (int, error) {
	const op = "ExportVendors"

	if err := e.ensureSheetWithHeaders(ctx, VendorsSheet, vendorHeaders); err != nil {
		return 0, fmt.Errorf("%s: failed to ensure sheet exists: %w", op, err)
	}

	dataRange := fmt.Sprintf("%s!A2:%s", VendorsSheet, columnLetter(len(vendorHeaders)))
	existing, err := e.ReadRange(ctx, dataRange)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	values := vendorValues(rows, existing, e.now().Format(timestampLayout))

	if _, err := e.sheetsService.Spreadsheets.Values.Clear(e.spreadsheetID, dataRange,
		&sheets.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return 0, fmt.Errorf("%s: failed to clear previous export: %w", op, err)
	}
	if len(values) == 0 {
		return 0, nil
	}

	_, err = e.sheetsService.Spreadsheets.Values.Update(
		e.spreadsheetID,
		VendorsSheet+"!A2",
		&sheets.ValueRange{Values: values},
	).ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("%s: failed to write vendor rows: %w", op, err)
	}

	e.log.Info().
		Int("rows_written", len(values)).
		Msg("Exported vendor table to Google Sheet")
	return len(values), nil
}

// ExportAlerts appends the current alerts with a timestamp, building an
// alert history over repeated exports.
func (e *Exporter) ExportAlerts(ctx context.Context, alerts []models.Alert, vendors []models.Vendor) (int, error) {
	const op = "ExportAlerts"

	if len(alerts) == 0 {
		return 0, nil
	}
	if err := e.ensureSheetWithHeaders(ctx, AlertsSheet, alertHeaders); err != nil {
		return 0, fmt.Errorf("%s: failed to ensure sheet exists: %w", op, err)
	}

	values := alertValues(alerts, vendors, e.now().Format(timestampLayout))
	_, err := e.sheetsService.Spreadsheets.Values.Append(
		e.spreadsheetID,
		fmt.Sprintf("%s!A:%s", AlertsSheet, columnLetter(len(alertHeaders))),
		&sheets.ValueRange{Values: values},
	).ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("%s: failed to append values to sheet: %w", op, err)
	}

	e.log.Info().
		Int("rows_written", len(values)).
		Msg("Exported alerts to Google Sheet")
	return len(values), nil
}

func vendorValues(rows []models.VendorSummary, existing [][]interface{}, exportedAt string) [][]interface{} {
	type previous struct {
		candidate reconcile.Candidate
		notes     string
	}
	var prev []previous
	for _, row := range existing {
		if len(row) <= notesColumn {
			continue
		}
		notes := cell(row, notesColumn)
		if notes == "" {
			continue
		}
		prev = append(prev, previous{
			candidate: reconcile.Candidate{Name: cell(row, 0), Email: cell(row, 1)},
			notes:     notes,
		})
	}

	values := make([][]interface{}, 0, len(rows))
	for _, r := range rows {
		var notes string
		c := reconcile.Candidate{Name: r.Name, Email: r.Email}
		for _, p := range prev {
			if reconcile.SameVendor(c, p.candidate) {
				notes = p.notes
				break
			}
		}
		values = append(values, []interface{}{
			r.Name,            // A: Vendor
			r.Email,           // B: Email
			r.Spend,           // C: Spend
			r.InvoiceCount,    // D: Invoices
			r.OverdueCount,    // E: Overdue
			r.Compliance,      // F: Compliance
			r.NextPay,         // G: Next Payment
			r.Score,           // H: Score
			r.LastInvoiceDate, // I: Last Invoice
			r.Address,         // J: Address
			exportedAt,        // K: Exported
			notes,             // L: Notes
		})
	}
	return values
}

func alertValues(alerts []models.Alert, vendors []models.Vendor, exportedAt string) [][]interface{} {
	names := make(map[string]string, len(vendors))
	for _, v := range vendors {
		names[v.ID] = v.Name
	}

	values := make([][]interface{}, 0, len(alerts))
	for _, a := range alerts {
		values = append(values, []interface{}{exportedAt, a.Level, names[a.VendorID], a.Text})
	}
	return values
}

func cell(row []interface{}, i int) string {
	if i >= len(row) || row[i] == nil {
		return ""
	}
	if s, ok := row[i].(string); ok {
		return s
	}
	return fmt.Sprint(row[i])
}
