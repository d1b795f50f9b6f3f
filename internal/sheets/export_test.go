package sheets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"vendorsync/pkg/models"
)

// fakeSheets serves the handful of Sheets REST calls the exporter makes.
type fakeSheets struct {
	mu       sync.Mutex
	titles   []string
	headers  map[string][][]interface{}
	data     [][]interface{}
	updates  map[string][][]interface{}
	appended [][]interface{}
	cleared  []string
	batches  int
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/v4/spreadsheets/sheet-1")
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet && path == "":
		var list []*sheets.Sheet
		for i, title := range f.titles {
			list = append(list, &sheets.Sheet{Properties: &sheets.SheetProperties{Title: title, SheetId: int64(i + 1)}})
		}
		json.NewEncoder(w).Encode(&sheets.Spreadsheet{SpreadsheetId: "sheet-1", Sheets: list})

	case r.Method == http.MethodPost && path == ":batchUpdate":
		f.batches++
		var req sheets.BatchUpdateSpreadsheetRequest
		json.NewDecoder(r.Body).Decode(&req)
		resp := &sheets.BatchUpdateSpreadsheetResponse{SpreadsheetId: "sheet-1"}
		for _, sub := range req.Requests {
			if sub.AddSheet != nil {
				f.titles = append(f.titles, sub.AddSheet.Properties.Title)
				resp.Replies = append(resp.Replies, &sheets.Response{AddSheet: &sheets.AddSheetResponse{
					Properties: &sheets.SheetProperties{Title: sub.AddSheet.Properties.Title, SheetId: int64(len(f.titles))},
				}})
			}
		}
		json.NewEncoder(w).Encode(resp)

	case strings.HasPrefix(path, "/values/"):
		rng := strings.TrimPrefix(path, "/values/")
		switch {
		case strings.HasSuffix(rng, ":clear"):
			f.cleared = append(f.cleared, strings.TrimSuffix(rng, ":clear"))
			json.NewEncoder(w).Encode(&sheets.ClearValuesResponse{})
		case strings.HasSuffix(rng, ":append"):
			var vr sheets.ValueRange
			json.NewDecoder(r.Body).Decode(&vr)
			f.appended = append(f.appended, vr.Values...)
			json.NewEncoder(w).Encode(&sheets.AppendValuesResponse{})
		case r.Method == http.MethodPut:
			var vr sheets.ValueRange
			json.NewDecoder(r.Body).Decode(&vr)
			f.updates[rng] = vr.Values
			if strings.Contains(rng, "A1:") {
				f.headers[rng] = vr.Values
			}
			json.NewEncoder(w).Encode(&sheets.UpdateValuesResponse{})
		case strings.Contains(rng, "A1:"):
			json.NewEncoder(w).Encode(&sheets.ValueRange{Range: rng, Values: f.headers[rng]})
		default:
			json.NewEncoder(w).Encode(&sheets.ValueRange{Range: rng, Values: f.data})
		}

	default:
		http.Error(w, "unexpected "+r.Method+" "+r.URL.Path, http.StatusNotFound)
	}
}

func newTestExporter(t *testing.T, fake *fakeSheets) *Exporter {
	t.Helper()
	if fake.headers == nil {
		fake.headers = map[string][][]interface{}{}
	}
	fake.updates = map[string][][]interface{}{}

	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	svc, err := sheets.NewService(context.Background(),
		option.WithHTTPClient(server.Client()),
		option.WithEndpoint(server.URL+"/"))
	require.NoError(t, err)

	e := NewExporterWithService(svc, "sheet-1")
	e.now = func() time.Time { return time.Date(2025, 6, 15, 9, 30, 0, 0, time.UTC) }
	return e
}

func TestExportVendorsKeepsNotes(t *testing.T) {
	fake := &fakeSheets{
		titles:  []string{VendorsSheet},
		headers: map[string][][]interface{}{"Vendors!A1:L1": {vendorHeaders}},
		data: [][]interface{}{
			{"ACME, Inc", "", "100", "1", "0", "OK", "", "", "", "", "", "renegotiate in Q3"},
			{"Globex", "ap@globex.test", "5", "1", "0", "OK", "", "", "", "", "", ""},
		},
	}
	e := newTestExporter(t, fake)

	n, err := e.ExportVendors(context.Background(), []models.VendorSummary{
		{Name: "Acme Inc", Spend: 1250, InvoiceCount: 3, Compliance: models.ComplianceOK, Score: 100},
		{Name: "Initech", Email: "billing@initech.test", Spend: 10},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Equal(t, []string{"Vendors!A2:L"}, fake.cleared)
	written := fake.updates["Vendors!A2"]
	require.Len(t, written, 2)
	assert.Equal(t, "Acme Inc", written[0][0])
	assert.Equal(t, 1250.0, written[0][2])
	assert.Equal(t, "2025-06-15 09:30:00", written[0][10])
	assert.Equal(t, "renegotiate in Q3", written[0][11])
	assert.Equal(t, "", written[1][11])
	assert.Zero(t, fake.batches, "existing sheet with headers needs no setup")
}

func TestExportAlertsCreatesSheet(t *testing.T) {
	fake := &fakeSheets{}
	e := newTestExporter(t, fake)

	n, err := e.ExportAlerts(context.Background(),
		[]models.Alert{
			{Level: models.AlertDanger, Text: "Acme has 1 overdue payment(s)", VendorID: "v1"},
			{Level: models.AlertOK, Text: "All payments are on track"},
		},
		[]models.Vendor{{ID: "v1", Name: "Acme"}})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Equal(t, []string{AlertsSheet}, fake.titles)
	assert.Equal(t, 2, fake.batches, "add sheet, then format headers")
	assert.Equal(t, [][]interface{}{alertHeaders}, fake.headers["Alerts!A1:D1"])
	require.Len(t, fake.appended, 2)
	assert.Equal(t, []interface{}{"2025-06-15 09:30:00", "danger", "Acme", "Acme has 1 overdue payment(s)"}, fake.appended[0])
	assert.Equal(t, "", fake.appended[1][2])
}

func TestExportAlertsSkipsEmpty(t *testing.T) {
	e := newTestExporter(t, &fakeSheets{})
	n, err := e.ExportAlerts(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestExtractSpreadsheetID(t *testing.T) {
	id, err := extractSpreadsheetID("https://docs.google.com/spreadsheets/d/1AbC-d_EfG/edit#gid=0")
	require.NoError(t, err)
	assert.Equal(t, "1AbC-d_EfG", id)

	id, err = extractSpreadsheetID("1BxiMVs0XRA5nFMdKvBdBZjgmUUqptlbs74OgvE2upms")
	require.NoError(t, err)
	assert.Equal(t, "1BxiMVs0XRA5nFMdKvBdBZjgmUUqptlbs74OgvE2upms", id)

	_, err = extractSpreadsheetID("https://example.com")
	assert.Error(t, err)
}

func TestColumnLetter(t *testing.T) {
	assert.Equal(t, "A", columnLetter(1))
	assert.Equal(t, "L", columnLetter(12))
	assert.Equal(t, "Z", columnLetter(26))
	assert.Equal(t, "AA", columnLetter(27))
}

func TestCredentialsRequired(t *testing.T) {
	_, err := Credentials{}.load()
	assert.ErrorIs(t, err, ErrMissingCredentials)
}
