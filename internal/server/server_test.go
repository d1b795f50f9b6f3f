package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vendorsync/internal/aggregate"
	"vendorsync/internal/api"
	"vendorsync/internal/dataservice"
	"vendorsync/internal/events"
	"vendorsync/internal/ledger"
	"vendorsync/internal/metrics"
	"vendorsync/pkg/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubDashboard struct {
	initErr  error
	inits    int
	year     *int
	month    *int
	tab      string
	query    string
	patch    models.InvoicePatch
	mutation error
}

func (d *stubDashboard) Init(context.Context) error    { d.inits++; return d.initErr }
func (d *stubDashboard) Refresh(context.Context) error { return nil }
func (d *stubDashboard) KPIs() (models.KPIs, error) {
	return models.KPIs{TotalVendors: 2, TotalSpend: 750}, nil
}
func (d *stubDashboard) Vendors() ([]models.VendorSummary, error) {
	return []models.VendorSummary{{VendorID: "v1", Name: "Acme", Spend: 750}}, nil
}
func (d *stubDashboard) RawVendors() ([]models.Vendor, error) {
	return []models.Vendor{{ID: "v1", Name: "Acme, Inc."}, {ID: "v2", Name: "Globex"}}, nil
}
func (d *stubDashboard) Alerts() ([]models.Alert, error)     { return nil, nil }
func (d *stubDashboard) Renewals() ([]models.Renewal, error) { return nil, nil }
func (d *stubDashboard) CalendarEvents(year, month *int) ([]models.CalendarEvent, error) {
	d.year, d.month = year, month
	return []models.CalendarEvent{{Day: 4, Label: "Acme", Type: models.EventSoon}}, nil
}
func (d *stubDashboard) SavingsSeries() (models.SavingsSeries, error) {
	return models.SavingsSeries{Synthetic: true}, nil
}
func (d *stubDashboard) MonthlyTotals() (models.MonthlyTotals, error) {
	return models.MonthlyTotals{}, nil
}
func (d *stubDashboard) Invoices() ([]models.Invoice, error) { return nil, nil }
func (d *stubDashboard) Payments(tab, query string) ([]models.Invoice, error) {
	d.tab, d.query = tab, query
	if tab != aggregate.TabOpen && tab != aggregate.TabHistory {
		return nil, aggregate.ErrUnknownTab
	}
	return nil, nil
}
func (d *stubDashboard) TotalSpend() (float64, error) { return 750, nil }
func (d *stubDashboard) MarkPaid(_ context.Context, id string) (models.Invoice, error) {
	return models.Invoice{ID: id, Status: "paid"}, d.mutation
}
func (d *stubDashboard) MarkUnpaid(_ context.Context, id string) (models.Invoice, error) {
	return models.Invoice{ID: id, Status: "pending"}, d.mutation
}
func (d *stubDashboard) EditInvoice(_ context.Context, id string, patch models.InvoicePatch) (models.Invoice, error) {
	d.patch = patch
	return models.Invoice{ID: id}, d.mutation
}
func (d *stubDashboard) DeleteInvoice(context.Context, string) error { return d.mutation }

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthzAndRequestID(t *testing.T) {
	s := New(&stubDashboard{}, nil)

	rec := do(t, s.Handler(), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, rec.Header().Get(requestIDHeader), 36)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))
}

func TestKPIsInitialisesOnce(t *testing.T) {
	dash := &stubDashboard{}
	s := New(dash, nil)

	rec := do(t, s.Handler(), http.MethodGet, "/api/kpis", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var kpis models.KPIs
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &kpis))
	assert.Equal(t, 750.0, kpis.TotalSpend)
	assert.Equal(t, 1, dash.inits)
}

func TestInitFailureIsReported(t *testing.T) {
	dash := &stubDashboard{initErr: &api.APIError{Op: "list vendors", Status: 500}}
	rec := do(t, New(dash, nil).Handler(), http.MethodGet, "/api/vendors", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "list vendors failed: 500")
}

func TestCalendarQuery(t *testing.T) {
	dash := &stubDashboard{}
	h := New(dash, nil).Handler()

	rec := do(t, h, http.MethodGet, "/api/calendar?year=2025&month=7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2025, *dash.year)
	assert.Equal(t, 7, *dash.month)

	rec = do(t, h, http.MethodGet, "/api/calendar", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, dash.year)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/calendar?month=13", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/calendar?year=soon", "").Code)
}

func TestPaymentsTabs(t *testing.T) {
	dash := &stubDashboard{}
	h := New(dash, nil).Handler()

	rec := do(t, h, http.MethodGet, "/api/payments?query=acme", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, aggregate.TabOpen, dash.tab)
	assert.Equal(t, "acme", dash.query)
	assert.JSONEq(t, `[]`, rec.Body.String())

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/payments?tab=archive", "").Code)
}

func TestVendorSearch(t *testing.T) {
	rec := do(t, New(&stubDashboard{}, nil).Handler(), http.MethodGet, "/api/vendors/search?q=acme%20inc", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var vendors []models.Vendor
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &vendors))
	require.Len(t, vendors, 1)
	assert.Equal(t, "v1", vendors[0].ID)
}

func TestMutationsMapErrors(t *testing.T) {
	dash := &stubDashboard{}
	h := New(dash, nil).Handler()

	rec := do(t, h, http.MethodPost, "/api/invoices/i1/pay", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"paid"`)

	rec = do(t, h, http.MethodPatch, "/api/invoices/i1", `{"totalAmount": 99.5}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, dash.patch.TotalAmount)
	assert.Equal(t, 99.5, *dash.patch.TotalAmount)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPatch, "/api/invoices/i1", `{`).Code)

	dash.mutation = &dataservice.ServiceError{Op: "MarkPaid", Err: dataservice.ErrInvoiceNotFound}
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, "/api/invoices/zz/pay", "").Code)

	dash.mutation = dataservice.ErrEmptyPatch
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPatch, "/api/invoices/i1", `{}`).Code)

	dash.mutation = nil
	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodDelete, "/api/invoices/i1", "").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.New()
	h := New(&stubDashboard{}, m).Handler()

	do(t, h, http.MethodGet, "/api/kpis", "")
	rec := do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `vendorsync_http_requests_total{method="GET",route="/api/kpis",status="200"} 1`)
}

// upstream is a minimal vendor API for the end-to-end test.
func upstream(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/vendor":
			w.Write([]byte(`[{"id":"v1","name":"Acme"}]`))
		case r.Method == http.MethodGet && r.URL.Path == "/vendor/invoice/all":
			w.Write([]byte(`[{"id":"i1","vendorId":"v1","invoiceNumber":"A-1","totalAmount":500,"status":"pending"},
				{"id":"i2","vendorId":"v1","invoiceNumber":"A-2","totalAmount":250,"status":"paid"}]`))
		case r.Method == http.MethodGet && r.URL.Path == "/vendor/performance":
			w.Write([]byte(`[]`))
		case r.Method == http.MethodPatch:
			w.Write([]byte(`{}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestEndToEndPayUpdatesTotalSpendGauge(t *testing.T) {
	client, err := api.NewClient(api.Config{BaseURL: upstream(t).URL, Timeout: 5 * time.Second})
	require.NoError(t, err)

	bus := events.NewBus()
	m := metrics.New()
	m.Subscribe(bus)

	l, err := ledger.New(context.Background(), ledger.NewMemoryStore())
	require.NoError(t, err)
	svc := dataservice.New(client, l, dataservice.WithBus(bus))
	h := New(svc, m).Handler()

	rec := do(t, h, http.MethodGet, "/api/total-spend", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"totalSpend":250}`, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/api/invoices/i1/pay", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/metrics", "")
	assert.Contains(t, rec.Body.String(), "vendorsync_total_spend 750")
	assert.Contains(t, rec.Body.String(), "vendorsync_dashboard_refreshes_total 1")

	assert.NoError(t, svc.Init(context.Background()), "already initialised")
}
