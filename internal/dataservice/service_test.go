package dataservice

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vendorsync/internal/events"
	"vendorsync/internal/ledger"
	"vendorsync/pkg/models"
)

var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

type fakeAPI struct {
	mu sync.Mutex

	vendors     []models.Vendor
	invoices    []models.Invoice
	performance []models.PerformancePoint

	listErr    error
	perfErr    error
	mutateErr  error
	vendorByID map[string]models.Vendor

	listCalls   atomic.Int32
	vendorCalls atomic.Int32
	calls       []string
}

func (f *fakeAPI) ListVendors(context.Context) ([]models.Vendor, error) {
	return f.vendors, f.listErr
}

func (f *fakeAPI) ListAllInvoices(context.Context) ([]models.Invoice, error) {
	f.listCalls.Add(1)
	time.Sleep(5 * time.Millisecond)
	return f.invoices, nil
}

func (f *fakeAPI) Performance(context.Context) ([]models.PerformancePoint, error) {
	return f.performance, f.perfErr
}

func (f *fakeAPI) GetVendor(_ context.Context, id string) (models.Vendor, error) {
	f.vendorCalls.Add(1)
	v, ok := f.vendorByID[id]
	if !ok {
		return models.Vendor{}, errors.New("not found")
	}
	return v, nil
}

func (f *fakeAPI) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.mutateErr
}

func (f *fakeAPI) MarkInvoicePaid(_ context.Context, _, invoiceID string, paidAt time.Time) error {
	return f.record("paid " + invoiceID + " " + paidAt.Format(time.RFC3339))
}

func (f *fakeAPI) MarkInvoiceUnpaid(_ context.Context, _, invoiceID string) error {
	return f.record("unpaid " + invoiceID)
}

func (f *fakeAPI) UpdateInvoice(_ context.Context, _, invoiceID string, _ models.InvoicePatch) error {
	return f.record("update " + invoiceID)
}

func (f *fakeAPI) DeleteInvoice(_ context.Context, _, invoiceID string) error {
	return f.record("delete " + invoiceID)
}

func newFixture() *fakeAPI {
	return &fakeAPI{
		vendors: []models.Vendor{{ID: "v1", Name: "Acme"}},
		invoices: []models.Invoice{
			{ID: "i1", VendorID: "v1", TotalAmount: 500, Status: "pending"},
			{ID: "i2", VendorID: "v1", TotalAmount: 250, Status: "paid"},
		},
	}
}

func newService(t *testing.T, api API, opts ...Option) (*Service, *ledger.Ledger) {
	t.Helper()
	l, err := ledger.New(context.Background(), ledger.NewMemoryStore())
	require.NoError(t, err)
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return New(api, l, opts...), l
}

func TestGettersRequireInit(t *testing.T) {
	s, _ := newService(t, newFixture())

	_, err := s.KPIs()
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = s.Vendors()
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = s.TotalSpend()
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = s.MarkPaid(context.Background(), "i1")
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestInitReconcilesLedgerAndFillsTotalSpend(t *testing.T) {
	s, l := newService(t, newFixture())
	require.NoError(t, s.Init(context.Background()))

	assert.Equal(t, 250.0, l.Total())
	kpis, err := s.KPIs()
	require.NoError(t, err)
	assert.Equal(t, 250.0, kpis.TotalSpend)
	assert.Equal(t, 1, kpis.TotalVendors)
}

func TestInitIsIdempotentAndCollapsesConcurrentCalls(t *testing.T) {
	api := newFixture()
	s, _ := newService(t, api)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Init(context.Background()))
		}()
	}
	wg.Wait()
	require.NoError(t, s.Init(context.Background()))
	assert.Equal(t, int32(1), api.listCalls.Load())

	require.NoError(t, s.Refresh(context.Background()))
	assert.Equal(t, int32(2), api.listCalls.Load())
}

func TestInitFailsWhenVendorsFail(t *testing.T) {
	api := newFixture()
	api.listErr = errors.New("upstream down")
	s, _ := newService(t, api)

	err := s.Init(context.Background())
	require.Error(t, err)
	assert.False(t, s.Initialized())

	var svcErr *ServiceError
	assert.ErrorAs(t, err, &svcErr)
}

func TestPerformanceFailureIsIgnored(t *testing.T) {
	api := newFixture()
	api.perfErr = errors.New("no performance endpoint")
	s, _ := newService(t, api)

	require.NoError(t, s.Init(context.Background()))
	series, err := s.SavingsSeries()
	require.NoError(t, err)
	assert.True(t, series.Synthetic)
}

func TestScenarioCPayThenUnpay(t *testing.T) {
	ctx := context.Background()
	api := newFixture()
	s, l := newService(t, api)
	require.NoError(t, s.Init(ctx))
	before := l.Total()

	inv, err := s.MarkPaid(ctx, "i1")
	require.NoError(t, err)
	assert.True(t, inv.IsPaid())
	assert.Equal(t, before+500, l.Total())

	inv, err = s.MarkUnpaid(ctx, "i1")
	require.NoError(t, err)
	assert.False(t, inv.IsPaid())
	assert.Nil(t, inv.PaidDate)
	assert.Equal(t, before, l.Total())

	assert.Equal(t, []string{"paid i1 2025-06-15T12:00:00Z", "unpaid i1"}, api.calls)
}

func TestMarkPaidTwiceCountsOnce(t *testing.T) {
	ctx := context.Background()
	s, l := newService(t, newFixture())
	require.NoError(t, s.Init(ctx))

	_, err := s.MarkPaid(ctx, "i1")
	require.NoError(t, err)
	_, err = s.MarkPaid(ctx, "i1")
	require.NoError(t, err)
	assert.Equal(t, 750.0, l.Total())
}

func TestFailedMutationRollsBack(t *testing.T) {
	ctx := context.Background()
	api := newFixture()
	s, l := newService(t, api)
	require.NoError(t, s.Init(ctx))

	api.mutateErr = errors.New("500 from upstream")
	_, err := s.MarkPaid(ctx, "i1")
	require.Error(t, err)
	assert.ErrorIs(t, err, api.mutateErr)

	assert.Equal(t, 250.0, l.Total())
	invoices, err := s.Invoices()
	require.NoError(t, err)
	assert.False(t, invoices[0].IsPaid())

	require.Error(t, s.DeleteInvoice(ctx, "i2"))
	invoices, err = s.Invoices()
	require.NoError(t, err)
	assert.Len(t, invoices, 2)
	assert.Equal(t, 250.0, l.Total())
}

// stallingAPI holds MarkInvoicePaid until release is closed, then fails it.
type stallingAPI struct {
	*fakeAPI
	entered chan struct{}
	release chan struct{}
}

func (a *stallingAPI) MarkInvoicePaid(context.Context, string, string, time.Time) error {
	close(a.entered)
	<-a.release
	return errors.New("gateway timeout")
}

func TestRefreshWaitsForFailingMutation(t *testing.T) {
	ctx := context.Background()
	api := &stallingAPI{
		fakeAPI: newFixture(),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	s, l := newService(t, api)
	require.NoError(t, s.Init(ctx))

	payErr := make(chan error, 1)
	go func() {
		_, err := s.MarkPaid(ctx, "i1")
		payErr <- err
	}()
	<-api.entered
	assert.Equal(t, 750.0, l.Total())

	// Another client records a payment while ours is still in flight.
	api.invoices = []models.Invoice{
		{ID: "i1", VendorID: "v1", TotalAmount: 500, Status: "pending"},
		{ID: "i2", VendorID: "v1", TotalAmount: 250, Status: "paid"},
		{ID: "i3", VendorID: "v1", TotalAmount: 1000, Status: "paid"},
	}

	refreshErr := make(chan error, 1)
	go func() { refreshErr <- s.Refresh(ctx) }()

	select {
	case err := <-refreshErr:
		t.Fatalf("refresh finished while a mutation was in flight: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, int32(1), api.listCalls.Load())

	close(api.release)
	require.Error(t, <-payErr)
	require.NoError(t, <-refreshErr)

	invoices, err := s.Invoices()
	require.NoError(t, err)
	require.Len(t, invoices, 3)
	assert.False(t, invoices[0].IsPaid())
	assert.Equal(t, 1250.0, l.Total())
	kpis, err := s.KPIs()
	require.NoError(t, err)
	assert.Equal(t, 1250.0, kpis.TotalSpend)
}

func TestEditPaidInvoiceMovesLedgerByDifference(t *testing.T) {
	ctx := context.Background()
	s, l := newService(t, newFixture())
	require.NoError(t, s.Init(ctx))

	total := 300.0
	inv, err := s.EditInvoice(ctx, "i2", models.InvoicePatch{TotalAmount: &total})
	require.NoError(t, err)
	assert.Equal(t, 300.0, inv.TotalAmount)
	assert.Equal(t, 300.0, l.Total())

	_, err = s.EditInvoice(ctx, "i2", models.InvoicePatch{})
	assert.ErrorIs(t, err, ErrEmptyPatch)
}

func TestDeletePaidInvoiceLeavesLedger(t *testing.T) {
	ctx := context.Background()
	s, l := newService(t, newFixture())
	require.NoError(t, s.Init(ctx))

	require.NoError(t, s.DeleteInvoice(ctx, "i2"))
	assert.Equal(t, 0.0, l.Total())

	invoices, err := s.Invoices()
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	assert.Equal(t, "i1", invoices[0].ID)

	err = s.DeleteInvoice(ctx, "i2")
	assert.ErrorIs(t, err, ErrInvoiceNotFound)
}

func TestMutationsAreVisibleToAggregates(t *testing.T) {
	ctx := context.Background()
	s, _ := newService(t, newFixture())
	require.NoError(t, s.Init(ctx))

	_, err := s.MarkPaid(ctx, "i1")
	require.NoError(t, err)

	rows, err := s.Vendors()
	require.NoError(t, err)
	assert.Equal(t, 750.0, rows[0].Spend)
}

func TestEventsArePublished(t *testing.T) {
	ctx := context.Background()
	bus := events.NewBus()
	var refreshes int
	var totals []float64
	bus.Subscribe(events.DashboardRefresh, func(context.Context, events.Event) error {
		refreshes++
		return nil
	})
	bus.Subscribe(events.TotalSpendUpdate, func(_ context.Context, e events.Event) error {
		totals = append(totals, e.Payload.(events.TotalSpendPayload).Total)
		return nil
	})

	s, _ := newService(t, newFixture(), WithBus(bus))
	require.NoError(t, s.Init(ctx))
	_, err := s.MarkPaid(ctx, "i1")
	require.NoError(t, err)

	assert.Equal(t, 1, refreshes)
	assert.Equal(t, []float64{250, 750}, totals)
}

func TestHydrateVendorNames(t *testing.T) {
	api := newFixture()
	api.vendorByID = map[string]models.Vendor{
		"v2": {ID: "v2", Name: "Globex"},
		"v3": {ID: "v3", Name: "Initech"},
	}
	s, _ := newService(t, api, WithHydrateLimit(2))

	invoices := []models.Invoice{
		{ID: "a", VendorID: "v1"},
		{ID: "b", VendorID: "v2"},
		{ID: "c", VendorID: "v2"},
		{ID: "d", VendorID: "v3"},
		{ID: "e", VendorID: "v4"},
		{ID: "f", VendorID: "v5", VendorName: "Embedded"},
	}

	names := s.hydrateVendorNames(context.Background(), api.vendors, invoices)
	assert.Equal(t, map[string]string{"v2": "Globex", "v3": "Initech"}, names)
	assert.Equal(t, int32(3), api.vendorCalls.Load(), "v2, v3 and v4 once each")

	named := applyVendorNames(invoices, names)
	assert.Equal(t, "Globex", named[2].VendorName)
	assert.Equal(t, "Embedded", named[5].VendorName)
	assert.Equal(t, "", named[4].VendorName)
	assert.Equal(t, "", invoices[1].VendorName, "input is not modified")
}

func TestInitHydratesUnlistedVendorNames(t *testing.T) {
	api := newFixture()
	api.invoices = append(api.invoices, models.Invoice{
		ID: "i3", VendorID: "v9", TotalAmount: 40, Status: "pending",
	})
	api.vendorByID = map[string]models.Vendor{"v9": {ID: "v9", Name: "Umbrella"}}
	s, _ := newService(t, api)
	require.NoError(t, s.Init(context.Background()))

	assert.Equal(t, int32(1), api.vendorCalls.Load(), "v1 is listed and needs no lookup")
	invoices, err := s.Invoices()
	require.NoError(t, err)
	require.Len(t, invoices, 3)
	assert.Equal(t, "Umbrella", invoices[2].VendorName)

	payments, err := s.Payments("open", "umbrella")
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, "i3", payments[0].ID)
}

func TestLoadReportsLedgerDrift(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemoryStore()
	require.NoError(t, store.Save(ctx, "100"))
	l, err := ledger.New(ctx, store)
	require.NoError(t, err)
	require.Equal(t, 100.0, l.Total())

	s := New(newFixture(), l, WithClock(func() time.Time { return fixedNow }))
	assert.False(t, s.LastDrift().HasDrift())
	require.NoError(t, s.Init(ctx))

	drift := s.LastDrift()
	assert.Equal(t, 100.0, drift.Previous)
	assert.Equal(t, 250.0, drift.Current)
	assert.Equal(t, 150.0, drift.Delta)
	assert.True(t, drift.HasDrift())

	require.NoError(t, s.Refresh(ctx))
	assert.False(t, s.LastDrift().HasDrift(), "a second load finds the ledger already in step")
}
