// Package dataservice owns the loaded dashboard snapshot and the running
// spend ledger, and applies invoice mutations optimistically with rollback.
package dataservice

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"vendorsync/internal/aggregate"
	"vendorsync/internal/events"
	"vendorsync/internal/ledger"
	"vendorsync/internal/logger"
	"vendorsync/pkg/models"
)

// API is the remote surface the service depends on. *api.Client satisfies it.
type API interface {
	ListVendors(ctx context.Context) ([]models.Vendor, error)
	ListAllInvoices(ctx context.Context) ([]models.Invoice, error)
	Performance(ctx context.Context) ([]models.PerformancePoint, error)
	GetVendor(ctx context.Context, vendorID string) (models.Vendor, error)
	MarkInvoicePaid(ctx context.Context, vendorID, invoiceID string, paidAt time.Time) error
	MarkInvoiceUnpaid(ctx context.Context, vendorID, invoiceID string) error
	UpdateInvoice(ctx context.Context, vendorID, invoiceID string, patch models.InvoicePatch) error
	DeleteInvoice(ctx context.Context, vendorID, invoiceID string) error
}

const defaultHydrateLimit = 8

type Service struct {
	api    API
	ledger *ledger.Ledger
	bus    *events.Bus

	// mu guards the snapshot; mutateMu serialises mutations so that each
	// one sees the result of the previous.
	mu          sync.RWMutex
	mutateMu    sync.Mutex
	initGroup   singleflight.Group
	initialized bool
	vendors     []models.Vendor
	invoices    []models.Invoice
	performance []models.PerformancePoint
	proc        *aggregate.Processor
	lastDrift   ledger.Drift

	now          func() time.Time
	hydrateLimit int
	log          zerolog.Logger
}

// Option configures a Service.
type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithHydrateLimit bounds concurrent vendor lookups during name hydration.
func WithHydrateLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.hydrateLimit = n
		}
	}
}

// WithBus publishes refresh and spend events on bus.
func WithBus(bus *events.Bus) Option {
	return func(s *Service) { s.bus = bus }
}

func New(api API, l *ledger.Ledger, opts ...Option) *Service {
	s := &Service{
		api:          api,
		ledger:       l,
		now:          time.Now,
		hydrateLimit: defaultHydrateLimit,
		log:          logger.WithComponent("dataservice"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init loads vendors, invoices and performance data once. Later calls are
// no-ops until Refresh. Concurrent calls share one load.
func (s *Service) Init(ctx context.Context) error {
	if s.Initialized() {
		return nil
	}
	_, err, _ := s.initGroup.Do("init", func() (any, error) {
		if s.Initialized() {
			return nil, nil
		}
		return nil, s.load(ctx)
	})
	return err
}

// Refresh discards the snapshot and loads it again. It waits for an
// in-flight mutation so a rollback cannot overwrite the reloaded data.
func (s *Service) Refresh(ctx context.Context) error {
	s.mutateMu.Lock()
	defer s.mutateMu.Unlock()

	s.mu.Lock()
	s.initialized = false
	s.mu.Unlock()
	return s.Init(ctx)
}

func (s *Service) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

func (s *Service) load(ctx context.Context) error {
	const op = "Init"
	start := time.Now()

	var (
		vendors     []models.Vendor
		invoices    []models.Invoice
		performance []models.PerformancePoint
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		vendors, err = s.api.ListVendors(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		invoices, err = s.api.ListAllInvoices(gctx)
		return err
	})
	g.Go(func() error {
		p, err := s.api.Performance(gctx)
		if err != nil {
			if !errors.Is(gctx.Err(), context.Canceled) {
				s.log.Debug().Err(err).Msg("Performance data unavailable, continuing without it")
			}
			return nil
		}
		performance = p
		return nil
	})
	if err := g.Wait(); err != nil {
		s.log.Error().Err(err).Msg("Failed to load dashboard data")
		return WrapServiceError(op, err, "load dashboard data")
	}

	if names := s.hydrateVendorNames(ctx, vendors, invoices); len(names) > 0 {
		invoices = applyVendorNames(invoices, names)
	}

	drift := s.ledger.Reconcile(ctx, invoices)
	if drift.HasDrift() {
		s.log.Info().
			Float64("previous", drift.Previous).
			Float64("current", drift.Current).
			Float64("delta", drift.Delta).
			Msg("Total spend reconciled from invoices")
	}

	s.mu.Lock()
	s.vendors = vendors
	s.invoices = invoices
	s.performance = performance
	s.lastDrift = drift
	s.rebuildLocked()
	s.initialized = true
	s.mu.Unlock()

	s.log.Info().
		Int("vendors", len(vendors)).
		Int("invoices", len(invoices)).
		Int("performance_points", len(performance)).
		Dur("elapsed", time.Since(start)).
		Msg("Dashboard data loaded")

	s.publish(ctx, events.DashboardRefresh, events.RefreshPayload{Reason: "load"})
	s.publishSpend(ctx)
	return nil
}

func (s *Service) rebuildLocked() {
	s.proc = aggregate.New(s.vendors, s.invoices, s.performance, aggregate.WithClock(s.now))
}

func (s *Service) processor() (*aggregate.Processor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return nil, ErrNotInitialized
	}
	return s.proc, nil
}

// KPIs returns the headline figures with TotalSpend taken from the ledger.
func (s *Service) KPIs() (models.KPIs, error) {
	p, err := s.processor()
	if err != nil {
		return models.KPIs{}, err
	}
	k := p.KPIs()
	k.TotalSpend = s.ledger.Total()
	return k, nil
}

func (s *Service) Vendors() ([]models.VendorSummary, error) {
	p, err := s.processor()
	if err != nil {
		return nil, err
	}
	return p.Vendors(), nil
}

func (s *Service) RawVendors() ([]models.Vendor, error) {
	p, err := s.processor()
	if err != nil {
		return nil, err
	}
	return p.RawVendors(), nil
}

func (s *Service) Alerts() ([]models.Alert, error) {
	p, err := s.processor()
	if err != nil {
		return nil, err
	}
	return p.Alerts(), nil
}

func (s *Service) Renewals() ([]models.Renewal, error) {
	p, err := s.processor()
	if err != nil {
		return nil, err
	}
	return p.Renewals(), nil
}

func (s *Service) CalendarEvents(year, month *int) ([]models.CalendarEvent, error) {
	p, err := s.processor()
	if err != nil {
		return nil, err
	}
	return p.CalendarEvents(year, month), nil
}

func (s *Service) SavingsSeries() (models.SavingsSeries, error) {
	p, err := s.processor()
	if err != nil {
		return models.SavingsSeries{}, err
	}
	return p.SavingsSeries(), nil
}

func (s *Service) MonthlyTotals() (models.MonthlyTotals, error) {
	p, err := s.processor()
	if err != nil {
		return models.MonthlyTotals{}, err
	}
	return p.MonthlyTotals(), nil
}

// Invoices returns the current local invoice list, mutations included.
func (s *Service) Invoices() ([]models.Invoice, error) {
	p, err := s.processor()
	if err != nil {
		return nil, err
	}
	return p.Invoices(), nil
}

// Payments lists one payments tab filtered by query.
func (s *Service) Payments(tab, query string) ([]models.Invoice, error) {
	p, err := s.processor()
	if err != nil {
		return nil, err
	}
	return p.Payments(tab, query)
}

// VendorName resolves the display name of an invoice's vendor.
func (s *Service) VendorName(inv models.Invoice) string {
	s.mu.RLock()
	p := s.proc
	s.mu.RUnlock()
	if p == nil {
		return aggregate.New(nil, nil, nil).VendorName(inv)
	}
	return p.VendorName(inv)
}

func (s *Service) TotalSpend() (float64, error) {
	if !s.Initialized() {
		return 0, ErrNotInitialized
	}
	return s.ledger.Total(), nil
}

// LastDrift reports how far the most recent load moved the ledger.
func (s *Service) LastDrift() ledger.Drift {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastDrift
}

func (s *Service) publish(ctx context.Context, topic string, payload any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(ctx, events.NewEvent(topic, payload))
}

func (s *Service) publishSpend(ctx context.Context) {
	s.publish(ctx, events.TotalSpendUpdate, events.TotalSpendPayload{Total: s.ledger.Total()})
}
