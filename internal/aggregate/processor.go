// Package aggregate derives the dashboard views (KPIs, vendor rows, alerts,
// renewals, calendar, chart series) from one snapshot of vendors, invoices
// and performance data. A Processor never mutates its inputs and every
// method is a pure read, so one instance can serve concurrent readers.
package aggregate

import (
	"time"

	"vendorsync/pkg/models"
)

const (
	upcomingWindow = 30 * 24 * time.Hour
	dueSoonDays    = 3
	calendarSoon   = 7
	labelRunes     = 8
	priceAlertPct  = 8.0
)

type Processor struct {
	vendors     []models.Vendor
	invoices    []models.Invoice
	performance []models.PerformancePoint

	vendorByID map[string]models.Vendor
	byVendor   map[string][]models.Invoice

	now func() time.Time
}

// Option configures a Processor.
type Option func(*Processor)

// WithClock overrides the wall clock. Tests pin it to a fixed instant.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) {
		if now != nil {
			p.now = now
		}
	}
}

// New builds a Processor over copies of the given slices.
func New(vendors []models.Vendor, invoices []models.Invoice, performance []models.PerformancePoint, opts ...Option) *Processor {
	p := &Processor{
		vendors:     append([]models.Vendor(nil), vendors...),
		invoices:    append([]models.Invoice(nil), invoices...),
		performance: append([]models.PerformancePoint(nil), performance...),
		vendorByID:  make(map[string]models.Vendor, len(vendors)),
		byVendor:    make(map[string][]models.Invoice),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	for _, v := range p.vendors {
		p.vendorByID[v.ID] = v
	}
	for _, inv := range p.invoices {
		p.byVendor[inv.VendorID] = append(p.byVendor[inv.VendorID], inv)
	}
	return p
}

// RawVendors returns the vendor records the processor was built from.
func (p *Processor) RawVendors() []models.Vendor {
	return append([]models.Vendor(nil), p.vendors...)
}

// Invoices returns the raw invoice records.
func (p *Processor) Invoices() []models.Invoice {
	return append([]models.Invoice(nil), p.invoices...)
}

// Performance returns the raw performance series.
func (p *Processor) Performance() []models.PerformancePoint {
	return append([]models.PerformancePoint(nil), p.performance...)
}

// VendorName resolves the display name for an invoice: the name embedded in
// the invoice, then the vendor record, then "Vendor <id>".
func (p *Processor) VendorName(inv models.Invoice) string {
	if inv.VendorName != "" {
		return inv.VendorName
	}
	if v, ok := p.vendorByID[inv.VendorID]; ok && v.Name != "" {
		return v.Name
	}
	return "Vendor " + inv.VendorID
}

// isOverdue reports whether an unpaid, non-void invoice is past due.
func isOverdue(inv models.Invoice, now time.Time) bool {
	return inv.DueDate != nil && inv.DueDate.Before(now) && !inv.IsPaid() && !inv.IsVoid()
}

// isOutstanding reports whether an invoice still expects a payment.
func isOutstanding(inv models.Invoice) bool {
	return !inv.IsPaid() && !inv.IsVoid()
}
