package aggregate

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"vendorsync/internal/normalize"
	"vendorsync/pkg/models"
)

// Payment list tabs.
const (
	TabOpen    = "open"
	TabHistory = "history"
)

// ErrUnknownTab is returned by Payments for a tab other than open or history.
var ErrUnknownTab = errors.New("unknown payments tab")

// Payments lists invoices for one tab. The open tab holds unpaid invoices,
// soonest due first with unscheduled ones last. The history tab holds paid
// invoices, most recently paid first with undated ones last. A non-empty
// query keeps invoices whose searchable fields contain it, ignoring case.
func (p *Processor) Payments(tab, query string) ([]models.Invoice, error) {
	var keep func(models.Invoice) bool
	var less func(a, b models.Invoice) bool

	switch tab {
	case TabOpen, "":
		keep = func(inv models.Invoice) bool { return !inv.IsPaid() }
		less = func(a, b models.Invoice) bool { return normalize.DueTs(a.DueDate) < normalize.DueTs(b.DueDate) }
	case TabHistory:
		keep = models.Invoice.IsPaid
		less = func(a, b models.Invoice) bool { return normalize.PaidTs(a.PaidDate) > normalize.PaidTs(b.PaidDate) }
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownTab, tab)
	}

	q := strings.ToLower(strings.TrimSpace(query))
	var out []models.Invoice
	for _, inv := range p.invoices {
		if !keep(inv) {
			continue
		}
		if q != "" && !strings.Contains(p.searchText(inv), q) {
			continue
		}
		out = append(out, inv)
	}

	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out, nil
}

func (p *Processor) searchText(inv models.Invoice) string {
	fields := []string{
		inv.InvoiceNumber,
		p.VendorName(inv),
		inv.VendorID,
		inv.PaymentTerms,
		fmt.Sprint(inv.TotalAmount),
		fmt.Sprint(inv.Subtotal),
		inv.Status,
	}
	if inv.DueDate != nil {
		fields = append(fields, inv.DueDate.UTC().Format("2006-01-02"))
	}
	if inv.PaidDate != nil {
		fields = append(fields, inv.PaidDate.UTC().Format("2006-01-02"))
	}
	return strings.ToLower(strings.Join(fields, " "))
}
