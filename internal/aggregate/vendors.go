package aggregate

import (
	"math"
	"sort"
	"time"

	"vendorsync/internal/normalize"
	"vendorsync/pkg/models"
)

// Vendors builds one summary row per vendor, sorted by spend, highest first.
// Ties keep the vendor order of the API response.
func (p *Processor) Vendors() []models.VendorSummary {
	now := p.now()
	rows := make([]models.VendorSummary, 0, len(p.vendors))

	for _, v := range p.vendors {
		invoices := p.byVendor[v.ID]

		var spend float64
		var overdue int
		var last *time.Time
		for _, inv := range invoices {
			if inv.IsPaid() {
				spend += inv.TotalAmount
			}
			if isOverdue(inv, now) {
				overdue++
			}
			if inv.Date != nil && (last == nil || inv.Date.After(*last)) {
				last = inv.Date
			}
		}
		spend = roundCents(spend)
		compliance := complianceOf(invoices)

		row := models.VendorSummary{
			VendorID:     v.ID,
			Name:         v.Name,
			Spend:        spend,
			InvoiceCount: len(invoices),
			OverdueCount: overdue,
			Compliance:   compliance,
			NextPay:      nextPayment(invoices, now),
			Score:        score(len(invoices), compliance, spend),
			Email:        v.Email,
			Address:      v.Address,
		}
		if last != nil {
			row.LastInvoiceDate = last.UTC().Format("2006-01-02")
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Spend > rows[j].Spend
	})
	return rows
}

// complianceOf classifies a vendor's terms. Late fees outrank discounts.
func complianceOf(invoices []models.Invoice) string {
	var discount bool
	for _, inv := range invoices {
		if inv.LateFee > 0 {
			return models.ComplianceLateFeeRisk
		}
		if inv.EarlyPayDiscount > 0 {
			discount = true
		}
	}
	if discount {
		return models.ComplianceDiscountAvailable
	}
	return models.ComplianceOK
}

// nextPayment buckets the earliest future due date among invoices still
// awaiting payment.
func nextPayment(invoices []models.Invoice, now time.Time) string {
	if len(invoices) == 0 {
		return models.NextPayNone
	}

	var next *time.Time
	for _, inv := range invoices {
		if !isOutstanding(inv) || inv.DueDate == nil || !inv.DueDate.After(now) {
			continue
		}
		if next == nil || inv.DueDate.Before(*next) {
			next = inv.DueDate
		}
	}
	if next == nil {
		return models.NextPayNoFuturePayments
	}

	days := normalize.CeilDays(*next, now)
	switch {
	case days <= 0:
		return models.NextPayOverdue
	case days <= dueSoonDays:
		return models.NextPayDueSoon
	default:
		return normalize.FormatShortDate(next.UTC())
	}
}

// score is a 0-100 relationship heuristic: a base of 75, up to +15 for
// invoice volume, -15/+10 for late fees/discounts and +10/-5 for spend above
// $10,000 or below $1,000.
func score(invoiceCount int, compliance string, spend float64) int {
	s := 75 + min(15, 2*invoiceCount)

	switch compliance {
	case models.ComplianceLateFeeRisk:
		s -= 15
	case models.ComplianceDiscountAvailable:
		s += 10
	}

	switch {
	case spend > 10000:
		s += 10
	case spend < 1000:
		s -= 5
	}

	return max(0, min(100, s))
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
