package aggregate

import (
	"math"

	"vendorsync/pkg/models"
)

// KPIs computes the headline figures in a single pass. TotalSpend is always
// zero here: the running figure is owned by the spend ledger.
func (p *Processor) KPIs() models.KPIs {
	now := p.now()
	horizon := now.Add(upcomingWindow)

	var (
		active, upcoming int
		savings          float64
		paidSum          float64
		paidCount        int
	)
	for _, inv := range p.invoices {
		if inv.DueDate != nil && inv.DueDate.After(now) {
			active++
			if !inv.DueDate.After(horizon) {
				upcoming++
			}
		}
		if inv.EarlyPayDiscount > 0 {
			savings += inv.TotalAmount * inv.EarlyPayDiscount / 100
		}
		if inv.IsPaid() {
			paidCount++
			paidSum += inv.TotalAmount
		}
	}

	var average float64
	if paidCount > 0 {
		average = paidSum / float64(paidCount)
	}

	return models.KPIs{
		TotalVendors:         len(p.vendors),
		ActiveContracts:      active,
		UpcomingPayments:     upcoming,
		ProjectedSavings:     math.Round(savings),
		TotalSpend:           0,
		AverageInvoiceAmount: math.Round(average),
	}
}
