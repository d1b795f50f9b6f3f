package aggregate

import (
	"math"
	"time"

	"vendorsync/internal/normalize"
	"vendorsync/pkg/models"
)

const seriesMonths = 12

// SavingsSeries returns the API's monthly performance totals when present.
// Otherwise it returns a deterministic 12-point curve around a twelfth of the
// projected savings, flagged Synthetic so callers can label it as such.
func (p *Processor) SavingsSeries() models.SavingsSeries {
	if len(p.performance) > 0 {
		points := make([]float64, len(p.performance))
		for i, pt := range p.performance {
			points[i] = pt.TotalAmount
		}
		return models.SavingsSeries{Points: points}
	}

	base := p.KPIs().ProjectedSavings / seriesMonths
	points := make([]float64, seriesMonths)
	for i := range points {
		points[i] = math.Round(base * (1 + math.Sin(float64(i)*0.5)*0.3))
	}
	return models.SavingsSeries{Points: points, Synthetic: true}
}

// MonthlyTotals sums paid amounts into the last 12 calendar months (UTC),
// oldest first. Each invoice lands in the month of its payment date, or of
// its invoice date when no payment date was recorded.
func (p *Processor) MonthlyTotals() models.MonthlyTotals {
	now := p.now().UTC()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(seriesMonths - 1), 0)

	out := models.MonthlyTotals{
		Months:  make([]string, seriesMonths),
		Amounts: make([]float64, seriesMonths),
	}
	index := make(map[[2]int]int, seriesMonths)
	for i := 0; i < seriesMonths; i++ {
		m := first.AddDate(0, i, 0)
		out.Months[i] = normalize.MonthLabel(m)
		index[[2]int{m.Year(), int(m.Month())}] = i
	}

	for _, inv := range p.invoices {
		if !inv.IsPaid() {
			continue
		}
		when := inv.EffectivePaidDate()
		if when == nil {
			continue
		}
		u := when.UTC()
		if i, ok := index[[2]int{u.Year(), int(u.Month())}]; ok {
			out.Amounts[i] += inv.SettledAmount()
		}
	}

	for i := range out.Amounts {
		out.Amounts[i] = math.Round(out.Amounts[i])
	}
	return out
}
