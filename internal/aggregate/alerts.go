package aggregate

import (
	"fmt"

	"vendorsync/pkg/models"
)

// Alerts derives zero or more alerts per vendor row. Rules are independent,
// so one vendor can raise several alerts in a single load.
func (p *Processor) Alerts() []models.Alert {
	var alerts []models.Alert

	for _, row := range p.Vendors() {
		add := func(level, text string) {
			alerts = append(alerts, models.Alert{Level: level, Text: text, VendorID: row.VendorID})
		}

		if row.PriceDelta != nil && *row.PriceDelta > priceAlertPct {
			add(models.AlertDanger, fmt.Sprintf("%s increased price by %.1f%% (review before auto-renew)", row.Name, *row.PriceDelta))
		}

		switch row.Compliance {
		case models.ComplianceLateFeeRisk:
			add(models.AlertWarn, fmt.Sprintf("%s has late fee terms - review payment schedule", row.Name))
		case models.ComplianceDiscountAvailable:
			add(models.AlertOK, fmt.Sprintf("Early-pay discount available: %s", row.Name))
		}

		if row.NextPay == models.NextPayDueSoon {
			add(models.AlertWarn, fmt.Sprintf("Payment due soon for %s", row.Name))
		}

		if row.OverdueCount > 0 {
			add(models.AlertDanger, fmt.Sprintf("%s has %d overdue payment(s)", row.Name, row.OverdueCount))
		}
	}

	return alerts
}

// Renewals lists one renewal row per vendor. No contract data exists yet, so
// every row is marked unavailable and carries no date.
func (p *Processor) Renewals() []models.Renewal {
	renewals := make([]models.Renewal, 0, len(p.vendors))
	for _, v := range p.vendors {
		renewals = append(renewals, models.Renewal{
			Contract: v.Name + " Contract",
			VendorID: v.ID,
			Vendor:   v.Name,
			Status:   models.RenewalUnavailable,
		})
	}
	return renewals
}
