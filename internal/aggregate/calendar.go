package aggregate

import (
	"sort"
	"time"

	"vendorsync/internal/normalize"
	"vendorsync/pkg/models"
)

// CalendarEvents returns at most one event per day of month. A nil year or
// month (1-12) leaves that dimension unfiltered. Invoices without a due date
// and void invoices are skipped. Same-day events merge by joining labels and
// vendor names with ", "; the first event's type and vendor ID win.
func (p *Processor) CalendarEvents(year, month *int) []models.CalendarEvent {
	now := p.now()
	byDay := make(map[int]*models.CalendarEvent)
	var days []int

	for _, inv := range p.invoices {
		if inv.DueDate == nil || inv.IsVoid() {
			continue
		}
		due := inv.DueDate.UTC()
		if year != nil && due.Year() != *year {
			continue
		}
		if month != nil && int(due.Month()) != *month {
			continue
		}

		name := p.VendorName(inv)
		label := normalize.Truncate(name, labelRunes)

		if existing, ok := byDay[due.Day()]; ok {
			existing.Label += ", " + label
			existing.FullVendorName += ", " + name
			continue
		}

		byDay[due.Day()] = &models.CalendarEvent{
			Day:            due.Day(),
			Label:          label,
			Type:           eventType(inv, due, now),
			VendorID:       inv.VendorID,
			FullVendorName: name,
		}
		days = append(days, due.Day())
	}

	sort.Ints(days)
	events := make([]models.CalendarEvent, 0, len(days))
	for _, d := range days {
		events = append(events, *byDay[d])
	}
	return events
}

// eventType ranks a discount above urgency: save, then soon (0-7 days),
// then future (>7 days), otherwise due.
func eventType(inv models.Invoice, due, now time.Time) string {
	if inv.EarlyPayDiscount > 0 {
		return models.EventSave
	}
	days := normalize.CeilDays(due, now)
	switch {
	case days >= 0 && days <= calendarSoon:
		return models.EventSoon
	case days > calendarSoon:
		return models.EventFuture
	default:
		return models.EventDue
	}
}
