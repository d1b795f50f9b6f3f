package normalize

import (
	"math"
	"strings"
	"time"
)

var layouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.000",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
}

// ParseTime parses the date formats the API and OCR documents produce.
// Zone-less values are read as UTC. It returns nil when nothing matches.
func ParseTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// AnyTime parses a raw JSON value (string or epoch milliseconds) as a time.
func AnyTime(v any) *time.Time {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		return ParseTime(x)
	case *string:
		if x == nil {
			return nil
		}
		return ParseTime(*x)
	case time.Time:
		if x.IsZero() {
			return nil
		}
		return &x
	case *time.Time:
		return x
	}
	if ms, ok := asFloat(v); ok && isFinite(ms) && ms > 0 {
		t := time.UnixMilli(int64(ms)).UTC()
		return &t
	}
	return nil
}

// Millis returns t as Unix milliseconds.
func Millis(t time.Time) float64 {
	return float64(t.UnixMilli())
}

// DueTs returns the due timestamp in Unix milliseconds, or +Inf when absent so
// unscheduled invoices sort last in ascending order.
func DueTs(t *time.Time) float64 {
	if t == nil {
		return math.Inf(1)
	}
	return Millis(*t)
}

// PaidTs returns the payment timestamp in Unix milliseconds, or -Inf when
// absent so never-paid invoices sort last in "most recent first" order.
func PaidTs(t *time.Time) float64 {
	if t == nil {
		return math.Inf(-1)
	}
	return Millis(*t)
}

// StartOfDayUTC returns midnight UTC of the day containing now.
func StartOfDayUTC(now time.Time) time.Time {
	u := now.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysFromToday is the calendar-day distance from UTC midnight of now to ts
// (Unix ms), rounded. Non-finite input yields nil.
func DaysFromToday(ts float64, now time.Time) *int {
	if !isFinite(ts) {
		return nil
	}
	days := int(math.Round((ts - Millis(StartOfDayUTC(now))) / DayMillis))
	return &days
}

// CeilDays is the number of days from now until t, rounded up. A due date
// later today counts as one day away; anything already past is <= 0.
func CeilDays(t, now time.Time) int {
	return int(math.Ceil(float64(t.Sub(now).Milliseconds()) / DayMillis))
}

// FormatShortDate renders a date like "Jan 2".
func FormatShortDate(t time.Time) string {
	return t.Format("Jan 2")
}

// MonthLabel renders a month bucket like "Jan 25".
func MonthLabel(t time.Time) string {
	return t.Format("Jan 06")
}
