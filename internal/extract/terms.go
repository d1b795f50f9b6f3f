package extract

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"vendorsync/pkg/models"
)

// Terms are the machine-readable parts of a payment terms clause.
type Terms struct {
	DiscountPct   *float64 `json:"discount_pct,omitempty"`
	DiscountDays  *int     `json:"discount_days,omitempty"`
	NetDays       *int     `json:"net_days,omitempty"`
	LateFeePct    *float64 `json:"late_fee_pct,omitempty"`
	LateFeePeriod string   `json:"late_fee_period,omitempty"`
}

// IsEmpty reports whether nothing was recognised.
func (t Terms) IsEmpty() bool {
	return t.DiscountPct == nil && t.NetDays == nil && t.LateFeePct == nil
}

// Standardized renders the terms as "2/10 Net 30" style text.
func (t Terms) Standardized() string {
	var parts []string
	if t.DiscountPct != nil && t.DiscountDays != nil {
		parts = append(parts, fmt.Sprintf("%s/%d", formatPct(*t.DiscountPct), *t.DiscountDays))
	}
	if t.NetDays != nil {
		parts = append(parts, fmt.Sprintf("Net %d", *t.NetDays))
	}
	if t.LateFeePct != nil {
		fee := formatPct(*t.LateFeePct) + "% late fee"
		if t.LateFeePeriod != "" {
			fee += " per " + t.LateFeePeriod
		}
		parts = append(parts, fee)
	}
	return strings.Join(parts, ", ")
}

// ApplyTo fills the draft fields that are still empty: discount, late fee,
// payment terms text, and a due date derived from the invoice date plus the
// net days.
func (t Terms) ApplyTo(d models.Draft) models.Draft {
	inv := &d.Invoice
	if inv.EarlyPayDiscount == 0 && t.DiscountPct != nil {
		inv.EarlyPayDiscount = clampPercent(*t.DiscountPct)
	}
	if inv.LateFee == 0 && t.LateFeePct != nil {
		inv.LateFee = clampPercent(*t.LateFeePct)
	}
	if inv.PaymentTerms == "" {
		inv.PaymentTerms = t.Standardized()
	}
	if inv.DueDate == nil && inv.Date != nil && t.NetDays != nil {
		due := inv.Date.AddDate(0, 0, *t.NetDays)
		inv.DueDate = &due
	}
	return d
}

func formatPct(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}

// TermsCompleter extracts terms from free text when the parser cannot.
type TermsCompleter interface {
	CompleteTerms(ctx context.Context, text string) (Terms, error)
}

const number = `(\d+(?:\.\d+)?)`

// TermsParser recognises the common English payment terms notations.
type TermsParser struct {
	discountNet  *regexp.Regexp
	discountDays *regexp.Regexp
	net          *regexp.Regexp
	lateBefore   *regexp.Regexp
	lateAfter    *regexp.Regexp
	period       *regexp.Regexp
}

func NewTermsParser() *TermsParser {
	return &TermsParser{
		// 2/10 net 30, 2%/10 n/30, 1/15, net 45
		discountNet: regexp.MustCompile(`(?i)` + number + `\s*%?\s*/\s*(\d+)[\s,]*(?:net\s*|n/)(\d+)`),
		// 2% 10 days, 2% discount if paid within 10 days
		discountDays: regexp.MustCompile(`(?i)` + number + `\s*%\s*(?:discount\s*)?(?:if\s+paid\s+)?(?:within\s+)?(\d+)\s*days?`),
		net:          regexp.MustCompile(`(?i)\b(?:net\s*|n/)(\d+)\b`),
		// 1.5% late fee, 1.5% per month on late payments
		lateBefore: regexp.MustCompile(`(?i)` + number + `\s*%[^.;\n%]{0,40}?\blate\b`),
		// late fee of 1.5%, late payment charge 2 %
		lateAfter: regexp.MustCompile(`(?i)\blate\s+(?:payments?\s+)?(?:fee|charge|interest)s?\b[^.;\n\d]{0,40}?` + number + `\s*%`),
		period:    regexp.MustCompile(`(?i)\b(?:per|a|each)\s+(month|year|day|week)\b|\b(monthly|annually|yearly|daily|weekly)\b`),
	}
}

// Parse extracts whatever terms text states. Unrecognised text yields
// empty Terms.
func (p *TermsParser) Parse(text string) Terms {
	var t Terms
	if strings.TrimSpace(text) == "" {
		return t
	}

	if m := p.discountNet.FindStringSubmatch(text); m != nil {
		t.DiscountPct = parseFloat(m[1])
		t.DiscountDays = parseInt(m[2])
		t.NetDays = parseInt(m[3])
	} else if m := p.discountDays.FindStringSubmatch(text); m != nil {
		t.DiscountPct = parseFloat(m[1])
		t.DiscountDays = parseInt(m[2])
	}

	if t.NetDays == nil {
		if m := p.net.FindStringSubmatch(text); m != nil {
			t.NetDays = parseInt(m[1])
		}
	}

	if m := p.lateBefore.FindStringSubmatch(text); m != nil {
		t.LateFeePct = parseFloat(m[1])
		t.LateFeePeriod = p.periodOf(m[0], text)
	} else if m := p.lateAfter.FindStringSubmatch(text); m != nil {
		t.LateFeePct = parseFloat(m[1])
		t.LateFeePeriod = p.periodOf(m[0], text)
	}

	// A discount is only meaningful with a window.
	if t.DiscountPct != nil && *t.DiscountPct <= 0 {
		t.DiscountPct, t.DiscountDays = nil, nil
	}
	return t
}

func (p *TermsParser) periodOf(match, text string) string {
	idx := strings.Index(text, match)
	if idx < 0 {
		return ""
	}
	// The clause ends at the first sentence break after the match.
	start := idx + len(match)
	end := min(len(text), start+40)
	if stop := strings.IndexAny(text[start:end], ".;\n"); stop >= 0 {
		end = start + stop
	}
	m := p.period.FindStringSubmatch(text[idx:end])
	if m == nil {
		return ""
	}
	switch strings.ToLower(m[1] + m[2]) {
	case "month", "monthly":
		return "month"
	case "year", "annually", "yearly":
		return "year"
	case "day", "daily":
		return "day"
	case "week", "weekly":
		return "week"
	}
	return ""
}

func parseFloat(s string) *float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func parseInt(s string) *int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &v
}
