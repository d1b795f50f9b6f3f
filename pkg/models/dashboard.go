package models

import "time"

// Compliance classifications, highest priority first.
const (
	ComplianceLateFeeRisk       = "Late Fee Risk"
	ComplianceDiscountAvailable = "Discount Available"
	ComplianceOK                = "OK"
)

// Next-payment buckets. Anything else in VendorSummary.NextPay is a date.
const (
	NextPayOverdue          = "Overdue"
	NextPayDueSoon          = "Due Soon"
	NextPayNone             = "No Payments"
	NextPayNoFuturePayments = "No Future Payments"
)

// Alert levels.
const (
	AlertDanger = "danger"
	AlertWarn   = "warn"
	AlertOK     = "ok"
)

// Calendar event types.
const (
	EventSave   = "save"
	EventSoon   = "soon"
	EventFuture = "future"
	EventDue    = "due"
)

// RenewalUnavailable marks renewals for which no contract data exists.
const RenewalUnavailable = "Unavailable"

type KPIs struct {
	TotalVendors         int     `json:"totalVendors"`
	ActiveContracts      int     `json:"activeContracts"`
	UpcomingPayments     int     `json:"upcomingPayments"`
	ProjectedSavings     float64 `json:"projectedSavings"`
	TotalSpend           float64 `json:"totalSpend"`
	AverageInvoiceAmount float64 `json:"averageInvoiceAmount"`
}

// VendorSummary is one row of the vendor table. PriceDelta and OnTime stay
// nil until the API exposes price history and payment punctuality.
type VendorSummary struct {
	VendorID        string   `json:"vendorId"`
	Name            string   `json:"name"`
	Spend           float64  `json:"spend"`
	InvoiceCount    int      `json:"invoiceCount"`
	OverdueCount    int      `json:"overdueCount"`
	Compliance      string   `json:"compliance"`
	NextPay         string   `json:"nextPay"`
	Score           int      `json:"score"`
	PriceDelta      *float64 `json:"priceDelta"`
	OnTime          *float64 `json:"onTime"`
	Email           string   `json:"email,omitempty"`
	Address         string   `json:"address,omitempty"`
	LastInvoiceDate string   `json:"lastInvoiceDate,omitempty"`
}

type Alert struct {
	Level    string `json:"level"`
	Text     string `json:"text"`
	VendorID string `json:"vendorId,omitempty"`
}

type Renewal struct {
	Contract string     `json:"contract"`
	VendorID string     `json:"vendorId"`
	Vendor   string     `json:"vendor"`
	Renews   *time.Time `json:"renews"`
	Status   string     `json:"status"`
}

type CalendarEvent struct {
	Day            int    `json:"day"`
	Label          string `json:"label"`
	Type           string `json:"type"`
	VendorID       string `json:"vendorId,omitempty"`
	FullVendorName string `json:"fullVendorName"`
}

// SavingsSeries is either the API's performance totals or, when the API has
// none, a deterministic placeholder curve flagged Synthetic.
type SavingsSeries struct {
	Points    []float64 `json:"points"`
	Synthetic bool      `json:"synthetic"`
}

type MonthlyTotals struct {
	Months  []string  `json:"months"`
	Amounts []float64 `json:"amounts"`
}
