package models

import (
	"strings"
	"time"
)

// Invoice statuses observed on the wire. "open" and "pending" both mean unpaid.
const (
	StatusPaid    = "paid"
	StatusPending = "pending"
	StatusOpen    = "open"
	StatusVoid    = "void"
)

type Vendor struct {
	ID        string     `json:"id" validate:"required"`
	Name      string     `json:"name" validate:"required"`
	Email     string     `json:"email,omitempty"`
	Phone     string     `json:"phone,omitempty"`
	Address   string     `json:"address,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

type Invoice struct {
	// Core identifiers
	ID            string `json:"id" validate:"required"`
	VendorID      string `json:"vendorId" validate:"required"`
	VendorName    string `json:"vendorName,omitempty"` // embedded by some API responses
	InvoiceNumber string `json:"invoiceNumber"`

	// Dates; nil when absent or unparseable
	Date     *time.Time `json:"date,omitempty"`
	DueDate  *time.Time `json:"dueDate,omitempty"`
	PaidDate *time.Time `json:"paidAt,omitempty"`

	// Amounts are non-negative and finite
	Subtotal    float64 `json:"subtotal" validate:"gte=0"`
	TotalAmount float64 `json:"totalAmount" validate:"gte=0"`
	PaidAmount  float64 `json:"paidAmount,omitempty" validate:"gte=0"`

	// Terms; percentages
	PaymentTerms     string  `json:"paymentTerms,omitempty"`
	EarlyPayDiscount float64 `json:"earlyPayDiscount,omitempty" validate:"gte=0,lte=100"`
	LateFee          float64 `json:"lateFee,omitempty" validate:"gte=0,lte=100"`

	Status string `json:"status,omitempty"`

	CreatedAt *time.Time `json:"createdAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// IsPaid reports whether the invoice counts as paid: an explicit "paid"
// status or any recorded payment date.
func (i Invoice) IsPaid() bool {
	return strings.EqualFold(i.Status, StatusPaid) || i.PaidDate != nil
}

// IsVoid reports whether the invoice was cancelled.
func (i Invoice) IsVoid() bool {
	return strings.EqualFold(i.Status, StatusVoid)
}

// EffectivePaidDate is the payment date, falling back to the invoice date.
func (i Invoice) EffectivePaidDate() *time.Time {
	if i.PaidDate != nil {
		return i.PaidDate
	}
	return i.Date
}

// SettledAmount is what was actually paid: PaidAmount when recorded,
// otherwise the invoice total.
func (i Invoice) SettledAmount() float64 {
	if i.PaidAmount > 0 {
		return i.PaidAmount
	}
	return i.TotalAmount
}

// InvoicePatch carries the editable invoice fields. Nil fields are left
// unchanged.
type InvoicePatch struct {
	InvoiceNumber    *string    `json:"invoiceNumber,omitempty"`
	Date             *time.Time `json:"date,omitempty"`
	DueDate          *time.Time `json:"dueDate,omitempty"`
	Subtotal         *float64   `json:"subtotal,omitempty" validate:"omitempty,gte=0"`
	TotalAmount      *float64   `json:"totalAmount,omitempty" validate:"omitempty,gte=0"`
	PaymentTerms     *string    `json:"paymentTerms,omitempty"`
	EarlyPayDiscount *float64   `json:"earlyPayDiscount,omitempty" validate:"omitempty,gte=0,lte=100"`
	LateFee          *float64   `json:"lateFee,omitempty" validate:"omitempty,gte=0,lte=100"`
}

// IsEmpty reports whether the patch changes nothing.
func (p InvoicePatch) IsEmpty() bool {
	return p.InvoiceNumber == nil && p.Date == nil && p.DueDate == nil &&
		p.Subtotal == nil && p.TotalAmount == nil && p.PaymentTerms == nil &&
		p.EarlyPayDiscount == nil && p.LateFee == nil
}

// Apply returns a copy of inv with the patch applied.
func (p InvoicePatch) Apply(inv Invoice) Invoice {
	if p.InvoiceNumber != nil {
		inv.InvoiceNumber = *p.InvoiceNumber
	}
	if p.Date != nil {
		inv.Date = p.Date
	}
	if p.DueDate != nil {
		inv.DueDate = p.DueDate
	}
	if p.Subtotal != nil {
		inv.Subtotal = *p.Subtotal
	}
	if p.TotalAmount != nil {
		inv.TotalAmount = *p.TotalAmount
	}
	if p.PaymentTerms != nil {
		inv.PaymentTerms = *p.PaymentTerms
	}
	if p.EarlyPayDiscount != nil {
		inv.EarlyPayDiscount = *p.EarlyPayDiscount
	}
	if p.LateFee != nil {
		inv.LateFee = *p.LateFee
	}
	return inv
}

// PerformancePoint is one month of the optional performance series.
type PerformancePoint struct {
	Month       string  `json:"month"`
	TotalAmount float64 `json:"totalAmount" validate:"gte=0"`
	VendorCount int     `json:"vendorCount" validate:"gte=0"`
}
