package models

import "time"

// NewVendor is the body of a vendor create request.
type NewVendor struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email,omitempty" validate:"omitempty,email"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

// VendorPatch carries the editable vendor fields. Nil fields are left unchanged.
type VendorPatch struct {
	Name    *string `json:"name,omitempty" validate:"omitempty,min=1"`
	Email   *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone   *string `json:"phone,omitempty"`
	Address *string `json:"address,omitempty"`
}

// NewInvoice is the body of an invoice create request.
type NewInvoice struct {
	InvoiceNumber    string     `json:"invoiceNumber" validate:"required"`
	Date             *time.Time `json:"date,omitempty"`
	DueDate          *time.Time `json:"dueDate,omitempty"`
	Subtotal         float64    `json:"subtotal" validate:"gte=0"`
	TotalAmount      float64    `json:"totalAmount" validate:"gte=0"`
	PaymentTerms     string     `json:"paymentTerms,omitempty"`
	EarlyPayDiscount float64    `json:"earlyPayDiscount,omitempty" validate:"gte=0,lte=100"`
	LateFee          float64    `json:"lateFee,omitempty" validate:"gte=0,lte=100"`
}

// Patch converts the create body into an update that overwrites every field.
func (n NewInvoice) Patch() InvoicePatch {
	return InvoicePatch{
		InvoiceNumber:    &n.InvoiceNumber,
		Date:             n.Date,
		DueDate:          n.DueDate,
		Subtotal:         &n.Subtotal,
		TotalAmount:      &n.TotalAmount,
		PaymentTerms:     &n.PaymentTerms,
		EarlyPayDiscount: &n.EarlyPayDiscount,
		LateFee:          &n.LateFee,
	}
}

// Draft is a vendor/invoice pair read from an uploaded document, not yet
// written to the API.
type Draft struct {
	Vendor  NewVendor  `json:"vendor"`
	Invoice NewInvoice `json:"invoice"`
}
