package api

import (
	"encoding/json"
	"strconv"
	"strings"

	"vendorsync/internal/normalize"
	"vendorsync/pkg/models"
)

// Wire shapes. Every field the API has been seen to send in more than one
// type is decoded as any and normalized afterwards.

type wireVendor struct {
	ID        any `json:"id"`
	Name      any `json:"name"`
	Email     any `json:"email"`
	Phone     any `json:"phone"`
	Address   any `json:"address"`
	CreatedAt any `json:"createdAt"`
	UpdatedAt any `json:"updatedAt"`
}

type wireInvoice struct {
	ID               any `json:"id"`
	VendorID         any `json:"vendorId"`
	VendorName       any `json:"vendorName"`
	InvoiceNumber    any `json:"invoiceNumber"`
	Date             any `json:"date"`
	DueDate          any `json:"dueDate"`
	PaidAt           any `json:"paidAt"`
	PaidDate         any `json:"paidDate"`
	Subtotal         any `json:"subtotal"`
	TotalAmount      any `json:"totalAmount"`
	PaidAmount       any `json:"paidAmount"`
	PaymentTerms     any `json:"paymentTerms"`
	EarlyPayDiscount any `json:"earlyPayDiscount"`
	LateFee          any `json:"lateFee"`
	Status           any `json:"status"`
	CreatedAt        any `json:"createdAt"`
	UpdatedAt        any `json:"updatedAt"`

	Vendor *struct {
		ID   any `json:"id"`
		Name any `json:"name"`
	} `json:"vendor"`
}

type wirePerformance struct {
	Month       any `json:"month"`
	TotalAmount any `json:"totalAmount"`
	VendorCount any `json:"vendorCount"`
}

// text renders a scalar JSON value as a trimmed string. Numbers keep their
// shortest exact form so numeric IDs survive.
func text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	}
	return ""
}

func (w wireVendor) model() models.Vendor {
	return models.Vendor{
		ID:        text(w.ID),
		Name:      text(w.Name),
		Email:     text(w.Email),
		Phone:     text(w.Phone),
		Address:   text(w.Address),
		CreatedAt: normalize.AnyTime(w.CreatedAt),
		UpdatedAt: normalize.AnyTime(w.UpdatedAt),
	}
}

func (w wireInvoice) model() models.Invoice {
	inv := models.Invoice{
		ID:               text(w.ID),
		VendorID:         text(w.VendorID),
		VendorName:       text(w.VendorName),
		InvoiceNumber:    text(w.InvoiceNumber),
		Date:             normalize.AnyTime(w.Date),
		DueDate:          normalize.AnyTime(w.DueDate),
		PaidDate:         normalize.AnyTime(w.PaidAt),
		Subtotal:         normalize.Money(w.Subtotal),
		TotalAmount:      normalize.Money(w.TotalAmount),
		PaidAmount:       normalize.Money(w.PaidAmount),
		PaymentTerms:     text(w.PaymentTerms),
		EarlyPayDiscount: normalize.Money(w.EarlyPayDiscount),
		LateFee:          normalize.Money(w.LateFee),
		Status:           strings.ToLower(text(w.Status)),
		CreatedAt:        normalize.AnyTime(w.CreatedAt),
		UpdatedAt:        normalize.AnyTime(w.UpdatedAt),
	}
	if inv.PaidDate == nil {
		inv.PaidDate = normalize.AnyTime(w.PaidDate)
	}
	if w.Vendor != nil {
		if inv.VendorID == "" {
			inv.VendorID = text(w.Vendor.ID)
		}
		if inv.VendorName == "" {
			inv.VendorName = text(w.Vendor.Name)
		}
	}
	return inv
}

func (w wirePerformance) model() models.PerformancePoint {
	return models.PerformancePoint{
		Month:       text(w.Month),
		TotalAmount: normalize.Money(w.TotalAmount),
		VendorCount: int(normalize.Money(w.VendorCount)),
	}
}

// clampPercentages pins discount and late-fee percentages to 100 so one
// out-of-range field does not cost the whole invoice. Money already floors
// them at zero.
func (c *Client) clampPercentages(op string, inv *models.Invoice) {
	if inv.EarlyPayDiscount > 100 {
		c.log.Warn().Str("op", op).Str("invoice_id", inv.ID).
			Float64("early_pay_discount", inv.EarlyPayDiscount).
			Msg("Clamping early-pay discount to 100%")
		inv.EarlyPayDiscount = 100
	}
	if inv.LateFee > 100 {
		c.log.Warn().Str("op", op).Str("invoice_id", inv.ID).
			Float64("late_fee", inv.LateFee).
			Msg("Clamping late fee to 100%")
		inv.LateFee = 100
	}
}

// decodeVendors parses and validates vendors, dropping invalid records.
func (c *Client) decodeVendors(op string, items []json.RawMessage) []models.Vendor {
	vendors := make([]models.Vendor, 0, len(items))
	for i, raw := range items {
		var w wireVendor
		if err := json.Unmarshal(raw, &w); err != nil {
			c.log.Warn().Err(err).Str("op", op).Int("index", i).Msg("Skipping undecodable vendor")
			continue
		}
		v := w.model()
		if err := c.validate.Struct(v); err != nil {
			c.log.Warn().Err(err).Str("op", op).Str("vendor_id", v.ID).Msg("Skipping invalid vendor")
			continue
		}
		vendors = append(vendors, v)
	}
	return vendors
}

// decodeInvoices parses and validates invoices, dropping invalid records.
// vendorID fills in records that omit their vendor when the request was
// already vendor scoped.
func (c *Client) decodeInvoices(op string, items []json.RawMessage, vendorID string) []models.Invoice {
	invoices := make([]models.Invoice, 0, len(items))
	for i, raw := range items {
		var w wireInvoice
		if err := json.Unmarshal(raw, &w); err != nil {
			c.log.Warn().Err(err).Str("op", op).Int("index", i).Msg("Skipping undecodable invoice")
			continue
		}
		inv := w.model()
		if inv.VendorID == "" {
			inv.VendorID = vendorID
		}
		c.clampPercentages(op, &inv)
		if err := c.validate.Struct(inv); err != nil {
			c.log.Warn().Err(err).Str("op", op).Str("invoice_id", inv.ID).Msg("Skipping invalid invoice")
			continue
		}
		invoices = append(invoices, inv)
	}
	return invoices
}

func (c *Client) decodeVendor(op string, data []byte) (models.Vendor, error) {
	var w wireVendor
	if err := decodeObject(op, data, "vendor", &w); err != nil {
		return models.Vendor{}, err
	}
	v := w.model()
	if err := c.validate.Struct(v); err != nil {
		return models.Vendor{}, &APIError{Op: op, Err: joinInvalid(err)}
	}
	return v, nil
}

func (c *Client) decodeInvoice(op string, data []byte, vendorID string) (models.Invoice, error) {
	var w wireInvoice
	if err := decodeObject(op, data, "invoice", &w); err != nil {
		return models.Invoice{}, err
	}
	inv := w.model()
	if inv.VendorID == "" {
		inv.VendorID = vendorID
	}
	c.clampPercentages(op, &inv)
	if err := c.validate.Struct(inv); err != nil {
		return models.Invoice{}, &APIError{Op: op, Err: joinInvalid(err)}
	}
	return inv, nil
}
