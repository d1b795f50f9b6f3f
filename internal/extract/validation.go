package extract

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"

	"vendorsync/pkg/models"
)

// Amounts within two cents are treated as equal.
const amountTolerance = 0.02

var draftValidator = validator.New(validator.WithRequiredStructEnabled())

// ValidateDraft lists everything about a draft the user should look at
// before it is written. An empty result means the draft looks complete.
func ValidateDraft(d models.Draft) []string {
	var warnings []string

	if strings.TrimSpace(d.Vendor.Name) == "" {
		warnings = append(warnings, "Vendor name was not found in the document")
	}
	if strings.TrimSpace(d.Invoice.InvoiceNumber) == "" {
		warnings = append(warnings, "Invoice number was not found in the document")
	}
	warnings = append(warnings, fieldWarnings(d.Invoice)...)

	inv := d.Invoice
	if inv.TotalAmount == 0 {
		warnings = append(warnings, "Total amount is zero")
	}
	if inv.Subtotal > 0 && inv.TotalAmount > 0 && inv.Subtotal-inv.TotalAmount > amountTolerance {
		warnings = append(warnings, fmt.Sprintf("Subtotal (%.2f) exceeds total (%.2f)", inv.Subtotal, inv.TotalAmount))
	}
	if inv.Date == nil {
		warnings = append(warnings, "Invoice date was not found in the document")
	}
	if inv.DueDate == nil {
		warnings = append(warnings, "Due date was not found and could not be derived from the payment terms")
	}
	if inv.Date != nil && inv.DueDate != nil && inv.DueDate.Before(*inv.Date) {
		warnings = append(warnings, fmt.Sprintf("Due date %s is before invoice date %s",
			inv.DueDate.Format("2006-01-02"), inv.Date.Format("2006-01-02")))
	}
	if inv.EarlyPayDiscount > 0 && inv.TotalAmount > 0 {
		discount := math.Round(inv.TotalAmount*inv.EarlyPayDiscount) / 100
		if discount >= inv.TotalAmount {
			warnings = append(warnings, "Early payment discount covers the whole invoice")
		}
	}
	return warnings
}

// fieldWarnings reports the struct-tag violations that would make the API
// reject the invoice, apart from the invoice number which is reported above.
func fieldWarnings(inv models.NewInvoice) []string {
	err := draftValidator.Struct(inv)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	var out []string
	for _, fe := range verrs {
		if fe.Field() == "InvoiceNumber" {
			continue
		}
		out = append(out, fmt.Sprintf("%s is out of range (%v)", fe.Field(), fe.Value()))
	}
	return out
}
