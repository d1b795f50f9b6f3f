package extract

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"vendorsync/internal/normalize"
	"vendorsync/pkg/models"
)

// Field is one extracted value. Either part may be missing.
type Field struct {
	Text         string   `json:"text,omitempty"`
	NumericValue *float64 `json:"numeric_value,omitempty"`
}

// UnmarshalJSON accepts {"text": ..., "numeric_value": ...} with loosely
// typed members, a bare scalar, or null.
func (f *Field) UnmarshalJSON(data []byte) error {
	var raw struct {
		Text         any `json:"text"`
		NumericValue any `json:"numeric_value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		var scalar any
		if json.Unmarshal(data, &scalar) != nil {
			return err
		}
		f.Text = strings.TrimSpace(asText(scalar))
		if n, ok := scalar.(float64); ok {
			f.NumericValue = &n
		}
		return nil
	}
	f.Text = strings.TrimSpace(asText(raw.Text))
	f.NumericValue = normalize.ToNullableNumber(raw.NumericValue)
	return nil
}

// Amount prefers the numeric value and falls back to parsing the text.
func (f Field) Amount() float64 {
	if f.NumericValue != nil {
		return normalize.Money(*f.NumericValue)
	}
	return normalize.Money(f.Text)
}

func asText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// Document is the structure returned by the upload endpoint. BillTo holds
// the party the invoice is from, which becomes the vendor.
type Document struct {
	BillTo         BillTo         `json:"bill_to"`
	InvoiceDetails InvoiceDetails `json:"invoice_details"`

	// RawText is the full OCR text when the extractor has it.
	RawText string `json:"raw_text,omitempty"`
}

type BillTo struct {
	CompanyName Field   `json:"company_name"`
	Address     Field   `json:"address"`
	Contact     Contact `json:"contact"`
}

type Contact struct {
	Phone Field `json:"phone"`
	Email Field `json:"email"`
}

type InvoiceDetails struct {
	InvoiceNumber Field         `json:"invoice_number"`
	InvoiceDate   Field         `json:"invoice_date"`
	DueDate       Field         `json:"due_date"`
	FinancialData FinancialData `json:"financial_data"`
}

type FinancialData struct {
	TotalAmount  Field        `json:"total_amount"`
	Subtotal     Field        `json:"subtotal"`
	Tax          Field        `json:"tax"`
	LineItems    []LineItem   `json:"line_items,omitempty"`
	PaymentTerms PaymentTerms `json:"payment_terms"`
}

type LineItem struct {
	Description Field    `json:"description"`
	Quantity    *float64 `json:"quantity,omitempty"`
	Amount      Field    `json:"amount"`
}

type PaymentTerms struct {
	TermsText        string `json:"terms_text,omitempty"`
	Standardized     string `json:"standardized,omitempty"`
	EarlyPayDiscount Term   `json:"early_pay_discount"`
	LateFee          Term   `json:"late_fee"`
}

// Term is one recognised clause of the payment terms.
type Term struct {
	Found      bool     `json:"found"`
	Text       string   `json:"text,omitempty"`
	Percentage *float64 `json:"percentage,omitempty"`
	Days       *int     `json:"days,omitempty"`
	Period     string   `json:"period,omitempty"`
}

// ParseDocument decodes an upload response. Some deployments wrap the
// document in {"data": ...} or {"extracted_data": ...}.
func ParseDocument(raw []byte) (*Document, error) {
	const op = "ParseDocument"

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, WrapExtractionError(op, ErrInvalidDocument, err.Error())
	}
	for _, key := range []string{"extracted_data", "data"} {
		if inner, ok := envelope[key]; ok {
			if _, direct := envelope["invoice_details"]; !direct {
				raw = inner
				break
			}
		}
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, WrapExtractionError(op, ErrInvalidDocument, err.Error())
	}
	return &doc, nil
}

// TermsText returns the most specific payment terms text available.
func (d *Document) TermsText() string {
	pt := d.InvoiceDetails.FinancialData.PaymentTerms
	if pt.Standardized != "" {
		return pt.Standardized
	}
	return pt.TermsText
}

// Draft maps the document onto a vendor and invoice create request.
func (d *Document) Draft() models.Draft {
	details := d.InvoiceDetails
	fin := details.FinancialData

	email := d.BillTo.Contact.Email.Text
	if !strings.Contains(email, "@") {
		email = ""
	}

	draft := models.Draft{
		Vendor: models.NewVendor{
			Name:    d.BillTo.CompanyName.Text,
			Email:   email,
			Phone:   d.BillTo.Contact.Phone.Text,
			Address: d.BillTo.Address.Text,
		},
		Invoice: models.NewInvoice{
			InvoiceNumber: details.InvoiceNumber.Text,
			Date:          normalize.ParseTime(details.InvoiceDate.Text),
			DueDate:       normalize.ParseTime(details.DueDate.Text),
			Subtotal:      fin.Subtotal.Amount(),
			TotalAmount:   fin.TotalAmount.Amount(),
			PaymentTerms:  d.TermsText(),
		},
	}

	if draft.Invoice.TotalAmount == 0 && draft.Invoice.Subtotal > 0 {
		draft.Invoice.TotalAmount = draft.Invoice.Subtotal + fin.Tax.Amount()
	}
	if p := fin.PaymentTerms.EarlyPayDiscount.Percentage; p != nil {
		draft.Invoice.EarlyPayDiscount = clampPercent(*p)
	}
	if p := fin.PaymentTerms.LateFee.Percentage; p != nil {
		draft.Invoice.LateFee = clampPercent(*p)
	}
	return draft
}

func clampPercent(p float64) float64 {
	return max(0, min(100, p))
}
