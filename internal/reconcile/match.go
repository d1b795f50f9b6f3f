// Package reconcile decides whether an uploaded vendor/invoice pair matches
// records the API already holds. It is the only place vendor identity is
// compared by name; the upload flow, the sheets export and the server's
// vendor search all go through it.
package reconcile

import (
	"strings"
	"unicode"

	"vendorsync/pkg/models"
)

// Candidate is the identity of a vendor as read from a document or a search.
type Candidate struct {
	Name  string
	Email string
}

// CandidateOf returns the identity fields of an existing vendor.
func CandidateOf(v models.Vendor) Candidate {
	return Candidate{Name: v.Name, Email: v.Email}
}

// NormalizeKey lower-cases s and drops every rune that is not a letter or a
// digit, so "Acme, Inc." and "acme inc" both become "acmeinc".
func NormalizeKey(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SameVendor reports whether a and b name the same vendor: their normalized
// names match or their normalized emails match. Empty keys never match.
func SameVendor(a, b Candidate) bool {
	if name := NormalizeKey(a.Name); name != "" && name == NormalizeKey(b.Name) {
		return true
	}
	if email := NormalizeKey(a.Email); email != "" && email == NormalizeKey(b.Email) {
		return true
	}
	return false
}

// FindVendor returns the first existing vendor that matches c.
func FindVendor(c Candidate, vendors []models.Vendor) (*models.Vendor, bool) {
	for i := range vendors {
		if SameVendor(c, CandidateOf(vendors[i])) {
			v := vendors[i]
			return &v, true
		}
	}
	return nil, false
}

// FindInvoice returns the invoice of vendorID whose number matches number
// after normalization.
func FindInvoice(number, vendorID string, invoices []models.Invoice) (*models.Invoice, bool) {
	key := NormalizeKey(number)
	if key == "" || vendorID == "" {
		return nil, false
	}
	for i := range invoices {
		if invoices[i].VendorID == vendorID && NormalizeKey(invoices[i].InvoiceNumber) == key {
			inv := invoices[i]
			return &inv, true
		}
	}
	return nil, false
}

// SearchVendors returns vendors whose normalized name or email contains the
// normalized query. An empty query returns every vendor.
func SearchVendors(query string, vendors []models.Vendor) []models.Vendor {
	key := NormalizeKey(query)
	if key == "" {
		return append([]models.Vendor(nil), vendors...)
	}
	var out []models.Vendor
	for _, v := range vendors {
		if strings.Contains(NormalizeKey(v.Name), key) || strings.Contains(NormalizeKey(v.Email), key) {
			out = append(out, v)
		}
	}
	return out
}
