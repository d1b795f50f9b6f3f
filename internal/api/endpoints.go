package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"time"

	"vendorsync/pkg/models"
)

func vendorPath(vendorID string) string {
	return "/vendor/" + url.PathEscape(vendorID)
}

func invoicePath(vendorID, invoiceID string) string {
	return vendorPath(vendorID) + "/invoice/" + url.PathEscape(invoiceID)
}

// ListVendors fetches every vendor.
func (c *Client) ListVendors(ctx context.Context) ([]models.Vendor, error) {
	const op = "fetch vendors"
	data, err := c.do(ctx, request{op: op, method: http.MethodGet, path: "/vendor"})
	if err != nil {
		return nil, err
	}
	items, err := decodeList(op, data, "vendors")
	if err != nil {
		return nil, err
	}
	return c.decodeVendors(op, items), nil
}

// GetVendor fetches a single vendor.
func (c *Client) GetVendor(ctx context.Context, vendorID string) (models.Vendor, error) {
	const op = "fetch vendor"
	data, err := c.do(ctx, request{op: op, method: http.MethodGet, path: vendorPath(vendorID)})
	if err != nil {
		return models.Vendor{}, err
	}
	return c.decodeVendor(op, data)
}

// CreateVendor creates a vendor and returns the stored record.
func (c *Client) CreateVendor(ctx context.Context, in models.NewVendor) (models.Vendor, error) {
	const op = "create vendor"
	if err := c.checkInput(op, in); err != nil {
		return models.Vendor{}, err
	}
	data, err := c.do(ctx, request{op: op, method: http.MethodPost, path: "/vendor", body: in})
	if err != nil {
		return models.Vendor{}, err
	}
	return c.decodeVendor(op, data)
}

// UpdateVendor patches a vendor and returns the stored record.
func (c *Client) UpdateVendor(ctx context.Context, vendorID string, patch models.VendorPatch) (models.Vendor, error) {
	const op = "update vendor"
	if err := c.checkInput(op, patch); err != nil {
		return models.Vendor{}, err
	}
	data, err := c.do(ctx, request{op: op, method: http.MethodPatch, path: vendorPath(vendorID), body: patch})
	if err != nil {
		return models.Vendor{}, err
	}
	return c.decodeVendor(op, data)
}

// DeleteVendor removes a vendor.
func (c *Client) DeleteVendor(ctx context.Context, vendorID string) error {
	_, err := c.do(ctx, request{op: "delete vendor", method: http.MethodDelete, path: vendorPath(vendorID)})
	return err
}

// ListAllInvoices fetches invoices across all vendors.
func (c *Client) ListAllInvoices(ctx context.Context) ([]models.Invoice, error) {
	const op = "fetch invoices"
	data, err := c.do(ctx, request{op: op, method: http.MethodGet, path: "/vendor/invoice/all"})
	if err != nil {
		return nil, err
	}
	items, err := decodeList(op, data, "invoices")
	if err != nil {
		return nil, err
	}
	return c.decodeInvoices(op, items, ""), nil
}

// ListVendorInvoices fetches the invoices of one vendor.
func (c *Client) ListVendorInvoices(ctx context.Context, vendorID string) ([]models.Invoice, error) {
	const op = "fetch vendor invoices"
	data, err := c.do(ctx, request{op: op, method: http.MethodGet, path: vendorPath(vendorID) + "/invoice"})
	if err != nil {
		return nil, err
	}
	items, err := decodeList(op, data, "invoices")
	if err != nil {
		return nil, err
	}
	return c.decodeInvoices(op, items, vendorID), nil
}

// GetInvoice fetches a single invoice.
func (c *Client) GetInvoice(ctx context.Context, vendorID, invoiceID string) (models.Invoice, error) {
	const op = "fetch invoice"
	data, err := c.do(ctx, request{op: op, method: http.MethodGet, path: invoicePath(vendorID, invoiceID)})
	if err != nil {
		return models.Invoice{}, err
	}
	return c.decodeInvoice(op, data, vendorID)
}

// CreateInvoice creates an invoice under vendorID.
func (c *Client) CreateInvoice(ctx context.Context, vendorID string, in models.NewInvoice) (models.Invoice, error) {
	const op = "create invoice"
	if err := c.checkInput(op, in); err != nil {
		return models.Invoice{}, err
	}
	data, err := c.do(ctx, request{op: op, method: http.MethodPost, path: vendorPath(vendorID) + "/invoice", body: in})
	if err != nil {
		return models.Invoice{}, err
	}
	return c.decodeInvoice(op, data, vendorID)
}

// UpdateInvoice patches the editable fields of an invoice. The response body
// is not interpreted; callers keep their own patched copy.
func (c *Client) UpdateInvoice(ctx context.Context, vendorID, invoiceID string, patch models.InvoicePatch) error {
	const op = "update invoice"
	if err := c.checkInput(op, patch); err != nil {
		return err
	}
	_, err := c.do(ctx, request{op: op, method: http.MethodPatch, path: invoicePath(vendorID, invoiceID), body: patch})
	return err
}

// DeleteInvoice removes an invoice.
func (c *Client) DeleteInvoice(ctx context.Context, vendorID, invoiceID string) error {
	_, err := c.do(ctx, request{op: "delete invoice", method: http.MethodDelete, path: invoicePath(vendorID, invoiceID)})
	return err
}

type paymentStatus struct {
	Status string     `json:"status"`
	PaidAt *time.Time `json:"paidAt"`
}

// MarkInvoicePaid records a payment at paidAt. When the vendor-scoped PATCH
// is rejected it falls back to POST /invoice/:id/mark-paid.
func (c *Client) MarkInvoicePaid(ctx context.Context, vendorID, invoiceID string, paidAt time.Time) error {
	const op = "mark paid"
	paidAt = paidAt.UTC()
	_, err := c.do(ctx, request{
		op:     op,
		method: http.MethodPatch,
		path:   invoicePath(vendorID, invoiceID),
		body:   paymentStatus{Status: models.StatusPaid, PaidAt: &paidAt},
	})
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return err
	}

	c.log.Warn().
		Err(err).
		Str("invoice_id", invoiceID).
		Msg("Vendor-scoped mark paid failed, trying mark-paid endpoint")

	_, fallbackErr := c.do(ctx, request{
		op:     op,
		method: http.MethodPost,
		path:   "/invoice/" + url.PathEscape(invoiceID) + "/mark-paid",
	})
	return fallbackErr
}

// MarkInvoiceUnpaid clears the payment and returns the invoice to pending.
func (c *Client) MarkInvoiceUnpaid(ctx context.Context, vendorID, invoiceID string) error {
	_, err := c.do(ctx, request{
		op:     "mark unpaid",
		method: http.MethodPatch,
		path:   invoicePath(vendorID, invoiceID),
		body:   paymentStatus{Status: models.StatusPending},
	})
	return err
}

// Performance fetches the optional monthly performance series.
func (c *Client) Performance(ctx context.Context) ([]models.PerformancePoint, error) {
	const op = "fetch performance"
	data, err := c.do(ctx, request{op: op, method: http.MethodGet, path: "/vendor/performance"})
	if err != nil {
		return nil, err
	}
	items, err := decodeList(op, data, "performance")
	if err != nil {
		return nil, err
	}

	points := make([]models.PerformancePoint, 0, len(items))
	for _, raw := range items {
		var w wirePerformance
		if err := json.Unmarshal(raw, &w); err != nil {
			c.log.Warn().Err(err).Msg("Skipping undecodable performance point")
			continue
		}
		points = append(points, w.model())
	}
	return points, nil
}

// UploadInvoice sends a document to the OCR endpoint as multipart field
// "file" and returns the raw extraction result.
func (c *Client) UploadInvoice(ctx context.Context, filename string, r io.Reader) (json.RawMessage, error) {
	const op = "upload invoice"

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return nil, &APIError{Op: op, Err: err}
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, &APIError{Op: op, Err: fmt.Errorf("read document: %w", err)}
	}
	if err := mw.Close(); err != nil {
		return nil, &APIError{Op: op, Err: err}
	}

	data, err := c.do(ctx, request{
		op:          op,
		method:      http.MethodPost,
		path:        "/vendor/invoice/upload",
		raw:         &buf,
		contentType: mw.FormDataContentType(),
	})
	if err != nil {
		return nil, err
	}
	if !json.Valid(data) {
		return nil, &APIError{Op: op, Err: joinInvalid(errors.New("upload response is not JSON"))}
	}
	return json.RawMessage(data), nil
}
