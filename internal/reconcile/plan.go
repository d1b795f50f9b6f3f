package reconcile

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"vendorsync/internal/logger"
	"vendorsync/pkg/models"
)

// Action is what a plan does with one side of the draft.
type Action string

const (
	ActionCreate         Action = "create"
	ActionReuse          Action = "reuse"
	ActionUpdateExisting Action = "update-existing"
)

// Plan describes how a draft will be written.
type Plan struct {
	Draft models.Draft `json:"draft"`

	VendorAction Action         `json:"vendorAction"`
	Vendor       *models.Vendor `json:"vendor,omitempty"`

	InvoiceAction Action          `json:"invoiceAction"`
	Existing      *models.Invoice `json:"existing,omitempty"`
}

// Resolve matches a draft against the known vendors and invoices. A new
// vendor always implies a new invoice.
func Resolve(draft models.Draft, vendors []models.Vendor, invoices []models.Invoice) (Plan, error) {
	if strings.TrimSpace(draft.Vendor.Name) == "" || strings.TrimSpace(draft.Invoice.InvoiceNumber) == "" {
		return Plan{}, ErrIncompleteDraft
	}

	plan := Plan{Draft: draft, VendorAction: ActionCreate, InvoiceAction: ActionCreate}

	vendor, ok := FindVendor(Candidate{Name: draft.Vendor.Name, Email: draft.Vendor.Email}, vendors)
	if !ok {
		return plan, nil
	}
	plan.VendorAction = ActionReuse
	plan.Vendor = vendor

	if existing, ok := FindInvoice(draft.Invoice.InvoiceNumber, vendor.ID, invoices); ok {
		plan.InvoiceAction = ActionUpdateExisting
		plan.Existing = existing
	}
	return plan, nil
}

// Confirmer decides whether an existing invoice may be overwritten.
type Confirmer interface {
	ConfirmOverwrite(ctx context.Context, existing models.Invoice, draft models.Draft) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, existing models.Invoice, draft models.Draft) (bool, error)

func (f ConfirmFunc) ConfirmOverwrite(ctx context.Context, existing models.Invoice, draft models.Draft) (bool, error) {
	return f(ctx, existing, draft)
}

// AlwaysConfirm approves every overwrite.
var AlwaysConfirm = ConfirmFunc(func(context.Context, models.Invoice, models.Draft) (bool, error) {
	return true, nil
})

// PromptConfirmer asks on Out and reads a y/N answer from In.
type PromptConfirmer struct {
	In  io.Reader
	Out io.Writer
}

func (p PromptConfirmer) ConfirmOverwrite(ctx context.Context, existing models.Invoice, draft models.Draft) (bool, error) {
	fmt.Fprintf(p.Out, "Invoice %s already exists for %s. Update it? [y/N]: ",
		existing.InvoiceNumber, draft.Vendor.Name)

	answer := make(chan string, 1)
	go func() {
		line, _ := bufio.NewReader(p.In).ReadString('\n')
		answer <- strings.ToLower(strings.TrimSpace(line))
	}()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case a := <-answer:
		return a == "y" || a == "yes", nil
	}
}

// Writer is the subset of the API client needed to apply a plan.
type Writer interface {
	CreateVendor(ctx context.Context, in models.NewVendor) (models.Vendor, error)
	CreateInvoice(ctx context.Context, vendorID string, in models.NewInvoice) (models.Invoice, error)
	UpdateInvoice(ctx context.Context, vendorID, invoiceID string, patch models.InvoicePatch) error
}

// Result reports what Apply wrote.
type Result struct {
	VendorID      string `json:"vendorId"`
	InvoiceID     string `json:"invoiceId"`
	VendorAction  Action `json:"vendorAction"`
	InvoiceAction Action `json:"invoiceAction"`
}

// Apply writes the plan through w. Overwriting an existing invoice requires
// confirmation; a refusal returns ErrAborted and writes nothing.
func Apply(ctx context.Context, plan Plan, w Writer, c Confirmer) (Result, error) {
	const op = "Apply"
	log := logger.WithComponent("reconcile")

	res := Result{VendorAction: plan.VendorAction, InvoiceAction: plan.InvoiceAction}

	if plan.InvoiceAction == ActionUpdateExisting {
		ok, err := c.ConfirmOverwrite(ctx, *plan.Existing, plan.Draft)
		if err != nil {
			return res, &ApplyError{Op: op, Step: "confirm", Err: err}
		}
		if !ok {
			return res, ErrAborted
		}
	}

	if plan.VendorAction == ActionReuse {
		res.VendorID = plan.Vendor.ID
	} else {
		created, err := w.CreateVendor(ctx, plan.Draft.Vendor)
		if err != nil {
			return res, &ApplyError{Op: op, Step: "create vendor", Err: err, Details: plan.Draft.Vendor.Name}
		}
		res.VendorID = created.ID
		log.Info().Str("vendor_id", created.ID).Str("name", created.Name).Msg("Vendor created")
	}

	if plan.InvoiceAction == ActionUpdateExisting {
		if err := w.UpdateInvoice(ctx, res.VendorID, plan.Existing.ID, plan.Draft.Invoice.Patch()); err != nil {
			return res, &ApplyError{Op: op, Step: "update invoice", Err: err, Details: plan.Existing.ID}
		}
		res.InvoiceID = plan.Existing.ID
		log.Info().Str("invoice_id", res.InvoiceID).Msg("Existing invoice updated")
		return res, nil
	}

	created, err := w.CreateInvoice(ctx, res.VendorID, plan.Draft.Invoice)
	if err != nil {
		return res, &ApplyError{Op: op, Step: "create invoice", Err: err, Details: plan.Draft.Invoice.InvoiceNumber}
	}
	res.InvoiceID = created.ID
	log.Info().Str("invoice_id", created.ID).Str("vendor_id", res.VendorID).Msg("Invoice created")
	return res, nil
}
