package dataservice

import (
	"context"

	"github.com/rs/zerolog"

	"vendorsync/pkg/models"
)

// MarkPaid marks an invoice paid now. The local list and the ledger change
// before the API call and are restored if it fails. An invoice that is
// already paid keeps its ledger contribution.
func (s *Service) MarkPaid(ctx context.Context, invoiceID string) (models.Invoice, error) {
	const op = "MarkPaid"
	return s.mutate(ctx, op, invoiceID,
		func(inv models.Invoice) *models.Invoice {
			paidAt := s.now().UTC()
			inv.Status = models.StatusPaid
			inv.PaidDate = &paidAt
			return &inv
		},
		func(ctx context.Context, before, after *models.Invoice) error {
			return s.api.MarkInvoicePaid(ctx, before.VendorID, before.ID, *after.PaidDate)
		},
	)
}

// MarkUnpaid returns an invoice to pending and clears its payment date.
func (s *Service) MarkUnpaid(ctx context.Context, invoiceID string) (models.Invoice, error) {
	const op = "MarkUnpaid"
	return s.mutate(ctx, op, invoiceID,
		func(inv models.Invoice) *models.Invoice {
			inv.Status = models.StatusPending
			inv.PaidDate = nil
			return &inv
		},
		func(ctx context.Context, before, _ *models.Invoice) error {
			return s.api.MarkInvoiceUnpaid(ctx, before.VendorID, before.ID)
		},
	)
}

// EditInvoice applies patch. A paid invoice whose total changes moves the
// ledger by the difference.
func (s *Service) EditInvoice(ctx context.Context, invoiceID string, patch models.InvoicePatch) (models.Invoice, error) {
	const op = "EditInvoice"
	if patch.IsEmpty() {
		return models.Invoice{}, &ServiceError{Op: op, Err: ErrEmptyPatch, InvoiceID: invoiceID}
	}
	return s.mutate(ctx, op, invoiceID,
		func(inv models.Invoice) *models.Invoice {
			next := patch.Apply(inv)
			return &next
		},
		func(ctx context.Context, before, _ *models.Invoice) error {
			return s.api.UpdateInvoice(ctx, before.VendorID, before.ID, patch)
		},
	)
}

// DeleteInvoice removes an invoice. A paid invoice leaves the ledger.
func (s *Service) DeleteInvoice(ctx context.Context, invoiceID string) error {
	const op = "DeleteInvoice"
	_, err := s.mutate(ctx, op, invoiceID,
		func(models.Invoice) *models.Invoice { return nil },
		func(ctx context.Context, before, _ *models.Invoice) error {
			return s.api.DeleteInvoice(ctx, before.VendorID, before.ID)
		},
	)
	return err
}

// mutate runs one optimistic change. change returns the new invoice, or nil
// to remove it; remote performs the API call.
func (s *Service) mutate(
	ctx context.Context,
	op, invoiceID string,
	change func(models.Invoice) *models.Invoice,
	remote func(ctx context.Context, before, after *models.Invoice) error,
) (models.Invoice, error) {
	s.mutateMu.Lock()
	defer s.mutateMu.Unlock()

	log := s.log.With().Str("op", op).Str("invoice_id", invoiceID).Logger()

	s.mu.Lock()
	if !s.initialized {
		s.mu.Unlock()
		return models.Invoice{}, ErrNotInitialized
	}
	idx := -1
	for i := range s.invoices {
		if s.invoices[i].ID == invoiceID {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return models.Invoice{}, &ServiceError{Op: op, Err: ErrInvoiceNotFound, InvoiceID: invoiceID}
	}

	snapshot := append([]models.Invoice(nil), s.invoices...)
	before := s.invoices[idx]
	after := change(before)

	if after == nil {
		s.invoices = append(append([]models.Invoice(nil), s.invoices[:idx]...), s.invoices[idx+1:]...)
	} else {
		next := append([]models.Invoice(nil), s.invoices...)
		next[idx] = *after
		s.invoices = next
	}
	s.rebuildLocked()
	s.mu.Unlock()

	undo := s.shiftLedger(ctx, log, &before, after)

	if err := remote(ctx, &before, after); err != nil {
		log.Warn().Err(err).Msg("Remote update failed, rolling back")

		s.mu.Lock()
		s.invoices = snapshot
		s.rebuildLocked()
		s.mu.Unlock()
		undo(ctx)

		return before, &ServiceError{Op: op, Err: err, InvoiceID: invoiceID}
	}

	log.Info().Msg("Invoice updated")
	if after == nil {
		return before, nil
	}
	return *after, nil
}

// contribution is what an invoice adds to the ledger.
func contribution(inv *models.Invoice) float64 {
	if inv == nil || !inv.IsPaid() {
		return 0
	}
	return inv.TotalAmount
}

// shiftLedger moves the ledger from before's contribution to after's and
// returns a function that moves it back. Amounts the ledger rejects are
// skipped, as Reconcile skips them.
func (s *Service) shiftLedger(ctx context.Context, log zerolog.Logger, before, after *models.Invoice) func(context.Context) {
	out, in := contribution(before), contribution(after)
	if out == in {
		return func(context.Context) {}
	}

	var removed, added bool
	if out > 0 {
		if err := s.ledger.Subtract(ctx, out); err != nil {
			log.Warn().Err(err).Msg("Ledger rejected amount")
		} else {
			removed = true
		}
	}
	if in > 0 {
		if err := s.ledger.Add(ctx, in); err != nil {
			log.Warn().Err(err).Msg("Ledger rejected amount")
		} else {
			added = true
		}
	}
	if removed || added {
		s.publishSpend(ctx)
	}

	return func(ctx context.Context) {
		if added {
			_ = s.ledger.Subtract(ctx, in)
		}
		if removed {
			_ = s.ledger.Add(ctx, out)
		}
		if removed || added {
			s.publishSpend(ctx)
		}
	}
}
