package dataservice

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"vendorsync/pkg/models"
)

// hydrateVendorNames looks up names for vendors referenced by invoices that
// carry no embedded name and are missing from vendors. Lookups run in
// parallel; failed lookups are left out of the result.
func (s *Service) hydrateVendorNames(ctx context.Context, vendors []models.Vendor, invoices []models.Invoice) map[string]string {
	known := make(map[string]bool, len(vendors))
	for _, v := range vendors {
		known[v.ID] = true
	}

	seen := make(map[string]bool)
	var ids []string
	for _, inv := range invoices {
		if inv.VendorName != "" || inv.VendorID == "" || known[inv.VendorID] || seen[inv.VendorID] {
			continue
		}
		seen[inv.VendorID] = true
		ids = append(ids, inv.VendorID)
	}

	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.hydrateLimit)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			v, err := s.api.GetVendor(gctx, id)
			if err != nil {
				s.log.Debug().Err(err).Str("vendor_id", id).Msg("Vendor lookup failed")
				return nil
			}
			if v.Name == "" {
				return nil
			}
			mu.Lock()
			if _, exists := names[id]; !exists {
				names[id] = v.Name
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	s.log.Debug().Int("requested", len(ids)).Int("resolved", len(names)).Msg("Vendor names hydrated")
	return names
}

// applyVendorNames fills VendorName from names where it is empty.
func applyVendorNames(invoices []models.Invoice, names map[string]string) []models.Invoice {
	out := append([]models.Invoice(nil), invoices...)
	for i := range out {
		if out[i].VendorName == "" {
			out[i].VendorName = names[out[i].VendorID]
		}
	}
	return out
}
