package memory

import (
	"context"
	"time"

	"github.com/invoiceapp/invoiceapp/internal/analytics"
	"github.com/invoiceapp/invoiceapp/internal/inventory"
	"github.com/invoiceapp/invoiceapp/internal/invoicing"
)

// AnalyticsRepo is the analytics.Repository view of Store.
type AnalyticsRepo struct {
	s *Store
}

// Analytics returns the view implementing analytics.Repository.
func (s *Store) Analytics() *AnalyticsRepo { return &AnalyticsRepo{s: s} }

// InventoryStats implements analytics.Repository.
func (r *AnalyticsRepo) InventoryStats(_ context.Context) (analytics.InventoryStats, error) {
	r.s.mu.RLock()
	products := make([]inventory.Product, 0, len(r.s.products))
	for _, p := range r.s.products {
		products = append(products, p)
	}
	r.s.mu.RUnlock()
	return analytics.SummariseInventory(products), nil
}

// InvoiceStats implements analytics.Repository.
func (r *AnalyticsRepo) InvoiceStats(_ context.Context) (analytics.InvoiceStats, error) {
	r.s.mu.RLock()
	invoices := make([]invoicing.Invoice, 0, len(r.s.invoices))
	for _, inv := range r.s.invoices {
		invoices = append(invoices, cloneInvoice(inv))
	}
	r.s.mu.RUnlock()
	return analytics.SummariseInvoices(invoices), nil
}

// InvoicesIssuedBetween implements analytics.Repository.
func (r *AnalyticsRepo) InvoicesIssuedBetween(ctx context.Context, from, to time.Time) ([]invoicing.Invoice, error) {
	invoices, _, err := r.s.Invoicing().ListInvoices(ctx, invoicing.Filter{IssuedFrom: from, IssuedTo: to})
	return invoices, err
}

var _ analytics.Repository = (*AnalyticsRepo)(nil)
