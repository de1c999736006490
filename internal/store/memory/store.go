// Package memory is an in-process store implementing the inventory and invoicing
// repository ports. A transaction holds the store lock for its whole duration and is
// rolled back from a snapshot on error, so transactions are fully serialised.
package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/invoiceapp/invoiceapp/internal/inventory"
	"github.com/invoiceapp/invoiceapp/internal/invoicing"
	"github.com/invoiceapp/invoiceapp/internal/shared"
)

// Store keeps every table in maps guarded by one lock.
type Store struct {
	mu        sync.RWMutex
	products  map[string]inventory.Product
	ledger    []inventory.LedgerEntry
	ledgerSeq int64
	invoices  map[string]invoicing.Invoice
	sequences map[int]int64
	audit     []shared.AuditLog
	keys      map[string]time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		products:  make(map[string]inventory.Product),
		invoices:  make(map[string]invoicing.Invoice),
		sequences: make(map[int]int64),
		keys:      make(map[string]time.Time),
	}
}

// Inventory returns the view implementing inventory.RepositoryPort.
func (s *Store) Inventory() *InventoryRepo { return &InventoryRepo{s: s} }

// Invoicing returns the view implementing invoicing.RepositoryPort.
func (s *Store) Invoicing() *InvoiceRepo { return &InvoiceRepo{s: s} }

type snapshot struct {
	products  map[string]inventory.Product
	ledgerLen int
	ledgerSeq int64
	invoices  map[string]invoicing.Invoice
	sequences map[int]int64
}

func (s *Store) snapshot() snapshot {
	snap := snapshot{
		products:  make(map[string]inventory.Product, len(s.products)),
		ledgerLen: len(s.ledger),
		ledgerSeq: s.ledgerSeq,
		invoices:  make(map[string]invoicing.Invoice, len(s.invoices)),
		sequences: make(map[int]int64, len(s.sequences)),
	}
	for k, v := range s.products {
		snap.products[k] = v
	}
	for k, v := range s.invoices {
		snap.invoices[k] = cloneInvoice(v)
	}
	for k, v := range s.sequences {
		snap.sequences[k] = v
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.products = snap.products
	s.ledger = s.ledger[:snap.ledgerLen]
	s.ledgerSeq = snap.ledgerSeq
	s.invoices = snap.invoices
	s.sequences = snap.sequences
}

// withTx runs fn under the write lock and rolls back on error or panic.
func (s *Store) withTx(ctx context.Context, fn func(*txView) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.snapshot()
	defer func() {
		if p := recover(); p != nil {
			s.restore(snap)
			panic(p)
		}
		if err != nil {
			s.restore(snap)
		}
	}()
	return fn(&txView{s: s})
}

// Record implements the audit port.
func (s *Store) Record(_ context.Context, log shared.AuditLog) error {
	if err := log.Validate(); err != nil {
		return err
	}
	if log.At.IsZero() {
		log.At = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, log)
	return nil
}

// AuditLogs returns recorded audit entries oldest first.
func (s *Store) AuditLogs() []shared.AuditLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]shared.AuditLog, len(s.audit))
	copy(out, s.audit)
	return out
}

// CheckAndInsert implements the idempotency port.
func (s *Store) CheckAndInsert(_ context.Context, key, module string) error {
	if err := shared.CheckIdempotencyArgs(key, module); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[key]; ok {
		return shared.ErrIdempotencyConflict
	}
	s.keys[key] = time.Now()
	return nil
}

// Delete removes an idempotency key.
func (s *Store) Delete(_ context.Context, key string) error {
	if key == "" {
		return errors.New("idempotency key required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, key)
	return nil
}

// InventoryRepo is the inventory.RepositoryPort view of Store.
type InventoryRepo struct {
	s *Store
}

// WithTx implements inventory.RepositoryPort.
func (r *InventoryRepo) WithTx(ctx context.Context, fn func(context.Context, inventory.TxRepository) error) error {
	return r.s.withTx(ctx, func(tx *txView) error { return fn(ctx, tx) })
}

// GetProduct implements inventory.ProductReader.
func (r *InventoryRepo) GetProduct(_ context.Context, id string) (inventory.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.products[id]
	if !ok {
		return inventory.Product{}, shared.NewNotFoundError("product", id)
	}
	return p, nil
}

// ListProducts implements inventory.RepositoryPort.
func (r *InventoryRepo) ListProducts(_ context.Context, filter inventory.ProductFilter) ([]inventory.Product, int, error) {
	r.s.mu.RLock()
	matched := make([]inventory.Product, 0, len(r.s.products))
	for _, p := range r.s.products {
		if productMatches(p, filter) {
			matched = append(matched, p)
		}
	}
	r.s.mu.RUnlock()

	sortProducts(matched, filter.SortBy, strings.EqualFold(filter.Order, "asc"))
	total := len(matched)
	if filter.PerPage <= 0 {
		return matched, total, nil
	}
	page := shared.NewPagination(filter.Page, filter.PerPage, total)
	return paginate(matched, page), total, nil
}

// QueryLedger implements inventory.LedgerReader.
func (r *InventoryRepo) QueryLedger(_ context.Context, productID string, limit int) ([]inventory.LedgerEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []inventory.LedgerEntry{}
	for i := len(r.s.ledger) - 1; i >= 0; i-- {
		e := r.s.ledger[i]
		if productID == "" || e.ProductID == productID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Seq > out[j].Seq
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// LedgerForProduct implements inventory.LedgerReader.
func (r *InventoryRepo) LedgerForProduct(_ context.Context, productID string) ([]inventory.LedgerEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []inventory.LedgerEntry{}
	for _, e := range r.s.ledger {
		if e.ProductID == productID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Seq < out[j].Seq
	})
	return out, nil
}

// InvoiceRepo is the invoicing.RepositoryPort view of Store.
type InvoiceRepo struct {
	s *Store
}

// WithTx implements invoicing.RepositoryPort.
func (r *InvoiceRepo) WithTx(ctx context.Context, fn func(context.Context, invoicing.TxRepository) error) error {
	return r.s.withTx(ctx, func(tx *txView) error { return fn(ctx, tx) })
}

// GetInvoice implements invoicing.RepositoryPort.
func (r *InvoiceRepo) GetInvoice(_ context.Context, id string) (invoicing.Invoice, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	inv, ok := r.s.invoices[id]
	if !ok {
		return invoicing.Invoice{}, shared.NewNotFoundError("invoice", id)
	}
	return cloneInvoice(inv), nil
}

// ListInvoices implements invoicing.RepositoryPort.
func (r *InvoiceRepo) ListInvoices(_ context.Context, filter invoicing.Filter) ([]invoicing.Invoice, int, error) {
	r.s.mu.RLock()
	matched := make([]invoicing.Invoice, 0, len(r.s.invoices))
	for _, inv := range r.s.invoices {
		if invoiceMatches(inv, filter) {
			matched = append(matched, cloneInvoice(inv))
		}
	}
	r.s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.IssueDate.Equal(b.IssueDate) {
			return a.IssueDate.After(b.IssueDate)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
	total := len(matched)
	if filter.PerPage <= 0 {
		return matched, total, nil
	}
	page := shared.NewPagination(filter.Page, filter.PerPage, total)
	return paginate(matched, page), total, nil
}

// ListOverdueCandidates implements invoicing.RepositoryPort.
func (r *InvoiceRepo) ListOverdueCandidates(_ context.Context, asOf time.Time) ([]invoicing.Invoice, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []invoicing.Invoice{}
	for _, inv := range r.s.invoices {
		if inv.IsOverdueAt(asOf) {
			out = append(out, cloneInvoice(inv))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DueDate.Equal(out[j].DueDate) {
			return out[i].DueDate.Before(out[j].DueDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func productMatches(p inventory.Product, f inventory.ProductFilter) bool {
	if f.Category != "" && p.Category != f.Category {
		return false
	}
	if search := strings.ToLower(strings.TrimSpace(f.Search)); search != "" {
		if !strings.Contains(strings.ToLower(p.Name), search) &&
			!strings.Contains(strings.ToLower(p.SKU), search) &&
			!strings.Contains(strings.ToLower(p.Description), search) {
			return false
		}
	}
	if f.LowStock && !p.IsLowStock() {
		return false
	}
	if f.Active != nil && p.Active != *f.Active {
		return false
	}
	return true
}

func sortProducts(products []inventory.Product, by string, asc bool) {
	less := func(a, b inventory.Product) int {
		switch by {
		case "name":
			return strings.Compare(a.Name, b.Name)
		case "sku":
			return strings.Compare(a.SKU, b.SKU)
		case "category":
			return strings.Compare(a.Category, b.Category)
		case "price":
			return a.Price.Cmp(b.Price)
		case "stock":
			return compareInt(a.Stock, b.Stock)
		default:
			return a.CreatedAt.Compare(b.CreatedAt)
		}
	}
	sort.Slice(products, func(i, j int) bool {
		c := less(products[i], products[j])
		if c == 0 {
			return products[i].ID < products[j].ID
		}
		if asc {
			return c < 0
		}
		return c > 0
	})
}

func invoiceMatches(inv invoicing.Invoice, f invoicing.Filter) bool {
	if f.Status != "" && inv.Status != f.Status {
		return false
	}
	if search := strings.ToLower(strings.TrimSpace(f.Search)); search != "" {
		if !strings.Contains(strings.ToLower(inv.ID), search) &&
			!strings.Contains(strings.ToLower(inv.ClientName), search) &&
			!strings.Contains(strings.ToLower(inv.ClientEmail), search) {
			return false
		}
	}
	if !f.IssuedFrom.IsZero() && inv.IssueDate.Before(day(f.IssuedFrom)) {
		return false
	}
	if !f.IssuedTo.IsZero() && inv.IssueDate.After(day(f.IssuedTo)) {
		return false
	}
	return true
}

func paginate[T any](items []T, page shared.Pagination) []T {
	start := page.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + page.PerPage
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func cloneInvoice(inv invoicing.Invoice) invoicing.Invoice {
	items := make([]invoicing.Item, len(inv.Items))
	copy(items, inv.Items)
	inv.Items = items
	if inv.PaidAt != nil {
		paid := *inv.PaidAt
		inv.PaidAt = &paid
	}
	return inv
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
