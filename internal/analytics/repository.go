package analytics

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/invoiceapp/invoiceapp/internal/invoicing"
)

// ErrRepositoryNotInitialised is returned by a nil repository.
var ErrRepositoryNotInitialised = errors.New("analytics: repository not initialised")

// InvoiceLister loads invoices with their items.
type InvoiceLister interface {
	ListInvoices(ctx context.Context, filter invoicing.Filter) ([]invoicing.Invoice, int, error)
}

// PGRepository aggregates in PostgreSQL and reuses the invoice repository for item
// level reads.
type PGRepository struct {
	pool     *pgxpool.Pool
	invoices InvoiceLister
}

// NewRepository constructs the PostgreSQL analytics repository.
func NewRepository(pool *pgxpool.Pool, invoices InvoiceLister) *PGRepository {
	return &PGRepository{pool: pool, invoices: invoices}
}

// InventoryStats implements Repository.
func (r *PGRepository) InventoryStats(ctx context.Context) (InventoryStats, error) {
	if r == nil || r.pool == nil {
		return InventoryStats{}, ErrRepositoryNotInitialised
	}
	var stats InventoryStats
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE stock <= min_stock),
		       COALESCE(SUM(stock * cost), 0),
		       COALESCE(SUM(stock * price), 0),
		       COALESCE(SUM(stock), 0)
		FROM products
		WHERE is_active
	`).Scan(&stats.TotalProducts, &stats.LowStockCount, &stats.TotalStockValue, &stats.TotalRetailValue, &stats.TotalItems)
	if err != nil {
		return InventoryStats{}, err
	}
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT category FROM products WHERE is_active AND category <> '' ORDER BY category`)
	if err != nil {
		return InventoryStats{}, err
	}
	stats.CategoryList, err = pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return InventoryStats{}, err
	}
	if stats.CategoryList == nil {
		stats.CategoryList = []string{}
	}
	stats.Categories = len(stats.CategoryList)
	return stats, nil
}

// InvoiceStats implements Repository. Paid revenue sums the stored invoice totals.
func (r *PGRepository) InvoiceStats(ctx context.Context) (InvoiceStats, error) {
	if r == nil || r.pool == nil {
		return InvoiceStats{}, ErrRepositoryNotInitialised
	}
	var stats InvoiceStats
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(total) FILTER (WHERE status = 'paid'), 0),
		       COUNT(*) FILTER (WHERE status = 'pending'),
		       COUNT(*) FILTER (WHERE status = 'paid'),
		       COUNT(*) FILTER (WHERE status = 'overdue'),
		       COUNT(*)
		FROM invoices
	`).Scan(&stats.TotalRevenue, &stats.PendingCount, &stats.PaidCount, &stats.OverdueCount, &stats.TotalInvoices)
	return stats, err
}

// InvoicesIssuedBetween implements Repository.
func (r *PGRepository) InvoicesIssuedBetween(ctx context.Context, from, to time.Time) ([]invoicing.Invoice, error) {
	if r == nil || r.invoices == nil {
		return nil, ErrRepositoryNotInitialised
	}
	invoices, _, err := r.invoices.ListInvoices(ctx, invoicing.Filter{IssuedFrom: from, IssuedTo: to})
	return invoices, err
}
