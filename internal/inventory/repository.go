package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/invoiceapp/invoiceapp/internal/platform/db"
	"github.com/invoiceapp/invoiceapp/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	LedgerReader
	ProductReader
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListProducts(ctx context.Context, filter ProductFilter) ([]Product, int, error)
}

// TxRepository exposes transactional operations used by service and by the invoice
// reconciliation engine.
type TxRepository interface {
	GetProductForUpdate(ctx context.Context, id string) (Product, error)
	InsertProduct(ctx context.Context, product Product) error
	UpdateProduct(ctx context.Context, product Product) error
	UpdateStock(ctx context.Context, id string, stock int64, at time.Time) error
	DeleteProduct(ctx context.Context, id string) error
	CountLedgerEntries(ctx context.Context, productID string) (int, error)
	// CountInvoiceLines counts invoice lines, of any status, naming the product.
	CountInvoiceLines(ctx context.Context, productID string) (int, error)
	InsertLedgerEntry(ctx context.Context, entry LedgerEntry) error
}

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository binds the transactional operations to an open transaction so other
// packages can combine stock writes with their own statements.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

// WithTx executes the callback inside a transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil || r.pool == nil {
		return ErrRepositoryNotInitialised
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const productColumns = `id::text, sku, name, description, category, unit, price, cost, stock, min_stock, location, supplier, is_active, created_at, updated_at`

const ledgerColumns = `id::text, seq, product_id::text, movement_type, quantity, stock_before, stock_after, reference, reference_type, note, actor, created_at`

// GetProduct loads a product by id.
func (r *Repository) GetProduct(ctx context.Context, id string) (Product, error) {
	if r == nil || r.pool == nil {
		return Product{}, ErrRepositoryNotInitialised
	}
	row := r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id::text = $1`, id)
	return scanProductRow(row, id)
}

// ListProducts returns one page of products and the total match count. PerPage <= 0
// returns every match.
func (r *Repository) ListProducts(ctx context.Context, filter ProductFilter) ([]Product, int, error) {
	if r == nil || r.pool == nil {
		return nil, 0, ErrRepositoryNotInitialised
	}
	where, args := productWhere(filter)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + productColumns + ` FROM products` + where + ` ORDER BY ` + productOrder(filter)
	if filter.PerPage > 0 {
		page := shared.NewPagination(filter.Page, filter.PerPage, total)
		args = append(args, page.PerPage, page.Offset())
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	products := []Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

// QueryLedger returns entries newest first, optionally for one product.
func (r *Repository) QueryLedger(ctx context.Context, productID string, limit int) ([]LedgerEntry, error) {
	if r == nil || r.pool == nil {
		return nil, ErrRepositoryNotInitialised
	}
	rows, err := r.pool.Query(ctx, `SELECT `+ledgerColumns+`
FROM stock_ledger
WHERE ($1 = '' OR product_id::text = $1)
ORDER BY created_at DESC, seq DESC
LIMIT $2`, productID, limit)
	if err != nil {
		return nil, err
	}
	return collectLedger(rows)
}

// LedgerForProduct returns the full history of a product oldest first.
func (r *Repository) LedgerForProduct(ctx context.Context, productID string) ([]LedgerEntry, error) {
	if r == nil || r.pool == nil {
		return nil, ErrRepositoryNotInitialised
	}
	rows, err := r.pool.Query(ctx, `SELECT `+ledgerColumns+`
FROM stock_ledger
WHERE product_id::text = $1
ORDER BY created_at ASC, seq ASC`, productID)
	if err != nil {
		return nil, err
	}
	return collectLedger(rows)
}

func (r *txRepository) GetProductForUpdate(ctx context.Context, id string) (Product, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id::text = $1 FOR UPDATE`, id)
	return scanProductRow(row, id)
}

func (r *txRepository) InsertProduct(ctx context.Context, p Product) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO products (id, sku, name, description, category, unit, price, cost, stock, min_stock, location, supplier, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		p.ID, p.SKU, p.Name, p.Description, p.Category, string(p.Unit), p.Price, p.Cost, p.Stock, p.MinStock, p.Location, p.Supplier, p.Active, p.CreatedAt, p.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("inventory: sku %s: %w", p.SKU, shared.ErrDuplicate)
	}
	return err
}

func (r *txRepository) UpdateProduct(ctx context.Context, p Product) error {
	tag, err := r.tx.Exec(ctx, `UPDATE products
SET sku=$2, name=$3, description=$4, category=$5, unit=$6, price=$7, cost=$8, min_stock=$9, location=$10, supplier=$11, is_active=$12, updated_at=$13
WHERE id::text = $1`,
		p.ID, p.SKU, p.Name, p.Description, p.Category, string(p.Unit), p.Price, p.Cost, p.MinStock, p.Location, p.Supplier, p.Active, p.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("inventory: sku %s: %w", p.SKU, shared.ErrDuplicate)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NewNotFoundError("product", p.ID)
	}
	return nil
}

func (r *txRepository) UpdateStock(ctx context.Context, id string, stock int64, at time.Time) error {
	tag, err := r.tx.Exec(ctx, `UPDATE products SET stock=$2, updated_at=$3 WHERE id::text = $1`, id, stock, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NewNotFoundError("product", id)
	}
	return nil
}

func (r *txRepository) DeleteProduct(ctx context.Context, id string) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM products WHERE id::text = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NewNotFoundError("product", id)
	}
	return nil
}

func (r *txRepository) CountLedgerEntries(ctx context.Context, productID string) (int, error) {
	var count int
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM stock_ledger WHERE product_id::text = $1`, productID).Scan(&count)
	return count, err
}

func (r *txRepository) CountInvoiceLines(ctx context.Context, productID string) (int, error) {
	var count int
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM invoice_items WHERE product_id::text = $1`, productID).Scan(&count)
	return count, err
}

func (r *txRepository) InsertLedgerEntry(ctx context.Context, e LedgerEntry) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO stock_ledger (id, product_id, movement_type, quantity, stock_before, stock_after, reference, reference_type, note, actor, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.ID, e.ProductID, string(e.Type), e.Quantity, e.StockBefore, e.StockAfter, e.Reference, string(e.ReferenceType), e.Note, e.Actor, e.CreatedAt)
	return err
}

func productWhere(filter ProductFilter) (string, []any) {
	var clauses []string
	var args []any
	if filter.Category != "" {
		args = append(args, filter.Category)
		clauses = append(clauses, fmt.Sprintf("category = $%d", len(args)))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+search+"%")
		n := len(args)
		clauses = append(clauses, fmt.Sprintf("(name ILIKE $%d OR sku ILIKE $%d OR description ILIKE $%d)", n, n, n))
	}
	if filter.LowStock {
		clauses = append(clauses, "stock <= min_stock")
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		clauses = append(clauses, fmt.Sprintf("is_active = $%d", len(args)))
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func productOrder(filter ProductFilter) string {
	column, ok := SortColumns[filter.SortBy]
	if !ok {
		column = "created_at"
	}
	direction := "DESC"
	if strings.EqualFold(filter.Order, "asc") {
		direction = "ASC"
	}
	return column + " " + direction + ", id ASC"
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (Product, error) {
	var p Product
	var unit string
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Description, &p.Category, &unit, &p.Price, &p.Cost, &p.Stock, &p.MinStock, &p.Location, &p.Supplier, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	p.Unit = Unit(unit)
	return p, err
}

func scanProductRow(row pgx.Row, id string) (Product, error) {
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, shared.NewNotFoundError("product", id)
		}
		return Product{}, err
	}
	return product, nil
}

func collectLedger(rows pgx.Rows) ([]LedgerEntry, error) {
	defer rows.Close()
	entries := []LedgerEntry{}
	for rows.Next() {
		var e LedgerEntry
		var movement, refType string
		if err := rows.Scan(&e.ID, &e.Seq, &e.ProductID, &movement, &e.Quantity, &e.StockBefore, &e.StockAfter, &e.Reference, &refType, &e.Note, &e.Actor, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Type = MovementType(movement)
		e.ReferenceType = ReferenceType(refType)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
