package invoicing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/invoiceapp/invoiceapp/internal/inventory"
	"github.com/invoiceapp/invoiceapp/internal/platform/db"
	"github.com/invoiceapp/invoiceapp/internal/shared"
)

// RepositoryPort abstracts invoice persistence for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetInvoice(ctx context.Context, id string) (Invoice, error)
	ListInvoices(ctx context.Context, filter Filter) ([]Invoice, int, error)
	ListOverdueCandidates(ctx context.Context, asOf time.Time) ([]Invoice, error)
}

// TxRepository carries the invoice writes and, through the embedded inventory port,
// the stock writes of one transaction.
type TxRepository interface {
	inventory.TxRepository
	NextInvoiceNumber(ctx context.Context, year int) (int64, error)
	InsertInvoice(ctx context.Context, inv Invoice) error
	GetInvoiceForUpdate(ctx context.Context, id string) (Invoice, error)
	UpdateInvoice(ctx context.Context, inv Invoice) error
	DeleteInvoice(ctx context.Context, id string) error
}

// Repository persists invoices in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type dbtx interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txRepository struct {
	inventory.TxRepository
	tx pgx.Tx
}

// WithTx executes fn inside a transaction shared with inventory writes.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil || r.pool == nil {
		return ErrRepositoryNotInitialised
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{TxRepository: inventory.NewTxRepository(tx), tx: tx})
	})
}

const invoiceColumns = `id, client_name, client_email, status, issue_date, due_date, tax_rate, notes, paid_at, created_at, updated_at`

// GetInvoice loads an invoice with its items.
func (r *Repository) GetInvoice(ctx context.Context, id string) (Invoice, error) {
	if r == nil || r.pool == nil {
		return Invoice{}, ErrRepositoryNotInitialised
	}
	return loadInvoice(ctx, r.pool, id, false)
}

// ListInvoices returns one page of invoices, newest issue date first. PerPage <= 0
// returns every match.
func (r *Repository) ListInvoices(ctx context.Context, filter Filter) ([]Invoice, int, error) {
	if r == nil || r.pool == nil {
		return nil, 0, ErrRepositoryNotInitialised
	}
	where, args := invoiceWhere(filter)
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM invoices`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	query := `SELECT ` + invoiceColumns + ` FROM invoices` + where + ` ORDER BY issue_date DESC, created_at DESC, id DESC`
	if filter.PerPage > 0 {
		page := shared.NewPagination(filter.Page, filter.PerPage, total)
		args = append(args, page.PerPage, page.Offset())
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}
	invoices, err := queryInvoices(ctx, r.pool, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return invoices, total, nil
}

// ListOverdueCandidates returns pending invoices due before asOf's date.
func (r *Repository) ListOverdueCandidates(ctx context.Context, asOf time.Time) ([]Invoice, error) {
	if r == nil || r.pool == nil {
		return nil, ErrRepositoryNotInitialised
	}
	return queryInvoices(ctx, r.pool, `SELECT `+invoiceColumns+` FROM invoices
WHERE status = 'pending' AND due_date < $1
ORDER BY due_date ASC, id ASC`, truncateDay(asOf))
}

func (r *txRepository) NextInvoiceNumber(ctx context.Context, year int) (int64, error) {
	var seq int64
	err := r.tx.QueryRow(ctx, `
		INSERT INTO invoice_sequences (year, last_value)
		VALUES ($1, 1)
		ON CONFLICT (year)
		DO UPDATE SET last_value = invoice_sequences.last_value + 1
		RETURNING last_value
	`, year).Scan(&seq)
	return seq, err
}

func (r *txRepository) InsertInvoice(ctx context.Context, inv Invoice) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO invoices (id, client_name, client_email, status, issue_date, due_date, tax_rate, total, notes, paid_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		inv.ID, inv.ClientName, inv.ClientEmail, string(inv.Status), inv.IssueDate, inv.DueDate, inv.TaxRate, inv.Total(), inv.Notes, inv.PaidAt, inv.CreatedAt, inv.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("invoicing: invoice %s: %w", inv.ID, shared.ErrDuplicate)
	}
	if err != nil {
		return err
	}
	return r.insertItems(ctx, inv)
}

func (r *txRepository) GetInvoiceForUpdate(ctx context.Context, id string) (Invoice, error) {
	return loadInvoice(ctx, r.tx, id, true)
}

func (r *txRepository) UpdateInvoice(ctx context.Context, inv Invoice) error {
	tag, err := r.tx.Exec(ctx, `UPDATE invoices
SET client_name=$2, client_email=$3, status=$4, issue_date=$5, due_date=$6, tax_rate=$7, total=$8, notes=$9, paid_at=$10, updated_at=$11
WHERE id = $1`,
		inv.ID, inv.ClientName, inv.ClientEmail, string(inv.Status), inv.IssueDate, inv.DueDate, inv.TaxRate, inv.Total(), inv.Notes, inv.PaidAt, inv.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NewNotFoundError("invoice", inv.ID)
	}
	if _, err := r.tx.Exec(ctx, `DELETE FROM invoice_items WHERE invoice_id = $1`, inv.ID); err != nil {
		return err
	}
	return r.insertItems(ctx, inv)
}

func (r *txRepository) DeleteInvoice(ctx context.Context, id string) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM invoices WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NewNotFoundError("invoice", id)
	}
	return nil
}

func (r *txRepository) insertItems(ctx context.Context, inv Invoice) error {
	batch := &pgx.Batch{}
	for _, item := range inv.Items {
		batch.Queue(`INSERT INTO invoice_items (invoice_id, line, product_id, description, quantity, price, stock_deducted)
VALUES ($1, $2, NULLIF($3, '')::uuid, $4, $5, $6, $7)`,
			inv.ID, item.Line, item.ProductID, item.Description, item.Quantity, item.Price, item.StockDeducted)
	}
	if batch.Len() == 0 {
		return nil
	}
	return r.tx.SendBatch(ctx, batch).Close()
}

func invoiceWhere(filter Filter) (string, []any) {
	var clauses []string
	var args []any
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+search+"%")
		n := len(args)
		clauses = append(clauses, fmt.Sprintf("(id ILIKE $%d OR client_name ILIKE $%d OR client_email ILIKE $%d)", n, n, n))
	}
	if !filter.IssuedFrom.IsZero() {
		args = append(args, truncateDay(filter.IssuedFrom))
		clauses = append(clauses, fmt.Sprintf("issue_date >= $%d", len(args)))
	}
	if !filter.IssuedTo.IsZero() {
		args = append(args, truncateDay(filter.IssuedTo))
		clauses = append(clauses, fmt.Sprintf("issue_date <= $%d", len(args)))
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func loadInvoice(ctx context.Context, q dbtx, id string, forUpdate bool) (Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	inv, err := scanInvoice(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, shared.NewNotFoundError("invoice", id)
		}
		return Invoice{}, err
	}
	items, err := loadItems(ctx, q, []string{id})
	if err != nil {
		return Invoice{}, err
	}
	inv.Items = items[id]
	return inv, nil
}

func queryInvoices(ctx context.Context, q dbtx, query string, args ...any) ([]Invoice, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	invoices := []Invoice{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(invoices) == 0 {
		return invoices, nil
	}
	ids := make([]string, len(invoices))
	for i, inv := range invoices {
		ids[i] = inv.ID
	}
	items, err := loadItems(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	for i := range invoices {
		invoices[i].Items = items[invoices[i].ID]
	}
	return invoices, nil
}

func loadItems(ctx context.Context, q dbtx, ids []string) (map[string][]Item, error) {
	rows, err := q.Query(ctx, `SELECT invoice_id, line, COALESCE(product_id::text, ''), description, quantity, price, stock_deducted
FROM invoice_items
WHERE invoice_id = ANY($1)
ORDER BY invoice_id, line`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string][]Item, len(ids))
	for rows.Next() {
		var invoiceID string
		var item Item
		if err := rows.Scan(&invoiceID, &item.Line, &item.ProductID, &item.Description, &item.Quantity, &item.Price, &item.StockDeducted); err != nil {
			return nil, err
		}
		out[invoiceID] = append(out[invoiceID], item)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvoice(row rowScanner) (Invoice, error) {
	var inv Invoice
	var status string
	err := row.Scan(&inv.ID, &inv.ClientName, &inv.ClientEmail, &status, &inv.IssueDate, &inv.DueDate, &inv.TaxRate, &inv.Notes, &inv.PaidAt, &inv.CreatedAt, &inv.UpdatedAt)
	inv.Status = Status(status)
	return inv, err
}
