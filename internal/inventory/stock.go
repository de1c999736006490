package inventory

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/invoiceapp/invoiceapp/internal/shared"
)

// ProductReader loads products outside a transaction.
type ProductReader interface {
	GetProduct(ctx context.Context, id string) (Product, error)
}

// Stock maintains Product.Stock as a projection of the ledger. It is the only writer of
// the stock column.
type Stock struct {
	ledger *Ledger
	reader ProductReader
	clock  func() time.Time
	newID  func() string
}

// NewStock wires the projection to its ledger. A nil clock defaults to UTC now.
func NewStock(ledger *Ledger, reader ProductReader, clock func() time.Time) *Stock {
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &Stock{ledger: ledger, reader: reader, clock: clock, newID: uuid.NewString}
}

// Product loads a product outside any transaction.
func (s *Stock) Product(ctx context.Context, productID string) (Product, error) {
	if productID == "" {
		return Product{}, shared.NewValidationError("productId", "is required")
	}
	return s.reader.GetProduct(ctx, productID)
}

// Get returns the current quantity of a product.
func (s *Stock) Get(ctx context.Context, productID string) (int64, error) {
	if productID == "" {
		return 0, shared.NewValidationError("productId", "is required")
	}
	product, err := s.reader.GetProduct(ctx, productID)
	if err != nil {
		return 0, err
	}
	return product.Stock, nil
}

// Adjust moves stock by delta and appends the matching ledger entry in tx. The product
// row stays locked until tx ends.
func (s *Stock) Adjust(ctx context.Context, tx TxRepository, productID string, delta int64, reason Reason) (LedgerEntry, error) {
	if productID == "" {
		return LedgerEntry{}, shared.NewValidationError("productId", "is required")
	}
	if delta == 0 {
		return LedgerEntry{}, shared.NewValidationError("quantity", "must be non-zero")
	}
	if delta > MaxQuantity || delta < -MaxQuantity {
		return LedgerEntry{}, shared.NewValidationError("quantity", fmt.Sprintf("must be at most %d", MaxQuantity))
	}
	product, err := tx.GetProductForUpdate(ctx, productID)
	if err != nil {
		return LedgerEntry{}, err
	}
	return s.apply(ctx, tx, product, delta, reason)
}

// SetLevel corrects stock to an absolute level with an ADJUSTMENT entry.
func (s *Stock) SetLevel(ctx context.Context, tx TxRepository, productID string, level int64, reason Reason) (LedgerEntry, error) {
	if productID == "" {
		return LedgerEntry{}, shared.NewValidationError("productId", "is required")
	}
	if level < 0 {
		return LedgerEntry{}, shared.NewValidationError("quantity", "must be non-negative")
	}
	if level > MaxQuantity {
		return LedgerEntry{}, shared.NewValidationError("quantity", fmt.Sprintf("must be at most %d", MaxQuantity))
	}
	product, err := tx.GetProductForUpdate(ctx, productID)
	if err != nil {
		return LedgerEntry{}, err
	}
	delta := level - product.Stock
	if delta == 0 {
		return LedgerEntry{}, shared.NewValidationError("quantity", fmt.Sprintf("stock is already %d", level))
	}
	reason.ReferenceType = ReferenceAdjustment
	return s.apply(ctx, tx, product, delta, reason)
}

func (s *Stock) apply(ctx context.Context, tx TxRepository, product Product, delta int64, reason Reason) (LedgerEntry, error) {
	before := product.Stock
	if delta > 0 && before > math.MaxInt64-delta {
		return LedgerEntry{}, shared.NewValidationError("quantity", "would overflow the stock level")
	}
	after := before + delta
	if after < 0 {
		return LedgerEntry{}, &shared.InsufficientStockError{ProductID: product.ID, Available: before, Requested: -delta}
	}
	if reason.ReferenceType == "" {
		reason.ReferenceType = ReferenceManual
	}
	now := s.clock()
	entry, err := NewLedgerEntry(s.newID(), product.ID, before, after, reason, now)
	if err != nil {
		return LedgerEntry{}, err
	}
	if err := tx.UpdateStock(ctx, product.ID, after, now); err != nil {
		return LedgerEntry{}, fmt.Errorf("inventory: update stock: %w", err)
	}
	if err := s.ledger.Append(ctx, tx, entry); err != nil {
		return LedgerEntry{}, err
	}
	return entry, nil
}
