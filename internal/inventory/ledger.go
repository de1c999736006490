package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/invoiceapp/invoiceapp/internal/shared"
)

const (
	// DefaultLedgerLimit caps ledger queries without an explicit limit.
	DefaultLedgerLimit = 100
	// MaxLedgerLimit is the largest page a single ledger query returns.
	MaxLedgerLimit = 1000
)

// LedgerEntry is one immutable stock movement.
type LedgerEntry struct {
	ID            string        `json:"id"`
	Seq           int64         `json:"seq"`
	ProductID     string        `json:"productId"`
	Type          MovementType  `json:"type"`
	Quantity      int64         `json:"quantity"`
	StockBefore   int64         `json:"stockBefore"`
	StockAfter    int64         `json:"stockAfter"`
	Reference     string        `json:"reference"`
	ReferenceType ReferenceType `json:"referenceType"`
	Note          string        `json:"note"`
	Actor         string        `json:"createdBy"`
	CreatedAt     time.Time     `json:"createdAt"`
}

// NewLedgerEntry derives movement type and magnitude from before/after and validates the
// result.
func NewLedgerEntry(id, productID string, before, after int64, reason Reason, at time.Time) (LedgerEntry, error) {
	delta := after - before
	entry := LedgerEntry{
		ID:            id,
		ProductID:     productID,
		Quantity:      abs(delta),
		StockBefore:   before,
		StockAfter:    after,
		Reference:     reason.Reference,
		ReferenceType: reason.ReferenceType,
		Note:          reason.Note,
		Actor:         reason.Actor,
		CreatedAt:     at,
	}
	switch {
	case reason.IsCorrection():
		entry.Type = MovementAdjustment
	case delta > 0:
		entry.Type = MovementIn
	default:
		entry.Type = MovementOut
	}
	if err := entry.Validate(); err != nil {
		return LedgerEntry{}, err
	}
	return entry, nil
}

// Validate enforces the entry invariants.
func (e LedgerEntry) Validate() error {
	if e.ID == "" {
		return shared.NewValidationError("id", "is required")
	}
	if e.ProductID == "" {
		return shared.NewValidationError("productId", "is required")
	}
	if !e.Type.IsValid() {
		return shared.NewValidationError("type", fmt.Sprintf("unknown movement type %q", e.Type))
	}
	if !e.ReferenceType.IsValid() {
		return shared.NewValidationError("referenceType", fmt.Sprintf("unknown reference type %q", e.ReferenceType))
	}
	if e.Quantity <= 0 {
		return shared.NewValidationError("quantity", "must be positive")
	}
	if e.StockBefore < 0 || e.StockAfter < 0 {
		return shared.NewValidationError("stockAfter", "must be non-negative")
	}
	var consistent bool
	switch e.Type {
	case MovementIn:
		consistent = e.StockAfter == e.StockBefore+e.Quantity
	case MovementOut:
		consistent = e.StockAfter == e.StockBefore-e.Quantity
	case MovementAdjustment:
		consistent = abs(e.StockAfter-e.StockBefore) == e.Quantity
	}
	if !consistent {
		return shared.NewValidationError("stockAfter", fmt.Sprintf("%d does not follow %s %d from %d", e.StockAfter, e.Type, e.Quantity, e.StockBefore))
	}
	return nil
}

// Delta returns the signed stock change of the entry.
func (e LedgerEntry) Delta() int64 {
	return e.StockAfter - e.StockBefore
}

// LedgerReader is the read side of the ledger store.
type LedgerReader interface {
	QueryLedger(ctx context.Context, productID string, limit int) ([]LedgerEntry, error)
	LedgerForProduct(ctx context.Context, productID string) ([]LedgerEntry, error)
}

// Ledger appends and reads stock movements.
type Ledger struct {
	reader LedgerReader
}

// NewLedger constructs a Ledger over reader.
func NewLedger(reader LedgerReader) *Ledger {
	return &Ledger{reader: reader}
}

// Append validates entry and writes it inside the caller's transaction.
func (l *Ledger) Append(ctx context.Context, tx TxRepository, entry LedgerEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	if err := tx.InsertLedgerEntry(ctx, entry); err != nil {
		return fmt.Errorf("inventory: append ledger entry: %w", err)
	}
	return nil
}

// Query returns entries newest first. An empty productID spans all products.
func (l *Ledger) Query(ctx context.Context, productID string, limit int) ([]LedgerEntry, error) {
	if l == nil || l.reader == nil {
		return nil, ErrRepositoryNotInitialised
	}
	return l.reader.QueryLedger(ctx, productID, clampLimit(limit))
}

// Replay recomputes stock from entries ordered oldest first, starting at zero. broken is
// true when an entry does not start where the previous one ended.
func Replay(entries []LedgerEntry) (stock int64, broken bool) {
	for _, entry := range entries {
		if entry.StockBefore != stock {
			broken = true
		}
		stock += entry.Delta()
	}
	return stock, broken
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLedgerLimit
	}
	if limit > MaxLedgerLimit {
		return MaxLedgerLimit
	}
	return limit
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
