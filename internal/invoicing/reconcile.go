package invoicing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/invoiceapp/invoiceapp/internal/inventory"
	"github.com/invoiceapp/invoiceapp/internal/shared"
)

// Engine applies invoice payment and cancellation to product stock. Both methods run
// inside the caller's transaction; a returned error means the caller must roll back.
type Engine struct {
	stock  *inventory.Stock
	logger *slog.Logger
}

// NewEngine constructs Engine.
func NewEngine(stock *inventory.Stock, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{stock: stock, logger: logger}
}

// Deduct takes stock for every tracked item not yet deducted and flags it. Items are
// locked in product order so concurrent invoices over the same products cannot deadlock.
// Already flagged items are skipped, so a retry never deducts twice.
func (e *Engine) Deduct(ctx context.Context, tx inventory.TxRepository, inv *Invoice, actor string) ([]inventory.LedgerEntry, error) {
	var entries []inventory.LedgerEntry
	for _, idx := range lockOrder(inv.Items, false) {
		item := &inv.Items[idx]
		entry, err := e.stock.Adjust(ctx, tx, item.ProductID, -item.Quantity, inventory.Reason{
			Reference:     inv.ID,
			ReferenceType: inventory.ReferenceInvoice,
			Note:          fmt.Sprintf("Sold via invoice %s (%s)", inv.ID, item.Description),
			Actor:         actor,
		})
		if err != nil {
			return nil, fmt.Errorf("invoicing: deduct line %d: %w", item.Line, err)
		}
		item.StockDeducted = true
		entries = append(entries, entry)
	}
	return entries, nil
}

// Restore returns stock for every deducted item and clears its flag. Products that no
// longer exist are skipped so cancellation is never blocked by inventory drift.
func (e *Engine) Restore(ctx context.Context, tx inventory.TxRepository, inv *Invoice, actor string) ([]inventory.LedgerEntry, error) {
	var entries []inventory.LedgerEntry
	for _, idx := range lockOrder(inv.Items, true) {
		item := &inv.Items[idx]
		entry, err := e.stock.Adjust(ctx, tx, item.ProductID, item.Quantity, inventory.Reason{
			Reference:     inv.ID,
			ReferenceType: inventory.ReferenceInvoice,
			Note:          fmt.Sprintf("Invoice %s cancelled", inv.ID),
			Actor:         actor,
		})
		if errors.Is(err, shared.ErrNotFound) {
			e.logger.Warn("skip restore for missing product",
				slog.String("invoice_id", inv.ID),
				slog.String("product_id", item.ProductID),
				slog.Int64("quantity", item.Quantity))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("invoicing: restore line %d: %w", item.Line, err)
		}
		item.StockDeducted = false
		entries = append(entries, entry)
	}
	return entries, nil
}

// lockOrder returns indexes of tracked items whose flag equals deducted, sorted by
// product then line.
func lockOrder(items []Item, deducted bool) []int {
	idx := make([]int, 0, len(items))
	for i, item := range items {
		if item.Tracked() && item.StockDeducted == deducted {
			idx = append(idx, i)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ia, ib := items[idx[a]], items[idx[b]]
		if ia.ProductID != ib.ProductID {
			return ia.ProductID < ib.ProductID
		}
		return ia.Line < ib.Line
	})
	return idx
}
