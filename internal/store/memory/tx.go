package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/invoiceapp/invoiceapp/internal/inventory"
	"github.com/invoiceapp/invoiceapp/internal/invoicing"
	"github.com/invoiceapp/invoiceapp/internal/shared"
)

// txView implements both inventory.TxRepository and invoicing.TxRepository. It is only
// used while the store write lock is held.
type txView struct {
	s *Store
}

func (tx *txView) GetProductForUpdate(_ context.Context, id string) (inventory.Product, error) {
	p, ok := tx.s.products[id]
	if !ok {
		return inventory.Product{}, shared.NewNotFoundError("product", id)
	}
	return p, nil
}

func (tx *txView) InsertProduct(_ context.Context, p inventory.Product) error {
	if _, ok := tx.s.products[p.ID]; ok {
		return fmt.Errorf("memory: product %s: %w", p.ID, shared.ErrDuplicate)
	}
	if tx.skuTaken(p.SKU, p.ID) {
		return fmt.Errorf("memory: sku %s: %w", p.SKU, shared.ErrDuplicate)
	}
	tx.s.products[p.ID] = p
	return nil
}

func (tx *txView) UpdateProduct(_ context.Context, p inventory.Product) error {
	current, ok := tx.s.products[p.ID]
	if !ok {
		return shared.NewNotFoundError("product", p.ID)
	}
	if tx.skuTaken(p.SKU, p.ID) {
		return fmt.Errorf("memory: sku %s: %w", p.SKU, shared.ErrDuplicate)
	}
	p.Stock = current.Stock
	p.CreatedAt = current.CreatedAt
	tx.s.products[p.ID] = p
	return nil
}

func (tx *txView) UpdateStock(_ context.Context, id string, stock int64, at time.Time) error {
	p, ok := tx.s.products[id]
	if !ok {
		return shared.NewNotFoundError("product", id)
	}
	if stock < 0 {
		return fmt.Errorf("memory: product %s: negative stock %d", id, stock)
	}
	p.Stock = stock
	p.UpdatedAt = at
	tx.s.products[id] = p
	return nil
}

func (tx *txView) DeleteProduct(_ context.Context, id string) error {
	if _, ok := tx.s.products[id]; !ok {
		return shared.NewNotFoundError("product", id)
	}
	delete(tx.s.products, id)
	return nil
}

func (tx *txView) CountLedgerEntries(_ context.Context, productID string) (int, error) {
	n := 0
	for _, e := range tx.s.ledger {
		if e.ProductID == productID {
			n++
		}
	}
	return n, nil
}

func (tx *txView) CountInvoiceLines(_ context.Context, productID string) (int, error) {
	n := 0
	for _, inv := range tx.s.invoices {
		for _, item := range inv.Items {
			if item.ProductID == productID {
				n++
			}
		}
	}
	return n, nil
}

func (tx *txView) InsertLedgerEntry(_ context.Context, e inventory.LedgerEntry) error {
	if _, ok := tx.s.products[e.ProductID]; !ok {
		return shared.NewNotFoundError("product", e.ProductID)
	}
	tx.s.ledgerSeq++
	e.Seq = tx.s.ledgerSeq
	tx.s.ledger = append(tx.s.ledger, e)
	return nil
}

func (tx *txView) NextInvoiceNumber(_ context.Context, year int) (int64, error) {
	tx.s.sequences[year]++
	return tx.s.sequences[year], nil
}

func (tx *txView) InsertInvoice(_ context.Context, inv invoicing.Invoice) error {
	if _, ok := tx.s.invoices[inv.ID]; ok {
		return fmt.Errorf("memory: invoice %s: %w", inv.ID, shared.ErrDuplicate)
	}
	tx.s.invoices[inv.ID] = cloneInvoice(inv)
	return nil
}

func (tx *txView) GetInvoiceForUpdate(_ context.Context, id string) (invoicing.Invoice, error) {
	inv, ok := tx.s.invoices[id]
	if !ok {
		return invoicing.Invoice{}, shared.NewNotFoundError("invoice", id)
	}
	return cloneInvoice(inv), nil
}

func (tx *txView) UpdateInvoice(_ context.Context, inv invoicing.Invoice) error {
	if _, ok := tx.s.invoices[inv.ID]; !ok {
		return shared.NewNotFoundError("invoice", inv.ID)
	}
	tx.s.invoices[inv.ID] = cloneInvoice(inv)
	return nil
}

func (tx *txView) DeleteInvoice(_ context.Context, id string) error {
	if _, ok := tx.s.invoices[id]; !ok {
		return shared.NewNotFoundError("invoice", id)
	}
	delete(tx.s.invoices, id)
	return nil
}

func (tx *txView) skuTaken(sku, exceptID string) bool {
	for id, p := range tx.s.products {
		if id != exceptID && p.SKU == sku {
			return true
		}
	}
	return false
}

var (
	_ inventory.TxRepository   = (*txView)(nil)
	_ invoicing.TxRepository   = (*txView)(nil)
	_ inventory.RepositoryPort = (*InventoryRepo)(nil)
	_ invoicing.RepositoryPort = (*InvoiceRepo)(nil)
)
