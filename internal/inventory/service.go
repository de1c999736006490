package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/invoiceapp/invoiceapp/internal/shared"
)

const (
	defaultActor      = "admin"
	defaultManualNote = "Manual stock adjustment"
	initialStockNote  = "Initial stock"
)

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Invalidator drops cached read models after a committed catalogue change.
type Invalidator interface {
	Bump(ctx context.Context) error
}

// Service coordinates inventory operations.
type Service struct {
	repo      RepositoryPort
	audit     AuditPort
	ledger    *Ledger
	stock     *Stock
	movements MovementHandler
	cache     Invalidator
	logger    *slog.Logger
	clock     func() time.Time
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	Logger    *slog.Logger
	Movements MovementHandler
	Cache     Invalidator
	Clock     func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	ledger := NewLedger(repo)
	return &Service{
		repo:      repo,
		audit:     audit,
		ledger:    ledger,
		stock:     NewStock(ledger, repo, clock),
		movements: cfg.Movements,
		cache:     cfg.Cache,
		logger:    logger,
		clock:     clock,
	}
}

// Stock exposes the projection so other modules can move stock inside their own
// transactions.
func (s *Service) Stock() *Stock { return s.stock }

// Ledger exposes the stock ledger.
func (s *Service) Ledger() *Ledger { return s.ledger }

// CreateProduct registers a product. A positive initial stock is booked as an IN entry.
func (s *Service) CreateProduct(ctx context.Context, input ProductInput) (Product, error) {
	product, err := NewProduct(uuid.NewString(), input, s.clock())
	if err != nil {
		return Product{}, err
	}
	var entries []LedgerEntry
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		entries = nil
		if err := tx.InsertProduct(ctx, product); err != nil {
			return err
		}
		if input.Stock <= 0 {
			return nil
		}
		entry, err := s.stock.Adjust(ctx, tx, product.ID, input.Stock, Reason{
			ReferenceType: ReferenceManual,
			Note:          initialStockNote,
			Actor:         actorOrDefault(input.Actor),
		})
		if err != nil {
			return err
		}
		entries = append(entries, entry)
		return nil
	})
	if err != nil {
		return Product{}, err
	}
	if len(entries) > 0 {
		product.Stock = entries[0].StockAfter
	}
	s.publish(ctx, "product.create", entries)
	s.invalidate(ctx)
	s.record(ctx, input.Actor, "product.create", product.ID, map[string]any{"sku": product.SKU, "stock": product.Stock})
	return product, nil
}

// UpdateProduct replaces editable attributes. Stock changes only through adjustments.
func (s *Service) UpdateProduct(ctx context.Context, id string, input ProductInput) (Product, error) {
	if id == "" {
		return Product{}, ErrProductIDRequired
	}
	var updated Product
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetProductForUpdate(ctx, id)
		if err != nil {
			return err
		}
		updated, err = current.ApplyUpdate(input, s.clock())
		if err != nil {
			return err
		}
		return tx.UpdateProduct(ctx, updated)
	})
	if err != nil {
		return Product{}, err
	}
	s.invalidate(ctx)
	s.record(ctx, input.Actor, "product.update", id, map[string]any{"sku": updated.SKU})
	return updated, nil
}

// DeleteProduct removes a product. Products with ledger history or invoice lines are
// deactivated instead so history stays replayable and those invoices can still be paid
// or cancelled; deactivated reports which path was taken.
func (s *Service) DeleteProduct(ctx context.Context, id string) (deactivated bool, err error) {
	if id == "" {
		return false, ErrProductIDRequired
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		product, err := tx.GetProductForUpdate(ctx, id)
		if err != nil {
			return err
		}
		entries, err := tx.CountLedgerEntries(ctx, id)
		if err != nil {
			return err
		}
		lines, err := tx.CountInvoiceLines(ctx, id)
		if err != nil {
			return err
		}
		if entries+lines == 0 {
			deactivated = false
			return tx.DeleteProduct(ctx, id)
		}
		deactivated = true
		product.Active = false
		product.UpdatedAt = s.clock()
		return tx.UpdateProduct(ctx, product)
	})
	if err != nil {
		return false, err
	}
	s.invalidate(ctx)
	action := "product.delete"
	if deactivated {
		action = "product.deactivate"
	}
	s.record(ctx, "", action, id, nil)
	return deactivated, nil
}

// GetProduct returns one product.
func (s *Service) GetProduct(ctx context.Context, id string) (Product, error) {
	if id == "" {
		return Product{}, ErrProductIDRequired
	}
	return s.repo.GetProduct(ctx, id)
}

// ListProducts returns a page of products matching filter.
func (s *Service) ListProducts(ctx context.Context, filter ProductFilter) ([]Product, shared.Pagination, error) {
	page := shared.NewPagination(filter.Page, filter.PerPage, 0)
	filter.Page, filter.PerPage = page.Page, page.PerPage
	products, total, err := s.repo.ListProducts(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return products, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// AllProducts returns every product matching filter without paging.
func (s *Service) AllProducts(ctx context.Context, filter ProductFilter) ([]Product, error) {
	filter.Page, filter.PerPage = 0, 0
	products, _, err := s.repo.ListProducts(ctx, filter)
	return products, err
}

// LowStock lists active products at or below their minimum, lowest stock first.
func (s *Service) LowStock(ctx context.Context) ([]Product, error) {
	active := true
	return s.AllProducts(ctx, ProductFilter{LowStock: true, Active: &active, SortBy: "stock", Order: "asc"})
}

// History returns the newest ledger entries of one product.
func (s *Service) History(ctx context.Context, productID string, limit int) ([]LedgerEntry, error) {
	if _, err := s.GetProduct(ctx, productID); err != nil {
		return nil, err
	}
	return s.ledger.Query(ctx, productID, limit)
}

// StockHistory returns the newest ledger entries across all products.
func (s *Service) StockHistory(ctx context.Context, limit int) ([]LedgerEntry, error) {
	return s.ledger.Query(ctx, "", limit)
}

// GetStock returns the current stock of a product.
func (s *Service) GetStock(ctx context.Context, productID string) (int64, error) {
	return s.stock.Get(ctx, productID)
}

// AdjustStock moves stock by delta in its own transaction.
func (s *Service) AdjustStock(ctx context.Context, productID string, delta int64, reason Reason) (LedgerEntry, error) {
	var entry LedgerEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entry, err = s.stock.Adjust(ctx, tx, productID, delta, reason)
		return err
	})
	if err != nil {
		return LedgerEntry{}, err
	}
	s.publish(ctx, "stock.adjust", []LedgerEntry{entry})
	return entry, nil
}

// ApplyManualAdjustment books an operator adjustment and returns the updated product.
func (s *Service) ApplyManualAdjustment(ctx context.Context, productID string, req ManualAdjustment) (Product, LedgerEntry, error) {
	if productID == "" {
		return Product{}, LedgerEntry{}, ErrProductIDRequired
	}
	if err := shared.ValidateStruct(req); err != nil {
		return Product{}, LedgerEntry{}, err
	}
	if req.Type != MovementAdjustment && req.Quantity <= 0 {
		return Product{}, LedgerEntry{}, shared.NewValidationError("quantity", "must be positive")
	}
	note := req.Notes
	if note == "" {
		note = defaultManualNote
	}
	reason := Reason{ReferenceType: ReferenceManual, Note: note, Actor: actorOrDefault(req.Actor)}

	var entry LedgerEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		switch req.Type {
		case MovementIn:
			entry, err = s.stock.Adjust(ctx, tx, productID, req.Quantity, reason)
		case MovementOut:
			entry, err = s.stock.Adjust(ctx, tx, productID, -req.Quantity, reason)
		default:
			entry, err = s.stock.SetLevel(ctx, tx, productID, req.Quantity, reason)
		}
		return err
	})
	if err != nil {
		return Product{}, LedgerEntry{}, err
	}
	s.publish(ctx, "stock.manual", []LedgerEntry{entry})
	s.record(ctx, reason.Actor, "stock.adjust", productID, map[string]any{
		"type":     string(entry.Type),
		"quantity": entry.Quantity,
		"before":   entry.StockBefore,
		"after":    entry.StockAfter,
	})
	product, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return Product{}, LedgerEntry{}, err
	}
	return product, entry, nil
}

// VerifyLedger replays every product's ledger and reports products whose stored stock
// or entry chain disagrees with it.
func (s *Service) VerifyLedger(ctx context.Context) ([]Drift, error) {
	products, err := s.AllProducts(ctx, ProductFilter{SortBy: "sku", Order: "asc"})
	if err != nil {
		return nil, err
	}
	drifts := []Drift{}
	for _, product := range products {
		entries, err := s.repo.LedgerForProduct(ctx, product.ID)
		if err != nil {
			return nil, fmt.Errorf("inventory: ledger for %s: %w", product.SKU, err)
		}
		replayed, broken := Replay(entries)
		if replayed == product.Stock && !broken {
			continue
		}
		drifts = append(drifts, Drift{
			ProductID:   product.ID,
			SKU:         product.SKU,
			Stored:      product.Stock,
			FromLedger:  replayed,
			BrokenChain: broken,
		})
	}
	return drifts, nil
}

func (s *Service) publish(ctx context.Context, source string, entries []LedgerEntry) {
	if s.movements == nil || len(entries) == 0 {
		return
	}
	s.movements.HandleStockMoved(ctx, MovementEvent{Source: source, Entries: entries})
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("analytics cache bump failed", slog.Any("error", err))
	}
}

func (s *Service) record(ctx context.Context, actor, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		Actor:    actorOrDefault(actor),
		Action:   action,
		Entity:   "product",
		EntityID: entityID,
		Meta:     meta,
		At:       s.clock(),
	})
	if err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

func actorOrDefault(actor string) string {
	if actor == "" {
		return defaultActor
	}
	return actor
}
