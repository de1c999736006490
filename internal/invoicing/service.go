package invoicing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/invoiceapp/invoiceapp/internal/inventory"
	"github.com/invoiceapp/invoiceapp/internal/shared"
)

const idempotencyModule = "invoices"

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort guards invoice creation against replayed requests.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Invalidator drops cached read models after a committed change.
type Invalidator interface {
	Bump(ctx context.Context) error
}

// ActionObserver counts lifecycle actions by outcome.
type ActionObserver interface {
	ObserveInvoiceAction(action, outcome string)
}

// ServiceConfig groups optional collaborators.
type ServiceConfig struct {
	Logger      *slog.Logger
	Movements   inventory.MovementHandler
	Idempotency IdempotencyPort
	Cache       Invalidator
	Observer    ActionObserver
	Clock       func() time.Time
}

// Service coordinates the invoice lifecycle.
type Service struct {
	repo        RepositoryPort
	stock       *inventory.Stock
	engine      *Engine
	audit       AuditPort
	idempotency IdempotencyPort
	movements   inventory.MovementHandler
	cache       Invalidator
	observer    ActionObserver
	logger      *slog.Logger
	clock       func() time.Time
}

// NewService builds Service. stock must share the store behind repo.
func NewService(repo RepositoryPort, stock *inventory.Stock, audit AuditPort, cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		repo:        repo,
		stock:       stock,
		engine:      NewEngine(stock, logger),
		audit:       audit,
		idempotency: cfg.Idempotency,
		movements:   cfg.Movements,
		cache:       cfg.Cache,
		observer:    cfg.Observer,
		logger:      logger,
		clock:       clock,
	}
}

// Create registers a pending invoice numbered INV-{year}-{seq}. A non-empty
// idempotencyKey makes a replayed request fail with ErrIdempotencyConflict.
func (s *Service) Create(ctx context.Context, input InvoiceInput, idempotencyKey string) (Invoice, error) {
	now := s.clock()
	inv, err := NewInvoice("", input, now)
	if err != nil {
		return Invoice{}, err
	}
	if err := s.checkProducts(ctx, inv.Items, nil); err != nil {
		return Invoice{}, err
	}

	insertedKey := false
	if idempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, idempotencyKey, idempotencyModule); err != nil {
			return Invoice{}, err
		}
		insertedKey = true
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		year := inv.IssueDate.Year()
		seq, err := tx.NextInvoiceNumber(ctx, year)
		if err != nil {
			return fmt.Errorf("invoicing: next number: %w", err)
		}
		inv.ID = FormatNumber(year, seq)
		return tx.InsertInvoice(ctx, inv)
	})
	if err != nil {
		if insertedKey {
			_ = s.idempotency.Delete(ctx, idempotencyKey)
		}
		return Invoice{}, err
	}
	s.invalidate(ctx)
	s.record(ctx, input.Actor, "invoice.create", inv.ID, map[string]any{"total": inv.Total().String(), "items": len(inv.Items)})
	return inv, nil
}

// Get returns one invoice.
func (s *Service) Get(ctx context.Context, id string) (Invoice, error) {
	if id == "" {
		return Invoice{}, ErrInvoiceIDRequired
	}
	return s.repo.GetInvoice(ctx, id)
}

// List returns a page of invoices.
func (s *Service) List(ctx context.Context, filter Filter) ([]Invoice, shared.Pagination, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, shared.Pagination{}, shared.NewValidationError("status", "must be one of [pending paid overdue]")
	}
	page := shared.NewPagination(filter.Page, filter.PerPage, 0)
	filter.Page, filter.PerPage = page.Page, page.PerPage
	invoices, total, err := s.repo.ListInvoices(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return invoices, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// Update edits client details, dates and items. A status in the input is applied as
// SetStatus in the same transaction.
func (s *Service) Update(ctx context.Context, id string, input InvoiceInput) (Invoice, error) {
	if id == "" {
		return Invoice{}, ErrInvoiceIDRequired
	}
	if input.Status == StatusPaid {
		return Invoice{}, shared.NewValidationError("status", "use the pay action to mark an invoice paid")
	}
	stored, err := s.Get(ctx, id)
	if err != nil {
		return Invoice{}, err
	}
	existing := make(map[string]struct{}, len(stored.Items))
	for _, item := range stored.Items {
		if item.Tracked() {
			existing[item.ProductID] = struct{}{}
		}
	}
	lines := make([]Item, len(input.Items))
	for i, in := range input.Items {
		lines[i] = Item{Line: i + 1, ProductID: strings.TrimSpace(in.ProductID)}
	}
	if err := s.checkProducts(ctx, lines, existing); err != nil {
		return Invoice{}, err
	}
	var updated Invoice
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetInvoiceForUpdate(ctx, id)
		if err != nil {
			return err
		}
		updated, err = current.ApplyUpdate(input, s.clock())
		if err != nil {
			return err
		}
		if input.Status != "" && input.Status != updated.Status {
			updated = updated.withStatus(input.Status, s.clock())
		}
		return tx.UpdateInvoice(ctx, updated)
	})
	if err != nil {
		return Invoice{}, err
	}
	s.invalidate(ctx)
	s.record(ctx, input.Actor, "invoice.update", id, nil)
	return updated, nil
}

// MarkPaid applies MarkPaid.
func (s *Service) MarkPaid(ctx context.Context, id, actor string) (Invoice, error) {
	return s.Apply(ctx, id, MarkPaid{Actor: actor})
}

// Cancel applies Cancel and returns the invoice as it was when destroyed.
func (s *Service) Cancel(ctx context.Context, id, actor, reason string) (Invoice, error) {
	return s.Apply(ctx, id, Cancel{Actor: actor, Reason: reason})
}

// SetStatus applies SetStatus.
func (s *Service) SetStatus(ctx context.Context, id string, status Status, actor string) (Invoice, error) {
	return s.Apply(ctx, id, SetStatus{Status: status, Actor: actor})
}

// Apply runs one lifecycle action in a single transaction. MarkPaid deducts stock for
// every tracked item or for none of them.
func (s *Service) Apply(ctx context.Context, id string, action Action) (Invoice, error) {
	if id == "" {
		return Invoice{}, ErrInvoiceIDRequired
	}
	if action == nil {
		return Invoice{}, shared.NewValidationError("action", "is required")
	}
	actor := actorOf(action)
	if actor == "" {
		actor = "admin"
	}
	var (
		result  Invoice
		entries []inventory.LedgerEntry
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		entries = nil
		inv, err := tx.GetInvoiceForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := CheckTransition(inv, action); err != nil {
			return err
		}
		now := s.clock()
		switch a := action.(type) {
		case MarkPaid:
			entries, err = s.engine.Deduct(ctx, tx, &inv, actor)
			if err != nil {
				return err
			}
			inv = inv.withStatus(StatusPaid, now)
			if err := tx.UpdateInvoice(ctx, inv); err != nil {
				return err
			}
		case Cancel:
			entries, err = s.engine.Restore(ctx, tx, &inv, actor)
			if err != nil {
				return err
			}
			if err := tx.DeleteInvoice(ctx, inv.ID); err != nil {
				return err
			}
		case SetStatus:
			inv = inv.withStatus(a.Status, now)
			if err := tx.UpdateInvoice(ctx, inv); err != nil {
				return err
			}
		}
		result = inv
		return nil
	})
	s.observe(action.Name(), err)
	if err != nil {
		return Invoice{}, err
	}
	if len(entries) > 0 && s.movements != nil {
		s.movements.HandleStockMoved(ctx, inventory.MovementEvent{Source: "invoice." + action.Name(), Entries: entries})
	}
	s.invalidate(ctx)
	meta := map[string]any{"status": string(result.Status), "movements": len(entries)}
	if c, ok := action.(Cancel); ok && c.Reason != "" {
		meta["reason"] = c.Reason
	}
	s.record(ctx, actor, "invoice."+action.Name(), id, meta)
	return result, nil
}

// SweepOverdue moves pending invoices due before asOf to overdue and returns how many
// changed. Invoices paid or cancelled since listing are left alone.
func (s *Service) SweepOverdue(ctx context.Context, asOf time.Time) (int, error) {
	candidates, err := s.repo.ListOverdueCandidates(ctx, asOf)
	if err != nil {
		return 0, err
	}
	swept := 0
	for _, candidate := range candidates {
		changed := false
		err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			changed = false
			inv, err := tx.GetInvoiceForUpdate(ctx, candidate.ID)
			if err != nil {
				return err
			}
			if !inv.IsOverdueAt(asOf) {
				return nil
			}
			changed = true
			return tx.UpdateInvoice(ctx, inv.withStatus(StatusOverdue, s.clock()))
		})
		if errors.Is(err, shared.ErrNotFound) {
			continue
		}
		if err != nil {
			return swept, fmt.Errorf("invoicing: sweep %s: %w", candidate.ID, err)
		}
		if changed {
			swept++
			s.record(ctx, "system", "invoice.overdue", candidate.ID, nil)
		}
	}
	if swept > 0 {
		s.invalidate(ctx)
	}
	return swept, nil
}

// checkProducts runs outside any transaction. Inactive products are refused unless
// listed in existing, the products already on the invoice being edited.
func (s *Service) checkProducts(ctx context.Context, items []Item, existing map[string]struct{}) error {
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if !item.Tracked() {
			continue
		}
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		product, err := s.stock.Product(ctx, item.ProductID)
		if err != nil {
			return fmt.Errorf("invoicing: line %d: %w", item.Line, err)
		}
		if _, kept := existing[item.ProductID]; !product.Active && !kept {
			return shared.NewValidationError(fmt.Sprintf("items[%d].productId", item.Line-1), fmt.Sprintf("product %s is inactive", product.SKU))
		}
	}
	return nil
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("analytics cache bump failed", slog.Any("error", err))
	}
}

func (s *Service) observe(action string, err error) {
	if s.observer == nil {
		return
	}
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, shared.ErrInsufficientStock):
		outcome = "insufficient_stock"
	case errors.Is(err, shared.ErrInvalidTransition):
		outcome = "invalid_transition"
	case errors.Is(err, shared.ErrNotFound):
		outcome = "not_found"
	default:
		outcome = "error"
	}
	s.observer.ObserveInvoiceAction(action, outcome)
}

func (s *Service) record(ctx context.Context, actor, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if actor == "" {
		actor = "admin"
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		Actor:    actor,
		Action:   action,
		Entity:   "invoice",
		EntityID: entityID,
		Meta:     meta,
		At:       s.clock(),
	})
	if err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
