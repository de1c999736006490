package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/invoiceapp/invoiceapp/internal/invoicing"
	"github.com/invoiceapp/invoiceapp/internal/shared"
)

// Repository exposes the read models analytics aggregates over.
type Repository interface {
	InventoryStats(ctx context.Context) (InventoryStats, error)
	InvoiceStats(ctx context.Context) (InvoiceStats, error)
	// InvoicesIssuedBetween returns invoices issued within [from, to], both days inclusive.
	InvoicesIssuedBetween(ctx context.Context, from, to time.Time) ([]invoicing.Invoice, error)
}

// Service coordinates analytics query execution with the cache layer.
type Service struct {
	repo   Repository
	cache  *Cache
	group  singleflight.Group
	logger *slog.Logger
	clock  func() time.Time
}

// NewService wires a Repository with a Cache helper. cache may be nil.
func NewService(repo Repository, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger, clock: func() time.Time { return time.Now().UTC() }}
}

// WithClock overrides the clock anchoring trailing windows.
func (s *Service) WithClock(clock func() time.Time) *Service {
	if clock != nil {
		s.clock = clock
	}
	return s
}

// InventoryStats returns catalogue totals.
func (s *Service) InventoryStats(ctx context.Context) (InventoryStats, error) {
	var stats InventoryStats
	err := s.load(ctx, keyInventoryStats(), &stats, func(ctx context.Context) (any, error) {
		return s.repo.InventoryStats(ctx)
	})
	return stats, err
}

// InvoiceStats returns counts by status and paid revenue.
func (s *Service) InvoiceStats(ctx context.Context) (InvoiceStats, error) {
	var stats InvoiceStats
	err := s.load(ctx, keyInvoiceStats(), &stats, func(ctx context.Context) (any, error) {
		return s.repo.InvoiceStats(ctx)
	})
	return stats, err
}

// SalesAnalytics aggregates the trailing window of days ending today. days <= 0 uses
// DefaultPeriodDays.
func (s *Service) SalesAnalytics(ctx context.Context, days int) (SalesAnalytics, error) {
	if days <= 0 {
		days = DefaultPeriodDays
	}
	if days > MaxPeriodDays {
		return SalesAnalytics{}, shared.NewValidationError("period", fmt.Sprintf("must be at most %d days", MaxPeriodDays))
	}
	asOf := s.clock()
	var out SalesAnalytics
	err := s.load(ctx, keySales(days, asOf), &out, func(ctx context.Context) (any, error) {
		current, previous := Windows(asOf, days)
		var cur, prev []invoicing.Invoice
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			cur, err = s.repo.InvoicesIssuedBetween(gctx, current.From, current.To)
			return err
		})
		g.Go(func() error {
			var err error
			prev, err = s.repo.InvoicesIssuedBetween(gctx, previous.From, previous.To)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, fmt.Errorf("analytics: load sales period: %w", err)
		}
		return BuildSalesAnalytics(days, current, cur, prev), nil
	})
	return out, err
}

// Warm loads the default read models into the cache.
func (s *Service) Warm(ctx context.Context) error {
	if _, err := s.InventoryStats(ctx); err != nil {
		return err
	}
	if _, err := s.InvoiceStats(ctx); err != nil {
		return err
	}
	_, err := s.SalesAnalytics(ctx, DefaultPeriodDays)
	return err
}

// load resolves key through the versioned cache. Concurrent misses for the same key
// share one loader call.
func (s *Service) load(ctx context.Context, parts []string, dest any, loader func(context.Context) (any, error)) error {
	key, err := s.cache.BuildKey(ctx, parts...)
	if err != nil {
		s.logger.Warn("analytics cache unavailable", slog.Any("error", err))
		var direct *Cache
		return direct.FetchJSON(ctx, strings.Join(parts, ":"), dest, loader)
	}
	ch := s.group.DoChan(key, func() (any, error) {
		return s.cache.fetchRaw(context.WithoutCancel(ctx), key, loader)
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return res.Err
		}
		return json.Unmarshal(res.Val.([]byte), dest)
	}
}
