package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/invoiceapp/invoiceapp/internal/analytics"
	"github.com/invoiceapp/invoiceapp/internal/audit"
	"github.com/invoiceapp/invoiceapp/internal/inventory"
	"github.com/invoiceapp/invoiceapp/internal/invoicing"
	"github.com/invoiceapp/invoiceapp/internal/platform/db"
	"github.com/invoiceapp/invoiceapp/internal/shared"
	"github.com/invoiceapp/invoiceapp/internal/store/memory"
)

// Stores bundles the repository ports of the selected backend.
type Stores struct {
	Inventory inventory.RepositoryPort
	Invoicing invoicing.RepositoryPort
	Analytics analytics.Repository
	Audit     invoicing.AuditPort
	Keys      invoicing.IdempotencyPort
	Timeline  audit.Repository
	Pool      *pgxpool.Pool
}

// Close releases backend resources.
func (s *Stores) Close() {
	if s != nil && s.Pool != nil {
		s.Pool.Close()
	}
}

// OpenStore connects the backend named by cfg.StoreDriver.
func OpenStore(ctx context.Context, cfg *Config, logger *slog.Logger) (*Stores, error) {
	switch cfg.StoreDriver {
	case StoreDriverMemory:
		logger.Warn("using in-memory store; data is lost on restart")
		return MemoryStores(memory.New()), nil
	case StoreDriverPostgres:
		pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns})
		if err != nil {
			return nil, err
		}
		if cfg.AutoMigrate {
			if err := db.Migrate(ctx, pool, "up"); err != nil {
				pool.Close()
				return nil, err
			}
			logger.Info("database migrated")
		}
		return PostgresStores(pool), nil
	default:
		return nil, fmt.Errorf("app: unknown store driver %q", cfg.StoreDriver)
	}
}

// PostgresStores wires the pgx repositories over pool.
func PostgresStores(pool *pgxpool.Pool) *Stores {
	invoices := invoicing.NewRepository(pool)
	return &Stores{
		Inventory: inventory.NewRepository(pool),
		Invoicing: invoices,
		Analytics: analytics.NewRepository(pool, invoices),
		Audit:     shared.NewAuditLogger(pool),
		Keys:      shared.NewIdempotencyStore(pool),
		Timeline:  audit.NewRepository(pool),
		Pool:      pool,
	}
}

// MemoryStores exposes an in-memory store through the repository ports.
func MemoryStores(store *memory.Store) *Stores {
	return &Stores{
		Inventory: store.Inventory(),
		Invoicing: store.Invoicing(),
		Analytics: store.Analytics(),
		Audit:     store,
		Keys:      store,
		Timeline:  store.AuditTimeline(),
	}
}
