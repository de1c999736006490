package app

import (
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/invoiceapp/invoiceapp/internal/analytics"
	"github.com/invoiceapp/invoiceapp/internal/audit"
	"github.com/invoiceapp/invoiceapp/internal/inventory"
	"github.com/invoiceapp/invoiceapp/internal/invoicing"
	"github.com/invoiceapp/invoiceapp/internal/observability"
)

// Services are the domain services shared by the API and the worker.
type Services struct {
	Inventory *inventory.Service
	Invoicing *invoicing.Service
	Analytics *analytics.Service
	Audit     *audit.Service
	Cache     *analytics.Cache
}

// BuildServices wires the domain services over stores. redisClient and metrics may be
// nil; analytics then loads straight through and nothing is counted.
func BuildServices(cfg *Config, stores *Stores, redisClient *redis.Client, metrics *observability.Metrics, logger *slog.Logger) *Services {
	cache := analytics.NewCache(redisClient, cfg.AnalyticsCacheTTL).WithLogger(logger)

	var movements inventory.MovementHandlers
	if metrics != nil {
		movements = append(movements, metrics)
	}
	movements = append(movements, cache)

	inventorySvc := inventory.NewService(stores.Inventory, stores.Audit, inventory.ServiceConfig{
		Logger:    logger,
		Movements: movements,
		Cache:     cache,
	})
	invoiceCfg := invoicing.ServiceConfig{
		Logger:      logger,
		Movements:   movements,
		Idempotency: stores.Keys,
		Cache:       cache,
	}
	if metrics != nil {
		invoiceCfg.Observer = metrics
	}
	invoiceSvc := invoicing.NewService(stores.Invoicing, inventorySvc.Stock(), stores.Audit, invoiceCfg)

	return &Services{
		Inventory: inventorySvc,
		Invoicing: invoiceSvc,
		Analytics: analytics.NewService(stores.Analytics, cache, logger),
		Audit:     audit.NewService(stores.Timeline),
		Cache:     cache,
	}
}
