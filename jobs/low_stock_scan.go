package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/invoiceapp/invoiceapp/internal/inventory"
	jobmetrics "github.com/invoiceapp/invoiceapp/internal/jobs"
)

// LowStockLister lists active products at or below their minimum stock.
type LowStockLister interface {
	LowStock(ctx context.Context) ([]inventory.Product, error)
}

// LowStockScanJob publishes the low-stock gauge and logs each product.
type LowStockScanJob struct {
	Products LowStockLister
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewLowStockScanJob wires dependencies for the scan handler.
func NewLowStockScanJob(products LowStockLister, logger *slog.Logger, metrics *jobmetrics.Metrics) *LowStockScanJob {
	return &LowStockScanJob{Products: products, Logger: logger, Metrics: metrics}
}

// Handle processes low-stock scan tasks.
func (j *LowStockScanJob) Handle(ctx context.Context, _ *asynq.Task) (resultErr error) {
	if j == nil || j.Products == nil {
		return errors.New("low stock scan: handler not configured")
	}
	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	tracker := metrics.Track(TaskLowStockScan)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := jobLogger(j.Logger, TaskLowStockScan)
	products, err := j.Products.LowStock(ctx)
	if err != nil {
		logger.Error("list low stock", slog.Any("error", err))
		return err
	}
	metrics.SetLowStock(len(products))
	for _, p := range products {
		logger.Warn("product low on stock",
			slog.String("product_id", p.ID),
			slog.String("sku", p.SKU),
			slog.Int64("stock", p.Stock),
			slog.Int64("min_stock", p.MinStock),
		)
	}
	logger.Info("completed low stock scan", slog.Int("products", len(products)))
	return nil
}
