package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/invoiceapp/invoiceapp/internal/inventory"
	jobmetrics "github.com/invoiceapp/invoiceapp/internal/jobs"
)

// LedgerVerifier replays product ledgers against stored stock.
type LedgerVerifier interface {
	VerifyLedger(ctx context.Context) ([]inventory.Drift, error)
}

// LedgerCheckJob reports products whose stock disagrees with their ledger.
type LedgerCheckJob struct {
	Inventory LedgerVerifier
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewLedgerCheckJob wires dependencies for the integrity check.
func NewLedgerCheckJob(inv LedgerVerifier, logger *slog.Logger, metrics *jobmetrics.Metrics) *LedgerCheckJob {
	return &LedgerCheckJob{Inventory: inv, Logger: logger, Metrics: metrics}
}

// Handle processes ledger check tasks. Drift is reported, never repaired.
func (j *LedgerCheckJob) Handle(ctx context.Context, _ *asynq.Task) (resultErr error) {
	if j == nil || j.Inventory == nil {
		return errors.New("ledger check: handler not configured")
	}
	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	tracker := metrics.Track(TaskLedgerCheck)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := jobLogger(j.Logger, TaskLedgerCheck)
	drifts, err := j.Inventory.VerifyLedger(ctx)
	if err != nil {
		logger.Error("verify ledger", slog.Any("error", err))
		return err
	}
	metrics.SetLedgerDrift(len(drifts))
	for _, d := range drifts {
		logger.Error("ledger drift detected",
			slog.String("product_id", d.ProductID),
			slog.String("sku", d.SKU),
			slog.Int64("stored", d.Stored),
			slog.Int64("from_ledger", d.FromLedger),
			slog.Bool("broken_chain", d.BrokenChain),
		)
	}
	logger.Info("completed ledger check", slog.Int("drifted", len(drifts)))
	return nil
}
