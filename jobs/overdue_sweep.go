package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/invoiceapp/invoiceapp/internal/jobs"
)

// OverdueSweeper marks late pending invoices overdue.
type OverdueSweeper interface {
	SweepOverdue(ctx context.Context, asOf time.Time) (int, error)
}

// OverdueSweepJob runs the invoice overdue sweep.
type OverdueSweepJob struct {
	Invoices OverdueSweeper
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	clock    func() time.Time
}

// NewOverdueSweepJob wires dependencies for the sweep handler.
func NewOverdueSweepJob(invoices OverdueSweeper, logger *slog.Logger, metrics *jobmetrics.Metrics) *OverdueSweepJob {
	return &OverdueSweepJob{
		Invoices: invoices,
		Logger:   logger,
		Metrics:  metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes overdue sweep tasks. The sweep runs as of the time the task was
// scheduled for.
func (j *OverdueSweepJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Invoices == nil {
		return errors.New("overdue sweep: handler not configured")
	}
	asOf, err := decodeSchedule(t, j.now())
	if err != nil {
		return fmt.Errorf("overdue sweep: %v: %w", err, asynq.SkipRetry)
	}
	tracker := j.metrics().Track(TaskOverdueSweep)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Time("as_of", asOf))
	swept, err := j.Invoices.SweepOverdue(ctx, asOf)
	j.metrics().AddOverdue(swept)
	if err != nil {
		logger.Error("overdue sweep failed", slog.Int("swept", swept), slog.Any("error", err))
		return err
	}
	logger.Info("completed overdue sweep", slog.Int("swept", swept))
	return nil
}

func (j *OverdueSweepJob) logger() *slog.Logger {
	return jobLogger(j.Logger, TaskOverdueSweep)
}

func (j *OverdueSweepJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *OverdueSweepJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

func jobLogger(logger *slog.Logger, job string) *slog.Logger {
	if logger != nil {
		return logger.With(slog.String("job", job))
	}
	return slog.Default().With(slog.String("job", job))
}
