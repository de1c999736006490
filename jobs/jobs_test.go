package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invoiceapp/invoiceapp/internal/inventory"
	jobmetrics "github.com/invoiceapp/invoiceapp/internal/jobs"
)

type fakeSweeper struct {
	asOf  time.Time
	swept int
	err   error
}

func (f *fakeSweeper) SweepOverdue(_ context.Context, asOf time.Time) (int, error) {
	f.asOf = asOf
	return f.swept, f.err
}

type fakeInventory struct {
	low    []inventory.Product
	drifts []inventory.Drift
	err    error
}

func (f fakeInventory) LowStock(context.Context) ([]inventory.Product, error) {
	return f.low, f.err
}

func (f fakeInventory) VerifyLedger(context.Context) ([]inventory.Drift, error) {
	return f.drifts, f.err
}

type warmerFunc func(context.Context) error

func (f warmerFunc) Warm(ctx context.Context) error { return f(ctx) }

func TestNewTask(t *testing.T) {
	at := time.Date(2025, 3, 1, 0, 5, 0, 0, time.UTC)
	task, err := NewTask(TaskOverdueSweep, at)
	require.NoError(t, err)
	assert.Equal(t, TaskOverdueSweep, task.Type())

	var payload SchedulePayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.True(t, payload.ScheduledFor.Equal(at))

	_, err = NewTask("mail:send", at)
	assert.Error(t, err)
	assert.Equal(t, []string{TaskAnalyticsWarmup, TaskLedgerCheck, TaskLowStockScan, TaskOverdueSweep}, TaskTypes())
}

func TestOverdueSweepUsesScheduledTime(t *testing.T) {
	metrics := jobmetrics.NewMetrics(prometheus.NewRegistry())
	sweeper := &fakeSweeper{swept: 2}
	job := NewOverdueSweepJob(sweeper, nil, metrics)

	at := time.Date(2025, 4, 2, 0, 5, 0, 0, time.UTC)
	task, err := NewTask(TaskOverdueSweep, at)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.True(t, sweeper.asOf.Equal(at))

	// An empty payload falls back to the job clock.
	now := time.Date(2025, 4, 3, 9, 0, 0, 0, time.UTC)
	job.clock = func() time.Time { return now }
	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(TaskOverdueSweep, nil)))
	assert.True(t, sweeper.asOf.Equal(now))
}

func TestOverdueSweepRejectsMalformedPayload(t *testing.T) {
	job := NewOverdueSweepJob(&fakeSweeper{}, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	err := job.Handle(context.Background(), asynq.NewTask(TaskOverdueSweep, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestOverdueSweepPropagatesFailure(t *testing.T) {
	boom := errors.New("db down")
	job := NewOverdueSweepJob(&fakeSweeper{err: boom}, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	err := job.Handle(context.Background(), asynq.NewTask(TaskOverdueSweep, nil))
	assert.ErrorIs(t, err, boom)
}

func TestLowStockAndLedgerJobs(t *testing.T) {
	inv := fakeInventory{
		low: []inventory.Product{
			{ID: "p1", SKU: "SKU-1", Stock: 1, MinStock: 5},
			{ID: "p2", SKU: "SKU-2", Stock: 0, MinStock: 2},
		},
		drifts: []inventory.Drift{{ProductID: "p1", SKU: "SKU-1", Stored: 6, FromLedger: 10}},
	}
	metrics := jobmetrics.NewMetrics(prometheus.NewRegistry())

	require.NoError(t, NewLowStockScanJob(inv, nil, metrics).Handle(context.Background(), asynq.NewTask(TaskLowStockScan, nil)))
	require.NoError(t, NewLedgerCheckJob(inv, nil, metrics).Handle(context.Background(), asynq.NewTask(TaskLedgerCheck, nil)))

	inv.err = errors.New("boom")
	assert.Error(t, NewLedgerCheckJob(inv, nil, metrics).Handle(context.Background(), asynq.NewTask(TaskLedgerCheck, nil)))
}

func TestAnalyticsWarmupAppliesTimeout(t *testing.T) {
	var hasDeadline bool
	job := NewAnalyticsWarmupJob(warmerFunc(func(ctx context.Context) error {
		_, hasDeadline = ctx.Deadline()
		return nil
	}), nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(TaskAnalyticsWarmup, nil)))
	assert.True(t, hasDeadline)
}

func TestUnconfiguredJobsFail(t *testing.T) {
	task := asynq.NewTask(TaskLedgerCheck, nil)
	assert.Error(t, (&OverdueSweepJob{}).Handle(context.Background(), task))
	assert.Error(t, (&LowStockScanJob{}).Handle(context.Background(), task))
	assert.Error(t, (&LedgerCheckJob{}).Handle(context.Background(), task))
	assert.Error(t, (&AnalyticsWarmupJob{}).Handle(context.Background(), task))
}

func TestNewWorkerRejectsBadCron(t *testing.T) {
	task, err := NewTask(TaskLedgerCheck, time.Now())
	require.NoError(t, err)
	_, err = NewWorker(WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: "127.0.0.1:0"},
		Cron:      []CronRegistration{{Spec: "not a cron", Task: task}},
	})
	assert.Error(t, err)
}

func TestHealthWithoutInspector(t *testing.T) {
	r := chi.NewRouter()
	r.Route("/jobs", NewHandler(nil, nil).MountRoutes)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Success bool        `json:"success"`
		Data    QueueHealth `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, QueueDefault, body.Data.Queue)
}
