package jobs

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/invoiceapp/invoiceapp/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskOverdueSweep moves pending invoices past their due date to overdue.
	TaskOverdueSweep = "invoices:overdue_sweep"
	// TaskLowStockScan refreshes the low-stock gauge.
	TaskLowStockScan = "inventory:low_stock_scan"
	// TaskLedgerCheck replays every product ledger against stored stock.
	TaskLedgerCheck = "inventory:ledger_check"
	// TaskAnalyticsWarmup pre-populates the analytics cache.
	TaskAnalyticsWarmup = "analytics:warmup"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// SchedulePayload carries scheduling metadata shared by every task.
type SchedulePayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

var taskTypes = map[string]struct{}{
	TaskOverdueSweep:    {},
	TaskLowStockScan:    {},
	TaskLedgerCheck:     {},
	TaskAnalyticsWarmup: {},
}

// TaskTypes lists the task types the worker handles, sorted.
func TaskTypes() []string {
	out := make([]string, 0, len(taskTypes))
	for name := range taskTypes {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// NewTask builds a task of a known type scheduled for at.
func NewTask(taskType string, at time.Time) (*asynq.Task, error) {
	if _, ok := taskTypes[taskType]; !ok {
		return nil, fmt.Errorf("jobs: unknown task type %q", taskType)
	}
	body, err := json.Marshal(SchedulePayload{ScheduledFor: at.UTC()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, body, asynq.Queue(QueueDefault)), nil
}

// decodeSchedule reads the scheduled time, falling back to fallback when the payload
// is empty or carries no time. Malformed payloads are rejected.
func decodeSchedule(t *asynq.Task, fallback time.Time) (time.Time, error) {
	if len(t.Payload()) == 0 {
		return fallback, nil
	}
	var payload SchedulePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return time.Time{}, err
	}
	if payload.ScheduledFor.IsZero() {
		return fallback, nil
	}
	return payload.ScheduledFor, nil
}
