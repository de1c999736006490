package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invoiceapp/invoiceapp/internal/app"
	"github.com/invoiceapp/invoiceapp/internal/inventory"
	"github.com/invoiceapp/invoiceapp/internal/store/memory"
	"github.com/invoiceapp/invoiceapp/jobs"
)

type stubVerifier struct {
	drifts []inventory.Drift
	err    error
}

func (s stubVerifier) VerifyLedger(context.Context) ([]inventory.Drift, error) {
	return s.drifts, s.err
}

func run(t *testing.T, cfg *app.Config, args ...string) (string, error) {
	t.Helper()
	out := new(bytes.Buffer)
	root := NewRootCmd(Options{
		Stdout:     out,
		Stderr:     out,
		LoadConfig: func() (*app.Config, error) { return cfg, nil },
	})
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func memoryConfig() *app.Config {
	return &app.Config{
		StoreDriver:        app.StoreDriverMemory,
		AnalyticsCacheTTL:  time.Minute,
		RateLimitPerMinute: 60,
		LogFormat:          "json",
	}
}

func TestJobsListAndEnqueue(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := memoryConfig()
	cfg.RedisAddr = mr.Addr()

	out, err := run(t, cfg, "jobs", "list")
	require.NoError(t, err)
	assert.Equal(t, strings.Join(jobs.TaskTypes(), "\n")+"\n", out)

	out, err = run(t, cfg, "jobs", "enqueue", jobs.TaskOverdueSweep)
	require.NoError(t, err)
	assert.Contains(t, out, "enqueued invoices:overdue_sweep")

	_, err = run(t, cfg, "jobs", "enqueue", "mail:send")
	assert.Error(t, err)
}

func TestMigrateRequiresPostgres(t *testing.T) {
	_, err := run(t, memoryConfig(), "migrate", "up")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres")

	_, err = run(t, memoryConfig(), "migrate", "sideways")
	assert.Error(t, err)
}

func TestLedgerVerifyOnEmptyStore(t *testing.T) {
	out, err := run(t, memoryConfig(), "ledger", "verify")
	require.NoError(t, err)
	assert.Contains(t, out, "no drift")
}

func TestRunLedgerVerifyReportsDrift(t *testing.T) {
	v := stubVerifier{drifts: []inventory.Drift{{ProductID: "p-1", SKU: "SKU-1", Stored: 6, FromLedger: 10}}}

	out := new(bytes.Buffer)
	err := runLedgerVerify(context.Background(), v, out, false, nil)
	require.ErrorIs(t, err, ErrLedgerDrift)
	assert.Contains(t, out.String(), "SKU-1")
	assert.Contains(t, out.String(), "BROKEN CHAIN")

	out.Reset()
	err = runLedgerVerify(context.Background(), v, out, true, nil)
	require.ErrorIs(t, err, ErrLedgerDrift)
	var decoded []inventory.Drift
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, v.drifts, decoded)

	boom := errors.New("boom")
	assert.ErrorIs(t, runLedgerVerify(context.Background(), stubVerifier{err: boom}, out, false, nil), boom)
}

func TestSeedCommand(t *testing.T) {
	out, err := run(t, memoryConfig(), "seed")
	require.NoError(t, err)
	assert.Equal(t, "seeded 6 products, 4 invoices\n", out)
}

func TestRunSeedKeepsLedgerConsistent(t *testing.T) {
	ctx := context.Background()
	cfg := memoryConfig()
	services := app.BuildServices(cfg, app.MemoryStores(memory.New()), nil, nil, nil)
	now := time.Date(2026, 3, 20, 9, 0, 0, 0, time.UTC)

	res, err := runSeed(ctx, services.Inventory, services.Invoicing, now)
	require.NoError(t, err)
	assert.Equal(t, SeedResult{Products: len(demoProducts), Invoices: len(demoInvoices)}, res)

	drifts, err := services.Inventory.VerifyLedger(ctx)
	require.NoError(t, err)
	assert.Empty(t, drifts)

	products, err := services.Inventory.AllProducts(ctx, inventory.ProductFilter{})
	require.NoError(t, err)
	stock := make(map[string]int64, len(products))
	for _, p := range products {
		stock[p.SKU] = p.Stock
	}
	// paid invoices deduct, pending and overdue ones do not
	assert.Equal(t, int64(18), stock["HW-MON-24"])
	assert.Equal(t, int64(10), stock["HW-LAP-14"])
	assert.Equal(t, int64(3), stock["NW-RTR-AX"])
	assert.Equal(t, int64(40), stock["HW-KBD-01"])
	assert.Equal(t, int64(300), stock["NW-CBL-05"])

	stats, err := services.Analytics.InvoiceStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.PaidCount)
	assert.Equal(t, 1, stats.PendingCount)
	assert.Equal(t, 1, stats.OverdueCount)

	_, err = runSeed(ctx, services.Inventory, services.Invoicing, now)
	assert.ErrorIs(t, err, ErrStoreNotEmpty)
}
