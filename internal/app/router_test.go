package app

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	analytichttp "github.com/invoiceapp/invoiceapp/internal/analytics/http"
	audithttp "github.com/invoiceapp/invoiceapp/internal/audit/http"
	"github.com/invoiceapp/invoiceapp/internal/inventory"
	"github.com/invoiceapp/invoiceapp/internal/invoicing"
	"github.com/invoiceapp/invoiceapp/internal/observability"
	"github.com/invoiceapp/invoiceapp/internal/store/memory"
	"github.com/invoiceapp/invoiceapp/jobs"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func newTestRouter(t *testing.T, cfg *Config) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetrics()
	services := BuildServices(cfg, MemoryStores(memory.New()), nil, metrics, logger)
	return NewRouter(RouterParams{
		Logger:           logger,
		Config:           cfg,
		InventoryHandler: inventory.NewHandler(logger, services.Inventory),
		InvoiceHandler:   invoicing.NewHandler(logger, services.Invoicing),
		AnalyticsHandler: analytichttp.NewHandler(logger, services.Analytics),
		AuditHandler:     audithttp.NewHandler(logger, services.Audit),
		JobHandler:       jobs.NewHandler(nil, logger),
		Metrics:          metrics,
	})
}

func testConfig() *Config {
	return &Config{
		AppEnv:             "test",
		StoreDriver:        StoreDriverMemory,
		AppRequestTimeout:  5 * time.Second,
		AnalyticsCacheTTL:  time.Minute,
		RateLimitPerMinute: 1000,
		CORSAllowedOrigins: []string{"http://localhost:3000"},
	}
}

func call(t *testing.T, h http.Handler, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "192.0.2.10:4711"
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestRouterPayFlowUpdatesStockStatsAndMetrics(t *testing.T) {
	h := newTestRouter(t, testConfig())

	rec, env := call(t, h, http.MethodPost, "/api/products", map[string]any{
		"sku": "SKU-1", "name": "Widget", "category": "Hardware", "price": "25000", "cost": "15000", "stock": 10,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var product struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &product))

	rec, env = call(t, h, http.MethodPost, "/api/invoices", map[string]any{
		"clientName":  "PT Maju Jaya",
		"clientEmail": "billing@majujaya.co.id",
		"dateIssued":  "2025-03-01",
		"dueDate":     "2025-03-31",
		"items": []map[string]any{
			{"productId": product.ID, "desc": "Widget", "qty": 3, "price": "25000"},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var inv struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &inv))

	rec, _ = call(t, h, http.MethodPost, "/api/invoices/"+inv.ID+"/pay", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, env = call(t, h, http.MethodGet, "/api/products/"+product.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stocked struct {
		Stock int64 `json:"stock"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &stocked))
	assert.Equal(t, int64(7), stocked.Stock)

	rec, env = call(t, h, http.MethodGet, "/api/invoices/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats struct {
		PaidCount int `json:"paidCount"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, 1, stats.PaidCount)

	rec, env = call(t, h, http.MethodGet, "/api/products/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var inventoryStats struct {
		TotalItems int64 `json:"totalItems"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &inventoryStats))
	assert.Equal(t, int64(7), inventoryStats.TotalItems)

	rec, env = call(t, h, http.MethodGet, "/api/audit?entity=invoice&entityId="+inv.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var trail []struct {
		Action string `json:"action"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &trail))
	require.Len(t, trail, 2)
	assert.Equal(t, "invoice.mark_paid", trail[0].Action)

	rec, _ = call(t, h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `invoiceapp_stock_movements_total{source="invoice.mark_paid",type="OUT"} 1`)
}

func TestRouterHealthAndFallbacks(t *testing.T) {
	h := newTestRouter(t, testConfig())

	rec, _ := call(t, h, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec, env := call(t, h, http.MethodGet, "/jobs/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)

	rec, env = call(t, h, http.MethodGet, "/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, env.Success)
}

func TestRouterCORSPreflight(t *testing.T) {
	h := newTestRouter(t, testConfig())

	req := httptest.NewRequest(http.MethodOptions, "/api/invoices", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Idempotency-Key")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouterRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitPerMinute = 2
	h := newTestRouter(t, cfg)

	for i := 0; i < 2; i++ {
		rec, _ := call(t, h, http.MethodGet, "/healthz", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec, env := call(t, h, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.False(t, env.Success)
}
