package analytichttp

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/invoiceapp/invoiceapp/internal/analytics"
	"github.com/invoiceapp/invoiceapp/internal/analytics/export"
	"github.com/invoiceapp/invoiceapp/internal/platform/httpx"
	"github.com/invoiceapp/invoiceapp/internal/shared"
)

const requestTimeout = 5 * time.Second

// AnalyticsService defines the read models served by the handler.
type AnalyticsService interface {
	InventoryStats(ctx context.Context) (analytics.InventoryStats, error)
	InvoiceStats(ctx context.Context) (analytics.InvoiceStats, error)
	SalesAnalytics(ctx context.Context, days int) (analytics.SalesAnalytics, error)
}

// Handler serves product and invoice statistics.
type Handler struct {
	logger  *slog.Logger
	service AnalyticsService
	csvPool sync.Pool
}

// NewHandler constructs the analytics HTTP handler.
func NewHandler(logger *slog.Logger, service AnalyticsService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{logger: logger, service: service}
	h.csvPool.New = func() any { return new(bytes.Buffer) }
	return h
}

func (h *Handler) handleInventoryStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	stats, err := h.service.InventoryStats(ctx)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.Success(w, http.StatusOK, "", stats)
}

func (h *Handler) handleInvoiceStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	stats, err := h.service.InvoiceStats(ctx)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.Success(w, http.StatusOK, "", stats)
}

func (h *Handler) handleSales(w http.ResponseWriter, r *http.Request) {
	days, err := parsePeriod(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	report, err := h.service.SalesAnalytics(ctx, days)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.Success(w, http.StatusOK, "", report)
}

func (h *Handler) handleCSV(w http.ResponseWriter, r *http.Request) {
	days, err := parsePeriod(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	report, err := h.service.SalesAnalytics(ctx, days)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}

	buf := h.csvPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer func() {
		buf.Reset()
		h.csvPool.Put(buf)
	}()
	if err := export.WriteSalesCSV(buf, report); err != nil {
		httpx.RespondError(w, h.logger, fmt.Errorf("write sales csv: %w", err))
		return
	}

	filename := fmt.Sprintf("sales-analytics-%s-%s.csv", report.From, report.To)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Warn("stream csv", slog.Any("error", err))
	}
}

func parsePeriod(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("period")
	if raw == "" {
		return analytics.DefaultPeriodDays, nil
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days <= 0 || days > analytics.MaxPeriodDays {
		return 0, shared.NewValidationError("period", fmt.Sprintf("must be a number of days between 1 and %d", analytics.MaxPeriodDays))
	}
	return days, nil
}
