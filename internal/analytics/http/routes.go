package analytichttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/invoiceapp/invoiceapp/internal/platform/httpx"
)

// MountProductRoutes registers catalogue statistics under the products router.
func (h *Handler) MountProductRoutes(r chi.Router) {
	if h == nil {
		return
	}
	r.Get("/stats", h.handleInventoryStats)
}

// MountInvoiceRoutes registers invoice statistics and sales analytics under the invoices
// router. CSV exports are rate limited per client IP.
func (h *Handler) MountInvoiceRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(10, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Fail(w, http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests), "export rate limit exceeded")
		}),
	)

	r.Get("/stats", h.handleInvoiceStats)
	r.Get("/analytics", h.handleSales)
	r.Group(func(gr chi.Router) {
		gr.Use(limiter)
		gr.Get("/analytics/export.csv", h.handleCSV)
	})
}
