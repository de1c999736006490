package inventory

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/invoiceapp/invoiceapp/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the product catalogue and stock ledger.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers product routes. Literal paths go before /{id}.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listProducts)
	r.Post("/", h.createProduct)
	r.Get("/low-stock", h.lowStock)
	r.Get("/stock-history", h.stockHistory)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.getProduct)
		r.Put("/", h.updateProduct)
		r.Delete("/", h.deleteProduct)
		r.Post("/adjust-stock", h.adjustStock)
		r.Get("/history", h.productHistory)
	})
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ProductFilter{
		Search:   q.Get("search"),
		LowStock: q.Get("lowStock") == "true",
		SortBy:   q.Get("sortBy"),
		Order:    q.Get("order"),
		Page:     intParam(q.Get("page")),
		PerPage:  intParam(q.Get("perPage")),
	}
	if category := q.Get("category"); category != "all" {
		filter.Category = category
	}
	if raw := q.Get("isActive"); raw != "" {
		active := raw == "true"
		filter.Active = &active
	}
	products, page, err := h.service.ListProducts(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.Page(w, products, page)
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var input ProductInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	product, err := h.service.CreateProduct(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.Success(w, http.StatusCreated, "Product created successfully", product)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.service.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.Success(w, http.StatusOK, "", product)
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	var input ProductInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	product, err := h.service.UpdateProduct(r.Context(), chi.URLParam(r, "id"), input)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.Success(w, http.StatusOK, "Product updated successfully", product)
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	deactivated, err := h.service.DeleteProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	message := "Product deleted successfully"
	if deactivated {
		message = "Product has stock history and was deactivated"
	}
	httpx.Success(w, http.StatusOK, message, map[string]bool{"deactivated": deactivated})
}

func (h *Handler) adjustStock(w http.ResponseWriter, r *http.Request) {
	var req ManualAdjustment
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	product, entry, err := h.service.ApplyManualAdjustment(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.Success(w, http.StatusOK, "Stock adjusted successfully", map[string]any{
		"product": product,
		"entry":   entry,
	})
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.LowStock(r.Context())
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.Success(w, http.StatusOK, "", products)
}

func (h *Handler) stockHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.StockHistory(r.Context(), intParam(r.URL.Query().Get("limit")))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.Success(w, http.StatusOK, "", entries)
}

func (h *Handler) productHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.History(r.Context(), chi.URLParam(r, "id"), intParam(r.URL.Query().Get("limit")))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.Success(w, http.StatusOK, "", entries)
}

func intParam(raw string) int {
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return v
}
