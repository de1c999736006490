package invoicing

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/invoiceapp/invoiceapp/internal/platform/httpx"
	"github.com/invoiceapp/invoiceapp/internal/shared"
)

const (
	// IdempotencyHeader names the request header that makes invoice creation replay-safe.
	IdempotencyHeader = "Idempotency-Key"

	maxActionBody = 64 << 10
)

// Handler exposes invoice endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

type statusRequest struct {
	Status Status `json:"status"`
	Actor  string `json:"updatedBy"`
}

type actionRequest struct {
	Actor  string `json:"actor"`
	Reason string `json:"reason"`
}

// MountRoutes registers invoice routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Put("/", h.update)
		r.Delete("/", h.cancel)
		r.Patch("/status", h.setStatus)
		r.Post("/pay", h.pay)
		r.Post("/cancel", h.cancel)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := Filter{
		Status: Status(q.Get("status")),
		Search: q.Get("search"),
	}
	if filter.Status == "all" {
		filter.Status = ""
	}
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.PerPage, _ = strconv.Atoi(q.Get("perPage"))
	invoices, page, err := h.service.List(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.Page(w, invoices, page)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var input InvoiceInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
	inv, err := h.service.Create(r.Context(), input, key)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.Success(w, http.StatusCreated, "Invoice created successfully", inv)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	inv, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.Success(w, http.StatusOK, "", inv)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var input InvoiceInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	inv, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), input)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.Success(w, http.StatusOK, "Invoice updated successfully", inv)
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	inv, err := h.service.SetStatus(r.Context(), chi.URLParam(r, "id"), req.Status, req.Actor)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.Success(w, http.StatusOK, "Invoice status updated", inv)
}

func (h *Handler) pay(w http.ResponseWriter, r *http.Request) {
	req, err := optionalAction(w, r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	inv, err := h.service.MarkPaid(r.Context(), chi.URLParam(r, "id"), req.Actor)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.Success(w, http.StatusOK, "Invoice marked as paid", inv)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	req, err := optionalAction(w, r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	inv, err := h.service.Cancel(r.Context(), chi.URLParam(r, "id"), req.Actor, req.Reason)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.Success(w, http.StatusOK, "Invoice cancelled and stock restored", inv)
}

// optionalAction reads an action body when one is sent; pay and cancel accept none,
// but a body that is sent must decode.
func optionalAction(w http.ResponseWriter, r *http.Request) (actionRequest, error) {
	var req actionRequest
	if r.Body == nil || r.Body == http.NoBody {
		return req, nil
	}
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxActionBody))
	if err != nil {
		return req, shared.NewValidationError("body", err.Error())
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return req, nil
	}
	r.Body = io.NopCloser(bytes.NewReader(raw))
	if err := httpx.DecodeJSON(r, &req); err != nil {
		return req, err
	}
	return req, nil
}
