package invoicing_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/invoiceapp/invoiceapp/internal/inventory"
	"github.com/invoiceapp/invoiceapp/internal/invoicing"
	"github.com/invoiceapp/invoiceapp/internal/store/memory"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Meta    json.RawMessage `json:"meta"`
}

// InvoiceHandlerSuite drives the invoice endpoints end to end over the memory store.
type InvoiceHandlerSuite struct {
	suite.Suite
	server    *httptest.Server
	inventory *inventory.Service
	productID string
}

func (s *InvoiceHandlerSuite) SetupTest() {
	store := memory.New()
	clock := &tickingClock{now: time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)}
	s.inventory = inventory.NewService(store.Inventory(), store, inventory.ServiceConfig{Clock: clock.Now})
	svc := invoicing.NewService(store.Invoicing(), s.inventory.Stock(), store, invoicing.ServiceConfig{Idempotency: store, Clock: clock.Now})

	r := chi.NewRouter()
	r.Route("/api/invoices", invoicing.NewHandler(nil, svc).MountRoutes)
	s.server = httptest.NewServer(r)

	product, err := s.inventory.CreateProduct(context.Background(), inventory.ProductInput{
		SKU: "SKU-1", Name: "Widget", Price: decimal.NewFromInt(25000), Stock: 10,
	})
	s.Require().NoError(err)
	s.productID = product.ID
}

func (s *InvoiceHandlerSuite) TearDownTest() {
	s.server.Close()
}

func (s *InvoiceHandlerSuite) do(method, path string, body any, headers map[string]string) (int, envelope) {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, s.server.URL+path, reader)
	s.Require().NoError(err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	var env envelope
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func (s *InvoiceHandlerSuite) createBody(qty int) map[string]any {
	return map[string]any{
		"clientName":  "PT Maju Jaya",
		"clientEmail": "billing@majujaya.co.id",
		"dateIssued":  "2025-03-01",
		"dueDate":     "2025-03-31",
		"items": []map[string]any{
			{"productId": s.productID, "desc": "Widget", "qty": qty, "price": "25000"},
		},
	}
}

func (s *InvoiceHandlerSuite) stock() int64 {
	stock, err := s.inventory.GetStock(context.Background(), s.productID)
	s.Require().NoError(err)
	return stock
}

func (s *InvoiceHandlerSuite) TestPayAndCancelFlow() {
	status, env := s.do(http.MethodPost, "/api/invoices", s.createBody(4), nil)
	s.Require().Equal(http.StatusCreated, status)
	s.True(env.Success)

	var created map[string]any
	s.Require().NoError(json.Unmarshal(env.Data, &created))
	s.Equal("INV-2025-001", created["id"])
	s.Equal("pending", created["status"])
	s.Equal("100000", created["total"])

	status, env = s.do(http.MethodPost, "/api/invoices/INV-2025-001/pay", nil, nil)
	s.Require().Equal(http.StatusOK, status, env.Error)
	s.EqualValues(6, s.stock())

	status, env = s.do(http.MethodPost, "/api/invoices/INV-2025-001/pay", nil, nil)
	s.Equal(http.StatusConflict, status)
	s.False(env.Success)
	s.EqualValues(6, s.stock())

	status, _ = s.do(http.MethodPost, "/api/invoices/INV-2025-001/cancel", map[string]string{"actor": "ops", "reason": "returned"}, nil)
	s.Require().Equal(http.StatusOK, status)
	s.EqualValues(10, s.stock())

	status, _ = s.do(http.MethodGet, "/api/invoices/INV-2025-001", nil, nil)
	s.Equal(http.StatusNotFound, status)
}

func (s *InvoiceHandlerSuite) TestInsufficientStockIsConflict() {
	status, _ := s.do(http.MethodPost, "/api/invoices", s.createBody(11), nil)
	s.Require().Equal(http.StatusCreated, status)

	status, env := s.do(http.MethodPost, "/api/invoices/INV-2025-001/pay", nil, nil)
	s.Equal(http.StatusConflict, status)
	s.Contains(env.Error, "insufficient stock")
	s.EqualValues(10, s.stock())
}

func (s *InvoiceHandlerSuite) TestDeleteCancelsInvoice() {
	s.do(http.MethodPost, "/api/invoices", s.createBody(2), nil)
	status, _ := s.do(http.MethodPost, "/api/invoices/INV-2025-001/pay", nil, nil)
	s.Require().Equal(http.StatusOK, status)

	status, _ = s.do(http.MethodDelete, "/api/invoices/INV-2025-001", nil, nil)
	s.Require().Equal(http.StatusOK, status)
	s.EqualValues(10, s.stock())
}

func (s *InvoiceHandlerSuite) TestStatusPatchDoesNotMoveStock() {
	s.do(http.MethodPost, "/api/invoices", s.createBody(2), nil)

	status, env := s.do(http.MethodPatch, "/api/invoices/INV-2025-001/status", map[string]string{"status": "overdue"}, nil)
	s.Require().Equal(http.StatusOK, status, env.Error)
	s.EqualValues(10, s.stock())

	status, _ = s.do(http.MethodPatch, "/api/invoices/INV-2025-001/status", map[string]string{"status": "archived"}, nil)
	s.Equal(http.StatusBadRequest, status)
}

func (s *InvoiceHandlerSuite) TestIdempotencyKeyReplay() {
	headers := map[string]string{invoicing.IdempotencyHeader: "req-42"}
	status, _ := s.do(http.MethodPost, "/api/invoices", s.createBody(1), headers)
	s.Require().Equal(http.StatusCreated, status)

	status, _ = s.do(http.MethodPost, "/api/invoices", s.createBody(1), headers)
	s.Equal(http.StatusConflict, status)

	status, env := s.do(http.MethodGet, "/api/invoices?status=all", nil, nil)
	s.Require().Equal(http.StatusOK, status)
	var list []map[string]any
	s.Require().NoError(json.Unmarshal(env.Data, &list))
	s.Len(list, 1)
}

func (s *InvoiceHandlerSuite) TestValidationErrors() {
	status, env := s.do(http.MethodPost, "/api/invoices", map[string]any{"clientName": "x"}, nil)
	s.Equal(http.StatusBadRequest, status)
	s.NotEmpty(env.Error)

	req, err := http.NewRequest(http.MethodPost, s.server.URL+"/api/invoices", bytes.NewBufferString("{"))
	s.Require().NoError(err)
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	resp.Body.Close()
	s.Equal(http.StatusBadRequest, resp.StatusCode)

	status, _ = s.do(http.MethodGet, "/api/invoices?status=void", nil, nil)
	s.Equal(http.StatusBadRequest, status)
}

func (s *InvoiceHandlerSuite) TestMalformedActionBodyIsRejected() {
	status, _ := s.do(http.MethodPost, "/api/invoices", s.createBody(3), nil)
	s.Require().Equal(http.StatusCreated, status)

	for _, path := range []string{"/api/invoices/INV-2025-001/pay", "/api/invoices/INV-2025-001/cancel"} {
		req, err := http.NewRequest(http.MethodPost, s.server.URL+path, bytes.NewBufferString(`{"actor": "ops"`))
		s.Require().NoError(err)
		req.Header.Set("Content-Type", "application/json")
		resp, err := http.DefaultClient.Do(req)
		s.Require().NoError(err)
		var env envelope
		s.Require().NoError(json.NewDecoder(resp.Body).Decode(&env))
		resp.Body.Close()
		s.Equal(http.StatusBadRequest, resp.StatusCode, path)
		s.Contains(env.Error, "body")
	}
	s.EqualValues(10, s.stock())

	status, env := s.do(http.MethodGet, "/api/invoices/INV-2025-001", nil, nil)
	s.Require().Equal(http.StatusOK, status)
	var inv map[string]any
	s.Require().NoError(json.Unmarshal(env.Data, &inv))
	s.Equal("pending", inv["status"])
}

func TestInvoiceHandlerSuite(t *testing.T) {
	suite.Run(t, new(InvoiceHandlerSuite))
}
