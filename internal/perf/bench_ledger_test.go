package perf

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/invoiceapp/invoiceapp/internal/analytics"
	"github.com/invoiceapp/invoiceapp/internal/app"
	"github.com/invoiceapp/invoiceapp/internal/inventory"
	"github.com/invoiceapp/invoiceapp/internal/invoicing"
	"github.com/invoiceapp/invoiceapp/internal/store/memory"
)

func newServices(b *testing.B) *app.Services {
	b.Helper()
	cfg := &app.Config{StoreDriver: app.StoreDriverMemory, AnalyticsCacheTTL: time.Minute}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return app.BuildServices(cfg, app.MemoryStores(memory.New()), nil, nil, logger)
}

func BenchmarkPayCancelRoundTrip(b *testing.B) {
	ctx := context.Background()
	services := newServices(b)
	product, err := services.Inventory.CreateProduct(ctx, inventory.ProductInput{
		SKU:   "BENCH-1",
		Name:  "Bench Widget",
		Price: decimal.NewFromInt(1000),
		Stock: 1_000_000,
	})
	if err != nil {
		b.Fatal(err)
	}
	input := invoicing.InvoiceInput{
		ClientName:  "Bench Client",
		ClientEmail: "bench@example.com",
		IssueDate:   "2026-01-10",
		DueDate:     "2026-01-24",
		Items: []invoicing.ItemInput{
			{ProductID: product.ID, Description: "Bench Widget", Quantity: 3, Price: decimal.NewFromInt(1000)},
			{Description: "Setup", Quantity: 1, Price: decimal.NewFromInt(500)},
		},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		inv, err := services.Invoicing.Create(ctx, input, "")
		if err != nil {
			b.Fatal(err)
		}
		if _, err := services.Invoicing.MarkPaid(ctx, inv.ID, "bench"); err != nil {
			b.Fatal(err)
		}
		if _, err := services.Invoicing.Cancel(ctx, inv.ID, "bench", ""); err != nil {
			b.Fatal(err)
		}
	}
	b.StopTimer()

	stock, err := services.Inventory.GetStock(ctx, product.ID)
	if err != nil {
		b.Fatal(err)
	}
	if stock != 1_000_000 {
		b.Fatalf("stock after round trips = %d, want 1000000", stock)
	}
}

func BenchmarkBuildSalesAnalytics(b *testing.B) {
	asOf := time.Date(2026, 6, 30, 12, 0, 0, 0, time.UTC)
	current, _ := analytics.Windows(asOf, 90)
	statuses := []invoicing.Status{invoicing.StatusPaid, invoicing.StatusPending, invoicing.StatusOverdue}
	invoices := make([]invoicing.Invoice, 0, 2000)
	for i := 0; i < cap(invoices); i++ {
		issued := current.From.AddDate(0, 0, i%90)
		invoices = append(invoices, invoicing.Invoice{
			ID:         invoicing.FormatNumber(2026, int64(i+1)),
			ClientName: fmt.Sprintf("Client %d", i%40),
			Status:     statuses[i%len(statuses)],
			IssueDate:  issued,
			DueDate:    issued.AddDate(0, 0, 14),
			Items: []invoicing.Item{
				{Description: fmt.Sprintf("Product %d", i%25), Quantity: int64(1 + i%4), Price: decimal.NewFromInt(int64(1000 + i))},
				{Description: "Delivery", Quantity: 1, Price: decimal.NewFromInt(250)},
			},
		})
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		out := analytics.BuildSalesAnalytics(90, current, invoices, invoices[:500])
		if out.Summary.TotalInvoices != len(invoices) {
			b.Fatalf("total invoices = %d", out.Summary.TotalInvoices)
		}
	}
}
