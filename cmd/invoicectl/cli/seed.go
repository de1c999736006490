package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/invoiceapp/invoiceapp/internal/app"
	"github.com/invoiceapp/invoiceapp/internal/inventory"
	"github.com/invoiceapp/invoiceapp/internal/invoicing"
)

const seedActor = "seed"

// ErrStoreNotEmpty is returned when seeding a catalogue that already has products.
var ErrStoreNotEmpty = errors.New("store already has products")

type seedProduct struct {
	sku, name, category string
	unit                inventory.Unit
	price, cost         int64
	stock, minStock     int64
}

type seedLine struct {
	sku   string // empty for service lines
	desc  string
	qty   int64
	price int64
}

type seedInvoice struct {
	client, email string
	issuedAgo     int
	termDays      int
	status        invoicing.Status
	lines         []seedLine
	notes         string
}

var demoProducts = []seedProduct{
	{sku: "HW-LAP-14", name: "Laptop 14 inch", category: "Hardware", unit: inventory.UnitPieces, price: 12500000, cost: 10800000, stock: 12, minStock: 3},
	{sku: "HW-MON-24", name: "Monitor 24 inch", category: "Hardware", unit: inventory.UnitPieces, price: 2750000, cost: 2200000, stock: 20, minStock: 5},
	{sku: "HW-KBD-01", name: "Wireless Keyboard", category: "Accessories", unit: inventory.UnitPieces, price: 450000, cost: 310000, stock: 40, minStock: 10},
	{sku: "NW-CBL-05", name: "Network Cable Cat6", category: "Networking", unit: inventory.UnitMeter, price: 8500, cost: 5200, stock: 300, minStock: 50},
	{sku: "NW-RTR-AX", name: "WiFi 6 Router", category: "Networking", unit: inventory.UnitPieces, price: 1850000, cost: 1450000, stock: 4, minStock: 5},
	{sku: "SP-PPR-A4", name: "Printer Paper A4", category: "Supplies", unit: inventory.UnitBox, price: 265000, cost: 210000, stock: 25, minStock: 8},
}

var demoInvoices = []seedInvoice{
	{
		client: "PT Maju Jaya", email: "finance@majujaya.co.id", issuedAgo: 18, termDays: 14, status: invoicing.StatusPaid,
		lines: []seedLine{
			{desc: "Web Development - Landing Page", qty: 1, price: 8500000},
			{sku: "HW-MON-24", desc: "Monitor 24 inch", qty: 2, price: 2750000},
		},
		notes: "Paid by bank transfer.",
	},
	{
		client: "CV Kreatif Nusantara", email: "admin@kreatifnusantara.id", issuedAgo: 9, termDays: 30, status: invoicing.StatusPending,
		lines: []seedLine{
			{desc: "UI/UX Design - Mobile App", qty: 1, price: 12000000},
			{sku: "HW-KBD-01", desc: "Wireless Keyboard", qty: 3, price: 450000},
		},
	},
	{
		client: "Toko Berkah Online", email: "owner@berkahonline.com", issuedAgo: 45, termDays: 14, status: invoicing.StatusOverdue,
		lines: []seedLine{
			{desc: "E-commerce Maintenance - Monthly", qty: 2, price: 1500000},
			{sku: "NW-CBL-05", desc: "Network Cable Cat6", qty: 40, price: 8500},
		},
		notes: "Second reminder sent.",
	},
	{
		client: "PT Solusi Digital", email: "procurement@solusidigital.co.id", issuedAgo: 3, termDays: 30, status: invoicing.StatusPaid,
		lines: []seedLine{
			{sku: "HW-LAP-14", desc: "Laptop 14 inch", qty: 2, price: 12500000},
			{sku: "NW-RTR-AX", desc: "WiFi 6 Router", qty: 1, price: 1850000},
			{desc: "On-site Installation", qty: 1, price: 750000},
		},
	},
}

// SeedResult counts what runSeed created.
type SeedResult struct {
	Products int
	Invoices int
}

func newSeedCmd(opts Options) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load demo products and invoices into an empty store",
		Long: `seed creates a small demo catalogue and a handful of invoices through the
regular services, so paid invoices deduct stock and the ledger stays consistent.
It refuses to run when the store already holds products.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.LoadConfig()
			if err != nil {
				return err
			}
			logger := app.NewLogger(cfg)
			stores, err := app.OpenStore(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer stores.Close()
			services := app.BuildServices(cfg, stores, nil, nil, logger)
			res, err := runSeed(cmd.Context(), services.Inventory, services.Invoicing, time.Now().UTC())
			if err != nil {
				return err
			}
			return printSeed(cmd.OutOrStdout(), res)
		},
	}
}

func printSeed(out io.Writer, res SeedResult) error {
	_, err := fmt.Fprintf(out, "seeded %d products, %d invoices\n", res.Products, res.Invoices)
	return err
}

func runSeed(ctx context.Context, products *inventory.Service, invoices *invoicing.Service, now time.Time) (SeedResult, error) {
	var res SeedResult
	existing, err := products.AllProducts(ctx, inventory.ProductFilter{})
	if err != nil {
		return res, err
	}
	if len(existing) > 0 {
		return res, ErrStoreNotEmpty
	}

	ids := make(map[string]string, len(demoProducts))
	for _, p := range demoProducts {
		minStock := p.minStock
		created, err := products.CreateProduct(ctx, inventory.ProductInput{
			SKU:      p.sku,
			Name:     p.name,
			Category: p.category,
			Unit:     p.unit,
			Price:    decimal.NewFromInt(p.price),
			Cost:     decimal.NewFromInt(p.cost),
			Stock:    p.stock,
			MinStock: &minStock,
			Actor:    seedActor,
		})
		if err != nil {
			return res, fmt.Errorf("seed product %s: %w", p.sku, err)
		}
		ids[p.sku] = created.ID
		res.Products++
	}

	for _, si := range demoInvoices {
		issued := now.AddDate(0, 0, -si.issuedAgo)
		input := invoicing.InvoiceInput{
			ClientName:  si.client,
			ClientEmail: si.email,
			IssueDate:   issued.Format(invoicing.DateLayout),
			DueDate:     issued.AddDate(0, 0, si.termDays).Format(invoicing.DateLayout),
			TaxRate:     decimal.NewFromInt(11),
			Notes:       si.notes,
			Actor:       seedActor,
		}
		for _, l := range si.lines {
			input.Items = append(input.Items, invoicing.ItemInput{
				ProductID:   ids[l.sku],
				Description: l.desc,
				Quantity:    l.qty,
				Price:       decimal.NewFromInt(l.price),
			})
		}
		inv, err := invoices.Create(ctx, input, "")
		if err != nil {
			return res, fmt.Errorf("seed invoice for %s: %w", si.client, err)
		}
		switch si.status {
		case invoicing.StatusPaid:
			_, err = invoices.MarkPaid(ctx, inv.ID, seedActor)
		case invoicing.StatusOverdue:
			_, err = invoices.SetStatus(ctx, inv.ID, invoicing.StatusOverdue, seedActor)
		}
		if err != nil {
			return res, fmt.Errorf("seed invoice %s: %w", inv.ID, err)
		}
		res.Invoices++
	}
	return res, nil
}
