package analytics

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/invoiceapp/invoiceapp/internal/inventory"
	"github.com/invoiceapp/invoiceapp/internal/invoicing"
)

const (
	// DefaultPeriodDays is the trailing window used when no period is requested.
	DefaultPeriodDays = 30
	// MaxPeriodDays bounds the trailing window.
	MaxPeriodDays = 366

	topProductsLimit = 5
	recentLimit      = 10
)

// InventoryStats summarises the active catalogue.
type InventoryStats struct {
	TotalProducts    int             `json:"totalProducts"`
	LowStockCount    int             `json:"lowStockCount"`
	TotalStockValue  decimal.Decimal `json:"totalStockValue"`
	TotalRetailValue decimal.Decimal `json:"totalRetailValue"`
	TotalItems       int64           `json:"totalItems"`
	Categories       int             `json:"categories"`
	CategoryList     []string        `json:"categoryList"`
}

// InvoiceStats counts invoices by status.
type InvoiceStats struct {
	TotalRevenue  decimal.Decimal `json:"totalRevenue"`
	PendingCount  int             `json:"pendingCount"`
	PaidCount     int             `json:"paidCount"`
	OverdueCount  int             `json:"overdueCount"`
	TotalInvoices int             `json:"totalInvoices"`
}

// Summary holds the headline figures of a sales period.
type Summary struct {
	TotalRevenue        decimal.Decimal `json:"totalRevenue"`
	TotalInvoices       int             `json:"totalInvoices"`
	PaidInvoices        int             `json:"paidInvoices"`
	PendingInvoices     int             `json:"pendingInvoices"`
	OverdueInvoices     int             `json:"overdueInvoices"`
	AverageInvoiceValue decimal.Decimal `json:"avgInvoiceValue"`
	TotalItemsSold      int64           `json:"totalItemsSold"`
	RevenueGrowth       decimal.Decimal `json:"revenueGrowth"`
}

// TrendPoint is paid revenue on one issue date.
type TrendPoint struct {
	Date     string          `json:"date"`
	Revenue  decimal.Decimal `json:"revenue"`
	Invoices int             `json:"invoices"`
}

// StatusSlice is one segment of the status distribution.
type StatusSlice struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// ProductSales aggregates paid lines sharing a description.
type ProductSales struct {
	Name     string          `json:"name"`
	Quantity int64           `json:"quantity"`
	Revenue  decimal.Decimal `json:"revenue"`
}

// Transaction is a compact invoice row.
type Transaction struct {
	ID         string           `json:"id"`
	ClientName string           `json:"clientName"`
	DateIssued string           `json:"dateIssued"`
	Total      decimal.Decimal  `json:"total"`
	Status     invoicing.Status `json:"status"`
}

// SalesAnalytics is the dashboard payload for a trailing period.
type SalesAnalytics struct {
	Period             int            `json:"period"`
	From               string         `json:"from"`
	To                 string         `json:"to"`
	Summary            Summary        `json:"summary"`
	RevenueTrend       []TrendPoint   `json:"revenueTrend"`
	StatusDistribution []StatusSlice  `json:"statusDistribution"`
	TopProducts        []ProductSales `json:"topProducts"`
	RecentTransactions []Transaction  `json:"recentTransactions"`
}

// Window is an inclusive range of issue dates.
type Window struct {
	From time.Time
	To   time.Time
}

// Windows returns the current trailing window ending on asOf's date and the previous
// window of equal length right before it.
func Windows(asOf time.Time, days int) (current, previous Window) {
	today := day(asOf)
	current = Window{From: today.AddDate(0, 0, -days), To: today}
	previous = Window{From: current.From.AddDate(0, 0, -days), To: current.From.AddDate(0, 0, -1)}
	return current, previous
}

// SummariseInventory computes stats over active products.
func SummariseInventory(products []inventory.Product) InventoryStats {
	stats := InventoryStats{
		TotalStockValue:  decimal.Zero,
		TotalRetailValue: decimal.Zero,
		CategoryList:     []string{},
	}
	seen := make(map[string]struct{})
	for _, p := range products {
		if !p.Active {
			continue
		}
		stats.TotalProducts++
		if p.IsLowStock() {
			stats.LowStockCount++
		}
		qty := decimal.NewFromInt(p.Stock)
		stats.TotalStockValue = stats.TotalStockValue.Add(p.Cost.Mul(qty))
		stats.TotalRetailValue = stats.TotalRetailValue.Add(p.Price.Mul(qty))
		stats.TotalItems += p.Stock
		if _, ok := seen[p.Category]; !ok && p.Category != "" {
			seen[p.Category] = struct{}{}
			stats.CategoryList = append(stats.CategoryList, p.Category)
		}
	}
	sort.Strings(stats.CategoryList)
	stats.Categories = len(stats.CategoryList)
	return stats
}

// SummariseInvoices computes status counts and paid revenue.
func SummariseInvoices(invoices []invoicing.Invoice) InvoiceStats {
	stats := InvoiceStats{TotalRevenue: decimal.Zero, TotalInvoices: len(invoices)}
	for _, inv := range invoices {
		switch inv.Status {
		case invoicing.StatusPaid:
			stats.PaidCount++
			stats.TotalRevenue = stats.TotalRevenue.Add(inv.Total())
		case invoicing.StatusPending:
			stats.PendingCount++
		case invoicing.StatusOverdue:
			stats.OverdueCount++
		}
	}
	return stats
}

// BuildSalesAnalytics aggregates invoices issued in the current window and compares paid
// revenue with the previous window.
func BuildSalesAnalytics(days int, window Window, current, previous []invoicing.Invoice) SalesAnalytics {
	out := SalesAnalytics{
		Period:             days,
		From:               window.From.Format(invoicing.DateLayout),
		To:                 window.To.Format(invoicing.DateLayout),
		RevenueTrend:       []TrendPoint{},
		StatusDistribution: []StatusSlice{},
		TopProducts:        []ProductSales{},
		RecentTransactions: []Transaction{},
	}
	stats := SummariseInvoices(current)
	out.Summary = Summary{
		TotalRevenue:        stats.TotalRevenue,
		TotalInvoices:       stats.TotalInvoices,
		PaidInvoices:        stats.PaidCount,
		PendingInvoices:     stats.PendingCount,
		OverdueInvoices:     stats.OverdueCount,
		AverageInvoiceValue: decimal.Zero,
		RevenueGrowth:       decimal.Zero,
	}
	if stats.PaidCount > 0 {
		out.Summary.AverageInvoiceValue = stats.TotalRevenue.Div(decimal.NewFromInt(int64(stats.PaidCount))).Round(2)
	}
	if prev := SummariseInvoices(previous).TotalRevenue; prev.IsPositive() {
		out.Summary.RevenueGrowth = stats.TotalRevenue.Sub(prev).Div(prev).Mul(decimal.NewFromInt(100)).Round(1)
	}

	trend := make(map[string]*TrendPoint)
	products := make(map[string]*ProductSales)
	for _, inv := range current {
		if inv.Status != invoicing.StatusPaid {
			continue
		}
		out.Summary.TotalItemsSold += inv.ItemsSold()
		date := inv.IssueDate.Format(invoicing.DateLayout)
		point, ok := trend[date]
		if !ok {
			point = &TrendPoint{Date: date, Revenue: decimal.Zero}
			trend[date] = point
		}
		point.Revenue = point.Revenue.Add(inv.Total())
		point.Invoices++
		for _, item := range inv.Items {
			ps, ok := products[item.Description]
			if !ok {
				ps = &ProductSales{Name: item.Description, Revenue: decimal.Zero}
				products[item.Description] = ps
			}
			ps.Quantity += item.Quantity
			ps.Revenue = ps.Revenue.Add(item.Amount())
		}
	}
	for _, point := range trend {
		out.RevenueTrend = append(out.RevenueTrend, *point)
	}
	sort.Slice(out.RevenueTrend, func(i, j int) bool { return out.RevenueTrend[i].Date < out.RevenueTrend[j].Date })

	for _, slice := range []StatusSlice{
		{Name: "Paid", Value: stats.PaidCount},
		{Name: "Pending", Value: stats.PendingCount},
		{Name: "Overdue", Value: stats.OverdueCount},
	} {
		if slice.Value > 0 {
			out.StatusDistribution = append(out.StatusDistribution, slice)
		}
	}

	for _, ps := range products {
		out.TopProducts = append(out.TopProducts, *ps)
	}
	sort.Slice(out.TopProducts, func(i, j int) bool {
		a, b := out.TopProducts[i], out.TopProducts[j]
		if c := a.Revenue.Cmp(b.Revenue); c != 0 {
			return c > 0
		}
		return a.Name < b.Name
	})
	if len(out.TopProducts) > topProductsLimit {
		out.TopProducts = out.TopProducts[:topProductsLimit]
	}

	recent := append([]invoicing.Invoice(nil), current...)
	sort.Slice(recent, func(i, j int) bool {
		if !recent[i].IssueDate.Equal(recent[j].IssueDate) {
			return recent[i].IssueDate.After(recent[j].IssueDate)
		}
		return recent[i].ID > recent[j].ID
	})
	if len(recent) > recentLimit {
		recent = recent[:recentLimit]
	}
	for _, inv := range recent {
		out.RecentTransactions = append(out.RecentTransactions, Transaction{
			ID:         inv.ID,
			ClientName: inv.ClientName,
			DateIssued: inv.IssueDate.Format(invoicing.DateLayout),
			Total:      inv.Total(),
			Status:     inv.Status,
		})
	}
	return out
}

func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
