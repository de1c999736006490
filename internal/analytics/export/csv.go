// Package export renders analytics read models as downloadable files.
package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/invoiceapp/invoiceapp/internal/analytics"
)

// WriteSalesCSV serialises the sales summary followed by the daily revenue trend and
// the top products.
func WriteSalesCSV(w io.Writer, report analytics.SalesAnalytics) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"Metric", "Value"}); err != nil {
		return err
	}
	s := report.Summary
	records := [][]string{
		{"From", report.From},
		{"To", report.To},
		{"Total Revenue", s.TotalRevenue.StringFixed(2)},
		{"Total Invoices", strconv.Itoa(s.TotalInvoices)},
		{"Paid Invoices", strconv.Itoa(s.PaidInvoices)},
		{"Pending Invoices", strconv.Itoa(s.PendingInvoices)},
		{"Overdue Invoices", strconv.Itoa(s.OverdueInvoices)},
		{"Average Invoice Value", s.AverageInvoiceValue.StringFixed(2)},
		{"Items Sold", strconv.FormatInt(s.TotalItemsSold, 10)},
		{"Revenue Growth %", s.RevenueGrowth.StringFixed(1)},
	}
	if err := writer.WriteAll(records); err != nil {
		return err
	}
	if err := WriteTrendCSV(writer, report.RevenueTrend); err != nil {
		return err
	}
	if err := writer.Write(nil); err != nil {
		return err
	}
	if err := writer.Write([]string{"Product", "Quantity", "Revenue"}); err != nil {
		return err
	}
	for _, p := range report.TopProducts {
		if err := writer.Write([]string{p.Name, strconv.FormatInt(p.Quantity, 10), p.Revenue.StringFixed(2)}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteTrendCSV appends the daily revenue trend section.
func WriteTrendCSV(writer *csv.Writer, points []analytics.TrendPoint) error {
	if err := writer.Write(nil); err != nil {
		return err
	}
	if err := writer.Write([]string{"Date", "Revenue", "Invoices"}); err != nil {
		return err
	}
	for _, point := range points {
		if err := writer.Write([]string{point.Date, point.Revenue.StringFixed(2), strconv.Itoa(point.Invoices)}); err != nil {
			return err
		}
	}
	return nil
}
