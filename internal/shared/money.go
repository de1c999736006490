package shared

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var rupiahPrinter = message.NewPrinter(language.Indonesian)

// FormatRupiah renders an amount in Indonesian Rupiah using Indonesian digit grouping.
func FormatRupiah(amount decimal.Decimal) string {
	value := amount.Round(2).InexactFloat64()
	return rupiahPrinter.Sprint(currency.Symbol(currency.IDR.Amount(value)))
}
