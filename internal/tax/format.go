package tax

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var (
	aed       = currency.MustParseISO("AED")
	aePrinter = message.NewPrinter(language.MustParse("en-AE"))
)

// FormatCurrency renders amount in dirhams for display, e.g. "AED 1,234.56".
// Digits come from the decimal itself, so large amounts stay exact.
func FormatCurrency(amount decimal.Decimal) string {
	rounded := amount.Round(2)

	sign := ""
	if rounded.IsNegative() {
		sign = "-"
	}

	whole, frac, _ := strings.Cut(rounded.Abs().StringFixed(2), ".")
	if n, err := strconv.ParseInt(whole, 10, 64); err == nil {
		whole = aePrinter.Sprint(number.Decimal(n))
	}

	return aePrinter.Sprintf("%s %s%s.%s", aed, sign, whole, frac)
}
