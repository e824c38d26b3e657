package service

import (
	"io"
	"log/slog"
	"time"

	"github.com/nexustechhub/mdts/internal/tax"
)

var fixedNow = time.Date(2025, 5, 8, 10, 30, 0, 0, time.UTC)

func testCalculator() *tax.Calculator {
	return tax.NewCalculator(tax.UAE(), tax.WithClock(func() time.Time { return fixedNow }))
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// screenCart is two screens at AED 250 with AED 25 shipping:
// subtotal 500, taxable 525, VAT 26.25, total 551.25.
func screenCart() []tax.LineItem {
	return []tax.LineItem{
		{ID: "scr-13", Name: "iPhone 13 Screen", Category: "parts", Price: 250.0, Quantity: 2},
	}
}
