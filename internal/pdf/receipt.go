// Package pdf renders VAT receipts as A4 tax invoices.
//
// Page layout:
//
//	HEADER     business name + location | receipt ID + date
//	CUSTOMER   name, email, phone, address
//	TABLE      qty | description | unit price | tax code | VAT | total
//	TOTALS     subtotal, shipping, VAT (rate), total
//	FOOTER     TRN, jurisdiction, tax authority
package pdf

import (
	"context"
	"fmt"
	"strconv"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"github.com/nexustechhub/mdts/internal/tax"
)

var (
	colorPrimary = &props.Color{Red: 12, Green: 74, Blue: 110}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
)

// ReceiptRenderer turns receipts into PDF documents.
type ReceiptRenderer struct{}

func NewReceiptRenderer() *ReceiptRenderer { return &ReceiptRenderer{} }

// Render returns the PDF bytes for r.
func (g *ReceiptRenderer) Render(_ context.Context, r tax.Receipt) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle("Tax Invoice "+r.ReceiptID, true).
		WithAuthor(r.BusinessDetails.Name, true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(headerRow(r))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(customerRow(r.CustomerDetails))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))

	m.AddRows(tableHeaderRow())
	m.AddRows(itemRows(r.TransactionDetails.Items)...)

	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
	m.AddRows(totalsRow(r.TransactionDetails))

	m.AddRows(line.NewRow(3))
	m.AddRows(line.NewRow(1, props.Line{Color: colorGray, Thickness: 0.3}))
	m.AddRows(footerRow(r.Compliance))

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generate receipt %s: %w", r.ReceiptID, err)
	}
	return doc.GetBytes(), nil
}

func headerRow(r tax.Receipt) core.Row {
	b := r.BusinessDetails

	return row.New(18).Add(
		col.New(7).Add(
			text.New(b.Name, props.Text{
				Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1,
			}),
			text.New(fmt.Sprintf("%s  |  %s", b.Location, b.Phone), props.Text{
				Size: 9, Top: 9, Color: colorGray,
			}),
		),
		col.New(5).Add(
			text.New("TAX INVOICE", props.Text{
				Style: fontstyle.Bold, Size: 8, Align: align.Right,
				Color: colorPrimary, Top: 1,
			}),
			text.New(r.ReceiptID, props.Text{
				Style: fontstyle.Bold, Size: 12, Align: align.Right, Top: 7,
			}),
			text.New("Date: "+r.TransactionDetails.Date.Format("02 Jan 2006 15:04 MST"), props.Text{
				Size: 8, Align: align.Right, Top: 14, Color: colorGray,
			}),
		),
	)
}

func customerRow(c tax.CustomerDetails) core.Row {
	return row.New(14).Add(
		col.New(12).Add(
			text.New("BILL TO", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
			text.New(nonEmpty(c.Name, "Walk-in customer"), props.Text{
				Style: fontstyle.Bold, Size: 10, Top: 6,
			}),
			text.New(fmt.Sprintf("Email: %s   |   Tel: %s   |   Address: %s",
				nonEmpty(c.Email, "-"),
				nonEmpty(c.Phone, "-"),
				nonEmpty(c.Address, "-"),
			), props.Text{Size: 8, Top: 12, Color: colorGray}),
		),
	)
}

func tableHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a,
			Color: colorPrimary, Top: 2, Left: 1, Right: 1,
		}))
	}
	return row.New(8).Add(
		h("Qty", 1, align.Center),
		h("Description", 4, align.Left),
		h("Unit price", 2, align.Right),
		h("Tax code", 2, align.Center),
		h("VAT", 1, align.Right),
		h("Total", 2, align.Right),
	)
}

func itemRows(items []tax.ItemBreakdown) []core.Row {
	rows := make([]core.Row, 0, len(items))
	for _, it := range items {
		rows = append(rows, row.New(7).Add(
			col.New(1).Add(text.New(strconv.Itoa(it.Quantity),
				props.Text{Size: 8, Align: align.Center, Top: 1})),
			col.New(4).Add(text.New(it.Name,
				props.Text{Size: 8, Align: align.Left, Top: 1, Left: 1})),
			col.New(2).Add(text.New(tax.FormatCurrency(it.Price),
				props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1})),
			col.New(2).Add(text.New(it.TaxCode,
				props.Text{Size: 7, Align: align.Center, Top: 1, Color: colorGray})),
			col.New(1).Add(text.New(it.VATAmount.StringFixed(2),
				props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1})),
			col.New(2).Add(text.New(tax.FormatCurrency(it.Total),
				props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1})),
		))
	}
	return rows
}

func totalsRow(t tax.TransactionDetails) core.Row {
	label := func(s string, top float64) core.Component {
		return text.New(s, props.Text{
			Style: fontstyle.Bold, Size: 9, Align: align.Right, Right: 2, Top: top,
		})
	}
	value := func(s string, top float64) core.Component {
		return text.New(s, props.Text{Size: 9, Align: align.Right, Right: 1, Top: top})
	}
	grand := func(s string, top float64) core.Component {
		return text.New(s, props.Text{
			Style: fontstyle.Bold, Size: 10, Align: align.Right,
			Color: colorPrimary, Right: 1, Top: top,
		})
	}

	return row.New(28).Add(
		col.New(6),
		col.New(3).Add(
			label("Subtotal:", 1),
			label("Shipping:", 7),
			label(fmt.Sprintf("VAT (%s):", t.VATRate), 13),
			label("TOTAL:", 20),
		),
		col.New(3).Add(
			value(tax.FormatCurrency(t.Subtotal), 1),
			value(tax.FormatCurrency(t.ShippingCost), 7),
			value(tax.FormatCurrency(t.VATAmount), 13),
			grand(tax.FormatCurrency(t.Total), 20),
		),
	)
}

func footerRow(c tax.ReceiptCompliance) core.Row {
	return row.New(16).Add(col.New(12).Add(
		text.New("TRN: "+c.VATNumber, props.Text{
			Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
		}),
		text.New(fmt.Sprintf("Tax point %s  |  Jurisdiction %s  |  %s",
			c.TaxPoint.Format("02 Jan 2006"), c.Jurisdiction, c.TaxAuthority,
		), props.Text{Size: 7, Color: colorGray, Top: 6}),
		text.New("This document is a tax invoice issued under UAE VAT law. Keep it for your records.",
			props.Text{Size: 6.5, Color: colorGray, Top: 11}),
	))
}

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}
