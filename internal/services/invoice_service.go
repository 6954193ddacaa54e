package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/RANAPRINCE06/Watch/internal/domain"
	"github.com/RANAPRINCE06/Watch/internal/repositories"
)

// InvoiceStyle selects how a layout line is typeset.
type InvoiceStyle int

const (
	InvoiceStyleBody InvoiceStyle = iota
	InvoiceStyleTitle
	InvoiceStyleSubtitle
	InvoiceStyleHeading
	InvoiceStyleTotal
	InvoiceStyleFooter
	InvoiceStyleSpacer
)

// InvoiceLine is one line of an invoice.
type InvoiceLine struct {
	Text  string
	Style InvoiceStyle
}

// InvoiceLayout is the typeset-independent content of an invoice. It depends only on the order.
type InvoiceLayout struct {
	OrderID  string
	IssuedAt time.Time
	Lines    []InvoiceLine
	Filename string
}

var invoiceZone = time.FixedZone("IST", 5*60*60+30*60)

// LayoutInvoice builds the invoice content for order.
func LayoutInvoice(order Order) InvoiceLayout {
	ship := order.Shipping
	lines := []InvoiceLine{
		{Text: "CHRONO LUXURY", Style: InvoiceStyleTitle},
		{Text: "Invoice", Style: InvoiceStyleSubtitle},
		{Style: InvoiceStyleSpacer},
		{Text: "Order ID: " + order.ID},
		{Text: "Date: " + order.CreatedAt.In(invoiceZone).Format("02 Jan 2006")},
		{Text: "Status: " + string(order.Status)},
		{Style: InvoiceStyleSpacer},
		{Text: "Ship To", Style: InvoiceStyleHeading},
		{Text: fmt.Sprintf("%s, %s", ship.Name, ship.Phone)},
		{Text: ship.Email},
		{Text: ship.Address},
		{Text: strings.TrimSpace(fmt.Sprintf("%s %s", ship.City, ship.State)) + " - " + ship.Pincode},
		{Style: InvoiceStyleSpacer},
		{Text: "Items", Style: InvoiceStyleHeading},
	}
	for _, item := range order.Items {
		lines = append(lines, InvoiceLine{
			Text: fmt.Sprintf("%s x %d - %s", item.Name, item.Quantity, formatAmount(item.LineTotal())),
		})
	}
	lines = append(lines,
		InvoiceLine{Style: InvoiceStyleSpacer},
		InvoiceLine{Text: "Subtotal: " + formatAmount(order.Totals.Subtotal)},
	)
	if order.Totals.Discount > 0 {
		discount := "Discount: -" + formatAmount(order.Totals.Discount)
		if order.CouponCode != "" {
			discount += " (" + order.CouponCode + ")"
		}
		lines = append(lines, InvoiceLine{Text: discount})
	}
	lines = append(lines,
		InvoiceLine{Text: fmt.Sprintf("GST (%d%%): %s", domain.TaxRatePercent, formatAmount(order.Totals.Tax))},
		InvoiceLine{Text: "Total: " + formatAmount(order.Totals.Total), Style: InvoiceStyleTotal},
		InvoiceLine{Style: InvoiceStyleSpacer},
		InvoiceLine{Text: "Thank you for your purchase.", Style: InvoiceStyleFooter},
	)
	return InvoiceLayout{
		OrderID:  order.ID,
		IssuedAt: order.CreatedAt.UTC(),
		Lines:    lines,
		Filename: fmt.Sprintf("invoice-%s.pdf", order.ID),
	}
}

func formatAmount(amount int64) string {
	return formatRupees(amount) + ".00"
}

// InvoiceServiceDeps bundles collaborators for the invoice renderer.
type InvoiceServiceDeps struct {
	Orders repositories.OrderRepository
}

type invoiceService struct {
	orders repositories.OrderRepository
}

// NewInvoiceService wires an InvoiceService.
func NewInvoiceService(deps InvoiceServiceDeps) (InvoiceService, error) {
	if deps.Orders == nil {
		return nil, errors.New("invoice service: order repository is not configured")
	}
	return &invoiceService{orders: deps.Orders}, nil
}

func (s *invoiceService) RenderInvoice(ctx context.Context, access OrderAccess) (Invoice, error) {
	order, err := s.orders.FindByID(ctx, access.OrderID)
	if err != nil {
		return Invoice{}, translateOrderError(err)
	}
	if !canAccessOrder(order, access) {
		return Invoice{}, ErrOrderNotFound
	}
	layout := LayoutInvoice(order)
	body, err := WriteInvoicePDF(layout)
	if err != nil {
		return Invoice{}, fmt.Errorf("invoice: render %s: %w", order.ID, err)
	}
	return Invoice{Filename: layout.Filename, ContentType: "application/pdf", Body: body}, nil
}

// WriteInvoicePDF typesets layout. Document dates are pinned to the order creation time so equal
// orders produce identical bytes.
func WriteInvoicePDF(layout InvoiceLayout) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(18, 18, 18)
	pdf.SetCreationDate(layout.IssuedAt)
	pdf.SetModificationDate(layout.IssuedAt)
	pdf.SetCatalogSort(true)
	pdf.SetTitle("Invoice "+layout.OrderID, true)
	pdf.SetAuthor("Chrono Luxury", true)
	pdf.AddPage()

	// Core fonts are cp1252 and have no rupee glyph.
	translate := pdf.UnicodeTranslatorFromDescriptor("")
	text := func(s string) string { return translate(strings.ReplaceAll(s, "₹", "Rs. ")) }

	for _, line := range layout.Lines {
		switch line.Style {
		case InvoiceStyleSpacer:
			pdf.Ln(5)
		case InvoiceStyleTitle:
			pdf.SetFont("Helvetica", "B", 24)
			pdf.CellFormat(0, 12, text(line.Text), "", 1, "C", false, 0, "")
		case InvoiceStyleSubtitle:
			pdf.SetFont("Helvetica", "", 10)
			pdf.CellFormat(0, 6, text(line.Text), "", 1, "C", false, 0, "")
		case InvoiceStyleHeading:
			pdf.SetFont("Helvetica", "BU", 11)
			pdf.CellFormat(0, 7, text(line.Text), "", 1, "L", false, 0, "")
		case InvoiceStyleTotal:
			pdf.SetFont("Helvetica", "BU", 11)
			pdf.CellFormat(0, 7, text(line.Text), "", 1, "L", false, 0, "")
		case InvoiceStyleFooter:
			pdf.SetFont("Helvetica", "I", 10)
			pdf.CellFormat(0, 6, text(line.Text), "", 1, "C", false, 0, "")
		default:
			pdf.SetFont("Helvetica", "", 10)
			pdf.MultiCell(0, 6, text(line.Text), "", "L", false)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
