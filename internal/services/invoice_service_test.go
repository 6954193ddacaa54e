package services

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/RANAPRINCE06/Watch/internal/domain"
)

func invoiceOrder() Order {
	o := pendingOrder("ord-42", "owner", domain.OrderConfirmed)
	o.CouponCode = "WELCOME10"
	o.CreatedAt = time.Date(2024, 6, 1, 20, 0, 0, 0, time.UTC)
	o.Shipping.State = "KA"
	return o
}

func TestLayoutInvoice(t *testing.T) {
	layout := LayoutInvoice(invoiceOrder())

	if layout.Filename != "invoice-ord-42.pdf" {
		t.Fatalf("unexpected filename %q", layout.Filename)
	}
	texts := make(map[string]bool, len(layout.Lines))
	for _, line := range layout.Lines {
		texts[line.Text] = true
	}
	for _, want := range []string{
		"CHRONO LUXURY",
		"Order ID: ord-42",
		"Date: 02 Jun 2024",
		"Status: confirmed",
		"Bengaluru KA - 560001",
		"Chrono Steel x 2 - ₹60,000.00",
		"Subtotal: ₹60,000.00",
		"Discount: -₹6,000.00 (WELCOME10)",
		"GST (18%): ₹9,720.00",
		"Total: ₹63,720.00",
	} {
		if !texts[want] {
			t.Fatalf("expected line %q in %+v", want, layout.Lines)
		}
	}
	last := layout.Lines[len(layout.Lines)-1]
	if last.Style != InvoiceStyleFooter {
		t.Fatalf("expected footer last, got %+v", last)
	}
}

func TestLayoutInvoiceOmitsZeroDiscount(t *testing.T) {
	o := invoiceOrder()
	o.Totals = domain.ComputeTotals(60000, 0)
	o.CouponCode = ""
	for _, line := range LayoutInvoice(o).Lines {
		if len(line.Text) >= 8 && line.Text[:8] == "Discount" {
			t.Fatalf("unexpected discount line %q", line.Text)
		}
	}
}

func TestInvoiceServiceRenderIsDeterministic(t *testing.T) {
	orders := newMemOrderRepo(newMemProductRepo(), invoiceOrder())
	svc, err := NewInvoiceService(InvoiceServiceDeps{Orders: orders})
	if err != nil {
		t.Fatalf("new invoice service: %v", err)
	}
	ctx := context.Background()

	first, err := svc.RenderInvoice(ctx, OrderAccess{UserID: "owner", OrderID: "ord-42"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	second, err := svc.RenderInvoice(ctx, OrderAccess{UserID: "admin", OrderID: "ord-42", IsAdmin: true})
	if err != nil {
		t.Fatalf("render again: %v", err)
	}
	if !bytes.HasPrefix(first.Body, []byte("%PDF-")) {
		t.Fatalf("expected a PDF document")
	}
	if !bytes.Equal(first.Body, second.Body) {
		t.Fatalf("expected identical bytes for the same order")
	}
	if first.ContentType != "application/pdf" || first.Filename != "invoice-ord-42.pdf" {
		t.Fatalf("unexpected invoice metadata %+v", first)
	}

	if _, err := svc.RenderInvoice(ctx, OrderAccess{UserID: "intruder", OrderID: "ord-42"}); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected not found for other user, got %v", err)
	}
	if _, err := svc.RenderInvoice(ctx, OrderAccess{UserID: "owner", OrderID: "missing"}); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
