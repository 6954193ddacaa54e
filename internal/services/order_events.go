package services

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

type orderEvents struct {
	publisher OrderEventPublisher
	clock     func() time.Time
	logger    func(ctx context.Context, event string, fields map[string]any)
}

func newOrderEvents(publisher OrderEventPublisher, clock func() time.Time, logger func(ctx context.Context, event string, fields map[string]any)) *orderEvents {
	return &orderEvents{publisher: publisher, clock: clock, logger: logger}
}

// publish emits an order event. Delivery failures are logged and never fail the caller.
func (e *orderEvents) publish(ctx context.Context, eventType string, order Order, metadata map[string]any) {
	if e == nil || e.publisher == nil {
		return
	}
	event := OrderEvent{
		ID:            ulid.Make().String(),
		Type:          eventType,
		OrderID:       order.ID,
		UserID:        order.UserID,
		PaymentStatus: string(order.PaymentStatus),
		OrderStatus:   string(order.Status),
		Total:         order.Totals.Total,
		OccurredAt:    e.clock(),
		Metadata:      metadata,
	}
	if err := e.publisher.PublishOrderEvent(ctx, event); err != nil {
		e.logger(ctx, "order.event.publish.failed", map[string]any{
			"orderId": order.ID,
			"type":    eventType,
			"error":   err.Error(),
		})
	}
}
