package jobs

import (
	"context"

	"github.com/RANAPRINCE06/Watch/internal/services"
)

// LogOrderPublisher records events through a logger instead of a broker.
type LogOrderPublisher struct {
	Logger func(ctx context.Context, event string, fields map[string]any)
}

// PublishOrderEvent implements services.OrderEventPublisher.
func (p LogOrderPublisher) PublishOrderEvent(ctx context.Context, event services.OrderEvent) error {
	if p.Logger == nil {
		return nil
	}
	p.Logger(ctx, "order.event", map[string]any{
		"eventId": event.ID,
		"type":    event.Type,
		"orderId": event.OrderID,
	})
	return nil
}
