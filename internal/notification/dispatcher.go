// Package notification publishes order lifecycle events for delivery to
// clients. Dispatch is best-effort: a publish failure is logged and never
// propagated, so a notification problem can never roll back or fail a
// committed state transition.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/mesa/internal/config"
	"github.com/Additional-Code/mesa/internal/messaging"
)

// Event types emitted on order state changes.
const (
	EventOrderCreated   = "order.created"
	EventOrderPaid      = "order.paid"
	EventOrderPreparing = "order.preparing"
	EventOrderReady     = "order.ready_for_pickup"
	EventOrderCompleted = "order.completed"
	EventOrderCancelled = "order.cancelled"
)

// OrderEvent is the payload published to the message bus.
type OrderEvent struct {
	EventType  string    `json:"event_type"`
	OrderID    int64     `json:"order_id"`
	OrderCode  string    `json:"order_code"`
	ClientID   int64     `json:"client_id"`
	Status     string    `json:"status"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Dispatcher delivers order events to interested parties.
type Dispatcher interface {
	Notify(ctx context.Context, event OrderEvent)
}

// Module provides the dispatcher to the Fx graph.
var Module = fx.Provide(NewDispatcher)

type busDispatcher struct {
	publisher messaging.Client
	logger    *zap.Logger
	timeout   time.Duration
	enabled   bool
}

// NewDispatcher builds a Dispatcher backed by the messaging client.
func NewDispatcher(cfg config.Config, publisher messaging.Client, logger *zap.Logger) Dispatcher {
	return &busDispatcher{
		publisher: publisher,
		logger:    logger,
		timeout:   cfg.Payment.NotifyTimeout,
		enabled:   cfg.Messaging.Enabled,
	}
}

// Notify publishes the event with a bounded timeout. Errors are logged only.
func (d *busDispatcher) Notify(ctx context.Context, event OrderEvent) {
	if !d.enabled || d.publisher == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		d.logger.Error("marshal order event", zap.Error(err), zap.String("event", event.EventType))
		return
	}

	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	key := []byte(fmt.Sprintf("order-%d", event.OrderID))
	if err := d.publisher.Publish(publishCtx, key, payload); err != nil {
		d.logger.Error("publish order event",
			zap.Error(err),
			zap.String("event", event.EventType),
			zap.Int64("order_id", event.OrderID),
		)
	}
}
