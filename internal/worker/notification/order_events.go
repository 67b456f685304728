package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/mesa/internal/config"
	"github.com/Additional-Code/mesa/internal/messaging"
	notif "github.com/Additional-Code/mesa/internal/notification"
	"github.com/Additional-Code/mesa/internal/worker"
)

var workerTracer = otel.Tracer("github.com/Additional-Code/mesa/worker/notification")

// Module registers the order event notification handler.
var Module = fx.Module("worker_notification",
	fx.Provide(
		fx.Annotate(
			NewOrderEventHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// NewOrderEventHandler consumes order lifecycle events and delivers the
// rendered notification. Delivery is a structured log line standing in
// for an email provider.
func NewOrderEventHandler(logger *zap.Logger, cfg config.Config) worker.HandlerRegistration {
	handler := func(ctx context.Context, msg messaging.Message) error {
		ctx, span := workerTracer.Start(ctx, "worker.notifications.process", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
		))
		defer span.End()

		var event notif.OrderEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logger.Error("failed to decode order event", zap.Error(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return err
		}

		rendered, ok := notif.Render(event.EventType, map[string]string{
			"orderCode": event.OrderCode,
			"status":    event.Status,
		})
		if !ok {
			logger.Warn("no template for event", zap.String("event", event.EventType))
			return nil
		}

		logger.Info("notification delivered",
			zap.String("event", event.EventType),
			zap.String("recipient", fmt.Sprintf("client-%d", event.ClientID)),
			zap.String("subject", rendered.Title),
			zap.String("body", rendered.Message),
			zap.Int64("order_id", event.OrderID),
		)
		return nil
	}

	return worker.HandlerRegistration{
		Topic:   cfg.Messaging.Kafka.Topic,
		Handler: handler,
	}
}
