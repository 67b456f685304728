package order

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/mesa/internal/auth"
	"github.com/Additional-Code/mesa/internal/config"
	"github.com/Additional-Code/mesa/internal/dto"
	"github.com/Additional-Code/mesa/internal/presentation/http/response"
	service "github.com/Additional-Code/mesa/internal/service/order"
	"github.com/Additional-Code/mesa/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/mesa/transport/http/order")

// Handler exposes order endpoints over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs an order Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with the provided Echo instance. All order routes
// require a bearer token; role checks are applied per route.
func Register(e *echo.Echo, h *Handler, cfg config.Config) {
	g := e.Group("/orders", auth.Middleware(cfg.Auth.JWTSecret))
	g.POST("", h.create, auth.RequireRole(auth.RoleClient))
	g.GET("", h.listAll, auth.RequireRole(auth.RoleAdmin))
	g.GET("/my-orders", h.listMine, auth.RequireRole(auth.RoleClient))
	g.GET("/:id", h.getByID, auth.RequireRole(auth.RoleClient))
	g.PUT("/:id/status", h.updateStatus, auth.RequireRole(auth.RoleAdmin))
	g.POST("/:id/cancel", h.cancel, auth.RequireRole(auth.RoleClient))
}

func (h *Handler) create(c echo.Context) error {
	b := response.New(c)

	principal, err := auth.FromContext(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload dto.CreateOrderRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if errs := payload.Validate(); errs != nil {
		return b.WithError(errorbank.BadRequest("validation failed", errorbank.WithDetails(errs))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.create", trace.WithAttributes(
		attribute.Int64("client.id", principal.UserID),
	))
	defer span.End()

	order, err := h.svc.Create(ctx, principal.UserID, payload)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithStatus(http.StatusCreated).WithMessage("Order created").WithData(order).Build()
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)

	principal, err := auth.FromContext(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	id, err := parseID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.getByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := h.svc.Get(ctx, id, principal.UserID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(order).Build()
}

func (h *Handler) listMine(c echo.Context) error {
	b := response.New(c)

	principal, err := auth.FromContext(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.listMine")
	defer span.End()

	orders, err := h.svc.ListByClient(ctx, principal.UserID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(orders).Build()
}

func (h *Handler) listAll(c echo.Context) error {
	b := response.New(c)

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.listAll")
	defer span.End()

	orders, err := h.svc.ListAll(ctx)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(orders).Build()
}

func (h *Handler) updateStatus(c echo.Context) error {
	b := response.New(c)

	principal, err := auth.FromContext(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	id, err := parseID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload dto.UpdateOrderStatusRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if payload.Status == "" {
		return b.WithError(errorbank.BadRequest("status is required")).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.updateStatus", trace.WithAttributes(
		attribute.Int64("order.id", id),
		attribute.String("order.status.to", payload.Status),
	))
	defer span.End()

	order, err := h.svc.UpdateStatus(ctx, id, principal.UserID, payload)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithMessage("Order status updated").WithData(order).Build()
}

func (h *Handler) cancel(c echo.Context) error {
	b := response.New(c)

	principal, err := auth.FromContext(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	id, err := parseID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload dto.CancelOrderRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.cancel", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := h.svc.Cancel(ctx, id, principal.UserID, payload)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithMessage("Order cancelled").WithData(order).Build()
}

func parseID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errorbank.BadRequest("invalid id")
	}
	return id, nil
}
