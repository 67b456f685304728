package payment

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
	service "github.com/Additional-Code/mesa/internal/service/payment"
	"github.com/Additional-Code/mesa/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/mesa/transport/http/payment")

// Handler exposes payment endpoints over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs a payment Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with the provided Echo instance.
func Register(e *echo.Echo, h *Handler, cfg config.Config) {
	g := e.Group("/payments", auth.Middleware(cfg.Auth.JWTSecret))
	g.POST("/credit-card", h.submitCard, auth.RequireRole(auth.RoleClient))
	g.POST("/manual", h.submitManual, auth.RequireRole(auth.RoleClient))
	g.POST("/:id/verify", h.verify, auth.RequireRole(auth.RoleAdmin))
	g.GET("/order/:id", h.listByOrder, auth.RequireRole(auth.RoleClient, auth.RoleAdmin))
	g.GET("/:id", h.getByID, auth.RequireRole(auth.RoleClient, auth.RoleAdmin))
}

func (h *Handler) submitCard(c echo.Context) error {
	b := response.New(c)

	principal, err := auth.FromContext(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload dto.CreditCardPaymentRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if errs := payload.Validate(); errs != nil {
		return b.WithError(errorbank.BadRequest("validation failed", errorbank.WithDetails(errs))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "payments.submitCard", trace.WithAttributes(
		attribute.Int64("order.id", payload.OrderID),
	))
	defer span.End()

	txn, err := h.svc.SubmitCard(ctx, principal.UserID, payload)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithMessage("Payment processed").WithData(txn).Build()
}

func (h *Handler) submitManual(c echo.Context) error {
	b := response.New(c)

	principal, err := auth.FromContext(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload dto.ManualPaymentRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if errs := payload.Validate(); errs != nil {
		return b.WithError(errorbank.BadRequest("validation failed", errorbank.WithDetails(errs))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "payments.submitManual", trace.WithAttributes(
		attribute.Int64("order.id", payload.OrderID),
		attribute.String("payment.method", payload.PaymentMethod),
	))
	defer span.End()

	txn, err := h.svc.SubmitManual(ctx, principal.UserID, payload)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithMessage("Payment submitted for verification").WithData(txn).Build()
}

func (h *Handler) verify(c echo.Context) error {
	b := response.New(c)

	principal, err := auth.FromContext(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	id, err := parseID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	approved, err := strconv.ParseBool(c.QueryParam("approved"))
	if err != nil {
		return b.WithError(errorbank.BadRequest("approved query parameter must be true or false")).Build()
	}

	// Optional body carries admin notes; an empty body is fine.
	var payload dto.VerifyPaymentRequest
	_ = c.Bind(&payload)
	payload.Approved = approved

	ctx, span := httpTracer.Start(c.Request().Context(), "payments.verify", trace.WithAttributes(
		attribute.Int64("transaction.id", id),
		attribute.Bool("approved", payload.Approved),
	))
	defer span.End()

	txn, err := h.svc.Verify(ctx, principal.UserID, id, payload)
	if err != nil {
		return b.WithError(err).Build()
	}

	message := "Payment approved"
	if !payload.Approved {
		message = "Payment rejected"
	}
	return b.WithMessage(message).WithData(txn).Build()
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

	ctx, span := httpTracer.Start(c.Request().Context(), "payments.getByID", trace.WithAttributes(attribute.Int64("transaction.id", id)))
	defer span.End()

	txn, err := h.svc.Get(ctx, id, principal.UserID, principal.Role == auth.RoleAdmin)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(txn).Build()
}

func (h *Handler) listByOrder(c echo.Context) error {
	b := response.New(c)

	principal, err := auth.FromContext(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	id, err := parseID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "payments.listByOrder", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	txns, err := h.svc.ListByOrder(ctx, id, principal.UserID, principal.Role == auth.RoleAdmin)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(txns).Build()
}

func parseID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errorbank.BadRequest("invalid id")
	}
	return id, nil
}
