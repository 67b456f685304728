package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/mesa/internal/cache"
	"github.com/Additional-Code/mesa/internal/config"
	"github.com/Additional-Code/mesa/internal/dto"
	"github.com/Additional-Code/mesa/internal/entity"
	"github.com/Additional-Code/mesa/internal/notification"
	menurepo "github.com/Additional-Code/mesa/internal/repository/menu"
	orderrepo "github.com/Additional-Code/mesa/internal/repository/order"
	"github.com/Additional-Code/mesa/pkg/errorbank"
	"github.com/Additional-Code/mesa/pkg/refcode"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/mesa/service/order")

const (
	// cancellationWindow is the fixed period before pickup during which
	// cancellation is disallowed. Policy constant, not configurable.
	cancellationWindow = 24 * time.Hour

	// maxCodeAttempts bounds the order-code retry loop so a pathological
	// collision streak fails closed instead of spinning.
	maxCodeAttempts = 5

	pickupCodeLength = 16
	daysPerWeek      = 7
)

// OrderStore is the durable order table plus its audit trail. All
// mutations are atomic: the order write and the history append either
// both commit or neither does.
type OrderStore interface {
	Create(ctx context.Context, order *entity.Order, hist *entity.StatusHistory) error
	GetByID(ctx context.Context, id int64) (*entity.Order, error)
	ListByClient(ctx context.Context, clientID int64) ([]entity.Order, error)
	ListAll(ctx context.Context) ([]entity.Order, error)
	Transition(ctx context.Context, id int64, from, to entity.OrderStatus, apply func(*entity.Order), hist *entity.StatusHistory) (*entity.Order, error)
	History(ctx context.Context, orderID int64) ([]entity.StatusHistory, error)
}

// MenuStore supplies the priced weekly menu snapshot an order references.
type MenuStore interface {
	GetByID(ctx context.Context, id int64) (*entity.WeeklyMenu, error)
}

// Service is the order lifecycle engine: it validates and executes state
// transitions, enforces the cancellation policy and emits notifications
// on accepted transitions.
type Service struct {
	orders     OrderStore
	menus      MenuStore
	cache      cache.Store
	cacheTTL   time.Duration
	logger     *zap.Logger
	dispatcher notification.Dispatcher
	now        func() time.Time
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Orders     OrderStore
	Menus      MenuStore
	Cache      cache.Store
	Config     config.Config
	Logger     *zap.Logger
	Dispatcher notification.Dispatcher
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		orders:     p.Orders,
		menus:      p.Menus,
		cache:      p.Cache,
		cacheTTL:   p.Config.Cache.DefaultTTL,
		logger:     p.Logger,
		dispatcher: p.Dispatcher,
		now:        time.Now,
	}
}

// Create places a new order against a published menu. The order starts in
// PENDING_PAYMENT with one initial history entry, written atomically.
func (s *Service) Create(ctx context.Context, clientID int64, req dto.CreateOrderRequest) (dto.OrderResponse, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Create", trace.WithAttributes(
		attribute.Int64("client.id", clientID),
		attribute.Int64("menu.id", req.WeeklyMenuID),
	))
	defer span.End()

	menu, err := s.menus.GetByID(ctx, req.WeeklyMenuID)
	if err != nil {
		if errors.Is(err, menurepo.ErrNotFound) {
			return dto.OrderResponse{}, errorbank.NotFound("weekly menu not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "menu lookup failed")
		return dto.OrderResponse{}, errorbank.Internal("failed to load weekly menu", errorbank.WithCause(err))
	}
	if menu.Status != entity.MenuPublished {
		return dto.OrderResponse{}, errorbank.InvalidState("menu is not published")
	}

	now := s.now().UTC()
	if !req.PickupAt.After(now) {
		return dto.OrderResponse{}, errorbank.BadRequest("pickup time must be in the future")
	}
	if req.MealsPerDay < 1 || req.MealsPerDay > 3 {
		return dto.OrderResponse{}, errorbank.BadRequest("meals per day must be between 1 and 3")
	}

	total := menu.PricePerMeal.Mul(daysPerWeek * req.MealsPerDay)

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		order := &entity.Order{
			OrderCode:           refcode.OrderCode(),
			ClientID:            clientID,
			WeeklyMenuID:        menu.ID,
			Status:              entity.StatusPendingPayment,
			TotalAmount:         total,
			MealsPerDay:         req.MealsPerDay,
			IncludeBreakfast:    req.IncludeBreakfast,
			IncludeLunch:        req.IncludeLunch,
			IncludeDinner:       req.IncludeDinner,
			PickupAt:            req.PickupAt.UTC(),
			PickupCode:          refcode.New(pickupCodeLength),
			SpecialInstructions: req.SpecialInstructions,
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		hist := &entity.StatusHistory{
			NewStatus: entity.StatusPendingPayment,
			ChangedBy: &clientID,
			Notes:     "Order created",
			ChangedAt: now,
		}

		err := s.orders.Create(ctx, order, hist)
		if errors.Is(err, orderrepo.ErrCodeTaken) {
			s.logger.Warn("order code collision, retrying", zap.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "repository error")
			return dto.OrderResponse{}, errorbank.Internal("failed to create order", errorbank.WithCause(err))
		}

		s.logger.Info("order created",
			zap.Int64("order_id", order.ID),
			zap.String("order_code", order.OrderCode),
			zap.Int64("client_id", clientID),
		)
		s.notify(ctx, order, notification.EventOrderCreated)
		return s.respond(ctx, order)
	}

	return dto.OrderResponse{}, errorbank.Internal("could not allocate a unique order code")
}

// Get returns an order with its audit trail. Only the owning client may
// read it; mismatches deliberately surface as a 400-class error rather
// than 403.
func (s *Service) Get(ctx context.Context, id, clientID int64) (dto.OrderResponse, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Get", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := s.load(ctx, id)
	if err != nil {
		return dto.OrderResponse{}, err
	}
	if order.ClientID != clientID {
		return dto.OrderResponse{}, errorbank.Forbidden("order access denied")
	}
	return s.respond(ctx, order)
}

// ListByClient returns the client's orders, newest first.
func (s *Service) ListByClient(ctx context.Context, clientID int64) ([]dto.OrderResponse, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.ListByClient", trace.WithAttributes(attribute.Int64("client.id", clientID)))
	defer span.End()

	orders, err := s.orders.ListByClient(ctx, clientID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to list orders", errorbank.WithCause(err))
	}
	return toResponses(orders), nil
}

// ListAll returns every order for administrators.
func (s *Service) ListAll(ctx context.Context) ([]dto.OrderResponse, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.ListAll")
	defer span.End()

	orders, err := s.orders.ListAll(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to list orders", errorbank.WithCause(err))
	}
	return toResponses(orders), nil
}

// UpdateStatus advances an order along the state machine on behalf of an
// administrator. Moves outside the transition table are rejected without
// any mutation; the losing side of a concurrent race fails the same way.
func (s *Service) UpdateStatus(ctx context.Context, id, adminID int64, req dto.UpdateOrderStatusRequest) (dto.OrderResponse, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.UpdateStatus", trace.WithAttributes(
		attribute.Int64("order.id", id),
		attribute.String("order.status.to", req.Status),
	))
	defer span.End()

	to, ok := entity.ParseOrderStatus(req.Status)
	if !ok {
		return dto.OrderResponse{}, errorbank.BadRequest(fmt.Sprintf("unknown order status %q", req.Status))
	}

	order, err := s.load(ctx, id)
	if err != nil {
		return dto.OrderResponse{}, err
	}
	from := order.Status
	if !from.CanTransitionTo(to) {
		return dto.OrderResponse{}, errorbank.InvalidTransition(fmt.Sprintf("cannot transition from %s to %s", from, to))
	}

	now := s.now().UTC()
	hist := &entity.StatusHistory{
		ChangedBy: &adminID,
		Notes:     req.Notes,
		ChangedAt: now,
	}

	updated, err := s.orders.Transition(ctx, id, from, to, nil, hist)
	if err != nil {
		return dto.OrderResponse{}, s.transitionError(err, span)
	}

	s.logger.Info("order status updated",
		zap.Int64("order_id", id),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
	s.invalidate(ctx, id)
	s.notify(ctx, updated, eventForStatus(to))
	return s.respond(ctx, updated)
}

// Cancel cancels an order on behalf of its owning client. Preconditions
// are checked in order: ownership, then state, then the 24-hour policy.
func (s *Service) Cancel(ctx context.Context, id, clientID int64, req dto.CancelOrderRequest) (dto.OrderResponse, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Cancel", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := s.load(ctx, id)
	if err != nil {
		return dto.OrderResponse{}, err
	}
	if order.ClientID != clientID {
		return dto.OrderResponse{}, errorbank.Forbidden("order access denied")
	}

	switch {
	case order.Status == entity.StatusCancelled:
		return dto.OrderResponse{}, errorbank.InvalidState("order is already cancelled")
	case order.Status == entity.StatusCompleted:
		return dto.OrderResponse{}, errorbank.InvalidState("cannot cancel a completed order")
	case !order.Status.CanTransitionTo(entity.StatusCancelled):
		return dto.OrderResponse{}, errorbank.InvalidState(fmt.Sprintf("order in status %s cannot be cancelled", order.Status))
	}

	now := s.now().UTC()
	if now.After(order.PickupAt.Add(-cancellationWindow)) {
		return dto.OrderResponse{}, errorbank.PolicyViolation("orders cannot be cancelled within 24 hours of pickup")
	}

	from := order.Status
	hist := &entity.StatusHistory{
		ChangedBy: &clientID,
		Notes:     req.Reason,
		ChangedAt: now,
	}
	apply := func(o *entity.Order) {
		o.CancellationReason = req.Reason
		cancelledAt := now
		o.CancelledAt = &cancelledAt
	}

	updated, err := s.orders.Transition(ctx, id, from, entity.StatusCancelled, apply, hist)
	if err != nil {
		return dto.OrderResponse{}, s.transitionError(err, span)
	}

	s.logger.Info("order cancelled", zap.Int64("order_id", id), zap.String("order_code", updated.OrderCode))
	s.invalidate(ctx, id)
	s.notify(ctx, updated, notification.EventOrderCancelled)
	return s.respond(ctx, updated)
}

func (s *Service) transitionError(err error, span trace.Span) error {
	switch {
	case errors.Is(err, orderrepo.ErrNotFound):
		return errorbank.NotFound("order not found")
	case errors.Is(err, orderrepo.ErrStatusConflict):
		return errorbank.InvalidTransition("order status changed concurrently")
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return errorbank.Internal("failed to update order", errorbank.WithCause(err))
	}
}

// load fetches an order, consulting cache when available.
func (s *Service) load(ctx context.Context, id int64) (*entity.Order, error) {
	if order, err := s.getFromCache(ctx, id); err == nil {
		return order, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("orders cache read failed", zap.Int64("id", id), zap.Error(err))
	}

	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, orderrepo.ErrNotFound) {
			return nil, errorbank.NotFound("order not found")
		}
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}

	if err := s.storeInCache(ctx, order); err != nil {
		s.logger.Warn("orders cache write failed", zap.Int64("id", id), zap.Error(err))
	}
	return order, nil
}

func (s *Service) respond(ctx context.Context, order *entity.Order) (dto.OrderResponse, error) {
	history, err := s.orders.History(ctx, order.ID)
	if err != nil {
		s.logger.Warn("history fetch failed", zap.Int64("order_id", order.ID), zap.Error(err))
		history = nil
	}
	return dto.NewOrderResponse(order, history), nil
}

func (s *Service) notify(ctx context.Context, order *entity.Order, eventType string) {
	if eventType == "" {
		return
	}
	s.dispatcher.Notify(ctx, notification.OrderEvent{
		EventType: eventType,
		OrderID:   order.ID,
		OrderCode: order.OrderCode,
		ClientID:  order.ClientID,
		Status:    string(order.Status),
	})
}

func (s *Service) invalidate(ctx context.Context, id int64) {
	if err := s.cache.Delete(ctx, cacheKey(id)); err != nil {
		s.logger.Warn("orders cache delete failed", zap.Int64("id", id), zap.Error(err))
	}
}

func (s *Service) getFromCache(ctx context.Context, id int64) (*entity.Order, error) {
	if s.cache == nil {
		return nil, cache.ErrCacheMiss
	}
	bytes, err := s.cache.Get(ctx, cacheKey(id))
	if err != nil {
		return nil, err
	}
	var order entity.Order
	if err := json.Unmarshal(bytes, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Service) storeInCache(ctx context.Context, order *entity.Order) error {
	if s.cache == nil || order == nil {
		return nil
	}
	bytes, err := json.Marshal(order)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, cacheKey(order.ID), bytes, s.cacheTTL)
}

func cacheKey(id int64) string {
	return fmt.Sprintf("orders:%d", id)
}

func toResponses(orders []entity.Order) []dto.OrderResponse {
	responses := make([]dto.OrderResponse, 0, len(orders))
	for i := range orders {
		responses = append(responses, dto.NewOrderResponse(&orders[i], nil))
	}
	return responses
}

func eventForStatus(status entity.OrderStatus) string {
	switch status {
	case entity.StatusPaid:
		return notification.EventOrderPaid
	case entity.StatusInPreparation:
		return notification.EventOrderPreparing
	case entity.StatusReadyForPickup:
		return notification.EventOrderReady
	case entity.StatusCompleted:
		return notification.EventOrderCompleted
	case entity.StatusCancelled:
		return notification.EventOrderCancelled
	default:
		return ""
	}
}
