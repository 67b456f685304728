package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
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
	orderrepo "github.com/Additional-Code/mesa/internal/repository/order"
	txnrepo "github.com/Additional-Code/mesa/internal/repository/transaction"
	"github.com/Additional-Code/mesa/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/mesa/service/payment")

const (
	cardDeclinedReason  = "Card declined by issuer"
	cardApprovedNote    = "Payment completed"
	rejectDefaultReason = "Payment rejected by admin"
)

// Ledger is the transaction store. Settlement operations flip the order
// to PAID atomically with the ledger write.
type Ledger interface {
	Create(ctx context.Context, txn *entity.Transaction) error
	Settle(ctx context.Context, txn *entity.Transaction, hist *entity.StatusHistory) (*entity.Order, error)
	Approve(ctx context.Context, txnID int64, hist *entity.StatusHistory) (*entity.Transaction, *entity.Order, error)
	Reject(ctx context.Context, txnID int64, reason string) (*entity.Transaction, error)
	GetByID(ctx context.Context, id int64) (*entity.Transaction, error)
	ListByOrder(ctx context.Context, orderID int64) ([]entity.Transaction, error)
	HasCompleted(ctx context.Context, orderID int64) (bool, error)
}

// OrderStore exposes the order reads the payment flows need.
type OrderStore interface {
	GetByID(ctx context.Context, id int64) (*entity.Order, error)
}

// Service implements the payment flows: the synchronous simulated card
// charge and the manual submit-then-verify channel.
type Service struct {
	ledger     Ledger
	orders     OrderStore
	cache      cache.Store
	logger     *zap.Logger
	dispatcher notification.Dispatcher
	currency   string
	now        func() time.Time
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Ledger     Ledger
	Orders     OrderStore
	Cache      cache.Store
	Config     config.Config
	Logger     *zap.Logger
	Dispatcher notification.Dispatcher
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		ledger:     p.Ledger,
		orders:     p.Orders,
		cache:      p.Cache,
		logger:     p.Logger,
		dispatcher: p.Dispatcher,
		currency:   p.Config.Payment.Currency,
		now:        time.Now,
	}
}

// SubmitCard runs the simulated synchronous card charge. Approval is
// decided by the last card digit: even settles the order, odd records a
// FAILED attempt and leaves the order payable. A declined card is a
// normal outcome, not an error.
func (s *Service) SubmitCard(ctx context.Context, clientID int64, req dto.CreditCardPaymentRequest) (dto.TransactionResponse, error) {
	ctx, span := serviceTracer.Start(ctx, "PaymentService.SubmitCard", trace.WithAttributes(attribute.Int64("order.id", req.OrderID)))
	defer span.End()

	order, err := s.payableOrder(ctx, req.OrderID, clientID)
	if err != nil {
		return dto.TransactionResponse{}, err
	}

	now := s.now().UTC()
	txn := &entity.Transaction{
		OrderID:   order.ID,
		Reference: "card_" + uuid.NewString(),
		Method:    entity.MethodCreditCard,
		Amount:    order.TotalAmount,
		Currency:  s.currency,
		CreatedAt: now,
	}

	last := req.CardNumber[len(req.CardNumber)-1]
	if (last-'0')%2 != 0 {
		txn.Status = entity.TxnFailed
		txn.FailureReason = cardDeclinedReason
		txn.ProviderResponse = "Payment declined"
		if err := s.ledger.Create(ctx, txn); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "ledger write failed")
			return dto.TransactionResponse{}, errorbank.Internal("failed to record payment attempt", errorbank.WithCause(err))
		}
		s.logger.Info("card payment declined", zap.Int64("order_id", order.ID), zap.String("reference", txn.Reference))
		return dto.NewTransactionResponse(txn), nil
	}

	txn.Status = entity.TxnCompleted
	txn.ProcessedAt = &now
	txn.ProviderResponse = "Payment approved"

	// System-initiated transition: no acting principal on the audit row.
	hist := &entity.StatusHistory{
		Notes:     cardApprovedNote,
		ChangedAt: now,
	}

	paid, err := s.ledger.Settle(ctx, txn, hist)
	if err != nil {
		return dto.TransactionResponse{}, s.settleError(err, span)
	}

	s.logger.Info("card payment settled",
		zap.Int64("order_id", paid.ID),
		zap.String("order_code", paid.OrderCode),
		zap.String("reference", txn.Reference),
	)
	s.invalidate(ctx, paid.ID)
	s.notifyPaid(ctx, paid)
	return dto.NewTransactionResponse(txn), nil
}

// SubmitManual records a bank transfer or SINPE payment awaiting admin
// verification. The order stays in PENDING_PAYMENT until approval.
func (s *Service) SubmitManual(ctx context.Context, clientID int64, req dto.ManualPaymentRequest) (dto.TransactionResponse, error) {
	ctx, span := serviceTracer.Start(ctx, "PaymentService.SubmitManual", trace.WithAttributes(attribute.Int64("order.id", req.OrderID)))
	defer span.End()

	order, err := s.payableOrder(ctx, req.OrderID, clientID)
	if err != nil {
		return dto.TransactionResponse{}, err
	}

	method, _ := entity.ParsePaymentMethod(req.PaymentMethod)
	txn := &entity.Transaction{
		OrderID:        order.ID,
		Reference:      req.Reference,
		Method:         method,
		Status:         entity.TxnPending,
		Amount:         order.TotalAmount,
		Currency:       s.currency,
		ProofOfPayment: req.ProofOfPayment,
		CreatedAt:      s.now().UTC(),
	}

	if err := s.ledger.Create(ctx, txn); err != nil {
		if errors.Is(err, txnrepo.ErrReferenceTaken) {
			return dto.TransactionResponse{}, errorbank.Conflict("transaction reference already used")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "ledger write failed")
		return dto.TransactionResponse{}, errorbank.Internal("failed to record payment", errorbank.WithCause(err))
	}

	s.logger.Info("manual payment submitted",
		zap.Int64("order_id", order.ID),
		zap.String("method", string(method)),
		zap.String("reference", txn.Reference),
	)
	return dto.NewTransactionResponse(txn), nil
}

// Verify resolves a pending manual transaction. Approval settles the
// order; rejection fails the attempt and leaves the order payable.
func (s *Service) Verify(ctx context.Context, adminID, txnID int64, req dto.VerifyPaymentRequest) (dto.TransactionResponse, error) {
	ctx, span := serviceTracer.Start(ctx, "PaymentService.Verify", trace.WithAttributes(
		attribute.Int64("transaction.id", txnID),
		attribute.Bool("approved", req.Approved),
	))
	defer span.End()

	if !req.Approved {
		reason := req.Notes
		if reason == "" {
			reason = rejectDefaultReason
		}
		txn, err := s.ledger.Reject(ctx, txnID, reason)
		if err != nil {
			return dto.TransactionResponse{}, s.verifyError(err, span)
		}
		s.logger.Info("manual payment rejected", zap.Int64("transaction_id", txnID), zap.Int64("admin_id", adminID))
		return dto.NewTransactionResponse(txn), nil
	}

	hist := &entity.StatusHistory{
		ChangedBy: &adminID,
		Notes:     "Payment verified",
		ChangedAt: s.now().UTC(),
	}
	txn, paid, err := s.ledger.Approve(ctx, txnID, hist)
	if err != nil {
		return dto.TransactionResponse{}, s.verifyError(err, span)
	}

	s.logger.Info("manual payment approved",
		zap.Int64("transaction_id", txnID),
		zap.Int64("order_id", paid.ID),
		zap.Int64("admin_id", adminID),
	)
	s.invalidate(ctx, paid.ID)
	s.notifyPaid(ctx, paid)
	return dto.NewTransactionResponse(txn), nil
}

// Get returns a single payment attempt. Clients may only read
// transactions belonging to their own orders.
func (s *Service) Get(ctx context.Context, txnID, callerID int64, admin bool) (dto.TransactionResponse, error) {
	ctx, span := serviceTracer.Start(ctx, "PaymentService.Get", trace.WithAttributes(attribute.Int64("transaction.id", txnID)))
	defer span.End()

	txn, err := s.ledger.GetByID(ctx, txnID)
	if err != nil {
		if errors.Is(err, txnrepo.ErrNotFound) {
			return dto.TransactionResponse{}, errorbank.NotFound("transaction not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "ledger error")
		return dto.TransactionResponse{}, errorbank.Internal("failed to load transaction", errorbank.WithCause(err))
	}

	if !admin {
		order, err := s.orders.GetByID(ctx, txn.OrderID)
		if err != nil {
			return dto.TransactionResponse{}, errorbank.Internal("failed to load order", errorbank.WithCause(err))
		}
		if order.ClientID != callerID {
			return dto.TransactionResponse{}, errorbank.Forbidden("transaction access denied")
		}
	}
	return dto.NewTransactionResponse(txn), nil
}

// ListByOrder returns an order's payment attempts. Clients only see
// their own orders; admins see any.
func (s *Service) ListByOrder(ctx context.Context, orderID, callerID int64, admin bool) ([]dto.TransactionResponse, error) {
	ctx, span := serviceTracer.Start(ctx, "PaymentService.ListByOrder", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, orderrepo.ErrNotFound) {
			return nil, errorbank.NotFound("order not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}
	if !admin && order.ClientID != callerID {
		return nil, errorbank.Forbidden("order access denied")
	}

	txns, err := s.ledger.ListByOrder(ctx, orderID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to list transactions", errorbank.WithCause(err))
	}

	responses := make([]dto.TransactionResponse, 0, len(txns))
	for i := range txns {
		responses = append(responses, dto.NewTransactionResponse(&txns[i]))
	}
	return responses, nil
}

// payableOrder loads the order and checks ownership and that it can
// still accept a payment attempt.
func (s *Service) payableOrder(ctx context.Context, orderID, clientID int64) (*entity.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, orderrepo.ErrNotFound) {
			return nil, errorbank.NotFound("order not found")
		}
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}
	if order.ClientID != clientID {
		return nil, errorbank.Forbidden("order access denied")
	}
	if order.Status != entity.StatusPendingPayment {
		return nil, errorbank.InvalidState(fmt.Sprintf("order in status %s is not awaiting payment", order.Status))
	}

	settled, err := s.ledger.HasCompleted(ctx, orderID)
	if err != nil {
		return nil, errorbank.Internal("failed to check order payments", errorbank.WithCause(err))
	}
	if settled {
		return nil, errorbank.InvalidState("order already has a completed payment")
	}
	return order, nil
}

func (s *Service) settleError(err error, span trace.Span) error {
	switch {
	case errors.Is(err, txnrepo.ErrOrderNotFound):
		return errorbank.NotFound("order not found")
	case errors.Is(err, txnrepo.ErrOrderNotPayable):
		return errorbank.InvalidState("order is not awaiting payment")
	case errors.Is(err, txnrepo.ErrAlreadySettled):
		return errorbank.InvalidState("order already has a completed payment")
	case errors.Is(err, txnrepo.ErrReferenceTaken):
		return errorbank.Conflict("transaction reference already used")
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, "ledger error")
		return errorbank.Internal("failed to settle payment", errorbank.WithCause(err))
	}
}

func (s *Service) verifyError(err error, span trace.Span) error {
	switch {
	case errors.Is(err, txnrepo.ErrNotFound):
		return errorbank.NotFound("transaction not found")
	case errors.Is(err, txnrepo.ErrNotPending):
		return errorbank.InvalidState("transaction is not awaiting verification")
	case errors.Is(err, txnrepo.ErrOrderNotFound):
		return errorbank.NotFound("order not found")
	case errors.Is(err, txnrepo.ErrOrderNotPayable):
		return errorbank.InvalidState("order is not awaiting payment")
	case errors.Is(err, txnrepo.ErrAlreadySettled):
		return errorbank.InvalidState("order already has a completed payment")
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, "ledger error")
		return errorbank.Internal("failed to verify payment", errorbank.WithCause(err))
	}
}

func (s *Service) notifyPaid(ctx context.Context, order *entity.Order) {
	s.dispatcher.Notify(ctx, notification.OrderEvent{
		EventType: notification.EventOrderPaid,
		OrderID:   order.ID,
		OrderCode: order.OrderCode,
		ClientID:  order.ClientID,
		Status:    string(order.Status),
	})
}

func (s *Service) invalidate(ctx context.Context, orderID int64) {
	if err := s.cache.Delete(ctx, fmt.Sprintf("orders:%d", orderID)); err != nil {
		s.logger.Warn("orders cache delete failed", zap.Int64("order_id", orderID), zap.Error(err))
	}
}
