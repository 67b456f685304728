package transaction

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/mesa/internal/database"
	"github.com/Additional-Code/mesa/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/mesa/repository/transaction")

// ErrNotFound is returned when a transaction is missing.
var ErrNotFound = errors.New("transaction not found")

// ErrOrderNotFound is returned when the referenced order is missing.
var ErrOrderNotFound = errors.New("order not found")

// ErrReferenceTaken is returned when the transaction reference collides
// with an existing row.
var ErrReferenceTaken = errors.New("transaction reference already taken")

// ErrNotPending is returned when verifying a transaction that is no
// longer awaiting verification.
var ErrNotPending = errors.New("transaction is not pending")

// ErrOrderNotPayable is returned when the order left PENDING_PAYMENT
// before the settlement could commit.
var ErrOrderNotPayable = errors.New("order is not pending payment")

// ErrAlreadySettled is returned when a completed transaction already
// exists for the order.
var ErrAlreadySettled = errors.New("order already has a completed transaction")

// Repository is the transaction ledger. Settlement operations couple the
// ledger write, the order status flip to PAID, and the history append in
// a single database transaction so an order can never gain a second
// completed payment.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{writer: conns.Writer, reader: conns.Reader}
}

// Create inserts a payment attempt without touching the order. Used for
// failed card attempts and pending manual submissions.
func (r *Repository) Create(ctx context.Context, txn *entity.Transaction) error {
	ctx, span := repoTracer.Start(ctx, "TransactionRepository.Create", trace.WithAttributes(attribute.String("transaction.reference", txn.Reference)))
	defer span.End()

	_, err := r.writer.NewInsert().Model(txn).Exec(ctx)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrReferenceTaken
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return err
	}
	return nil
}

// Settle records a completed card payment: it inserts the COMPLETED
// transaction, moves the locked order from PENDING_PAYMENT to PAID and
// appends the history entry, all atomically. The returned order carries
// the new status.
func (r *Repository) Settle(ctx context.Context, txn *entity.Transaction, hist *entity.StatusHistory) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "TransactionRepository.Settle", trace.WithAttributes(
		attribute.Int64("order.id", txn.OrderID),
		attribute.String("transaction.reference", txn.Reference),
	))
	defer span.End()

	order := new(entity.Order)
	err := r.writer.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if err := lockOrder(ctx, tx, txn.OrderID, order); err != nil {
			return err
		}
		if err := ensureUnsettled(ctx, tx, txn.OrderID); err != nil {
			return err
		}
		if _, err := tx.NewInsert().Model(txn).Exec(ctx); err != nil {
			if database.IsUniqueViolation(err) {
				return ErrReferenceTaken
			}
			return err
		}
		return markPaid(ctx, tx, order, hist)
	})
	if err != nil {
		if isExpected(err) {
			return nil, err
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "settle failed")
		return nil, err
	}
	return order, nil
}

// Approve completes a pending manual transaction and settles its order
// in the same database transaction.
func (r *Repository) Approve(ctx context.Context, txnID int64, hist *entity.StatusHistory) (*entity.Transaction, *entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "TransactionRepository.Approve", trace.WithAttributes(attribute.Int64("transaction.id", txnID)))
	defer span.End()

	txn := new(entity.Transaction)
	order := new(entity.Order)
	err := r.writer.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if err := lockTransaction(ctx, tx, txnID, txn); err != nil {
			return err
		}
		if txn.Status != entity.TxnPending {
			return ErrNotPending
		}
		if err := lockOrder(ctx, tx, txn.OrderID, order); err != nil {
			return err
		}
		if err := ensureUnsettled(ctx, tx, txn.OrderID); err != nil {
			return err
		}

		now := time.Now().UTC()
		txn.Status = entity.TxnCompleted
		txn.ProcessedAt = &now
		txn.ProviderResponse = "Payment verified by admin"
		if _, err := tx.NewUpdate().Model(txn).WherePK().Exec(ctx); err != nil {
			return err
		}
		return markPaid(ctx, tx, order, hist)
	})
	if err != nil {
		if isExpected(err) {
			return nil, nil, err
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "approve failed")
		return nil, nil, err
	}
	return txn, order, nil
}

// Reject fails a pending manual transaction. The order is left untouched
// so the client may submit another attempt.
func (r *Repository) Reject(ctx context.Context, txnID int64, reason string) (*entity.Transaction, error) {
	ctx, span := repoTracer.Start(ctx, "TransactionRepository.Reject", trace.WithAttributes(attribute.Int64("transaction.id", txnID)))
	defer span.End()

	txn := new(entity.Transaction)
	err := r.writer.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if err := lockTransaction(ctx, tx, txnID, txn); err != nil {
			return err
		}
		if txn.Status != entity.TxnPending {
			return ErrNotPending
		}
		txn.Status = entity.TxnFailed
		txn.FailureReason = reason
		_, err := tx.NewUpdate().Model(txn).WherePK().Exec(ctx)
		return err
	})
	if err != nil {
		if isExpected(err) {
			return nil, err
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "reject failed")
		return nil, err
	}
	return txn, nil
}

// GetByID fetches a transaction by primary key.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Transaction, error) {
	ctx, span := repoTracer.Start(ctx, "TransactionRepository.GetByID", trace.WithAttributes(attribute.Int64("transaction.id", id)))
	defer span.End()

	txn := new(entity.Transaction)
	err := r.reader.NewSelect().Model(txn).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return txn, nil
}

// ListByOrder returns an order's payment attempts, newest first.
func (r *Repository) ListByOrder(ctx context.Context, orderID int64) ([]entity.Transaction, error) {
	ctx, span := repoTracer.Start(ctx, "TransactionRepository.ListByOrder", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	var txns []entity.Transaction
	err := r.reader.NewSelect().Model(&txns).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return txns, nil
}

// HasCompleted reports whether a completed transaction exists for the order.
func (r *Repository) HasCompleted(ctx context.Context, orderID int64) (bool, error) {
	ctx, span := repoTracer.Start(ctx, "TransactionRepository.HasCompleted", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	count, err := r.reader.NewSelect().Model((*entity.Transaction)(nil)).
		Where("order_id = ?", orderID).
		Where("status = ?", entity.TxnCompleted).
		Count(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "count failed")
		return false, err
	}
	return count > 0, nil
}

func lockOrder(ctx context.Context, tx bun.Tx, orderID int64, order *entity.Order) error {
	err := tx.NewSelect().Model(order).Where("id = ?", orderID).For("UPDATE").Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrOrderNotFound
	}
	if err != nil {
		return err
	}
	if order.Status != entity.StatusPendingPayment {
		return ErrOrderNotPayable
	}
	return nil
}

func lockTransaction(ctx context.Context, tx bun.Tx, txnID int64, txn *entity.Transaction) error {
	err := tx.NewSelect().Model(txn).Where("id = ?", txnID).For("UPDATE").Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func ensureUnsettled(ctx context.Context, tx bun.Tx, orderID int64) error {
	count, err := tx.NewSelect().Model((*entity.Transaction)(nil)).
		Where("order_id = ?", orderID).
		Where("status = ?", entity.TxnCompleted).
		Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrAlreadySettled
	}
	return nil
}

func markPaid(ctx context.Context, tx bun.Tx, order *entity.Order, hist *entity.StatusHistory) error {
	prev := order.Status
	order.Status = entity.StatusPaid
	order.UpdatedAt = time.Now().UTC()
	if _, err := tx.NewUpdate().Model(order).WherePK().Exec(ctx); err != nil {
		return err
	}
	hist.OrderID = order.ID
	hist.PreviousStatus = &prev
	hist.NewStatus = entity.StatusPaid
	_, err := tx.NewInsert().Model(hist).Exec(ctx)
	return err
}

func isExpected(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrReferenceTaken) ||
		errors.Is(err, ErrNotPending) ||
		errors.Is(err, ErrOrderNotPayable) ||
		errors.Is(err, ErrAlreadySettled)
}
