package order

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

var repoTracer = otel.Tracer("github.com/Additional-Code/mesa/repository/order")

// ErrNotFound is returned when an order is missing.
var ErrNotFound = errors.New("order not found")

// ErrCodeTaken is returned when the generated order code collided with
// an existing row; callers regenerate and retry.
var ErrCodeTaken = errors.New("order code already taken")

// ErrStatusConflict is returned when the order's status no longer matches
// the status the caller observed. The losing side of a concurrent
// transition always receives this instead of overwriting.
var ErrStatusConflict = errors.New("order status changed concurrently")

// Repository owns durable order rows and their append-only status history.
// Every mutation couples the order write and the history append in one
// database transaction.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// Create inserts a new order plus its initial history entry atomically.
// A unique-constraint hit on the order code surfaces as ErrCodeTaken so
// the caller can regenerate.
func (r *Repository) Create(ctx context.Context, order *entity.Order, hist *entity.StatusHistory) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Create", trace.WithAttributes(attribute.String("order.code", order.OrderCode)))
	defer span.End()

	err := r.writer.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(order).Exec(ctx); err != nil {
			if database.IsUniqueViolation(err) {
				return ErrCodeTaken
			}
			return err
		}
		hist.OrderID = order.ID
		_, err := tx.NewInsert().Model(hist).Exec(ctx)
		return err
	})
	if err != nil && !errors.Is(err, ErrCodeTaken) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// GetByID fetches an order by primary key using the read replica when available.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order := new(entity.Order)
	err := r.reader.NewSelect().Model(order).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return order, nil
}

// ListByClient returns a client's orders, newest first.
func (r *Repository) ListByClient(ctx context.Context, clientID int64) ([]entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.ListByClient", trace.WithAttributes(attribute.Int64("client.id", clientID)))
	defer span.End()

	var orders []entity.Order
	err := r.reader.NewSelect().Model(&orders).
		Where("client_id = ?", clientID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return orders, nil
}

// ListAll returns every order, newest first.
func (r *Repository) ListAll(ctx context.Context) ([]entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.ListAll")
	defer span.End()

	var orders []entity.Order
	err := r.reader.NewSelect().Model(&orders).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return orders, nil
}

// Transition performs a compare-and-swap status change: the row is locked,
// verified to still be in from, mutated, and the history entry appended,
// all inside one transaction. apply may set additional fields (for example
// the cancellation reason) and may be nil.
func (r *Repository) Transition(
	ctx context.Context,
	id int64,
	from, to entity.OrderStatus,
	apply func(*entity.Order),
	hist *entity.StatusHistory,
) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Transition", trace.WithAttributes(
		attribute.Int64("order.id", id),
		attribute.String("order.status.from", string(from)),
		attribute.String("order.status.to", string(to)),
	))
	defer span.End()

	order := new(entity.Order)
	err := r.writer.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		err := tx.NewSelect().Model(order).Where("id = ?", id).For("UPDATE").Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if order.Status != from {
			return ErrStatusConflict
		}

		order.Status = to
		order.UpdatedAt = time.Now().UTC()
		if apply != nil {
			apply(order)
		}
		if _, err := tx.NewUpdate().Model(order).WherePK().Exec(ctx); err != nil {
			return err
		}

		hist.OrderID = order.ID
		prev := from
		hist.PreviousStatus = &prev
		hist.NewStatus = to
		_, err = tx.NewInsert().Model(hist).Exec(ctx)
		return err
	})
	if err != nil {
		if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrStatusConflict) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "transition failed")
		}
		return nil, err
	}
	return order, nil
}

// History returns the order's audit trail, newest first.
func (r *Repository) History(ctx context.Context, orderID int64) ([]entity.StatusHistory, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.History", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	var entries []entity.StatusHistory
	err := r.reader.NewSelect().Model(&entries).
		Where("order_id = ?", orderID).
		Order("changed_at DESC").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return entries, nil
}
