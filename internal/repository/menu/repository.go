package menu

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/mesa/internal/database"
	"github.com/Additional-Code/mesa/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/mesa/repository/menu")

// ErrNotFound is returned when a weekly menu is missing.
var ErrNotFound = errors.New("weekly menu not found")

// Repository reads weekly menu snapshots. Menu authoring lives outside
// this service; orders only need lookup by id.
type Repository struct {
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{reader: conns.Reader}
}

// GetByID fetches a menu by primary key.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.WeeklyMenu, error) {
	ctx, span := repoTracer.Start(ctx, "MenuRepository.GetByID", trace.WithAttributes(attribute.Int64("menu.id", id)))
	defer span.End()

	m := new(entity.WeeklyMenu)
	err := r.reader.NewSelect().Model(m).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return m, nil
}
