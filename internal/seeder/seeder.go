package seeder

import (
	"context"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/mesa/internal/database"
	"github.com/Additional-Code/mesa/internal/entity"
)

// Module provides the seeder to Fx.
var Module = fx.Provide(New)

// Seeder performs database seeding for local/dev setups.
type Seeder struct {
	db     *bun.DB
	logger *zap.Logger
}

// New constructs a Seeder backed by the primary database connection.
func New(conns *database.Connections, logger *zap.Logger) *Seeder {
	return &Seeder{db: conns.Writer, logger: logger}
}

// WeeklyMenus seeds menus for the current and next week if missing.
func (s *Seeder) WeeklyMenus(ctx context.Context) error {
	now := time.Now().UTC()
	monday := now.AddDate(0, 0, -int((now.Weekday()+6)%7)).Truncate(24 * time.Hour)

	samples := []entity.WeeklyMenu{
		{
			WeekStartDate: monday,
			WeekEndDate:   monday.AddDate(0, 0, 6),
			Status:        entity.MenuPublished,
			PricePerMeal:  entity.CentsFromUnits(3500),
			TotalCalories: 2100,
			TotalProtein:  140,
			TotalCarbs:    220,
			TotalFats:     70,
			CreatedAt:     now,
		},
		{
			WeekStartDate: monday.AddDate(0, 0, 7),
			WeekEndDate:   monday.AddDate(0, 0, 13),
			Status:        entity.MenuDraft,
			PricePerMeal:  entity.CentsFromUnits(3750),
			TotalCalories: 2000,
			TotalProtein:  150,
			TotalCarbs:    200,
			TotalFats:     65,
			CreatedAt:     now,
		},
	}

	for _, sample := range samples {
		menu := sample
		_, err := s.db.NewInsert().Model(&menu).
			On("CONFLICT (week_start_date) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return err
		}
	}

	if s.logger != nil {
		s.logger.Info("seeded weekly menus", zap.Int("count", len(samples)))
	}
	return nil
}
