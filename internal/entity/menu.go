package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// MenuStatus enumerates weekly menu publication states.
type MenuStatus string

const (
	MenuDraft     MenuStatus = "DRAFT"
	MenuPublished MenuStatus = "PUBLISHED"
	MenuArchived  MenuStatus = "ARCHIVED"
)

// WeeklyMenu is the priced menu snapshot an order references.
// Orders may only be placed against menus in PUBLISHED status.
// Nutrition totals are stored as provided; nothing in the service
// recomputes them.
type WeeklyMenu struct {
	bun.BaseModel `bun:"table:weekly_menus"`

	ID            int64      `bun:",pk,autoincrement"`
	WeekStartDate time.Time  `bun:"week_start_date"`
	WeekEndDate   time.Time  `bun:"week_end_date"`
	Status        MenuStatus `bun:"status"`
	PricePerMeal  Cents      `bun:"price_per_meal"`
	TotalCalories int        `bun:"total_calories"`
	TotalProtein  int        `bun:"total_protein"`
	TotalCarbs    int        `bun:"total_carbs"`
	TotalFats     int        `bun:"total_fats"`
	CreatedAt     time.Time  `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}
