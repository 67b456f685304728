package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// OrderStatus enumerates the order lifecycle states.
type OrderStatus string

const (
	StatusPendingPayment OrderStatus = "PENDING_PAYMENT"
	StatusPaid           OrderStatus = "PAID"
	StatusInPreparation  OrderStatus = "IN_PREPARATION"
	StatusReadyForPickup OrderStatus = "READY_FOR_PICKUP"
	StatusCompleted      OrderStatus = "COMPLETED"
	StatusCancelled      OrderStatus = "CANCELLED"
)

// orderTransitions maps each state to the set of states reachable from it.
// COMPLETED and CANCELLED are terminal. The map is never mutated.
var orderTransitions = map[OrderStatus][]OrderStatus{
	StatusPendingPayment: {StatusPaid, StatusCancelled},
	StatusPaid:           {StatusInPreparation, StatusCancelled},
	StatusInPreparation:  {StatusReadyForPickup},
	StatusReadyForPickup: {StatusCompleted},
	StatusCompleted:      {},
	StatusCancelled:      {},
}

// ParseOrderStatus validates a status string against the known states.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	status := OrderStatus(s)
	_, ok := orderTransitions[status]
	return status, ok
}

// CanTransitionTo reports whether the state machine permits moving to next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether the status has no outbound transitions.
func (s OrderStatus) Terminal() bool {
	return len(orderTransitions[s]) == 0
}

// Order represents a weekly meal-prep order placed against a published menu.
type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID                  int64       `bun:",pk,autoincrement"`
	OrderCode           string      `bun:"order_code"`
	ClientID            int64       `bun:"client_id"`
	WeeklyMenuID        int64       `bun:"weekly_menu_id"`
	Status              OrderStatus `bun:"status"`
	TotalAmount         Cents       `bun:"total_amount"`
	MealsPerDay         int         `bun:"meals_per_day"`
	IncludeBreakfast    bool        `bun:"include_breakfast"`
	IncludeLunch        bool        `bun:"include_lunch"`
	IncludeDinner       bool        `bun:"include_dinner"`
	PickupAt            time.Time   `bun:"pickup_at"`
	PickupCode          string      `bun:"pickup_code"`
	SpecialInstructions string      `bun:"special_instructions,nullzero"`
	CancellationReason  string      `bun:"cancellation_reason,nullzero"`
	CancelledAt         *time.Time  `bun:"cancelled_at,nullzero"`
	CreatedAt           time.Time   `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
	UpdatedAt           time.Time   `bun:"updated_at,nullzero"`
}
