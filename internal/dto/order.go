package dto

import (
	"time"

	"github.com/Additional-Code/mesa/internal/entity"
)

// CreateOrderRequest is the payload for placing a new order.
type CreateOrderRequest struct {
	WeeklyMenuID        int64     `json:"weekly_menu_id"`
	MealsPerDay         int       `json:"meals_per_day"`
	IncludeBreakfast    bool      `json:"include_breakfast"`
	IncludeLunch        bool      `json:"include_lunch"`
	IncludeDinner       bool      `json:"include_dinner"`
	PickupAt            time.Time `json:"pickup_at"`
	SpecialInstructions string    `json:"special_instructions"`
}

// Validate returns a field→message map; nil means the payload is valid.
// Validation covers shape only; business rules (menu state, pickup in the
// future) are enforced by the service against wall-clock time.
func (r CreateOrderRequest) Validate() map[string]any {
	errs := make(map[string]any)
	if r.WeeklyMenuID <= 0 {
		errs["weekly_menu_id"] = "weekly menu id is required"
	}
	if r.MealsPerDay < 1 || r.MealsPerDay > 3 {
		errs["meals_per_day"] = "meals per day must be between 1 and 3"
	}
	if r.PickupAt.IsZero() {
		errs["pickup_at"] = "pickup time is required"
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// UpdateOrderStatusRequest is the admin payload for advancing an order.
type UpdateOrderStatusRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

// CancelOrderRequest carries the client's cancellation reason.
type CancelOrderRequest struct {
	Reason string `json:"reason"`
}

// StatusHistoryEntry is one audit-trail row as exposed to callers.
type StatusHistoryEntry struct {
	PreviousStatus *entity.OrderStatus `json:"previous_status"`
	NewStatus      entity.OrderStatus  `json:"new_status"`
	ChangedBy      *int64              `json:"changed_by"`
	Notes          string              `json:"notes,omitempty"`
	ChangedAt      time.Time           `json:"changed_at"`
}

// OrderResponse represents an order as exposed via transport layers.
type OrderResponse struct {
	ID                  int64                `json:"id"`
	OrderCode           string               `json:"order_code"`
	ClientID            int64                `json:"client_id"`
	WeeklyMenuID        int64                `json:"weekly_menu_id"`
	Status              entity.OrderStatus   `json:"status"`
	TotalAmount         entity.Cents         `json:"total_amount"`
	MealsPerDay         int                  `json:"meals_per_day"`
	IncludeBreakfast    bool                 `json:"include_breakfast"`
	IncludeLunch        bool                 `json:"include_lunch"`
	IncludeDinner       bool                 `json:"include_dinner"`
	PickupAt            time.Time            `json:"pickup_at"`
	PickupCode          string               `json:"pickup_code"`
	SpecialInstructions string               `json:"special_instructions,omitempty"`
	CancellationReason  string               `json:"cancellation_reason,omitempty"`
	CancelledAt         *time.Time           `json:"cancelled_at,omitempty"`
	CreatedAt           time.Time            `json:"created_at"`
	StatusHistory       []StatusHistoryEntry `json:"status_history,omitempty"`
}

// NewOrderResponse maps an order entity plus its audit trail.
func NewOrderResponse(order *entity.Order, history []entity.StatusHistory) OrderResponse {
	resp := OrderResponse{
		ID:                  order.ID,
		OrderCode:           order.OrderCode,
		ClientID:            order.ClientID,
		WeeklyMenuID:        order.WeeklyMenuID,
		Status:              order.Status,
		TotalAmount:         order.TotalAmount,
		MealsPerDay:         order.MealsPerDay,
		IncludeBreakfast:    order.IncludeBreakfast,
		IncludeLunch:        order.IncludeLunch,
		IncludeDinner:       order.IncludeDinner,
		PickupAt:            order.PickupAt,
		PickupCode:          order.PickupCode,
		SpecialInstructions: order.SpecialInstructions,
		CancellationReason:  order.CancellationReason,
		CancelledAt:         order.CancelledAt,
		CreatedAt:           order.CreatedAt,
	}
	for _, h := range history {
		resp.StatusHistory = append(resp.StatusHistory, StatusHistoryEntry{
			PreviousStatus: h.PreviousStatus,
			NewStatus:      h.NewStatus,
			ChangedBy:      h.ChangedBy,
			Notes:          h.Notes,
			ChangedAt:      h.ChangedAt,
		})
	}
	return resp
}
