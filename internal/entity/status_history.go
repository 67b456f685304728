package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// StatusHistory is one row of the append-only order audit trail.
// PreviousStatus is nil only for the entry written at order creation;
// ChangedBy is nil for system-initiated transitions. Rows are never
// updated or deleted.
type StatusHistory struct {
	bun.BaseModel `bun:"table:order_status_history"`

	ID             int64        `bun:",pk,autoincrement"`
	OrderID        int64        `bun:"order_id"`
	PreviousStatus *OrderStatus `bun:"previous_status,nullzero"`
	NewStatus      OrderStatus  `bun:"new_status"`
	ChangedBy      *int64       `bun:"changed_by,nullzero"`
	Notes          string       `bun:"notes,nullzero"`
	ChangedAt      time.Time    `bun:"changed_at"`
}
