package domain

import (
	"context"
	"time"
)

// Event types published after committed order transitions.
const (
	EventOrderCompleted = "order.completed"
	EventOrderFailed    = "order.failed"
	EventOrderCancelled = "order.cancelled"
)

// OrderEvent is the integration event emitted after a committed transition.
type OrderEvent struct {
	Type       string    `json:"type"`
	OrderID    string    `json:"order_id"`
	UserID     string    `json:"user_id"`
	ListingID  string    `json:"listing_id"`
	Side       Side      `json:"side"`
	Shares     int64     `json:"shares"`
	Amount     string    `json:"amount"`
	Status     Status    `json:"status"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EventPublisher fans committed order events out to downstream consumers
// (notifications, analytics). Publishing happens after the local
// transaction commits; a publish failure is logged, never rolled back into
// the transition.
type EventPublisher interface {
	Publish(ctx context.Context, event OrderEvent) error
}
