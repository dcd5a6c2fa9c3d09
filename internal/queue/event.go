// Package queue defines the swap lifecycle events exchanged over RabbitMQ,
// the publisher used by the swap engine and the consumer that appends them
// to the activity log.
package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/rewear/internal/model"
)

// Event types, also used as the message type property.
const (
	EventSwapCreated   = "swap.created"
	EventSwapAccepted  = "swap.accepted"
	EventSwapDeclined  = "swap.declined"
	EventSwapCancelled = "swap.cancelled"
)

// DefaultSwapQueue is the durable queue swap events are routed to.
const DefaultSwapQueue = "swap.events"

// SwapEvent is published after a swap request is created or reaches a
// terminal status. It carries enough to log or notify without querying the
// primary database.
type SwapEvent struct {
	EventID       string  `json:"event_id"`
	Type          string  `json:"type"`
	RequestID     uint64  `json:"request_id"`
	Kind          string  `json:"kind"`
	Status        string  `json:"status"`
	ItemID        uint64  `json:"item_id"`
	OfferedItemID *uint64 `json:"offered_item_id,omitempty"`
	FromUserID    uint64  `json:"from_user_id"`
	ToUserID      uint64  `json:"to_user_id"`
	PointsOffered int64   `json:"points_offered,omitempty"`
	Reason        string  `json:"reason,omitempty"`
	OccurredAt    string  `json:"occurred_at"`
}

// NewSwapEvent builds an event of the given type from a request snapshot.
func NewSwapEvent(typ string, r model.SwapRequest, at time.Time) SwapEvent {
	return SwapEvent{
		EventID:       uuid.NewString(),
		Type:          typ,
		RequestID:     r.ID,
		Kind:          string(r.Kind),
		Status:        string(r.Status),
		ItemID:        r.ItemID,
		OfferedItemID: r.OfferedItemID,
		FromUserID:    r.FromUserID,
		ToUserID:      r.ToUserID,
		PointsOffered: r.PointsOffered,
		Reason:        r.Reason,
		OccurredAt:    at.UTC().Format(time.RFC3339),
	}
}
