package model

import "time"

// SwapKind distinguishes an item-for-item swap from a points redemption.
type SwapKind string

const (
	KindSwap   SwapKind = "swap"
	KindRedeem SwapKind = "redeem"
)

// SwapStatus is the lifecycle state of a swap request.
type SwapStatus string

const (
	SwapPending   SwapStatus = "pending"
	SwapAccepted  SwapStatus = "accepted"
	SwapDeclined  SwapStatus = "declined"
	SwapCancelled SwapStatus = "cancelled"

	// SwapCompleted is accepted by the schema and by history queries, but no
	// operation ever sets it.
	SwapCompleted SwapStatus = "completed"
)

// Terminal reports whether no further transition is possible from s.
func (s SwapStatus) Terminal() bool { return s != SwapPending }

// Valid reports whether s is a known status value.
func (s SwapStatus) Valid() bool {
	switch s {
	case SwapPending, SwapAccepted, SwapDeclined, SwapCancelled, SwapCompleted:
		return true
	}
	return false
}

// HistoryStatuses are the statuses listed in a user's swap history.
var HistoryStatuses = []SwapStatus{SwapAccepted, SwapCompleted, SwapDeclined, SwapCancelled}

// Field limits.
const (
	MaxSwapMessage = 500
	MaxSwapReason  = 200
)

// SwapRequest is a proposal from FromUserID to ToUserID for ItemID, stored
// in `swap_requests`. ToUserID is the item's uploader at creation time.
// Exactly one of OfferedItemID (KindSwap) and PointsOffered (KindRedeem) is
// meaningful.
//
// Fields:
//
//	ID            – primary key identifier.
//	FromUserID    – requester.
//	ToUserID      – recipient, the target item's uploader.
//	ItemID        – requested item.
//	Kind          – swap or redeem.
//	Message       – optional note, at most 500 chars.
//	OfferedItemID – item offered in exchange (swap only).
//	PointsOffered – points offered (redeem only).
//	Status        – lifecycle state.
//	Reason        – decline reason, at most 200 chars.
//	AcceptedAt, DeclinedAt, CancelledAt – set once by the matching transition.
//	CancelledBy   – user who cancelled.
type SwapRequest struct {
	ID            uint64     `json:"id"`                        // swap_requests.id
	FromUserID    uint64     `json:"from_user_id"`              // swap_requests.from_user_id
	ToUserID      uint64     `json:"to_user_id"`                // swap_requests.to_user_id
	ItemID        uint64     `json:"item_id"`                   // swap_requests.item_id
	Kind          SwapKind   `json:"type"`                      // swap_requests.kind
	Message       string     `json:"message,omitempty"`         // swap_requests.message
	OfferedItemID *uint64    `json:"offered_item_id,omitempty"` // swap_requests.offered_item_id (nullable)
	PointsOffered int64      `json:"points_offered,omitempty"`  // swap_requests.points_offered
	Status        SwapStatus `json:"status"`                    // swap_requests.status
	Reason        string     `json:"reason,omitempty"`          // swap_requests.reason
	AcceptedAt    *time.Time `json:"accepted_at,omitempty"`     // swap_requests.accepted_at
	DeclinedAt    *time.Time `json:"declined_at,omitempty"`     // swap_requests.declined_at
	CancelledAt   *time.Time `json:"cancelled_at,omitempty"`    // swap_requests.cancelled_at
	CancelledBy   *uint64    `json:"cancelled_by,omitempty"`    // swap_requests.cancelled_by
	CreatedAt     time.Time  `json:"created_at"`                // swap_requests.created_at
	UpdatedAt     time.Time  `json:"updated_at"`                // swap_requests.updated_at
}

// Involves reports whether userID is either participant.
func (r *SwapRequest) Involves(userID uint64) bool {
	return r.FromUserID == userID || r.ToUserID == userID
}

// SwapView is a SwapRequest projected for one viewer.
type SwapView struct {
	SwapRequest
	IsInitiator bool `json:"is_initiator"`
}

// ViewFor annotates r with whether viewer created it.
func (r SwapRequest) ViewFor(viewer uint64) SwapView {
	return SwapView{SwapRequest: r, IsInitiator: r.FromUserID == viewer}
}
