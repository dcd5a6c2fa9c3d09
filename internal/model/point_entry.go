package model

import "time"

// Reasons recorded on point entries.
const (
	PointReasonSignupBonus  = "signup_bonus"
	PointReasonRedeemDebit  = "redeem_debit"
	PointReasonRedeemCredit = "redeem_credit"
)

// PointEntry is one row of the points ledger. Every balance change writes
// exactly one entry, so the sum of a user's deltas equals their balance.
type PointEntry struct {
	ID            uint64    `json:"id"`                        // point_entries.id
	UserID        uint64    `json:"user_id"`                   // point_entries.user_id
	Delta         int64     `json:"delta"`                     // point_entries.delta
	BalanceAfter  int64     `json:"balance_after"`             // point_entries.balance_after
	Reason        string    `json:"reason"`                    // point_entries.reason
	SwapRequestID *uint64   `json:"swap_request_id,omitempty"` // point_entries.swap_request_id (nullable)
	CreatedAt     time.Time `json:"created_at"`                // point_entries.created_at
}
