package service

import "github.com/iliyamo/rewear/internal/model"

// SwapInput is the kind-specific part of a new swap request: either a
// SwapOffer or a RedeemOffer. The unexported method closes the set.
type SwapInput interface {
	Kind() model.SwapKind
	isSwapInput()
}

// SwapOffer proposes exchanging one of the caller's items.
type SwapOffer struct {
	OfferedItemID uint64
}

// RedeemOffer proposes paying with points.
type RedeemOffer struct {
	Points int64
}

func (SwapOffer) Kind() model.SwapKind   { return model.KindSwap }
func (RedeemOffer) Kind() model.SwapKind { return model.KindRedeem }
func (SwapOffer) isSwapInput()           {}
func (RedeemOffer) isSwapInput()         {}

// CreateSwapInput is everything a caller supplies to open a request.
type CreateSwapInput struct {
	ItemID  uint64
	Message string
	Offer   SwapInput
}

// NewSwapInput builds the variant for a wire-level kind. Missing values stay
// zero so that the engine reports them in its usual precondition order.
// It returns nil for an unknown kind.
func NewSwapInput(kind string, offeredItemID uint64, points int64) SwapInput {
	switch model.SwapKind(kind) {
	case model.KindSwap:
		return SwapOffer{OfferedItemID: offeredItemID}
	case model.KindRedeem:
		return RedeemOffer{Points: points}
	}
	return nil
}
