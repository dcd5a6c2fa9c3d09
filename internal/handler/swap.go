package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/rewear/internal/apperr"
	"github.com/iliyamo/rewear/internal/middleware"
	"github.com/iliyamo/rewear/internal/model"
	"github.com/iliyamo/rewear/internal/repository"
	"github.com/iliyamo/rewear/internal/service"
)

// SwapHandler serves swap and redemption requests.
type SwapHandler struct {
	Swaps *service.SwapService
	Log   *zap.Logger
}

func NewSwapHandler(swaps *service.SwapService, log *zap.Logger) *SwapHandler {
	return &SwapHandler{Swaps: swaps, Log: log}
}

type createSwapReq struct {
	ItemID        uint64 `json:"itemId" validate:"required"`
	Type          string `json:"type"`
	Message       string `json:"message"`
	OfferedItem   uint64 `json:"offeredItem"`
	PointsOffered int64  `json:"pointsOffered"`
}

type declineReq struct {
	Reason string `json:"reason"`
}

type swapResp struct {
	Swap model.SwapRequest `json:"swap"`
}

// Create: POST /v1/swaps
func (h *SwapHandler) Create(c echo.Context) error {
	uid, err := callerID(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	var req createSwapReq
	if err := bind(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	// An unknown type leaves Offer nil, which the engine rejects.
	in := service.CreateSwapInput{
		ItemID:  req.ItemID,
		Message: req.Message,
		Offer:   service.NewSwapInput(req.Type, req.OfferedItem, req.PointsOffered),
	}
	sr, err := h.Swaps.Create(c.Request().Context(), uid, in)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, swapResp{Swap: sr})
}

// Get: GET /v1/swaps/:id
func (h *SwapHandler) Get(c echo.Context) error {
	uid, err := callerID(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	v, err := h.Swaps.Get(c.Request().Context(), uid, middleware.IsAdmin(c), id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"swap": v})
}

// decide runs one state transition on the request named by :id.
func (h *SwapHandler) decide(c echo.Context, fn func(caller, id uint64) (model.SwapRequest, error)) error {
	uid, err := callerID(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	sr, err := fn(uid, id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, swapResp{Swap: sr})
}

// Accept: PUT /v1/swaps/:id/accept
func (h *SwapHandler) Accept(c echo.Context) error {
	return h.decide(c, func(caller, id uint64) (model.SwapRequest, error) {
		return h.Swaps.Accept(c.Request().Context(), caller, id)
	})
}

// Decline: PUT /v1/swaps/:id/decline and /reject
func (h *SwapHandler) Decline(c echo.Context) error {
	var req declineReq
	// The reason is optional: an empty body binds to nothing.
	if err := c.Bind(&req); err != nil {
		return writeError(c, h.Log, apperr.Validationf("invalid body"))
	}
	return h.decide(c, func(caller, id uint64) (model.SwapRequest, error) {
		return h.Swaps.Decline(c.Request().Context(), caller, id, req.Reason)
	})
}

// Cancel: PUT /v1/swaps/:id/cancel
func (h *SwapHandler) Cancel(c echo.Context) error {
	return h.decide(c, func(caller, id uint64) (model.SwapRequest, error) {
		return h.Swaps.Cancel(c.Request().Context(), caller, id)
	})
}

type lister func(caller uint64, statuses []model.SwapStatus, p repository.Page) (service.SwapPage, error)

// list reads ?status, ?page and ?limit and runs fn.
func (h *SwapHandler) list(c echo.Context, def int, fn lister) error {
	uid, err := callerID(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	p, err := pageFrom(c, def)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	statuses, err := service.ParseStatusFilter(c.QueryParam("status"))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	out, err := fn(uid, statuses, p)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, out)
}

// Mine: GET /v1/swaps/my-swaps
func (h *SwapHandler) Mine(c echo.Context) error {
	return h.list(c, 20, func(caller uint64, st []model.SwapStatus, p repository.Page) (service.SwapPage, error) {
		return h.Swaps.ListMine(c.Request().Context(), caller, st, p)
	})
}

// Received: GET /v1/swaps/received
func (h *SwapHandler) Received(c echo.Context) error {
	return h.list(c, 10, func(caller uint64, st []model.SwapStatus, p repository.Page) (service.SwapPage, error) {
		return h.Swaps.ListReceived(c.Request().Context(), caller, st, p)
	})
}

// Sent: GET /v1/swaps/sent
func (h *SwapHandler) Sent(c echo.Context) error {
	return h.list(c, 10, func(caller uint64, st []model.SwapStatus, p repository.Page) (service.SwapPage, error) {
		return h.Swaps.ListSent(c.Request().Context(), caller, st, p)
	})
}

// History: GET /v1/swaps/history. A status filter is not accepted here.
func (h *SwapHandler) History(c echo.Context) error {
	return h.list(c, 20, func(caller uint64, st []model.SwapStatus, p repository.Page) (service.SwapPage, error) {
		if st != nil {
			return service.SwapPage{}, apperr.Validationf("history does not take a status filter")
		}
		return h.Swaps.ListHistory(c.Request().Context(), caller, p)
	})
}
