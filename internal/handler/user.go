package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/rewear/internal/service"
)

// UserHandler serves the caller's account pages and public profiles.
type UserHandler struct {
	Accounts *service.AccountService
	Log      *zap.Logger
}

func NewUserHandler(accounts *service.AccountService, log *zap.Logger) *UserHandler {
	return &UserHandler{Accounts: accounts, Log: log}
}

type passwordReq struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6"`
}

type deleteAccountReq struct {
	Password string `json:"password" validate:"required"`
}

// Profile: GET /v1/users/profile
func (h *UserHandler) Profile(c echo.Context) error {
	uid, err := callerID(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	p, err := h.Accounts.Profile(c.Request().Context(), uid)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, p)
}

// Stats: GET /v1/users/stats
func (h *UserHandler) Stats(c echo.Context) error {
	uid, err := callerID(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	st, err := h.Accounts.Stats(c.Request().Context(), uid)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"stats": st})
}

// Points: GET /v1/users/points
func (h *UserHandler) Points(c echo.Context) error {
	uid, err := callerID(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	pts, err := h.Accounts.Points(c.Request().Context(), uid)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"points": pts})
}

// PointsHistory: GET /v1/users/points/history
func (h *UserHandler) PointsHistory(c echo.Context) error {
	uid, err := callerID(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	p, err := pageFrom(c, 20)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	out, err := h.Accounts.PointsHistory(c.Request().Context(), uid, p)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, out)
}

// UpdateProfile: PUT /v1/users/profile
func (h *UserHandler) UpdateProfile(c echo.Context) error {
	uid, err := callerID(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	var in service.ProfileInput
	if err := bind(c, &in); err != nil {
		return writeError(c, h.Log, err)
	}
	u, err := h.Accounts.UpdateProfile(c.Request().Context(), uid, in)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user": u})
}

// ChangePassword: PUT /v1/users/password. Every refresh token is revoked.
func (h *UserHandler) ChangePassword(c echo.Context) error {
	uid, err := callerID(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	var req passwordReq
	if err := bind(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	if err := h.Accounts.ChangePassword(c.Request().Context(), uid, req.CurrentPassword, req.NewPassword); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// DeleteAccount: DELETE /v1/users/account
func (h *UserHandler) DeleteAccount(c echo.Context) error {
	uid, err := callerID(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	var req deleteAccountReq
	if err := bind(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	if err := h.Accounts.DeleteAccount(c.Request().Context(), uid, req.Password); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Public: GET /v1/users/:id
func (h *UserHandler) Public(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	p, err := h.Accounts.PublicProfile(c.Request().Context(), id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user": p})
}
