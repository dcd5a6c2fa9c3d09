package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/rewear/internal/apperr"
	"github.com/iliyamo/rewear/internal/service"
)

// AdminHandler serves the moderation console. Every route sits behind
// RequireRole("admin").
type AdminHandler struct {
	Moderation *service.ModerationService
	Log        *zap.Logger
}

func NewAdminHandler(m *service.ModerationService, log *zap.Logger) *AdminHandler {
	return &AdminHandler{Moderation: m, Log: log}
}

type rejectReq struct {
	Reason string `json:"reason" validate:"max=200"`
}

// Dashboard: GET /v1/admin/dashboard
func (h *AdminHandler) Dashboard(c echo.Context) error {
	d, err := h.Moderation.Dashboard(c.Request().Context())
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, d)
}

// PendingItems: GET /v1/admin/items/pending
func (h *AdminHandler) PendingItems(c echo.Context) error {
	p, err := pageFrom(c, 20)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	out, err := h.Moderation.PendingItems(c.Request().Context(), p)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, out)
}

// Users: GET /v1/admin/users?search=
func (h *AdminHandler) Users(c echo.Context) error {
	p, err := pageFrom(c, 20)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	out, err := h.Moderation.Users(c.Request().Context(), c.QueryParam("search"), p)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, out)
}

// Reports: GET /v1/admin/reports?period=30
func (h *AdminHandler) Reports(c echo.Context) error {
	days := 0
	if raw := c.QueryParam("period"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return writeError(c, h.Log, apperr.Validationf("period must be a positive number of days"))
		}
		days = n
	}
	r, err := h.Moderation.Reports(c.Request().Context(), days)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, r)
}

// Approve: PUT /v1/admin/items/:id/approve
func (h *AdminHandler) Approve(c echo.Context) error {
	admin, err := callerID(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	it, err := h.Moderation.Approve(c.Request().Context(), admin, id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": it})
}

// Reject: PUT /v1/admin/items/:id/reject
func (h *AdminHandler) Reject(c echo.Context) error {
	admin, err := callerID(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	var req rejectReq
	if err := bind(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	if err := h.Moderation.Reject(c.Request().Context(), admin, id, req.Reason); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Ban: PUT /v1/admin/users/:id/ban
func (h *AdminHandler) Ban(c echo.Context) error {
	admin, err := callerID(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	u, err := h.Moderation.Ban(c.Request().Context(), admin, id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user": u})
}

// DeleteItem: DELETE /v1/admin/items/:id
func (h *AdminHandler) DeleteItem(c echo.Context) error {
	admin, err := callerID(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if err := h.Moderation.DeleteItem(c.Request().Context(), admin, id); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}
