package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/rewear/internal/handler"
	"github.com/iliyamo/rewear/internal/middleware"
	"github.com/iliyamo/rewear/internal/model"
)

// RegisterAdmin registers the moderation console under /v1/admin. The
// group inherits authentication from g and adds the admin role check.
func RegisterAdmin(g *echo.Group, h *handler.AdminHandler) {
	a := g.Group("/admin", middleware.RequireRole(model.RoleAdmin))
	a.GET("/dashboard", h.Dashboard)
	a.GET("/items/pending", h.PendingItems)
	a.GET("/users", h.Users)
	a.GET("/reports", h.Reports)
	a.PUT("/items/:id/approve", h.Approve)
	a.PUT("/items/:id/reject", h.Reject)
	a.PUT("/users/:id/ban", h.Ban)
	a.DELETE("/items/:id", h.DeleteItem)
}
