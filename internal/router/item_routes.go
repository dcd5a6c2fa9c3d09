package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/rewear/internal/handler"
)

// RegisterItems registers item mutations on the authenticated group.
// Ownership is enforced by the catalog service.
func RegisterItems(g *echo.Group, h *handler.ItemHandler) {
	g.POST("/items", h.Create)
	g.GET("/items/user/me", h.Mine)
	g.PUT("/items/:id", h.Update)
	g.DELETE("/items/:id", h.Delete)
	g.POST("/items/:id/like", h.ToggleLike)
}
