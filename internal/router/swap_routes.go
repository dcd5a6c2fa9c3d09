package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/rewear/internal/handler"
)

// RegisterSwaps registers the swap request lifecycle. Only the recipient
// may accept or decline, only the requester may cancel; the swap service
// checks both.
func RegisterSwaps(g *echo.Group, h *handler.SwapHandler) {
	g.POST("/swaps", h.Create)
	g.GET("/swaps/my-swaps", h.Mine)
	g.GET("/swaps/received", h.Received)
	g.GET("/swaps/sent", h.Sent)
	g.GET("/swaps/history", h.History)
	g.GET("/swaps/:id", h.Get)
	g.PUT("/swaps/:id/accept", h.Accept)
	g.PUT("/swaps/:id/decline", h.Decline)
	g.PUT("/swaps/:id/reject", h.Decline)
	g.PUT("/swaps/:id/cancel", h.Cancel)
}

// RegisterUsers registers the caller's account pages.
func RegisterUsers(g *echo.Group, h *handler.UserHandler, items *handler.ItemHandler) {
	g.GET("/users/profile", h.Profile)
	g.PUT("/users/profile", h.UpdateProfile)
	g.PUT("/users/password", h.ChangePassword)
	g.DELETE("/users/account", h.DeleteAccount)
	g.GET("/users/stats", h.Stats)
	g.GET("/users/my-items", items.Mine)
	g.GET("/users/points", h.Points)
	g.GET("/users/points/history", h.PointsHistory)
}
