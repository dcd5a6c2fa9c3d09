package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/rewear/internal/apperr"
	"github.com/iliyamo/rewear/internal/middleware"
	"github.com/iliyamo/rewear/internal/service"
)

// ItemHandler serves the item catalog.
type ItemHandler struct {
	Catalog *service.CatalogService
	Log     *zap.Logger
}

func NewItemHandler(catalog *service.CatalogService, log *zap.Logger) *ItemHandler {
	return &ItemHandler{Catalog: catalog, Log: log}
}

// Browse: GET /v1/items
func (h *ItemHandler) Browse(c echo.Context) error {
	p, err := pageFrom(c, service.DefaultBrowseLimit)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	q := service.BrowseQuery{
		Category:  c.QueryParam("category"),
		Type:      c.QueryParam("type"),
		Size:      c.QueryParam("size"),
		Condition: c.QueryParam("condition"),
		Search:    c.QueryParam("search"),
		Sort:      c.QueryParam("sort"),
		Order:     c.QueryParam("order"),
		Page:      p,
	}
	if err := echo.QueryParamsBinder(c).
		Int64("minPoints", &q.MinPoints).
		Int64("maxPoints", &q.MaxPoints).
		BindError(); err != nil {
		return writeError(c, h.Log, apperr.Validationf("minPoints and maxPoints must be integers"))
	}
	out, err := h.Catalog.Browse(c.Request().Context(), q)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, out)
}

// Get: GET /v1/items/:id. The caller is optional.
func (h *ItemHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	viewer, _ := middleware.UserID(c)
	it, err := h.Catalog.Get(c.Request().Context(), viewer, middleware.IsAdmin(c), id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": it})
}

// Create: POST /v1/items
func (h *ItemHandler) Create(c echo.Context) error {
	uid, err := callerID(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	var in service.ItemInput
	if err := bind(c, &in); err != nil {
		return writeError(c, h.Log, err)
	}
	it, err := h.Catalog.Create(c.Request().Context(), uid, in)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"item": it})
}

// Update: PUT /v1/items/:id
func (h *ItemHandler) Update(c echo.Context) error {
	uid, err := callerID(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	var in service.ItemInput
	if err := bind(c, &in); err != nil {
		return writeError(c, h.Log, err)
	}
	it, err := h.Catalog.Update(c.Request().Context(), uid, id, in)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": it})
}

// Delete: DELETE /v1/items/:id
func (h *ItemHandler) Delete(c echo.Context) error {
	uid, err := callerID(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if err := h.Catalog.Delete(c.Request().Context(), uid, middleware.IsAdmin(c), id); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ToggleLike: POST /v1/items/:id/like
func (h *ItemHandler) ToggleLike(c echo.Context) error {
	uid, err := callerID(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	res, err := h.Catalog.ToggleLike(c.Request().Context(), uid, id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Mine: GET /v1/items/user/me and GET /v1/users/my-items
func (h *ItemHandler) Mine(c echo.Context) error {
	uid, err := callerID(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	p, err := pageFrom(c, 20)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	out, err := h.Catalog.ListByUploader(c.Request().Context(), uid, p)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, out)
}
