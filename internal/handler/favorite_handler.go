package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/arfaar/swapfinity/internal/service"
)

type FavoriteHandler struct {
	svc service.FavoriteService
}

func NewFavoriteHandler(svc service.FavoriteService) *FavoriteHandler {
	return &FavoriteHandler{svc: svc}
}

type FavoriteResponse struct {
	ItemID      string `json:"itemId"`
	IsFavorited bool   `json:"isFavorited"`
}

func (h *FavoriteHandler) Toggle(c echo.Context) error {
	itemID := c.Param("id")
	on, err := h.svc.Toggle(c.Request().Context(), currentUID(c), itemID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, FavoriteResponse{ItemID: itemID, IsFavorited: on})
}

func (h *FavoriteHandler) Add(c echo.Context) error {
	itemID := c.Param("id")
	if err := h.svc.Add(c.Request().Context(), currentUID(c), itemID); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, FavoriteResponse{ItemID: itemID, IsFavorited: true})
}

func (h *FavoriteHandler) Remove(c echo.Context) error {
	itemID := c.Param("id")
	if err := h.svc.Remove(c.Request().Context(), currentUID(c), itemID); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, FavoriteResponse{ItemID: itemID, IsFavorited: false})
}

func (h *FavoriteHandler) List(c echo.Context) error {
	items, err := h.svc.List(c.Request().Context(), currentUID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toItemListResponse(items))
}
