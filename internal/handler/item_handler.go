package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/arfaar/swapfinity/internal/model"
	"github.com/arfaar/swapfinity/internal/service"
)

type ItemHandler struct {
	svc service.ItemService
}

func NewItemHandler(svc service.ItemService) *ItemHandler {
	return &ItemHandler{svc: svc}
}

type ItemResponse struct {
	ID                    string  `json:"id"`
	Title                 string  `json:"title"`
	Description           string  `json:"description"`
	WhatTheyAreLookingFor string  `json:"whatTheyAreLookingFor"`
	Image                 string  `json:"image"`
	Category              string  `json:"category"`
	UserID                string  `json:"userId"`
	UserName              string  `json:"userName"`
	UserProfilePic        *string `json:"userProfilePic"`
	PostedAt              string  `json:"postedAt"`
	SwapRequested         bool    `json:"swapRequested"`
	IsFavorited           *bool   `json:"isFavorited,omitempty"`
}

type ItemListResponse struct {
	Items []ItemResponse `json:"items"`
}

type ItemRequest struct {
	Title                 string `json:"title"`
	Description           string `json:"description"`
	WhatTheyAreLookingFor string `json:"whatTheyAreLookingFor"`
	Image                 string `json:"image"`
	Category              string `json:"category"`
}

func (r ItemRequest) input() service.ItemInput {
	return service.ItemInput{
		Title:       r.Title,
		Description: r.Description,
		LookingFor:  r.WhatTheyAreLookingFor,
		Image:       r.Image,
		Category:    r.Category,
	}
}

func (h *ItemHandler) Create(c echo.Context) error {
	var req ItemRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	item, err := h.svc.Post(c.Request().Context(), currentUID(c), req.input())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, toItemResponse(item))
}

func (h *ItemHandler) Get(c echo.Context) error {
	item, err := h.svc.Get(c.Request().Context(), currentUID(c), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toFeedItemResponse(*item))
}

func (h *ItemHandler) List(c echo.Context) error {
	items, err := h.svc.Feed(c.Request().Context(), currentUID(c), c.QueryParam("category"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toFeedResponse(items))
}

func (h *ItemHandler) Search(c echo.Context) error {
	items, err := h.svc.Search(c.Request().Context(), currentUID(c), c.QueryParam("q"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toFeedResponse(items))
}

func (h *ItemHandler) ListMine(c echo.Context) error {
	items, err := h.svc.ListMine(c.Request().Context(), currentUID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toItemListResponse(items))
}

func (h *ItemHandler) Update(c echo.Context) error {
	var req ItemRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	item, err := h.svc.Update(c.Request().Context(), currentUID(c), c.Param("id"), req.input())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toItemResponse(item))
}

func (h *ItemHandler) Delete(c echo.Context) error {
	if err := h.svc.Delete(c.Request().Context(), currentUID(c), c.Param("id")); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func toItemResponse(item *model.Item) ItemResponse {
	return ItemResponse{
		ID:                    item.ID,
		Title:                 item.Title,
		Description:           item.Description,
		WhatTheyAreLookingFor: item.LookingFor,
		Image:                 item.Image,
		Category:              string(item.Category),
		UserID:                item.UserID,
		UserName:              item.UserName,
		UserProfilePic:        item.UserProfilePic,
		PostedAt:              formatTime(item.PostedAt),
		SwapRequested:         item.SwapRequested,
	}
}

func toFeedItemResponse(fi service.FeedItem) ItemResponse {
	resp := toItemResponse(&fi.Item)
	fav := fi.IsFavorited
	resp.IsFavorited = &fav
	return resp
}

func toFeedResponse(items []service.FeedItem) ItemListResponse {
	resp := ItemListResponse{Items: make([]ItemResponse, 0, len(items))}
	for _, fi := range items {
		resp.Items = append(resp.Items, toFeedItemResponse(fi))
	}
	return resp
}

func toItemListResponse(items []model.Item) ItemListResponse {
	resp := ItemListResponse{Items: make([]ItemResponse, 0, len(items))}
	for i := range items {
		resp.Items = append(resp.Items, toItemResponse(&items[i]))
	}
	return resp
}
