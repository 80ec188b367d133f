package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/arfaar/swapfinity/internal/model"
	"github.com/arfaar/swapfinity/internal/service"
)

type NotificationHandler struct {
	svc  service.NotificationService
	swap service.SwapService
}

func NewNotificationHandler(svc service.NotificationService, swap service.SwapService) *NotificationHandler {
	return &NotificationHandler{svc: svc, swap: swap}
}

type NotificationResponse struct {
	ID            string `json:"id"`
	SenderID      string `json:"senderID"`
	SenderName    string `json:"senderName"`
	ReceiverID    string `json:"receiverID"`
	ReceiverName  string `json:"receiverName"`
	PostID        string `json:"postID"`
	ItemTitle     string `json:"itemTitle,omitempty"`
	Message       string `json:"message"`
	MessageStatus string `json:"messageStatus"`
	SwapStatus    string `json:"swapStatus"`
	Timestamp     string `json:"timestamp"`
	ItemAvailable *bool  `json:"itemAvailable,omitempty"`
}

type NotificationListResponse struct {
	Items       []NotificationResponse `json:"items"`
	UnreadCount int                    `json:"unreadCount"`
}

type RespondRequest struct {
	Decision string `json:"decision"`
}

type RespondResponse struct {
	Notification NotificationResponse `json:"notification"`
	Companion    NotificationResponse `json:"companion"`
	ChatID       string               `json:"chatId,omitempty"`
}

func toNotificationResponse(n model.SwapNotification) NotificationResponse {
	return NotificationResponse{
		ID:            n.ID,
		SenderID:      n.SenderID,
		SenderName:    n.SenderName,
		ReceiverID:    n.ReceiverID,
		ReceiverName:  n.ReceiverName,
		PostID:        n.PostID,
		ItemTitle:     n.ItemTitle,
		Message:       n.Message,
		MessageStatus: string(n.MessageStatus),
		SwapStatus:    string(n.SwapStatus),
		Timestamp:     formatTime(n.Timestamp),
	}
}

func (h *NotificationHandler) List(c echo.Context) error {
	feed, err := h.svc.List(c.Request().Context(), currentUID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toNotificationListResponse(feed.Items, feed.UnreadCount))
}

func toNotificationListResponse(views []service.NotificationView, unread int) NotificationListResponse {
	resp := NotificationListResponse{
		Items:       make([]NotificationResponse, 0, len(views)),
		UnreadCount: unread,
	}
	for _, v := range views {
		n := toNotificationResponse(v.SwapNotification)
		avail := v.ItemAvailable
		n.ItemAvailable = &avail
		resp.Items = append(resp.Items, n)
	}
	return resp
}

func (h *NotificationHandler) MarkRead(c echo.Context) error {
	if err := h.svc.MarkRead(c.Request().Context(), currentUID(c), c.Param("id")); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *NotificationHandler) Dismiss(c echo.Context) error {
	if err := h.svc.Dismiss(c.Request().Context(), currentUID(c), c.Param("id")); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// RequestSwap handles POST /api/items/:id/swap-requests.
func (h *NotificationHandler) RequestSwap(c echo.Context) error {
	n, err := h.swap.RequestSwap(c.Request().Context(), currentUID(c), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, toNotificationResponse(*n))
}

func (h *NotificationHandler) Respond(c echo.Context) error {
	var req RespondRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	res, err := h.swap.Respond(c.Request().Context(), currentUID(c), c.Param("id"), model.SwapStatus(req.Decision))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, RespondResponse{
		Notification: toNotificationResponse(*res.Original),
		Companion:    toNotificationResponse(*res.Companion),
		ChatID:       res.ChatID,
	})
}
