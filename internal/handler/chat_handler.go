package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/arfaar/swapfinity/internal/model"
	"github.com/arfaar/swapfinity/internal/service"
)

type ChatHandler struct {
	svc service.ChatService
}

func NewChatHandler(svc service.ChatService) *ChatHandler {
	return &ChatHandler{svc: svc}
}

type ChatResponse struct {
	ID              string   `json:"id"`
	Participants    []string `json:"participants"`
	LastMessage     string   `json:"lastMessage"`
	LastMessageTime string   `json:"lastMessageTime"`
	PeerID          string   `json:"peerId,omitempty"`
	PeerName        string   `json:"peerName,omitempty"`
}

type MessageResponse struct {
	ID         string `json:"id"`
	SenderID   string `json:"senderID"`
	SenderName string `json:"senderName,omitempty"`
	Message    string `json:"message"`
	Time       string `json:"time"`
}

type OpenChatRequest struct {
	UserID string `json:"userId"`
}

type MessageRequest struct {
	Message string `json:"message"`
}

func toChatResponse(ch model.ChatChannel) ChatResponse {
	return ChatResponse{
		ID:              ch.ID,
		Participants:    ch.Participants,
		LastMessage:     ch.LastMessage,
		LastMessageTime: formatTime(ch.LastMessageTime),
	}
}

func toMessageResponse(m service.MessageView) MessageResponse {
	return MessageResponse{
		ID:         m.ID,
		SenderID:   m.SenderID,
		SenderName: m.SenderName,
		Message:    m.Body,
		Time:       formatTime(m.Time),
	}
}

func (h *ChatHandler) List(c echo.Context) error {
	chats, err := h.svc.List(c.Request().Context(), currentUID(c))
	if err != nil {
		return writeError(c, err)
	}
	resp := make([]ChatResponse, 0, len(chats))
	for _, s := range chats {
		r := toChatResponse(s.ChatChannel)
		r.PeerID = s.PeerID
		r.PeerName = s.PeerName
		resp = append(resp, r)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": resp})
}

func (h *ChatHandler) Open(c echo.Context) error {
	var req OpenChatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	ch, err := h.svc.OpenOrCreate(c.Request().Context(), currentUID(c), req.UserID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toChatResponse(*ch))
}

func (h *ChatHandler) Messages(c echo.Context) error {
	msgs, err := h.svc.Messages(c.Request().Context(), currentUID(c), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	resp := make([]MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		resp = append(resp, toMessageResponse(m))
	}
	return c.JSON(http.StatusOK, map[string]any{"items": resp})
}

// Send answers 204 when the message was blank and nothing was stored.
func (h *ChatHandler) Send(c echo.Context) error {
	var req MessageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	uid := currentUID(c)
	msg, err := h.svc.Send(c.Request().Context(), c.Param("id"), uid, req.Message)
	if err != nil {
		return writeError(c, err)
	}
	if msg == nil {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusCreated, toMessageResponse(service.MessageView{ChatMessage: *msg}))
}
