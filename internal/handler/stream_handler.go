package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/arfaar/swapfinity/internal/model"
	"github.com/arfaar/swapfinity/internal/repository"
	"github.com/arfaar/swapfinity/internal/service"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// StreamHandler pushes live snapshots over websockets. Every frame carries
// the full current result set.
type StreamHandler struct {
	items         service.ItemService
	notifications service.NotificationService
	chats         service.ChatService
	users         service.UserService
	upgrader      websocket.Upgrader
	log           *slog.Logger
}

func NewStreamHandler(items service.ItemService, notifications service.NotificationService, chats service.ChatService, users service.UserService, allowOrigin func(string) (bool, error), log *slog.Logger) *StreamHandler {
	return &StreamHandler{
		items:         items,
		notifications: notifications,
		chats:         chats,
		users:         users,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowOrigin),
		},
		log: log.With("component", "stream"),
	}
}

// originChecker applies the CORS origin policy to websocket upgrades.
// Non-browser clients send no Origin and are accepted.
func originChecker(allow func(string) (bool, error)) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		ok, err := allow(origin)
		return ok && err == nil
	}
}

type streamFrame struct {
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

func errorFrame(err error) streamFrame {
	slog.Warn("live subscription failed", "error", err)
	return streamFrame{Type: "error", Error: "live updates interrupted"}
}

func (h *StreamHandler) Items(c echo.Context) error {
	category := c.QueryParam("category")
	return serveStream(h, c, func(ctx context.Context) (<-chan repository.Snapshot[model.Item], error) {
		return h.items.Watch(ctx, category)
	}, func(s repository.Snapshot[model.Item]) streamFrame {
		if s.Err != nil {
			return errorFrame(s.Err)
		}
		return streamFrame{Type: "items", Data: toItemListResponse(s.Items)}
	})
}

func (h *StreamHandler) Notifications(c echo.Context) error {
	uid := currentUID(c)
	return serveStream(h, c, func(ctx context.Context) (<-chan repository.Snapshot[service.NotificationView], error) {
		return h.notifications.Watch(ctx, uid)
	}, func(s repository.Snapshot[service.NotificationView]) streamFrame {
		if s.Err != nil {
			return errorFrame(s.Err)
		}
		unread := 0
		for _, v := range s.Items {
			if v.MessageStatus == model.MessageUnread {
				unread++
			}
		}
		return streamFrame{Type: "notifications", Data: toNotificationListResponse(s.Items, unread)}
	})
}

func (h *StreamHandler) Messages(c echo.Context) error {
	uid := currentUID(c)
	chatID := c.Param("id")
	return serveStream(h, c, func(ctx context.Context) (<-chan repository.Snapshot[service.MessageView], error) {
		return h.chats.Watch(ctx, uid, chatID)
	}, func(s repository.Snapshot[service.MessageView]) streamFrame {
		if s.Err != nil {
			return errorFrame(s.Err)
		}
		msgs := make([]MessageResponse, 0, len(s.Items))
		for _, m := range s.Items {
			msgs = append(msgs, toMessageResponse(m))
		}
		return streamFrame{Type: "messages", Data: msgs}
	})
}

func (h *StreamHandler) Profile(c echo.Context) error {
	uid := currentUID(c)
	return serveStream(h, c, func(ctx context.Context) (<-chan repository.DocSnapshot[model.UserProfile], error) {
		return h.users.Watch(ctx, uid)
	}, func(s repository.DocSnapshot[model.UserProfile]) streamFrame {
		if s.Err != nil {
			return errorFrame(s.Err)
		}
		if s.Value == nil {
			return streamFrame{Type: "profile"}
		}
		view := &service.ProfileView{UserProfile: *s.Value, FavoritesCount: len(s.Value.Favorites)}
		return streamFrame{Type: "profile", Data: toProfileResponse(view, true)}
	})
}

// serveStream subscribes before upgrading so that authorization failures
// still get a regular HTTP error response.
func serveStream[T any](h *StreamHandler, c echo.Context, subscribe func(context.Context) (<-chan T, error), frame func(T) streamFrame) error {
	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	ch, err := subscribe(ctx)
	if err != nil {
		return writeError(c, err)
	}
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "path", c.Path(), "error", err)
		return nil
	}
	defer conn.Close()

	go readPump(conn, cancel)
	writePump(ctx, conn, ch, frame, h.log)
	return nil
}

// readPump discards client frames and cancels the stream once the peer goes
// away or stops answering pings.
func readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writePump[T any](ctx context.Context, conn *websocket.Conn, ch <-chan T, frame func(T) streamFrame, log *slog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	closeWith := func(code int, text string) {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, text))
	}
	for {
		select {
		case <-ctx.Done():
			closeWith(websocket.CloseNormalClosure, "")
			return
		case snap, ok := <-ch:
			if !ok {
				closeWith(websocket.CloseNormalClosure, "")
				return
			}
			f := frame(snap)
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(f); err != nil {
				log.Debug("websocket write failed", "error", err)
				return
			}
			if f.Type == "error" {
				closeWith(websocket.CloseInternalServerErr, "subscription failed")
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
