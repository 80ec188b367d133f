package server

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/arfaar/swapfinity/internal/docstore"
	"github.com/arfaar/swapfinity/internal/handler"
	"github.com/arfaar/swapfinity/internal/identity"
	"github.com/arfaar/swapfinity/internal/media"
	appmw "github.com/arfaar/swapfinity/internal/middleware"
	"github.com/arfaar/swapfinity/internal/repository"
	"github.com/arfaar/swapfinity/internal/service"
)

type Deps struct {
	Store          docstore.Store
	Identity       identity.Provider
	Uploader       media.Uploader // nil disables uploads
	AllowedOrigins []string
	FanoutLimit    int
	Logger         *slog.Logger
	SHA            string
	BuildTime      string
}

type Server struct {
	e *echo.Echo
}

func New(d Deps) *Server {
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogError:     true,
		LogRequestID: true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency, "request_id", v.RequestID}
			if v.Error != nil {
				log.Error("request", append(attrs, "error", v.Error)...)
				return nil
			}
			log.Info("request", attrs...)
			return nil
		},
	}))
	originPolicy := allowOrigin(d.AllowedOrigins)
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		AllowOriginFunc:  originPolicy,
	}))

	items := repository.NewItemRepository(d.Store)
	users := repository.NewUserRepository(d.Store)
	notifications := repository.NewNotificationRepository(d.Store)
	chats := repository.NewChatRepository(d.Store)
	swapRequests := repository.NewSwapRequestRepository(d.Store)

	itemSvc := service.NewItemService(items, users, d.FanoutLimit, log)
	favSvc := service.NewFavoriteService(users, items, d.FanoutLimit, log)
	chatSvc := service.NewChatService(chats, users, d.FanoutLimit, log)
	swapSvc := service.NewSwapService(items, users, notifications, swapRequests, chatSvc, log)
	notifSvc := service.NewNotificationService(notifications, swapRequests, items, d.FanoutLimit, log)
	userSvc := service.NewUserService(users, d.Identity, log)

	itemHandler := handler.NewItemHandler(itemSvc)
	favHandler := handler.NewFavoriteHandler(favSvc)
	notifHandler := handler.NewNotificationHandler(notifSvc, swapSvc)
	chatHandler := handler.NewChatHandler(chatSvc)
	userHandler := handler.NewUserHandler(userSvc)
	streamHandler := handler.NewStreamHandler(itemSvc, notifSvc, chatSvc, userSvc, originPolicy, log)

	authMw := appmw.NewAuthMiddleware(d.Identity, log)
	auth := authMw.RequireAuth

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"ok":         "true",
			"git_sha":    d.SHA,
			"build_time": d.BuildTime,
		})
	})

	api := e.Group("/api")
	api.POST("/auth/register", userHandler.Register)
	api.POST("/auth/signin", userHandler.SignIn)
	api.POST("/auth/signout", userHandler.SignOut, auth)

	api.GET("/me", userHandler.Me, auth)
	api.GET("/me/profile", userHandler.MyProfile, auth)
	api.PATCH("/me/profile", userHandler.UpdateProfile, auth)
	api.PUT("/me/profile/picture", userHandler.SetPicture, auth)
	api.DELETE("/me/profile/picture", userHandler.RemovePicture, auth)
	api.POST("/me/password", userHandler.ChangePassword, auth)
	api.GET("/me/items", itemHandler.ListMine, auth)
	api.GET("/me/favorites", favHandler.List, auth)
	api.GET("/users/:uid", userHandler.GetPublic, authMw.OptionalAuth)

	api.GET("/items", itemHandler.List, authMw.OptionalAuth)
	api.GET("/items/search", itemHandler.Search, authMw.OptionalAuth)
	api.GET("/items/:id", itemHandler.Get, authMw.OptionalAuth)
	api.POST("/items", itemHandler.Create, auth)
	api.PUT("/items/:id", itemHandler.Update, auth)
	api.DELETE("/items/:id", itemHandler.Delete, auth)
	api.POST("/items/:id/favorite", favHandler.Toggle, auth)
	api.PUT("/items/:id/favorite", favHandler.Add, auth)
	api.DELETE("/items/:id/favorite", favHandler.Remove, auth)
	api.POST("/items/:id/swap-requests", notifHandler.RequestSwap, auth)

	api.GET("/notifications", notifHandler.List, auth)
	api.POST("/notifications/:id/read", notifHandler.MarkRead, auth)
	api.POST("/notifications/:id/respond", notifHandler.Respond, auth)
	api.DELETE("/notifications/:id", notifHandler.Dismiss, auth)

	api.GET("/chats", chatHandler.List, auth)
	api.POST("/chats", chatHandler.Open, auth)
	api.GET("/chats/:id/messages", chatHandler.Messages, auth)
	api.POST("/chats/:id/messages", chatHandler.Send, auth)

	if d.Uploader != nil {
		uploadHandler := handler.NewUploadHandler(d.Uploader)
		api.POST("/uploads", uploadHandler.Sign, auth)
		api.POST("/uploads/direct", uploadHandler.Direct, auth, middleware.BodyLimit("6M"))
	}

	ws := e.Group("/ws")
	ws.GET("/items", streamHandler.Items)
	ws.GET("/notifications", streamHandler.Notifications, auth)
	ws.GET("/chats/:id/messages", streamHandler.Messages, auth)
	ws.GET("/me/profile", streamHandler.Profile, auth)

	return &Server{e: e}
}

// allowOrigin accepts the configured origins, or local development origins
// when none are configured.
func allowOrigin(allowed []string) func(string) (bool, error) {
	return func(origin string) (bool, error) {
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true, nil
			}
		}
		if len(allowed) > 0 {
			return false, nil
		}
		u, err := url.Parse(origin)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return false, nil
		}
		host := u.Hostname()
		return host == "localhost" || host == "127.0.0.1", nil
	}
}

func (s *Server) Handler() http.Handler {
	return s.e
}

func (s *Server) Start(addr string) error {
	return s.e.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}
