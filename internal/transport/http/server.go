package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-fanout/internal/auth"
	"github.com/vovakirdan/wirechat-fanout/internal/config"
	"github.com/vovakirdan/wirechat-fanout/internal/core"
	"github.com/vovakirdan/wirechat-fanout/internal/store"
)

// NewServer builds an HTTP server. The websocket endpoint sits on the plain
// mux so the upgrade can hijack the raw connection; gin serves the rest.
func NewServer(handler *core.Handler, authService *auth.Service, st store.Store, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(handler, authService, cfg, logger))
	mux.Handle("/", NewRouter(handler, authService, st, cfg, logger))

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// NewRouter registers the health and REST routes on a fresh gin engine.
func NewRouter(handler *core.Handler, authService *auth.Service, st store.Store, cfg *config.Config, logger *zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", healthHandler)

	requireAuth := AuthMiddleware(authService, logger)

	conversations := NewConversationHandlers(st, handler, cfg.PollInterval, logger)
	api := router.Group("/api", requireAuth)
	{
		api.GET("/conversations", conversations.ListConversations)
		api.POST("/conversations", conversations.CreateConversation)
		api.POST("/conversations/:id/leave", conversations.LeaveConversation)
		api.GET("/conversations/:id/messages", conversations.ListMessages)
		api.POST("/conversations/:id/messages", conversations.SendMessage)
		api.POST("/messages/:id/read", conversations.MarkRead)
		api.GET("/sync", conversations.Sync)
	}

	return router
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
