package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/openspotter/openspotter-server/internal/auth"
	"github.com/openspotter/openspotter-server/internal/config"
	"github.com/openspotter/openspotter-server/internal/core"
	"github.com/openspotter/openspotter-server/internal/store"
)

// NewServer builds the HTTP server: REST API plus the WebSocket endpoints.
func NewServer(hub *core.Hub, authService *auth.Service, st store.Store, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})

	wsHandler := NewWSHandler(hub, authService, st, cfg, logger)
	router.GET("/ws/location", gin.WrapH(wsHandler))
	router.GET("/ws/chat", gin.WrapH(wsHandler))

	apiHandlers := NewAPIHandlers(authService, logger)
	userHandlers := NewUserHandlers(st, logger)
	locationHandlers := NewLocationHandlers(st, hub, cfg, logger)
	messageHandlers := NewMessageHandlers(st, hub, logger)

	api := router.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.POST("/register", apiHandlers.Register)
	authGroup.POST("/login", apiHandlers.Login)
	authGroup.POST("/refresh", apiHandlers.Refresh)

	authorized := AuthMiddleware(authService, logger)

	users := api.Group("/users")
	users.GET("/me", authorized, userHandlers.Me)
	users.PATCH("/me", authorized, userHandlers.UpdateMe)

	locations := api.Group("/locations")
	locations.GET("/active", OptionalAuthMiddleware(authService, logger), locationHandlers.Active)
	locations.POST("/update", authorized, locationHandlers.Update)
	locations.GET("/history/:user_id", authorized, locationHandlers.History)
	locations.DELETE("/history", authorized, locationHandlers.ClearHistory)

	messages := api.Group("/messages", authorized)
	messages.GET("/channels", messageHandlers.ListChannels)
	messages.POST("/channels", messageHandlers.CreateChannel)
	messages.GET("/channels/:channel_id/messages", messageHandlers.ChannelMessages)
	messages.GET("/dm/:user_id", messageHandlers.DirectMessages)
	messages.POST("", messageHandlers.Send)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
