package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shopnex/helpdesk/internal/common"
	"github.com/shopnex/helpdesk/internal/config"
	"github.com/shopnex/helpdesk/internal/httpapi/handlers"
	"github.com/shopnex/helpdesk/internal/httpapi/middleware"
	"github.com/shopnex/helpdesk/internal/realtime"
)

func NewRouter(cfg config.Config, h *handlers.Handler, ws *realtime.Handler) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.Use(middleware.RequestID())

	r.GET("/ping", h.Ping)

	// triage entry point
	r.POST("/support", h.Support)

	// agent auth
	r.POST("/agents/login", h.Login)
	r.GET("/agents/online", h.OnlineAgents)

	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(cfg.JWTSecret))
	authGroup.GET("/me", h.Me)
	authGroup.GET("/chats/:chat_id", h.GetChat)
	authGroup.GET("/chats/:chat_id/messages", h.ListChatMessages)

	// realtime is optional; without it the triage surface still works
	if cfg.RealtimeEnabled && ws != nil {
		r.GET("/ws", ws.ServeWS)
	}

	return r
}
