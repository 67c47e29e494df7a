package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/shopnex/helpdesk/internal/chat"
	"github.com/shopnex/helpdesk/internal/common"
	"github.com/shopnex/helpdesk/internal/config"
	"github.com/shopnex/helpdesk/internal/store/redisstore"
	"github.com/shopnex/helpdesk/internal/support"
)

type Handler struct {
	Cfg        config.Config
	SupportSvc *support.Service
	ChatSvc    *chat.Service
	Redis      *redisstore.Store
}

func NewHandler(cfg config.Config, supportSvc *support.Service, chatSvc *chat.Service, rds *redisstore.Store) *Handler {
	return &Handler{
		Cfg:        cfg,
		SupportSvc: supportSvc,
		ChatSvc:    chatSvc,
		Redis:      rds,
	}
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"message": "pong"})
}
