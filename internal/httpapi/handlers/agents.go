package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shopnex/helpdesk/internal/auth"
	"github.com/shopnex/helpdesk/internal/chat"
	"github.com/shopnex/helpdesk/internal/common"
	"github.com/shopnex/helpdesk/internal/store/redisstore"
)

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if req.Email == "" || req.Password == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "email and password required")
		return
	}

	agent, err := h.ChatSvc.AuthenticateAgent(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, chat.ErrInvalidCredentials) {
			common.Fail(c, http.StatusUnauthorized, 40102, "invalid credentials")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}

	token, err := auth.SignJWT(agent.ID, h.Cfg.JWTSecret, 24*time.Hour)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20003, "failed to sign token")
		return
	}

	common.OK(c, gin.H{
		"token": token,
		"agent": agent,
	})
}

func (h *Handler) Me(c *gin.Context) {
	agentID := c.GetString("agent_id")
	agent, err := h.ChatSvc.GetAgent(c.Request.Context(), agentID)
	if err != nil {
		if errors.Is(err, chat.ErrNotFound) {
			common.Fail(c, http.StatusNotFound, 40401, "agent not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	common.OK(c, agent)
}

// OnlineAgents serves the Redis presence roster. With presence disabled
// the roster is simply empty.
func (h *Handler) OnlineAgents(c *gin.Context) {
	if h.Redis == nil {
		common.OK(c, gin.H{"count": 0, "agents": []redisstore.OnlineAgent{}})
		return
	}
	agents, err := h.Redis.OnlineAgents(c.Request.Context())
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20002, "redis error")
		return
	}
	common.OK(c, gin.H{"count": len(agents), "agents": agents})
}
