package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/shopnex/helpdesk/internal/chat"
	"github.com/shopnex/helpdesk/internal/common"
)

func intQuery(c *gin.Context, name string, fallback int) int {
	v := c.Query(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func (h *Handler) ListChatMessages(c *gin.Context) {
	chatID := c.Param("chat_id")
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)

	msgs, err := h.ChatSvc.HistoryPage(c.Request.Context(), chatID, limit, offset)
	if err != nil {
		if errors.Is(err, chat.ErrNotFound) {
			common.Fail(c, http.StatusNotFound, 40402, "chat not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}

	common.OK(c, gin.H{
		"chat_id":  chatID,
		"messages": msgs,
	})
}

func (h *Handler) GetChat(c *gin.Context) {
	chatID := c.Param("chat_id")
	found, err := h.ChatSvc.GetChat(c.Request.Context(), chatID)
	if err != nil {
		if errors.Is(err, chat.ErrNotFound) {
			common.Fail(c, http.StatusNotFound, 40402, "chat not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	common.OK(c, found)
}
