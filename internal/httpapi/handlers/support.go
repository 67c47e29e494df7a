package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shopnex/helpdesk/internal/common"
)

type supportReq struct {
	Identifier string `json:"identifier"`
	Message    string `json:"message"`
}

// Support runs one customer message through triage. The response keeps
// the wire shape the web client expects, so it is not wrapped in the
// standard envelope.
func (h *Handler) Support(c *gin.Context) {
	var req supportReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if req.Identifier == "" || req.Message == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "identifier and message required")
		return
	}

	reply, err := h.SupportSvc.Handle(c.Request.Context(), req.Identifier, req.Message)
	if err != nil {
		log.Printf("[support] handle failed: %v", err)
		errorText := "Sorry, something went wrong while processing your request. Please try again later."
		c.JSON(http.StatusOK, gin.H{
			"ai_response": gin.H{
				"raw":       errorText,
				"formatted": "<div>" + errorText + "</div>",
			},
			"is_escalating": false,
		})
		return
	}

	resp := gin.H{
		"ai_response": gin.H{
			"raw":       reply.Raw,
			"formatted": reply.Formatted,
		},
		"is_escalating": reply.IsEscalating,
	}
	if reply.IsEscalating {
		resp["chat_id"] = reply.ChatID
		resp["case_number"] = reply.CaseNumber
	}
	c.JSON(http.StatusOK, resp)
}
