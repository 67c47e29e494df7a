package realtime

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/shopnex/helpdesk/internal/chat"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const opTimeout = 10 * time.Second

// Handler upgrades websocket sessions and translates wire events into
// chat service calls.
type Handler struct {
	hub   *Hub
	chats *chat.Service
}

func NewHandler(hub *Hub, chats *chat.Service) *Handler {
	return &Handler{hub: hub, chats: chats}
}

func (h *Handler) ServeWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[realtime] upgrade: %v", err)
		return
	}

	client := newClient(uuid.NewString(), conn)
	go client.writePump()
	client.readPump(h)
}

func (h *Handler) disconnect(c *Client) {
	if c.agentID != "" {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		if err := h.chats.MarkOffline(ctx, c.agentID); err != nil {
			log.Printf("[realtime] mark offline %s: %v", c.agentID, err)
		}
	}
	h.hub.unregister(c)
}

func (h *Handler) sendError(c *Client, msg string) {
	h.hub.send(c, EventError, map[string]string{"message": msg})
}

func (h *Handler) decode(c *Client, raw json.RawMessage, v any) bool {
	if err := json.Unmarshal(raw, v); err != nil {
		h.sendError(c, "malformed payload")
		return false
	}
	return true
}

func (h *Handler) dispatch(c *Client, env Envelope) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	switch env.Event {
	case EventAgentLogin:
		var p agentLoginPayload
		if !h.decode(c, env.Data, &p) {
			return
		}
		agent, err := h.chats.UpsertAgent(ctx, "", p.Name, p.Email)
		if err != nil {
			h.sendError(c, "login failed")
			return
		}
		h.hub.bindAgent(c, agent.ID)

	case EventAgentAvailable:
		if c.agentID == "" {
			h.sendError(c, "not logged in")
			return
		}
		assigned, history, err := h.chats.SetAvailable(ctx, c.agentID)
		if err != nil {
			h.sendError(c, err.Error())
			return
		}
		if assigned == nil {
			return
		}
		// the claiming agent is not in the room yet, deliver directly
		h.hub.join(c, assigned.ID)
		h.hub.send(c, EventChatAssigned, assigned)
		h.hub.send(c, EventChatHistory, map[string]any{
			"chat_id":  assigned.ID,
			"messages": history,
		})

	case EventResolveChat:
		var p chatRefPayload
		if !h.decode(c, env.Data, &p) {
			return
		}
		if _, err := h.chats.Resolve(ctx, p.ChatID); err != nil {
			h.sendError(c, err.Error())
		}

	case EventEscalateRequest:
		var p escalateRequestPayload
		if !h.decode(c, env.Data, &p) {
			return
		}
		if p.UserID == "" {
			log.Printf("[realtime] escalate_request from %s missing userId, ignored", c.id)
			h.sendError(c, "userId is required")
			return
		}
		created, err := h.chats.Escalate(ctx, chat.EscalationRequest{
			ChatID:     p.ChatID,
			CustomerID: p.UserID,
			CaseNumber: p.CaseNumber,
			Priority:   p.Priority,
			Issue:      p.Issue,
		})
		if err != nil {
			h.sendError(c, err.Error())
			return
		}
		h.hub.join(c, created.ID)
		h.hub.send(c, EventChatEscalated, map[string]string{
			"chat_id":     created.ID,
			"case_number": created.CaseNumber,
		})

	case EventJoin:
		var p chatRefPayload
		if !h.decode(c, env.Data, &p) {
			return
		}
		h.hub.join(c, p.ChatID)

	case EventLeave:
		var p chatRefPayload
		if !h.decode(c, env.Data, &p) {
			return
		}
		h.hub.leave(c, p.ChatID)

	case EventJoinChat:
		var p joinChatPayload
		if !h.decode(c, env.Data, &p) {
			return
		}
		c.userType = p.UserType
		h.hub.join(c, p.ChatID)
		h.replayHistory(ctx, c, p.ChatID)

	case EventTransferChat:
		var p transferChatPayload
		if !h.decode(c, env.Data, &p) {
			return
		}
		if _, err := h.chats.Transfer(ctx, p.ChatID, p.AgentID); err != nil {
			h.sendError(c, err.Error())
		}

	case EventTyping:
		var p typingPayload
		if !h.decode(c, env.Data, &p) {
			return
		}
		// fall back to the type recorded at join when the frame omits it
		userType := p.UserType
		if userType == "" {
			userType = c.userType
		}
		// never echoed back to the typist
		h.hub.toChatExcept(p.ChatID, c, EventTypingIndicator, map[string]any{
			"chat_id":   p.ChatID,
			"is_typing": p.IsTyping,
			"user_type": userType,
		})

	case EventAgentMessage:
		h.relayMessage(ctx, c, env.Data, chat.SenderAgent)

	case EventCustomerMessage:
		h.relayMessage(ctx, c, env.Data, chat.SenderCustomer)

	case EventRequestChatHistory:
		var p chatRefPayload
		if !h.decode(c, env.Data, &p) {
			return
		}
		h.replayHistory(ctx, c, p.ChatID)

	default:
		h.sendError(c, "unknown event: "+env.Event)
	}
}

func (h *Handler) relayMessage(ctx context.Context, c *Client, raw json.RawMessage, from string) {
	var p chatMessagePayload
	if !h.decode(c, raw, &p) {
		return
	}
	if p.Message == "" {
		return
	}
	if _, err := h.chats.AppendMessage(ctx, p.ChatID, from, p.Message); err != nil {
		h.sendError(c, err.Error())
	}
}

func (h *Handler) replayHistory(ctx context.Context, c *Client, chatID string) {
	history, err := h.chats.History(ctx, chatID)
	if err != nil {
		h.sendError(c, err.Error())
		return
	}
	h.hub.send(c, EventChatHistory, map[string]any{
		"chat_id":  chatID,
		"messages": history,
	})
}
