package realtime

import (
	"encoding/json"
	"log"
)

// Client to server events.
const (
	EventAgentLogin         = "agent_login"
	EventAgentAvailable     = "agent_available"
	EventResolveChat        = "resolve_chat"
	EventEscalateRequest    = "escalate_request"
	EventJoin               = "join"
	EventLeave              = "leave"
	EventJoinChat           = "join_chat"
	EventTransferChat       = "transfer_chat"
	EventTyping             = "typing"
	EventAgentMessage       = "agent_message"
	EventCustomerMessage    = "customer_message"
	EventRequestChatHistory = "request_chat_history"
)

// Server to client events.
const (
	EventAgentStatus      = "agent_status"
	EventNewEscalation    = "new_escalation"
	EventChatAssigned     = "chat_assigned"
	EventChatResolved     = "chat_resolved"
	EventChatEscalated    = "chat_escalated"
	EventNewMessage       = "new_message"
	EventChatHistory      = "chat_history"
	EventTypingIndicator  = "typing_indicator"
	EventChatTransferred  = "chat_transferred"
	EventAgentTransferred = "agent_transferred"
	EventError            = "error"
)

// Envelope is the wire frame for both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type agentLoginPayload struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type chatRefPayload struct {
	ChatID string `json:"chat_id"`
}

type escalateRequestPayload struct {
	ChatID     string `json:"chatId"`
	UserID     string `json:"userId"`
	CaseNumber string `json:"caseNumber"`
	Priority   string `json:"priority"`
	Issue      string `json:"issue"`
}

type joinChatPayload struct {
	ChatID   string `json:"chat_id"`
	UserType string `json:"user_type"`
}

type transferChatPayload struct {
	ChatID  string `json:"chat_id"`
	AgentID string `json:"agent_id"`
}

type typingPayload struct {
	ChatID   string `json:"chat_id"`
	IsTyping bool   `json:"is_typing"`
	UserType string `json:"user_type"`
}

type chatMessagePayload struct {
	ChatID  string `json:"chat_id"`
	Message string `json:"message"`
}

func encode(event string, data any) []byte {
	raw, err := json.Marshal(data)
	if err != nil {
		log.Printf("[realtime] marshal %s payload: %v", event, err)
		return nil
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: raw})
	if err != nil {
		log.Printf("[realtime] marshal %s frame: %v", event, err)
		return nil
	}
	return frame
}
