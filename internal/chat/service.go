package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/shopnex/helpdesk/internal/auth"
	"github.com/shopnex/helpdesk/internal/common"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// Notifier delivers realtime events. ToChat targets the connections joined
// to one chat room; ToAgents fans out to every connected agent; ToAgent
// targets one agent's connections.
type Notifier interface {
	ToChat(chatID, event string, data any)
	ToAgents(event string, data any)
	ToAgent(agentID, event string, data any)
}

// EscalationNotice is the durable-queue copy of a new_escalation fan-out,
// consumed by the notifier worker for agents who are not connected.
type EscalationNotice struct {
	ChatID     string    `json:"chat_id"`
	CaseNumber string    `json:"case_number"`
	Issue      string    `json:"issue"`
	Priority   string    `json:"priority"`
	CreatedAt  time.Time `json:"created_at"`
}

type EscalationPublisher interface {
	PublishEscalation(ctx context.Context, n EscalationNotice) error
}

// Presence mirrors agent online state into a shared store.
type Presence interface {
	SetOnline(ctx context.Context, a Agent) error
	SetOffline(ctx context.Context, agentID string) error
}

// Service is the escalation router: it owns chat lifecycle, agent
// availability and the assignment claim, and emits events through the
// notifier after every successful store mutation.
type Service struct {
	repo      *Repo
	notifier  Notifier
	publisher EscalationPublisher
	presence  Presence
}

func NewService(repo *Repo, notifier Notifier, publisher EscalationPublisher, presence Presence) *Service {
	return &Service{repo: repo, notifier: notifier, publisher: publisher, presence: presence}
}

// SetNotifier wires the realtime hub after construction; the hub needs the
// service for event handling, the service needs the hub for delivery.
func (s *Service) SetNotifier(n Notifier) { s.notifier = n }

// NewCaseNumber derives a case number from the wall clock at second
// resolution: CASE-YYYYMMDDHHMMSS.
func NewCaseNumber(t time.Time) string {
	return "CASE-" + t.Format("20060102150405")
}

const defaultPriority = "normal"

type EscalationRequest struct {
	ChatID        string // reuse when the id already exists
	CustomerID    string
	CustomerName  string
	CustomerEmail string
	CaseNumber    string
	Priority      string
	Issue         string
	SeedMessage   string // triggering customer message, seeds the transcript
}

// Escalate creates (or reuses) a waiting chat, persists it, and fans a
// new_escalation notice out to all connected agents and the durable queue.
func (s *Service) Escalate(ctx context.Context, req EscalationRequest) (*Chat, error) {
	if req.ChatID != "" {
		if existing, err := s.repo.GetChat(ctx, req.ChatID); err == nil {
			return existing, nil
		} else if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}

	id := req.ChatID
	if id == "" {
		var err error
		id, err = common.NewULID()
		if err != nil {
			return nil, err
		}
	}

	now := time.Now()
	caseNumber := req.CaseNumber
	if caseNumber == "" {
		caseNumber = NewCaseNumber(now)
	}
	priority := req.Priority
	if priority == "" {
		priority = defaultPriority
	}

	c := &Chat{
		ID:            id,
		CustomerID:    req.CustomerID,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		State:         StateWaiting,
		CaseNumber:    caseNumber,
		Issue:         req.Issue,
		Priority:      priority,
		CreatedAt:     now,
	}
	if err := s.repo.CreateChat(ctx, c, req.SeedMessage); err != nil {
		return nil, err
	}

	notice := EscalationNotice{
		ChatID:     c.ID,
		CaseNumber: c.CaseNumber,
		Issue:      preview(c.Issue, 120),
		Priority:   c.Priority,
		CreatedAt:  c.CreatedAt,
	}
	if s.notifier != nil {
		s.notifier.ToAgents("new_escalation", notice)
	}
	if s.publisher != nil {
		if err := s.publisher.PublishEscalation(ctx, notice); err != nil {
			log.Printf("[Router] escalation publish failed chat=%s err=%v", c.ID, err)
		}
	}
	return c, nil
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// UpsertAgent is the idempotent agent login: it creates the record on first
// sight and otherwise refreshes name and online state. An agent mid-chat
// logs back in as busy.
func (s *Service) UpsertAgent(ctx context.Context, id, name, email string) (*Agent, error) {
	a, err := s.repo.GetAgentByEmail(ctx, email)
	switch {
	case err == nil:
		a.Name = name
		a.Online = true
		if a.CurrentChat != nil {
			a.Status = AgentBusy
		} else {
			a.Status = AgentAvailable
		}
	case errors.Is(err, ErrNotFound):
		if id == "" {
			id = uuid.New().String()
		}
		a = &Agent{
			ID:     id,
			Name:   name,
			Email:  email,
			Online: true,
			Status: AgentAvailable,
		}
	default:
		return nil, err
	}

	if err := s.repo.SaveAgent(ctx, a); err != nil {
		return nil, err
	}
	if s.presence != nil {
		if err := s.presence.SetOnline(ctx, *a); err != nil {
			log.Printf("[Router] presence update failed agent=%s err=%v", a.ID, err)
		}
	}
	if s.notifier != nil {
		s.notifier.ToAgents("agent_status", map[string]any{
			"agent_id": a.ID,
			"name":     a.Name,
			"online":   true,
			"status":   a.Status,
		})
	}
	return a, nil
}

// AuthenticateAgent verifies the seeded bcrypt credential.
func (s *Service) AuthenticateAgent(ctx context.Context, email, password string) (*Agent, error) {
	a, err := s.repo.GetAgentByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !auth.CheckPassword(a.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return a, nil
}

// SetAvailable marks the agent available and claims the oldest waiting chat,
// if any. On a successful claim it appends the system hand-off message,
// notifies the customer room and returns the chat with its full transcript
// so the caller can deliver complete context to the agent. With nothing
// waiting it returns (nil, nil, nil) and the agent stays idle-available.
func (s *Service) SetAvailable(ctx context.Context, agentID string) (*Chat, []Message, error) {
	a, err := s.repo.GetAgent(ctx, agentID)
	if err != nil {
		return nil, nil, err
	}
	if a.CurrentChat != nil {
		return nil, nil, ErrAgentBusy
	}

	a.Online = true
	a.Status = AgentAvailable
	if err := s.repo.SaveAgent(ctx, a); err != nil {
		return nil, nil, err
	}

	handoff := fmt.Sprintf("You are now connected with %s.", a.Name)
	c, err := s.repo.ClaimOldestWaiting(ctx, agentID, handoff)
	if err != nil {
		return nil, nil, err
	}
	if c == nil {
		return nil, nil, nil
	}

	history, err := s.repo.ListMessages(ctx, c.ID)
	if err != nil {
		return nil, nil, err
	}

	if s.notifier != nil {
		s.notifier.ToChat(c.ID, "chat_assigned", map[string]any{
			"chat_id":     c.ID,
			"case_number": c.CaseNumber,
			"agent_id":    agentID,
			"agent_name":  a.Name,
		})
	}
	return c, history, nil
}

// MarkOffline records a disconnect: it clears the agent's own online,
// status and current_chat fields only. An assigned chat keeps its state and
// agent reference and is neither requeued nor reassigned.
func (s *Service) MarkOffline(ctx context.Context, agentID string) error {
	a, err := s.repo.GetAgent(ctx, agentID)
	if err != nil {
		return err
	}
	a.Online = false
	a.Status = AgentOffline
	a.CurrentChat = nil
	if err := s.repo.SaveAgent(ctx, a); err != nil {
		return err
	}
	if s.presence != nil {
		if err := s.presence.SetOffline(ctx, agentID); err != nil {
			log.Printf("[Router] presence update failed agent=%s err=%v", agentID, err)
		}
	}
	if s.notifier != nil {
		s.notifier.ToAgents("agent_status", map[string]any{
			"agent_id": a.ID,
			"name":     a.Name,
			"online":   false,
			"status":   AgentOffline,
		})
	}
	return nil
}

// Transfer reassigns an assigned chat to another agent and notifies the two
// agents and the customer room. The chat state does not change.
func (s *Service) Transfer(ctx context.Context, chatID, toAgentID string) (*Chat, error) {
	c, fromAgentID, err := s.repo.TransferChat(ctx, chatID, toAgentID)
	if err != nil {
		return nil, err
	}

	target, err := s.repo.GetAgent(ctx, toAgentID)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.AppendMessage(ctx, chatID, SenderSystem,
		fmt.Sprintf("Chat transferred to %s.", target.Name)); err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.ToChat(chatID, "chat_transferred", map[string]any{
			"chat_id":    chatID,
			"agent_id":   toAgentID,
			"agent_name": target.Name,
		})
		payload := map[string]any{
			"chat_id":       chatID,
			"from_agent_id": fromAgentID,
			"to_agent_id":   toAgentID,
		}
		s.notifier.ToAgent(fromAgentID, "agent_transferred", payload)
		s.notifier.ToAgent(toAgentID, "agent_transferred", payload)
	}
	return c, nil
}

// Resolve ends the chat: resolved state, resolution time, agent freed, both
// sides of the room notified.
func (s *Service) Resolve(ctx context.Context, chatID string) (*Chat, error) {
	c, err := s.repo.ResolveChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if s.notifier != nil {
		s.notifier.ToChat(chatID, "chat_resolved", map[string]any{
			"chat_id":     chatID,
			"case_number": c.CaseNumber,
			"resolved_at": c.ResolvedAt,
		})
	}
	return c, nil
}

// AppendMessage persists a transcript entry first and publishes it to the
// room second, so a history read issued right after the event always
// includes it.
func (s *Service) AppendMessage(ctx context.Context, chatID, from, text string) (*Message, error) {
	msg, err := s.repo.AppendMessage(ctx, chatID, from, text)
	if err != nil {
		return nil, err
	}
	if s.notifier != nil {
		s.notifier.ToChat(chatID, "new_message", map[string]any{
			"chat_id":   chatID,
			"from":      msg.From,
			"text":      msg.Text,
			"timestamp": msg.CreatedAt,
		})
	}
	return msg, nil
}

func (s *Service) History(ctx context.Context, chatID string) ([]Message, error) {
	if _, err := s.repo.GetChat(ctx, chatID); err != nil {
		return nil, err
	}
	return s.repo.ListMessages(ctx, chatID)
}

// HistoryPage serves the REST transcript read with limit/offset windowing.
func (s *Service) HistoryPage(ctx context.Context, chatID string, limit, offset int) ([]Message, error) {
	if _, err := s.repo.GetChat(ctx, chatID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListMessagesPage(ctx, chatID, limit, offset)
}

func (s *Service) GetChat(ctx context.Context, chatID string) (*Chat, error) {
	return s.repo.GetChat(ctx, chatID)
}

func (s *Service) GetAgent(ctx context.Context, agentID string) (*Agent, error) {
	return s.repo.GetAgent(ctx, agentID)
}
