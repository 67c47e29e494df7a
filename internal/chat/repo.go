package chat

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrChatResolved = errors.New("chat already resolved")
	ErrChatClosed   = errors.New("chat not accepting messages")
	ErrAgentBusy    = errors.New("agent has an active chat")
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) AutoMigrate() error {
	return r.db.AutoMigrate(&Chat{}, &Message{}, &Agent{})
}

// CreateChat inserts a chat and, when seedText is non-empty, the customer
// message that triggered it, in one transaction. An insert failure on either
// row rolls back both so no empty-transcript chat can reach the queue.
func (r *Repo) CreateChat(ctx context.Context, c *Chat, seedText string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(c).Error; err != nil {
			return err
		}
		if seedText == "" {
			return nil
		}
		msg := &Message{ChatID: c.ID, From: SenderCustomer, Text: seedText, CreatedAt: time.Now()}
		return tx.Create(msg).Error
	})
}

func (r *Repo) GetChat(ctx context.Context, id string) (*Chat, error) {
	var c Chat
	if err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// AppendMessage inserts a transcript row with a server-assigned timestamp.
// Valid only while the chat is waiting or assigned.
func (r *Repo) AppendMessage(ctx context.Context, chatID, from, text string) (*Message, error) {
	msg := &Message{ChatID: chatID, From: from, Text: text, CreatedAt: time.Now()}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c Chat
		if err := tx.First(&c, "id = ?", chatID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if c.State == StateResolved {
			return ErrChatClosed
		}
		return tx.Create(msg).Error
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// ListMessages returns the transcript in append order (oldest first).
func (r *Repo) ListMessages(ctx context.Context, chatID string) ([]Message, error) {
	var msgs []Message
	if err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("id ASC").
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

// ListMessagesPage reads a transcript window, oldest first.
func (r *Repo) ListMessagesPage(ctx context.Context, chatID string, limit, offset int) ([]Message, error) {
	var msgs []Message
	if err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("id ASC").
		Limit(limit).
		Offset(offset).
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

// ListAvailableAgents returns online agents without an active chat.
func (r *Repo) ListAvailableAgents(ctx context.Context) ([]Agent, error) {
	var agents []Agent
	if err := r.db.WithContext(ctx).
		Where("online = ? AND status = ?", true, AgentAvailable).
		Order("updated_at ASC").
		Find(&agents).Error; err != nil {
		return nil, err
	}
	return agents, nil
}

func (r *Repo) GetAgent(ctx context.Context, id string) (*Agent, error) {
	var a Agent
	if err := r.db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *Repo) GetAgentByEmail(ctx context.Context, email string) (*Agent, error) {
	var a Agent
	if err := r.db.WithContext(ctx).First(&a, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *Repo) SaveAgent(ctx context.Context, a *Agent) error {
	return r.db.WithContext(ctx).Save(a).Error
}

var errClaimLost = errors.New("claim lost")

// ClaimOldestWaiting atomically assigns the oldest waiting chat to the agent.
// The claim is a conditional update ("assign iff still waiting") inside one
// transaction, so two agents racing for the same chat cannot both win: the
// loser's update hits zero rows and the transaction retries against the next
// oldest chat. The hand-off system message is written in the same
// transaction as the claim; if it cannot be recorded the assignment rolls
// back and the chat stays waiting.
//
// Returns (nil, nil) when no waiting chat exists.
func (r *Repo) ClaimOldestWaiting(ctx context.Context, agentID, handoff string) (*Chat, error) {
	const maxAttempts = 5

	for attempt := 0; attempt < maxAttempts; attempt++ {
		var claimed *Chat
		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var c Chat
			if err := tx.
				Where("state = ?", StateWaiting).
				Order("created_at ASC, id ASC").
				First(&c).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return nil // nothing waiting; agent stays idle-available
				}
				return err
			}

			res := tx.Model(&Chat{}).
				Where("id = ? AND state = ?", c.ID, StateWaiting).
				Updates(map[string]any{"state": StateAssigned, "agent_id": agentID})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return errClaimLost
			}

			if err := tx.Model(&Agent{}).
				Where("id = ?", agentID).
				Updates(map[string]any{
					"status":       AgentBusy,
					"current_chat": c.ID,
				}).Error; err != nil {
				return err
			}

			if handoff != "" {
				msg := &Message{ChatID: c.ID, From: SenderSystem, Text: handoff, CreatedAt: time.Now()}
				if err := tx.Create(msg).Error; err != nil {
					return err
				}
			}

			c.State = StateAssigned
			c.AgentID = &agentID
			claimed = &c
			return nil
		})
		if errors.Is(err, errClaimLost) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return claimed, nil
	}
	return nil, nil
}

// TransferChat reassigns an assigned chat to another agent in one
// transaction: the chat's agent changes, the old agent is freed and the new
// one marked busy. State stays assigned.
func (r *Repo) TransferChat(ctx context.Context, chatID, toAgentID string) (*Chat, string, error) {
	var (
		out  Chat
		from string
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c Chat
		if err := tx.First(&c, "id = ?", chatID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if c.State != StateAssigned || c.AgentID == nil {
			return ErrNotFound
		}

		var target Agent
		if err := tx.First(&target, "id = ?", toAgentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if target.CurrentChat != nil {
			return ErrAgentBusy
		}

		from = *c.AgentID

		if err := tx.Model(&Agent{}).
			Where("id = ?", from).
			Updates(map[string]any{
				"status":       AgentAvailable,
				"current_chat": nil,
			}).Error; err != nil {
			return err
		}
		if err := tx.Model(&Agent{}).
			Where("id = ?", toAgentID).
			Updates(map[string]any{
				"status":       AgentBusy,
				"current_chat": chatID,
			}).Error; err != nil {
			return err
		}
		if err := tx.Model(&Chat{}).
			Where("id = ?", chatID).
			Update("agent_id", toAgentID).Error; err != nil {
			return err
		}

		c.AgentID = &toAgentID
		out = c
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return &out, from, nil
}

// ResolveChat marks the chat resolved and frees its agent, atomically.
// Resolving an already-resolved chat is rejected.
func (r *Repo) ResolveChat(ctx context.Context, chatID string) (*Chat, error) {
	var out Chat
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c Chat
		if err := tx.First(&c, "id = ?", chatID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if c.State == StateResolved {
			return ErrChatResolved
		}

		now := time.Now()
		if err := tx.Model(&Chat{}).
			Where("id = ?", chatID).
			Updates(map[string]any{
				"state":       StateResolved,
				"resolved_at": now,
			}).Error; err != nil {
			return err
		}

		if c.AgentID != nil {
			if err := tx.Model(&Agent{}).
				Where("id = ?", *c.AgentID).
				Updates(map[string]any{
					"status":       AgentAvailable,
					"current_chat": nil,
				}).Error; err != nil {
				return err
			}
		}

		c.State = StateResolved
		c.ResolvedAt = &now
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
