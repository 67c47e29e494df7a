package chat

import "time"

type ChatState string

const (
	StateWaiting  ChatState = "waiting"
	StateAssigned ChatState = "assigned"
	StateResolved ChatState = "resolved"
)

type AgentStatus string

const (
	AgentAvailable AgentStatus = "available"
	AgentBusy      AgentStatus = "busy"
	AgentOffline   AgentStatus = "offline"
)

// Sender values for transcript messages.
const (
	SenderCustomer = "customer"
	SenderAgent    = "agent"
	SenderSystem   = "system"
)

// Chat is an escalated conversation. State moves waiting -> assigned ->
// resolved and never backwards; assigned requires AgentID set.
type Chat struct {
	ID            string     `gorm:"primaryKey;size:26" json:"id"`
	CustomerID    string     `gorm:"size:64;index;not null" json:"customer_id"`
	CustomerName  string     `gorm:"size:128" json:"customer_name"`
	CustomerEmail string     `gorm:"size:128" json:"customer_email"`
	State         ChatState  `gorm:"type:varchar(16);index;not null" json:"state"`
	AgentID       *string    `gorm:"size:36;index" json:"agent_id"`
	CaseNumber    string     `gorm:"size:32;index;not null" json:"case_number"`
	Issue         string     `gorm:"type:text" json:"issue"`
	Priority      string     `gorm:"size:16" json:"priority"`
	CreatedAt     time.Time  `json:"created_at"`
	ResolvedAt    *time.Time `json:"resolved_at"`
}

func (Chat) TableName() string { return "chats" }

// Message is one transcript entry. Append-only: rows are never updated or
// deleted, and ordering is by insertion (auto-increment id, server timestamp).
type Message struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ChatID    string    `gorm:"size:26;index;not null" json:"chat_id"`
	From      string    `gorm:"column:sender;type:varchar(16);not null" json:"from"`
	Text      string    `gorm:"type:text;not null" json:"text"`
	CreatedAt time.Time `json:"timestamp"`
}

func (Message) TableName() string { return "chat_messages" }

// Agent invariant: status == busy exactly when CurrentChat is set; a
// disconnected agent always has Online == false.
type Agent struct {
	ID           string      `gorm:"primaryKey;size:36" json:"id"`
	Name         string      `gorm:"size:128;not null" json:"name"`
	Email        string      `gorm:"size:128;uniqueIndex;not null" json:"email"`
	PasswordHash string      `gorm:"size:128" json:"-"`
	Online       bool        `gorm:"not null" json:"online"`
	Status       AgentStatus `gorm:"type:varchar(16);index;not null" json:"status"`
	CurrentChat  *string     `gorm:"size:26" json:"current_chat"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

func (Agent) TableName() string { return "agents" }
