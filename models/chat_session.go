package models

import "time"

// Session status values. Status is only written through chat.Transition,
// except for the initial value decided at creation time.
const (
	SessionStatusActive    = "active"
	SessionStatusEscalated = "escalated"
	SessionStatusOffline   = "offline"
	SessionStatusResolved  = "resolved"
	SessionStatusClosed    = "closed"
)

// Fallback reasons recorded when a channel is unavailable.
const (
	FallbackAIUnavailable   = "ai_unavailable"
	FallbackNoAdminOnline   = "no_admin_online"
	FallbackBothUnavailable = "both_unavailable"
	FallbackAIError         = "ai_error"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleAdmin     = "admin"
	RoleSystem    = "system"
)

// ChatSession represents a support chat session. The opaque SessionToken is
// what clients hold; the numeric ID stays internal.
type ChatSession struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	SessionToken string `gorm:"column:session_token;size:64;uniqueIndex;not null" json:"session_token"`
	UserID       *uint  `gorm:"column:user_id;index" json:"user_id,omitempty"`

	VisitorName  string `gorm:"column:visitor_name;size:100" json:"visitor_name,omitempty"`
	VisitorEmail string `gorm:"column:visitor_email;size:255" json:"visitor_email,omitempty"`
	VisitorPhone string `gorm:"column:visitor_phone;size:50" json:"visitor_phone,omitempty"`
	IPAddress    string `gorm:"column:ip_address;size:45" json:"-"`
	UserAgent    string `gorm:"column:user_agent;size:512" json:"-"`
	CurrentPage  string `gorm:"column:current_page;size:255" json:"current_page,omitempty"`

	Status           string     `gorm:"size:20;default:'active';index" json:"status"`
	AssignedAgentID  *int64     `gorm:"column:assigned_agent_id;index" json:"assigned_agent_id,omitempty"`
	EscalationReason string     `gorm:"column:escalation_reason;size:100" json:"escalation_reason,omitempty"`
	FallbackReason   string     `gorm:"column:fallback_reason;size:50" json:"fallback_reason,omitempty"`
	EscalatedAt      *time.Time `gorm:"column:escalated_at" json:"escalated_at,omitempty"`
	ResolvedAt       *time.Time `gorm:"column:resolved_at" json:"resolved_at,omitempty"`
	ClosedAt         *time.Time `gorm:"column:closed_at" json:"closed_at,omitempty"`

	// GDPR lifecycle. A deleted or anonymized session must not be resumed.
	DeletedAt      *time.Time `gorm:"column:deleted_at;index" json:"-"`
	DeletionReason string     `gorm:"column:deletion_reason;size:100" json:"-"`
	Anonymized     bool       `gorm:"column:anonymized;default:false" json:"-"`
	AnonymizedAt   *time.Time `gorm:"column:anonymized_at" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	AssignedAgent *Admin        `gorm:"foreignKey:AssignedAgentID" json:"assigned_agent,omitempty"`
	Messages      []ChatMessage `gorm:"foreignKey:SessionID" json:"messages,omitempty"`
}

func (ChatSession) TableName() string {
	return "chat_sessions"
}

// Resumable reports whether the session may still accept messages at the
// persistence level. Status-level rules live in the chat service.
func (s *ChatSession) Resumable() bool {
	return s.DeletedAt == nil && !s.Anonymized
}

// ChatMessage is one message in a session. Messages are append-only and
// never updated after creation except for the read flag.
type ChatMessage struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	SessionID uint   `gorm:"column:session_id;not null;index" json:"session_id"`
	Role      string `gorm:"size:20;not null" json:"role"`
	Content   string `gorm:"type:text;not null" json:"content"`
	AdminID   *int64 `gorm:"column:admin_id" json:"admin_id,omitempty"`

	// Completion metadata, only set on assistant messages.
	ModelName    string `gorm:"column:model_name;size:100" json:"model_name,omitempty"`
	TokensUsed   int    `gorm:"column:tokens_used;default:0" json:"tokens_used,omitempty"`
	FinishReason string `gorm:"column:finish_reason;size:50" json:"finish_reason,omitempty"`

	IsRead    bool       `gorm:"column:is_read;default:false" json:"is_read"`
	ReadAt    *time.Time `gorm:"column:read_at" json:"read_at,omitempty"`
	CreatedAt time.Time  `gorm:"index" json:"created_at"`

	Session *ChatSession `gorm:"foreignKey:SessionID" json:"session,omitempty"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}
