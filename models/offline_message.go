package models

import "time"

// Offline message status values. The status only moves forward:
// pending -> sent -> replied -> archived.
const (
	OfflineStatusPending  = "pending"
	OfflineStatusSent     = "sent"
	OfflineStatusReplied  = "replied"
	OfflineStatusArchived = "archived"
)

// OfflineMessage is a message left by a visitor when no live channel was
// available (or when the visitor chose the form over the chat).
type OfflineMessage struct {
	ID        uint  `gorm:"primaryKey" json:"id"`
	SessionID *uint `gorm:"column:session_id;index" json:"session_id,omitempty"`

	Name    string `gorm:"size:100;not null" json:"name"`
	Email   string `gorm:"size:255;not null" json:"email"`
	Phone   string `gorm:"size:50" json:"phone,omitempty"`
	Message string `gorm:"type:text;not null" json:"message"`

	CurrentPage string `gorm:"column:current_page;size:255" json:"current_page,omitempty"`
	UserAgent   string `gorm:"column:user_agent;size:512" json:"-"`
	IPAddress   string `gorm:"column:ip_address;size:45" json:"-"`

	Status      string     `gorm:"size:20;default:'pending';index" json:"status"`
	EmailSentAt *time.Time `gorm:"column:email_sent_at" json:"email_sent_at,omitempty"`
	RepliedBy   *int64     `gorm:"column:replied_by" json:"replied_by,omitempty"`
	RepliedAt   *time.Time `gorm:"column:replied_at" json:"replied_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Session *ChatSession `gorm:"foreignKey:SessionID" json:"session,omitempty"`
}

func (OfflineMessage) TableName() string {
	return "offline_messages"
}

var offlineStatusRank = map[string]int{
	OfflineStatusPending:  0,
	OfflineStatusSent:     1,
	OfflineStatusReplied:  2,
	OfflineStatusArchived: 3,
}

// CanAdvanceTo reports whether the status may move to next. Backwards moves
// are rejected.
func (m *OfflineMessage) CanAdvanceTo(next string) bool {
	cur, ok1 := offlineStatusRank[m.Status]
	nxt, ok2 := offlineStatusRank[next]
	return ok1 && ok2 && nxt > cur
}
