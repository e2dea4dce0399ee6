package models

import "time"

// AgentAvailability tracks per-agent online state maintained by heartbeats.
// The stored Online flag alone is not the availability predicate: an agent
// whose heartbeat is older than AutoAwayMinutes counts as away.
type AgentAvailability struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	AgentID         int64     `gorm:"column:agent_id;uniqueIndex;not null" json:"agent_id"`
	Online          bool      `gorm:"default:false" json:"online"`
	LastHeartbeat   time.Time `gorm:"column:last_heartbeat" json:"last_heartbeat"`
	WorkStart       string    `gorm:"column:work_start;size:5;default:'09:00'" json:"work_start"`
	WorkEnd         string    `gorm:"column:work_end;size:5;default:'17:00'" json:"work_end"`
	AutoAwayMinutes int       `gorm:"column:auto_away_minutes;default:5" json:"auto_away_minutes"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`

	Agent *Admin `gorm:"foreignKey:AgentID" json:"agent,omitempty"`
}

func (AgentAvailability) TableName() string {
	return "agent_availabilities"
}

// AvailableAt applies the availability predicate at the given instant.
func (a *AgentAvailability) AvailableAt(now time.Time) bool {
	if !a.Online {
		return false
	}
	away := time.Duration(a.AutoAwayMinutes) * time.Minute
	if away <= 0 {
		away = 5 * time.Minute
	}
	return now.Sub(a.LastHeartbeat) <= away
}

// Tracked service names for SystemStatus rows.
const (
	ServiceAI        = "ai"
	ServiceAdminChat = "admin_chat"
	ServiceSystem    = "system"
)

// SystemStatus is a per-service health cache row, read by the availability
// oracle and refreshed whenever a service call succeeds or fails.
type SystemStatus struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ServiceName string    `gorm:"column:service_name;size:50;uniqueIndex;not null" json:"service_name"`
	IsAvailable bool      `gorm:"column:is_available;default:true" json:"is_available"`
	LastChecked time.Time `gorm:"column:last_checked" json:"last_checked"`
	LastError   string    `gorm:"column:last_error;size:500" json:"last_error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (SystemStatus) TableName() string {
	return "system_statuses"
}
