package chat

import (
	"errors"
	"log"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dredbirozsolt/koncert24-hu-sub002/models"
	"github.com/dredbirozsolt/koncert24-hu-sub002/utils"
)

// Oracle answers "can we offer AI right now?" and "can we offer a human
// right now?". Both checks run fresh on every session creation and every
// escalation attempt; availability changes are rare relative to chat
// traffic, so correctness wins over latency here.
type Oracle struct {
	db  *gorm.DB
	llm utils.LLMClient
}

func NewOracle(db *gorm.DB, llm utils.LLMClient) *Oracle {
	return &Oracle{db: db, llm: llm}
}

// CheckAIAvailability combines the cached health row with a live capability
// check. A cached-available status is necessary but not sufficient: without
// a configured key the provider cannot be called no matter what the cache
// says. A missing row counts as healthy.
func (o *Oracle) CheckAIAvailability() bool {
	var status models.SystemStatus
	err := o.db.Where("service_name = ?", models.ServiceAI).First(&status).Error
	if err == nil && !status.IsAvailable {
		return false
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("[Chat] system status read failed: %v", err)
		return false
	}
	return o.llm != nil && o.llm.Configured()
}

// CheckAdminAvailability computes the agents satisfying the availability
// predicate (online AND heartbeat within the auto-away window) at call time.
// The returned list is ordered by most recent heartbeat; the first element
// is the assignment candidate.
func (o *Oracle) CheckAdminAvailability() (bool, []models.AgentAvailability) {
	var records []models.AgentAvailability
	err := o.db.Preload("Agent").
		Where("online = ?", true).
		Order("last_heartbeat DESC").
		Find(&records).Error
	if err != nil {
		log.Printf("[Chat] agent availability read failed: %v", err)
		return false, nil
	}

	now := time.Now()
	available := records[:0]
	for _, rec := range records {
		if rec.AvailableAt(now) {
			available = append(available, rec)
		}
	}
	return len(available) > 0, available
}

// MarkService upserts the per-service health cache row.
func MarkService(db *gorm.DB, name string, available bool, lastError string) {
	now := time.Now()
	status := models.SystemStatus{
		ServiceName: name,
		IsAvailable: available,
		LastChecked: now,
		LastError:   lastError,
	}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "service_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"is_available", "last_checked", "last_error", "updated_at"}),
	}).Create(&status).Error
	if err != nil {
		log.Printf("[Chat] failed to update system status for %s: %v", name, err)
	}
}
