package chat

import (
	"testing"
	"time"

	"github.com/dredbirozsolt/koncert24-hu-sub002/models"
)

func TestCheckAIAvailability(t *testing.T) {
	db := newTestDB(t)

	// no status row, provider configured
	o := NewOracle(db, &stubLLM{configured: true})
	if !o.CheckAIAvailability() {
		t.Fatal("missing status row with a configured provider counts as available")
	}

	// no key configured
	o = NewOracle(db, &stubLLM{configured: false})
	if o.CheckAIAvailability() {
		t.Fatal("unconfigured provider is never available")
	}

	// explicit unavailable row wins over a configured provider
	MarkService(db, models.ServiceAI, false, "quota exceeded")
	o = NewOracle(db, &stubLLM{configured: true})
	if o.CheckAIAvailability() {
		t.Fatal("cached unavailable status must win")
	}

	// recovery flips it back
	MarkService(db, models.ServiceAI, true, "")
	if !o.CheckAIAvailability() {
		t.Fatal("recovered status plus configured provider is available")
	}
}

func TestCheckAdminAvailability_Ordering(t *testing.T) {
	db := newTestDB(t)
	now := time.Now()
	seedAgent(t, db, 1, "Kata", now.Add(-3*time.Minute))
	seedAgent(t, db, 2, "Bence", now)

	o := NewOracle(db, &stubLLM{})
	ok, agents := o.CheckAdminAvailability()
	if !ok || len(agents) != 2 {
		t.Fatalf("expected both agents available, got %d", len(agents))
	}
	if agents[0].AgentID != 2 {
		t.Fatal("the most recently seen agent is the assignment candidate")
	}
	if agents[0].Agent == nil || agents[0].Agent.Name != "Bence" {
		t.Fatal("the agent record must be preloaded")
	}
}

func TestCheckAdminAvailability_FiltersOfflineAndStale(t *testing.T) {
	db := newTestDB(t)
	now := time.Now()
	seedAgent(t, db, 1, "Kata", now.Add(-10*time.Minute)) // stale
	seedAgent(t, db, 2, "Bence", now)
	db.Model(&models.AgentAvailability{}).Where("agent_id = ?", 2).Update("online", false)

	o := NewOracle(db, &stubLLM{})
	if ok, _ := o.CheckAdminAvailability(); ok {
		t.Fatal("stale and offline agents must not count")
	}
}

func TestMarkService_Upserts(t *testing.T) {
	db := newTestDB(t)
	MarkService(db, models.ServiceAI, true, "")
	MarkService(db, models.ServiceAI, false, "down")

	var rows []models.SystemStatus
	db.Where("service_name = ?", models.ServiceAI).Find(&rows)
	if len(rows) != 1 {
		t.Fatalf("expected one upserted row, got %d", len(rows))
	}
	if rows[0].IsAvailable || rows[0].LastError != "down" {
		t.Fatal("the second write must win")
	}
}

func TestAvailableAt_Predicate(t *testing.T) {
	now := time.Now()
	rec := models.AgentAvailability{Online: true, LastHeartbeat: now.Add(-4 * time.Minute), AutoAwayMinutes: 5}
	if !rec.AvailableAt(now) {
		t.Fatal("recent heartbeat within the window is available")
	}
	rec.LastHeartbeat = now.Add(-6 * time.Minute)
	if rec.AvailableAt(now) {
		t.Fatal("heartbeat past the window is away")
	}
	rec.Online = false
	rec.LastHeartbeat = now
	if rec.AvailableAt(now) {
		t.Fatal("offline flag overrides any heartbeat")
	}
}
