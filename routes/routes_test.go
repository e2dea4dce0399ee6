package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dredbirozsolt/koncert24-hu-sub002/database"
	"github.com/dredbirozsolt/koncert24-hu-sub002/middleware"
	"github.com/dredbirozsolt/koncert24-hu-sub002/models"
	"github.com/dredbirozsolt/koncert24-hu-sub002/services/chat"
	"github.com/dredbirozsolt/koncert24-hu-sub002/utils"
)

const browserUA = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36"

type fakeLLM struct{ reply string }

func (f *fakeLLM) Configured() bool { return true }
func (f *fakeLLM) Complete(context.Context, []utils.LLMMessage, string) (*utils.Completion, error) {
	return &utils.Completion{Content: f.reply, Model: "test", FinishReason: "stop"}, nil
}

type fakeMailer struct{}

func (fakeMailer) Send(context.Context, string, string) error { return nil }

func newTestRouter(t *testing.T) (http.Handler, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+strings.ReplaceAll(t.Name(), "/", "_")+"?mode=memory&cache=shared"),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	err = db.AutoMigrate(&models.Admin{}, &models.Performer{}, &models.ChatSession{},
		&models.ChatMessage{}, &models.OfflineMessage{}, &models.AgentAvailability{}, &models.SystemStatus{})
	if err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	admin := models.Admin{ID: 1, Username: "agent1", Password: "x", Name: "Kata", Email: "k@koncert24.hu", IsActive: true}
	db.Create(&admin)
	database.DB = db
	db.Create(&models.AgentAvailability{AgentID: 1, Online: true, LastHeartbeat: time.Now(), AutoAwayMinutes: 5})

	engine := chat.NewEngine(db, &fakeLLM{reply: "Szívesen segítek."}, fakeMailer{},
		chat.NewKnowledge(db, chat.LoadKnowledgeConfig()))

	router := SetupRoutes(Deps{
		Engine:    engine,
		Blacklist: middleware.NewIPBlacklist(),
		Spam:      middleware.NewSpamFilter(db),
	})
	return router, db
}

func doJSON(t *testing.T, h http.Handler, method, path, body, ip string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr *strings.Reader
	if body == "" {
		rdr = strings.NewReader("{}")
	} else {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, "http://example.local"+path, rdr)
	req.RemoteAddr = ip + ":40000"
	req.Header.Set("User-Agent", browserUA)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestChatFlow_CreateSendFetch(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, "POST", "/api/chat/session", `{"name":"Kiss Anna","current_page":"/eloadok"}`, "203.0.113.10")
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d body=%s", rec.Code, rec.Body.String())
	}
	var created struct {
		Data struct {
			SessionToken string `json:"session_token"`
			Mode         string `json:"mode"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.Data.Mode != "full_service" || created.Data.SessionToken == "" {
		t.Fatalf("unexpected create payload: %s", rec.Body.String())
	}

	rec = doJSON(t, router, "POST", "/api/chat/session/"+created.Data.SessionToken+"/message",
		`{"message":"Mennyibe kerül egy zenekar?"}`, "203.0.113.10")
	if rec.Code != http.StatusOK {
		t.Fatalf("message: expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "Szívesen segítek.") {
		t.Fatalf("expected the assistant reply in the payload: %s", rec.Body.String())
	}

	rec = doJSON(t, router, "GET", "/api/chat/session/"+created.Data.SessionToken, "", "203.0.113.10")
	if rec.Code != http.StatusOK {
		t.Fatalf("fetch: expected 200, got %d", rec.Code)
	}

	rec = doJSON(t, router, "GET", "/api/chat/status", "", "203.0.113.10")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "ai_available") {
		t.Fatalf("status: unexpected response %d %s", rec.Code, rec.Body.String())
	}
}

func TestChatFlow_SessionCreateRateLimit(t *testing.T) {
	router, _ := newTestRouter(t)

	for i := 0; i < 3; i++ {
		rec := doJSON(t, router, "POST", "/api/chat/session", `{}`, "203.0.113.11")
		if rec.Code != http.StatusCreated {
			t.Fatalf("create %d: expected 201, got %d", i+1, rec.Code)
		}
	}
	rec := doJSON(t, router, "POST", "/api/chat/session", `{}`, "203.0.113.11")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("4th create in the window must be limited, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("limited response must carry Retry-After")
	}
}

func TestChatFlow_GateRejections(t *testing.T) {
	router, _ := newTestRouter(t)

	// honeypot decoy filled
	rec := doJSON(t, router, "POST", "/api/chat/session", `{"name":"Bot","website":"http://spam.example"}`, "203.0.113.12")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("honeypot trip must 403, got %d", rec.Code)
	}

	// bot user agent
	req := httptest.NewRequest("POST", "http://example.local/api/chat/session", strings.NewReader(`{}`))
	req.RemoteAddr = "203.0.113.13:40000"
	req.Header.Set("User-Agent", "curl/8.4.0")
	out := httptest.NewRecorder()
	router.ServeHTTP(out, req)
	if out.Code != http.StatusForbidden {
		t.Fatalf("bot UA must 403, got %d", out.Code)
	}
}

func TestChatFlow_SpamMessageRejected(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, "POST", "/api/chat/session", `{}`, "203.0.113.14")
	var created struct {
		Data struct {
			SessionToken string `json:"session_token"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}

	rec = doJSON(t, router, "POST", "/api/chat/session/"+created.Data.SessionToken+"/message",
		`{"message":"<script>alert(1)</script>"}`, "203.0.113.14")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("spam content must 403 at the gate, got %d", rec.Code)
	}
}

func TestChatFlow_OfflineMessage(t *testing.T) {
	router, db := newTestRouter(t)

	rec := doJSON(t, router, "POST", "/api/chat/offline-message",
		`{"name":"Kiss Anna","email":"anna@example.hu","message":"Szeretnék ajánlatot kérni egy esküvőre."}`,
		"203.0.113.15")
	if rec.Code != http.StatusCreated {
		t.Fatalf("offline submit: expected 201, got %d body=%s", rec.Code, rec.Body.String())
	}

	var count int64
	db.Model(&models.OfflineMessage{}).Count(&count)
	if count != 1 {
		t.Fatalf("expected 1 stored offline message, got %d", count)
	}
}

func TestLoginRateLimit(t *testing.T) {
	router, _ := newTestRouter(t)

	// 5 attempts reach the handler (bad credentials, 401), the 6th is limited
	for i := 0; i < 5; i++ {
		rec := doJSON(t, router, "POST", "/api/admin/login",
			`{"username":"agent1","password":"wrong"}`, "203.0.113.17")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i+1, rec.Code)
		}
	}
	rec := doJSON(t, router, "POST", "/api/admin/login",
		`{"username":"agent1","password":"wrong"}`, "203.0.113.17")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("6th login attempt in the window must be limited, got %d", rec.Code)
	}
}

func TestAdminRoutes_RequireAuth(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, "POST", "/api/admin/chat/heartbeat", `{}`, "203.0.113.16")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("admin route without a token must 401, got %d", rec.Code)
	}
}
