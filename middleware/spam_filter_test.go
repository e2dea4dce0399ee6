package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dredbirozsolt/koncert24-hu-sub002/models"
)

func newSpamTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.ChatMessage{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func TestCheckContent(t *testing.T) {
	cases := []struct {
		text   string
		reason string
	}{
		{"Szeretnék zenekart foglalni egy esküvőre", ""},
		{"' OR '1'='1", "sql_injection"},
		{"union select * from users", "sql_injection"},
		{"<script>alert(1)</script>", "xss"},
		{"nézd: http://a.hu http://b.hu http://c.hu http://d.hu", "too_many_urls"},
		{"cheap viagra here", "spam_keyword"},
		{"FIGYELEM!!!!!! AKCIÓ!!!!!!", "excessive_punctuation"},
		{strings.Repeat("a", 2001), "too_long"},
		// the limit counts characters, so multi-byte accented text within
		// 2000 characters must pass
		{strings.Repeat("ő", 1800), ""},
		{strings.Repeat("ő", 2001), "too_long"},
	}
	for _, c := range cases {
		if got := CheckContent(c.text); got != c.reason {
			t.Fatalf("CheckContent(%.30q) = %q, want %q", c.text, got, c.reason)
		}
	}
}

func TestIsRepeated_CrossSession(t *testing.T) {
	db := newSpamTestDB(t)
	f := NewSpamFilter(db)

	// same text from three different sessions inside the window
	for i := uint(1); i <= 3; i++ {
		db.Create(&models.ChatMessage{SessionID: i, Role: models.RoleUser, Content: "olcsó jegyek itt"})
	}
	if !f.IsRepeated("olcsó jegyek itt") {
		t.Fatal("text repeated across sessions must be flagged")
	}
	if f.IsRepeated("valami más") {
		t.Fatal("unseen text must not be flagged")
	}
}

func TestIsRepeated_BelowThreshold(t *testing.T) {
	db := newSpamTestDB(t)
	f := NewSpamFilter(db)

	db.Create(&models.ChatMessage{SessionID: 1, Role: models.RoleUser, Content: "jó napot"})
	db.Create(&models.ChatMessage{SessionID: 2, Role: models.RoleUser, Content: "jó napot"})
	if f.IsRepeated("jó napot") {
		t.Fatal("two occurrences are below the threshold")
	}
}

func TestSpamMiddleware_RejectsAndPasses(t *testing.T) {
	f := NewSpamFilter(newSpamTestDB(t))
	var seen string
	h := f.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 1024)
		n, _ := r.Body.Read(buf)
		seen = string(buf[:n])
	}))

	req := httptest.NewRequest("POST", "http://example.local/m", strings.NewReader(`{"message":"<script>x</script>"}`))
	req.RemoteAddr = "203.0.113.7:1234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("spam content must be rejected, got %d", rec.Code)
	}

	payload := `{"message":"Mennyibe kerül egy zenekar?"}`
	req = httptest.NewRequest("POST", "http://example.local/m", strings.NewReader(payload))
	req.RemoteAddr = "203.0.113.7:1234"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("clean content must pass, got %d", rec.Code)
	}
	if seen != payload {
		t.Fatalf("body must be restored for the handler, got %q", seen)
	}
}

func TestSpamMiddleware_MalformedBodyPassesThrough(t *testing.T) {
	f := NewSpamFilter(nil)
	called := false
	h := f.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest("POST", "http://example.local/m", strings.NewReader("not json"))
	req.RemoteAddr = "203.0.113.7:1234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if !called {
		t.Fatal("malformed bodies are the handler's problem, filter must pass them")
	}
}
