package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const browserUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

func TestIsBotUserAgent(t *testing.T) {
	cases := []struct {
		ua  string
		bot bool
	}{
		{browserUA, false},
		{"curl/8.4.0", true},
		{"python-requests/2.31", true},
		{"Mozilla/5.0 (compatible; Googlebot/2.1)", true},
		{"x", true}, // implausibly short
		{"", true},
	}
	for _, c := range cases {
		if got := IsBotUserAgent(c.ua); got != c.bot {
			t.Fatalf("IsBotUserAgent(%q) = %v, want %v", c.ua, got, c.bot)
		}
	}
}

func TestHoneypotHit(t *testing.T) {
	if HoneypotHit(map[string]interface{}{"name": "Kiss Anna"}) {
		t.Fatal("clean body must not trip the honeypot")
	}
	if !HoneypotHit(map[string]interface{}{"website": "http://spam.example"}) {
		t.Fatal("filled decoy field must trip the honeypot")
	}
	if HoneypotHit(map[string]interface{}{"website": "  "}) {
		t.Fatal("whitespace-only decoy value must not trip")
	}
}

func TestHoneypotMiddleware_RestoresBody(t *testing.T) {
	var seen string
	h := HoneypotMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 1024)
		n, _ := r.Body.Read(buf)
		seen = string(buf[:n])
	}))

	payload := `{"name":"Kiss Anna","message":"Szeretnék ajánlatot kérni"}`
	req := httptest.NewRequest("POST", "http://example.local/api/chat/offline-message", strings.NewReader(payload))
	req.RemoteAddr = "203.0.113.6:1234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("clean body must pass, got %d", rec.Code)
	}
	if seen != payload {
		t.Fatalf("downstream handler must see the original body, got %q", seen)
	}
}

func TestHoneypotMiddleware_RejectsDecoy(t *testing.T) {
	called := false
	h := HoneypotMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest("POST", "http://example.local/api/chat/session",
		strings.NewReader(`{"name":"Bot","website":"http://spam.example"}`))
	req.RemoteAddr = "203.0.113.6:1234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if called {
		t.Fatal("handler must not run on a honeypot trip")
	}
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestUserAgentMiddleware(t *testing.T) {
	h := UserAgentMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest("POST", "http://example.local/api/chat/session", nil)
	req.RemoteAddr = "203.0.113.6:1234"
	req.Header.Set("User-Agent", "curl/8.4.0")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("bot UA must be rejected, got %d", rec.Code)
	}

	req = httptest.NewRequest("POST", "http://example.local/api/chat/session", nil)
	req.RemoteAddr = "203.0.113.6:1234"
	req.Header.Set("User-Agent", browserUA)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("browser UA must pass, got %d", rec.Code)
	}
}
