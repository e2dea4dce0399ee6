package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/dredbirozsolt/koncert24-hu-sub002/models"
	"github.com/dredbirozsolt/koncert24-hu-sub002/utils"
)

// SpamFilter screens chat message content before it reaches the routing
// engine. Unlike the rest of the gate this detector fails OPEN: any
// ambiguous or error condition lets the message through, so a detector bug
// can never lock out legitimate visitors.
type SpamFilter struct {
	db *gorm.DB
}

func NewSpamFilter(db *gorm.DB) *SpamFilter {
	return &SpamFilter{db: db}
}

var (
	sqlInjectionTokens = []string{
		"union select", "drop table", "insert into", "delete from",
		"' or '1'='1", "'; --", "exec(", "xp_cmdshell",
	}
	xssTokens = []string{
		"<script", "javascript:", "onerror=", "onload=", "onclick=", "onmouseover=",
	}
	spamKeywords = []string{
		"viagra", "cialis", "casino", "pharmacy", "crypto investment",
		"forex signals", "$$$", "free free",
	}
	reURL = regexp.MustCompile(`https?://|www\.`)
)

const (
	maxMessageLength   = 2000
	maxURLCount        = 3
	repeatWindow       = 5 * time.Minute
	repeatThreshold    = 3
	maxExclamationRuns = 5
)

// CheckContent runs the stateless pattern checks and returns a short reason
// tag when the message looks like spam, or "" when it is clean.
func CheckContent(text string) string {
	// character limit, not bytes
	if utf8.RuneCountInString(text) > maxMessageLength {
		return "too_long"
	}
	lower := strings.ToLower(text)
	for _, tok := range sqlInjectionTokens {
		if strings.Contains(lower, tok) {
			return "sql_injection"
		}
	}
	for _, tok := range xssTokens {
		if strings.Contains(lower, tok) {
			return "xss"
		}
	}
	if len(reURL.FindAllStringIndex(lower, -1)) > maxURLCount {
		return "too_many_urls"
	}
	for _, kw := range spamKeywords {
		if strings.Contains(lower, kw) {
			return "spam_keyword"
		}
	}
	if strings.Count(text, "!") > maxExclamationRuns {
		return "excessive_punctuation"
	}
	return ""
}

// IsRepeated reports whether the exact same text was stored 3 or more times
// by anyone within the trailing window. The cross-session scope is
// intentional: it is a coarse anti-flood heuristic, not per-visitor
// tracking. Errors count as "not repeated" (fail open).
func (f *SpamFilter) IsRepeated(text string) bool {
	if f.db == nil {
		return false
	}
	var count int64
	err := f.db.Model(&models.ChatMessage{}).
		Where("role = ? AND content = ? AND created_at > ?", models.RoleUser, text, time.Now().Add(-repeatWindow)).
		Count(&count).Error
	if err != nil {
		return false
	}
	return count >= repeatThreshold
}

// Middleware screens the "message" field of the JSON body. The body is
// restored for downstream handlers.
func (f *SpamFilter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body == nil {
			next.ServeHTTP(w, r)
			return
		}
		raw, err := io.ReadAll(r.Body)
		_ = r.Body.Close()
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(raw))

		var body struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(raw, &body); err != nil || body.Message == "" {
			// malformed bodies are the handler's problem, not the filter's
			next.ServeHTTP(w, r)
			return
		}

		reason := CheckContent(body.Message)
		if reason == "" && f.IsRepeated(body.Message) {
			reason = "repeated_message"
		}
		if reason != "" {
			LogSecurityEvent(EventSpamDetected, clientIPGeneric(r, trustedProxies()), reason)
			utils.WriteJSON(w, http.StatusForbidden, utils.APIResponse{Success: false, Message: "Az üzenet nem küldhető el"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
