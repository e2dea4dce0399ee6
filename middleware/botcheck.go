package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/dredbirozsolt/koncert24-hu-sub002/utils"
)

// Known automation signatures in user-agent strings.
var botUASubstrings = []string{
	"curl", "wget", "python-requests", "scrapy",
	"bot", "crawler", "spider", "scraper",
}

// Decoy form fields. Real clients never fill these; any value is a bot signal.
var honeypotFields = []string{"website", "url", "homepage", "phone2", "fax"}

// IsBotUserAgent applies the user-agent heuristics: known automation
// substrings or an implausibly short value.
func IsBotUserAgent(ua string) bool {
	if len(ua) < 10 {
		return true
	}
	lower := strings.ToLower(ua)
	for _, sig := range botUASubstrings {
		if strings.Contains(lower, sig) {
			return true
		}
	}
	return false
}

// UserAgentMiddleware rejects requests with bot-looking user agents. The
// response body stays vague on purpose.
func UserAgentMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua := r.Header.Get("User-Agent")
		if IsBotUserAgent(ua) {
			LogSecurityEvent(EventBotUserAgent, clientIPGeneric(r, trustedProxies()), ua)
			utils.WriteJSON(w, http.StatusForbidden, utils.APIResponse{Success: false, Message: "Hozzáférés megtagadva"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// HoneypotHit reports whether any decoy field in the decoded body is non-empty.
func HoneypotHit(body map[string]interface{}) bool {
	for _, field := range honeypotFields {
		if v, ok := body[field]; ok {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				return true
			}
		}
	}
	return false
}

// HoneypotMiddleware inspects the JSON body for filled decoy fields. The body
// is restored for downstream handlers. Unparseable bodies pass through; the
// input validation at the handler rejects those with a proper 400.
func HoneypotMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body == nil {
			next.ServeHTTP(w, r)
			return
		}
		raw, err := io.ReadAll(r.Body)
		_ = r.Body.Close()
		if err != nil {
			utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "Érvénytelen kérés"})
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(raw))

		var body map[string]interface{}
		if err := json.Unmarshal(raw, &body); err == nil && HoneypotHit(body) {
			LogSecurityEvent(EventHoneypotTrip, clientIPGeneric(r, trustedProxies()), r.URL.Path)
			// same vague 403 as the other gate rejections, nothing that
			// reveals which field tripped
			utils.WriteJSON(w, http.StatusForbidden, utils.APIResponse{Success: false, Message: "Hozzáférés megtagadva"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
