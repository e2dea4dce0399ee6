package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/dredbirozsolt/koncert24-hu-sub002/utils"
)

// IPBlacklist is a time-indexed blocklist. Entries carry their own expiry and
// are dropped lazily on lookup, so no per-entry timers accumulate. When a
// Redis client is configured the entries are stored there with a TTL instead,
// which makes the list shared across instances; the in-memory map is the
// single-instance fallback and is lost on restart.
type IPBlacklist struct {
	mu      sync.RWMutex
	entries map[string]time.Time // ip -> expiry
}

func NewIPBlacklist() *IPBlacklist {
	return &IPBlacklist{entries: make(map[string]time.Time)}
}

// Add blocks an IP for the given duration.
func (b *IPBlacklist) Add(ip string, d time.Duration) {
	if ip == "" || d <= 0 {
		return
	}
	if utils.RedisClient != nil {
		_ = utils.RedisClient.Set(context.Background(), "chat:ipblock:"+ip, "1", d).Err()
		return
	}
	b.mu.Lock()
	b.entries[ip] = time.Now().Add(d)
	b.mu.Unlock()
}

// Remove unblocks an IP before its expiry.
func (b *IPBlacklist) Remove(ip string) {
	if utils.RedisClient != nil {
		_ = utils.RedisClient.Del(context.Background(), "chat:ipblock:"+ip).Err()
		return
	}
	b.mu.Lock()
	delete(b.entries, ip)
	b.mu.Unlock()
}

// Contains reports whether the IP is currently blocked. Expired in-memory
// entries are removed here rather than by timers.
func (b *IPBlacklist) Contains(ip string) bool {
	if utils.RedisClient != nil {
		res, err := utils.RedisClient.Exists(context.Background(), "chat:ipblock:"+ip).Result()
		return err == nil && res > 0
	}
	b.mu.RLock()
	until, ok := b.entries[ip]
	b.mu.RUnlock()
	if !ok {
		return false
	}
	if time.Now().After(until) {
		b.mu.Lock()
		// re-check under the write lock, the entry may have been refreshed
		if u, ok := b.entries[ip]; ok && time.Now().After(u) {
			delete(b.entries, ip)
		}
		b.mu.Unlock()
		return false
	}
	return true
}

// Middleware rejects blacklisted callers with a vague 403.
func (b *IPBlacklist) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIPGeneric(r, trustedProxies())
		if b.Contains(ip) {
			LogSecurityEvent(EventBlacklistHit, ip, r.URL.Path)
			utils.WriteJSON(w, http.StatusForbidden, utils.APIResponse{Success: false, Message: "Hozzáférés megtagadva"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
