package middleware

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/dredbirozsolt/koncert24-hu-sub002/utils"
)

// In-memory sliding-window rate limiting for the chat endpoints. Every
// attempt counts toward the window, successful or not; there is no reset on
// success. Designed to be replaced by Redis later.

type timestamps []int64 // unix nanos

func nowUnix() int64 { return time.Now().UnixNano() }

func trustedProxies() []string {
	if v := os.Getenv("TRUSTED_PROXIES"); v != "" {
		return strings.Split(v, ",")
	}
	return nil
}

// clientIPGeneric returns the client IP string. If trustedCIDR is provided,
// X-Forwarded-For / X-Real-IP headers are honored when remote addr is inside
// one of the trusted CIDRs or IPs.
func clientIPGeneric(r *http.Request, trustedCIDR []string) string {
	remoteHost, _, _ := net.SplitHostPort(r.RemoteAddr)
	remoteIP := net.ParseIP(remoteHost)
	trusted := false
	for _, cidr := range trustedCIDR {
		cidr = strings.TrimSpace(cidr)
		if cidr == "" {
			continue
		}
		if strings.Contains(cidr, "/") {
			if _, ipnet, err := net.ParseCIDR(cidr); err == nil {
				if remoteIP != nil && ipnet.Contains(remoteIP) {
					trusted = true
					break
				}
			}
			continue
		}
		if ip := net.ParseIP(cidr); ip != nil && remoteIP != nil && ip.Equal(remoteIP) {
			trusted = true
			break
		}
	}
	if trusted {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			parts := strings.Split(xff, ",")
			if len(parts) > 0 {
				return strings.TrimSpace(parts[0])
			}
		}
		if xr := r.Header.Get("X-Real-IP"); xr != "" {
			return strings.TrimSpace(xr)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// KeyFunc derives the limiter key from the request.
type KeyFunc func(r *http.Request) string

// KeyByIPUserAgent keys session-creation style limits: the same IP with a
// different user agent gets a separate bucket, which is what the gate wants
// for distinguishing browsers behind one NAT from a single scripted client.
func KeyByIPUserAgent(r *http.Request) string {
	return clientIPGeneric(r, trustedProxies()) + "|" + r.Header.Get("User-Agent")
}

// KeyByIP keys by caller IP alone.
func KeyByIP(r *http.Request) string {
	return ClientIP(r)
}

// ClientIP resolves the caller IP with the trusted-proxy rules applied.
func ClientIP(r *http.Request) string {
	return clientIPGeneric(r, trustedProxies())
}

// KeyBySessionToken keys message sending by the session token path variable,
// falling back to the IP when the route carries none.
func KeyBySessionToken(r *http.Request) string {
	if token := mux.Vars(r)["token"]; token != "" {
		return "s:" + token
	}
	return KeyByIP(r)
}

// SlidingWindowLimiter counts events per key within a trailing window.
type SlidingWindowLimiter struct {
	max         int
	window      time.Duration
	keyFn       KeyFunc
	mu          sync.Mutex
	state       map[string]timestamps
	cleanupTick time.Duration
}

func NewSlidingWindowLimiter(max int, window time.Duration, keyFn KeyFunc) *SlidingWindowLimiter {
	l := &SlidingWindowLimiter{
		max:         max,
		window:      window,
		keyFn:       keyFn,
		state:       make(map[string]timestamps),
		cleanupTick: time.Minute,
	}
	go l.cleanupLoop()
	return l
}

// Allow records one attempt for key and reports whether it fits the window,
// returning the suggested retry delay when it does not.
func (l *SlidingWindowLimiter) Allow(key string) (bool, int) {
	now := nowUnix()
	windowNs := int64(l.window)
	cutoff := now - windowNs

	l.mu.Lock()
	defer l.mu.Unlock()

	arr := l.state[key]
	var filtered timestamps
	for _, ts := range arr {
		if ts >= cutoff {
			filtered = append(filtered, ts)
		}
	}
	filtered = append(filtered, now)
	l.state[key] = filtered

	if len(filtered) <= l.max {
		return true, 0
	}

	// Retry once the oldest attempt in the window has aged out.
	oldest := filtered[0]
	for _, ts := range filtered {
		if ts < oldest {
			oldest = ts
		}
	}
	retryAfter := int((oldest + windowNs - now) / 1e9)
	if retryAfter < 1 {
		retryAfter = 1
	}
	return false, retryAfter
}

// Middleware applies the limit and sets rate-limit headers.
func (l *SlidingWindowLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := l.keyFn(r)
		ok, retryAfter := l.Allow(key)

		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", l.max))
		if !ok {
			LogSecurityEvent(EventRateLimited, clientIPGeneric(r, trustedProxies()), r.URL.Path)
			w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
			utils.WriteJSON(w, http.StatusTooManyRequests, utils.APIResponse{
				Success: false,
				Message: "Túl sok kérés, kérjük próbálja újra később",
				Data:    map[string]interface{}{"retry_after_seconds": retryAfter},
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *SlidingWindowLimiter) cleanupLoop() {
	tick := time.NewTicker(l.cleanupTick)
	defer tick.Stop()
	for range tick.C {
		l.mu.Lock()
		cutoff := nowUnix() - int64(l.window)
		for k, arr := range l.state {
			var filtered timestamps
			for _, ts := range arr {
				if ts >= cutoff {
					filtered = append(filtered, ts)
				}
			}
			if len(filtered) == 0 {
				delete(l.state, k)
			} else {
				l.state[k] = filtered
			}
		}
		l.mu.Unlock()
	}
}
