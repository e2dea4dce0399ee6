package routes

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/dredbirozsolt/koncert24-hu-sub002/controllers"
	"github.com/dredbirozsolt/koncert24-hu-sub002/middleware"
	"github.com/dredbirozsolt/koncert24-hu-sub002/services/chat"
	"github.com/dredbirozsolt/koncert24-hu-sub002/utils"
)

// Deps carries the shared components wired at startup.
type Deps struct {
	Engine    *chat.Engine
	Blacklist *middleware.IPBlacklist
	Spam      *middleware.SpamFilter
}

// chain wraps h with the given middlewares, first listed runs first.
func chain(h http.HandlerFunc, mw ...mux.MiddlewareFunc) http.Handler {
	var handler http.Handler = h
	for i := len(mw) - 1; i >= 0; i-- {
		handler = mw[i](handler)
	}
	return handler
}

// SetupRoutes builds the router with the per-endpoint abuse-gate chains.
// Gate order on writes: blacklist, user-agent, honeypot, rate limit, spam.
// The cheap checks run first so a blocked caller never costs a body read.
func SetupRoutes(deps Deps) *mux.Router {
	r := mux.NewRouter()

	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.RecoveryMiddleware)
	r.Use(middleware.SecurityHeadersMiddleware)
	r.Use(middleware.RequestLogMiddleware)
	r.Use(middleware.TimeoutMiddleware)
	r.Use(middleware.MaxBodyMiddleware)

	chatCtl := controllers.NewChatController(deps.Engine)
	adminCtl := controllers.NewAdminChatController(deps.Engine)

	// Windows are fixed by design; abusers probing for limits should not be
	// able to learn them from an env dump.
	createLimiter := middleware.NewSlidingWindowLimiter(3, 15*time.Minute, middleware.KeyByIPUserAgent)
	messageLimiter := middleware.NewSlidingWindowLimiter(20, time.Minute, middleware.KeyBySessionToken)
	offlineLimiter := middleware.NewSlidingWindowLimiter(2, time.Hour, middleware.KeyByIP)
	loginLimiter := middleware.NewSlidingWindowLimiter(5, 15*time.Minute, middleware.KeyByIP)

	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "OK"})
	}).Methods(http.MethodGet)

	// Public chat surface
	r.Handle("/api/chat/session", chain(chatCtl.CreateSession,
		deps.Blacklist.Middleware,
		middleware.UserAgentMiddleware,
		middleware.HoneypotMiddleware,
		createLimiter.Middleware,
	)).Methods(http.MethodPost)

	r.HandleFunc("/api/chat/session/{token}", chatCtl.GetSession).Methods(http.MethodGet)

	r.Handle("/api/chat/session/{token}/message", chain(chatCtl.SendMessage,
		deps.Blacklist.Middleware,
		middleware.UserAgentMiddleware,
		messageLimiter.Middleware,
		deps.Spam.Middleware,
	)).Methods(http.MethodPost)

	r.Handle("/api/chat/session/{token}/escalate", chain(chatCtl.Escalate,
		deps.Blacklist.Middleware,
		middleware.UserAgentMiddleware,
	)).Methods(http.MethodPost)

	r.HandleFunc("/api/chat/session/{token}/close", chatCtl.CloseSession).Methods(http.MethodPost)

	r.Handle("/api/chat/offline-message", chain(chatCtl.SubmitOfflineMessage,
		deps.Blacklist.Middleware,
		middleware.HoneypotMiddleware,
		offlineLimiter.Middleware,
		deps.Spam.Middleware,
	)).Methods(http.MethodPost)

	r.HandleFunc("/api/chat/status", chatCtl.Status).Methods(http.MethodGet)

	// Admin surface
	r.Handle("/api/admin/login", chain(controllers.Login,
		deps.Blacklist.Middleware,
		loginLimiter.Middleware,
	)).Methods(http.MethodPost)

	admin := r.PathPrefix("/api/admin").Subrouter()
	admin.Use(middleware.AdminAuthMiddleware)
	admin.HandleFunc("/logout", controllers.Logout).Methods(http.MethodPost)
	admin.HandleFunc("/chat/heartbeat", adminCtl.Heartbeat).Methods(http.MethodPost)
	admin.HandleFunc("/chat/offline", adminCtl.Offline).Methods(http.MethodPost)
	admin.HandleFunc("/chat/session/{token}/reply", adminCtl.Reply).Methods(http.MethodPost)
	admin.HandleFunc("/chat/session/{token}/resolve", adminCtl.Resolve).Methods(http.MethodPost)

	return r
}
