package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	gorillahandlers "github.com/gorilla/handlers"
	"github.com/joho/godotenv"

	"github.com/dredbirozsolt/koncert24-hu-sub002/database"
	"github.com/dredbirozsolt/koncert24-hu-sub002/middleware"
	"github.com/dredbirozsolt/koncert24-hu-sub002/models"
	"github.com/dredbirozsolt/koncert24-hu-sub002/routes"
	"github.com/dredbirozsolt/koncert24-hu-sub002/services/chat"
	"github.com/dredbirozsolt/koncert24-hu-sub002/utils"
)

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("[Main] no .env file found, relying on environment")
	}

	env := strings.ToLower(getenv("ENV", "development"))
	if env == "production" && os.Getenv("JWT_SECRET") == "" {
		log.Fatal("[Main] JWT_SECRET must be set in production")
	}

	db, err := database.Connect()
	if err != nil {
		log.Fatalf("[Main] database connection failed: %v", err)
	}

	if env == "development" {
		err := db.AutoMigrate(
			&models.Admin{},
			&models.Performer{},
			&models.ChatSession{},
			&models.ChatMessage{},
			&models.OfflineMessage{},
			&models.AgentAvailability{},
			&models.SystemStatus{},
		)
		if err != nil {
			log.Fatalf("[Main] auto-migration failed: %v", err)
		}
	}

	// Seed the health cache rows so the oracle never starts from an empty
	// table in a fresh environment.
	chat.MarkService(db, models.ServiceSystem, true, "")
	chat.MarkService(db, models.ServiceAdminChat, false, "no heartbeat yet")

	llm := utils.NewLLMClient()
	chat.MarkService(db, models.ServiceAI, llm.Configured(), "")
	if !llm.Configured() {
		log.Println("[Main] LLM_API_KEY not set, assistant replies disabled")
	}

	mailer := utils.NewSMTPMailer()
	knowledge := chat.NewKnowledge(db, chat.LoadKnowledgeConfig())
	engine := chat.NewEngine(db, llm, mailer, knowledge)

	router := routes.SetupRoutes(routes.Deps{
		Engine:    engine,
		Blacklist: middleware.NewIPBlacklist(),
		Spam:      middleware.NewSpamFilter(db),
	})

	corsOrigins := strings.Split(getenv("CORS_ORIGINS", "https://koncert24.hu"), ",")
	handler := gorillahandlers.CORS(
		gorillahandlers.AllowedOrigins(corsOrigins),
		gorillahandlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
		gorillahandlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Request-ID"}),
	)(router)

	addr := ":" + getenv("PORT", "8080")
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("[Main] listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[Main] server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[Main] shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("[Main] forced shutdown: %v", err)
	}
	log.Println("[Main] bye")
}
