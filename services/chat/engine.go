package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dredbirozsolt/koncert24-hu-sub002/models"
	"github.com/dredbirozsolt/koncert24-hu-sub002/utils"
)

// Sentinel errors callers are expected to branch on. ErrNoAdminAvailable is
// an expected, frequent condition and is handled as a degrade-to-offline
// signal, never as a hard failure.
var (
	ErrNoAdminAvailable = errors.New("NO_ADMIN_AVAILABLE")
	ErrSessionNotFound  = errors.New("chat session not found")
	ErrSessionClosed    = errors.New("chat session is closed")
	ErrAIFailure        = errors.New("ai provider failure")
)

// Resolved service modes returned on session creation.
const (
	ModeFullService = "full_service"
	ModeAdminOnly   = "admin_only"
	ModeOffline     = "offline_mode"
)

// User-facing message templates. The deployment language is Hungarian.
const (
	msgWelcome = "Üdvözöljük! Miben segíthetünk? Írja meg kérdését, és azonnal válaszolunk."

	msgOfflineRedirect = "Jelenleg sem az automata asszisztens, sem munkatársaink nem elérhetők. " +
		"Kérjük, hagyjon üzenetet az offline űrlapon, és hamarosan felvesszük Önnel a kapcsolatot."

	msgNoAgentChoices = "Jelenleg egyetlen munkatársunk sem elérhető. Választhat: hagyjon üzenetet " +
		"az offline űrlapon, vagy folytassa a beszélgetést az automata asszisztenssel."

	msgForwardedNotice = "Üzenetét továbbítottuk egy munkatársunknak, aki hamarosan válaszol."

	msgAssignedTemplate = "A beszélgetést %s kollégánk vette át, hamarosan jelentkezik."

	escalationSuffix = "\n\nÜzenetét továbbítottam egy kollégának, aki hamarosan jelentkezik."
)

// Engine is the chat routing/escalation core. All collaborators are wired in
// at startup; the engine itself holds no request state.
type Engine struct {
	db            *gorm.DB
	llm           utils.LLMClient
	mailer        utils.Mailer
	kb            *Knowledge
	oracle        *Oracle
	historyWindow int
}

func NewEngine(db *gorm.DB, llm utils.LLMClient, mailer utils.Mailer, kb *Knowledge) *Engine {
	window := 20
	if s := os.Getenv("CHAT_HISTORY_WINDOW"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			window = v
		}
	}
	return &Engine{
		db:            db,
		llm:           llm,
		mailer:        mailer,
		kb:            kb,
		oracle:        NewOracle(db, llm),
		historyWindow: window,
	}
}

// Oracle exposes the availability oracle for the status endpoint.
func (e *Engine) Oracle() *Oracle { return e.oracle }

// CreateSessionInput captures what the widget sends on first contact.
type CreateSessionInput struct {
	UserID      *uint
	Name        string
	Email       string
	Phone       string
	CurrentPage string
	IPAddress   string
	UserAgent   string
}

// SessionInfo is the creation result handed back to the client.
type SessionInfo struct {
	Session        *models.ChatSession
	Mode           string
	AIAvailable    bool
	AdminAvailable bool
	Greeting       string
}

// CreateSession decides the session mode from a one-shot availability
// snapshot and persists the session with its opening message.
func (e *Engine) CreateSession(in CreateSessionInput) (*SessionInfo, error) {
	aiAvail := e.oracle.CheckAIAvailability()
	adminAvail, agents := e.oracle.CheckAdminAvailability()

	now := time.Now()
	session := &models.ChatSession{
		SessionToken: uuid.NewString(),
		UserID:       in.UserID,
		VisitorName:  strings.TrimSpace(in.Name),
		VisitorEmail: strings.TrimSpace(in.Email),
		VisitorPhone: strings.TrimSpace(in.Phone),
		CurrentPage:  in.CurrentPage,
		IPAddress:    in.IPAddress,
		UserAgent:    in.UserAgent,
	}

	var mode, greeting string
	switch {
	case aiAvail && adminAvail:
		session.Status = models.SessionStatusActive
		mode = ModeFullService
		greeting = msgWelcome

	case aiAvail && !adminAvail:
		// AI serves now; record preemptively that a later escalation will
		// fail fast.
		session.Status = models.SessionStatusActive
		session.FallbackReason = models.FallbackNoAdminOnline
		mode = ModeFullService
		greeting = msgWelcome

	case !aiAvail && adminAvail:
		session.Status = models.SessionStatusEscalated
		session.FallbackReason = models.FallbackAIUnavailable
		session.EscalationReason = "ai_unavailable"
		session.EscalatedAt = &now
		agentID := agents[0].AgentID
		session.AssignedAgentID = &agentID
		mode = ModeAdminOnly
		greeting = fmt.Sprintf(msgAssignedTemplate, agentName(&agents[0]))

	default:
		session.Status = models.SessionStatusOffline
		session.FallbackReason = models.FallbackBothUnavailable
		mode = ModeOffline
		greeting = msgOfflineRedirect
	}

	if err := e.db.Create(session).Error; err != nil {
		return nil, fmt.Errorf("failed to create chat session: %w", err)
	}

	role := models.RoleSystem
	if session.Status == models.SessionStatusActive {
		role = models.RoleAssistant
	}
	if _, err := e.appendMessage(session.ID, role, greeting, nil); err != nil {
		log.Printf("[Chat] failed to save opening message for session %d: %v", session.ID, err)
	}

	return &SessionInfo{
		Session:        session,
		Mode:           mode,
		AIAvailable:    aiAvail,
		AdminAvailable: adminAvail,
		Greeting:       greeting,
	}, nil
}

// SessionByToken loads a live session. Soft-deleted and anonymized sessions
// are refused as if they did not exist.
func (e *Engine) SessionByToken(token string) (*models.ChatSession, error) {
	var session models.ChatSession
	err := e.db.Where("session_token = ?", token).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load chat session: %w", err)
	}
	if !session.Resumable() {
		return nil, ErrSessionNotFound
	}
	return &session, nil
}

// SessionWithMessages loads a session and its full message log in creation
// order.
func (e *Engine) SessionWithMessages(token string) (*models.ChatSession, []models.ChatMessage, error) {
	session, err := e.SessionByToken(token)
	if err != nil {
		return nil, nil, err
	}
	var messages []models.ChatMessage
	if err := e.db.Where("session_id = ?", session.ID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to load messages: %w", err)
	}
	return session, messages, nil
}

// Reply is the outcome of one inbound message.
type Reply struct {
	UserMessage     *models.ChatMessage
	ReplyMessage    *models.ChatMessage
	ShowOfflineForm bool
	Status          string
}

// HandleUserMessage routes one inbound visitor message according to the
// session status. The AI context window is rebuilt fresh on every call so
// configuration changes take effect on the very next message.
func (e *Engine) HandleUserMessage(ctx context.Context, token, text string) (*Reply, error) {
	session, err := e.SessionByToken(token)
	if err != nil {
		return nil, err
	}
	if session.Status == models.SessionStatusResolved || session.Status == models.SessionStatusClosed {
		return nil, ErrSessionClosed
	}

	userMsg, err := e.appendMessage(session.ID, models.RoleUser, text, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to save user message: %w", err)
	}

	switch session.Status {
	case models.SessionStatusOffline:
		return e.handleOfflineSession(session, userMsg)
	case models.SessionStatusEscalated:
		return e.handleEscalatedSession(session, userMsg)
	default:
		return e.handleActiveSession(ctx, session, userMsg, text)
	}
}

// handleOfflineSession serves the fixed redirect; no AI call is attempted.
func (e *Engine) handleOfflineSession(session *models.ChatSession, userMsg *models.ChatMessage) (*Reply, error) {
	sysMsg, err := e.appendMessage(session.ID, models.RoleSystem, msgOfflineRedirect, nil)
	if err != nil {
		return nil, err
	}
	return &Reply{UserMessage: userMsg, ReplyMessage: sysMsg, ShowOfflineForm: true, Status: session.Status}, nil
}

// handleEscalatedSession covers the human-pending branches: once an admin
// has written anything, automatic replies stop entirely.
func (e *Engine) handleEscalatedSession(session *models.ChatSession, userMsg *models.ChatMessage) (*Reply, error) {
	adminReplied, err := e.hasMessageWithRole(session.ID, models.RoleAdmin)
	if err != nil {
		return nil, err
	}
	if adminReplied {
		return &Reply{UserMessage: userMsg, Status: session.Status}, nil
	}

	if session.AssignedAgentID == nil {
		sysMsg, err := e.appendMessage(session.ID, models.RoleSystem, msgNoAgentChoices, nil)
		if err != nil {
			return nil, err
		}
		return &Reply{UserMessage: userMsg, ReplyMessage: sysMsg, ShowOfflineForm: true, Status: session.Status}, nil
	}

	// Agent assigned but silent so far: one forwarded notice, never repeated.
	alreadyNotified, err := e.hasSystemMessage(session.ID, msgForwardedNotice)
	if err != nil {
		return nil, err
	}
	if alreadyNotified {
		return &Reply{UserMessage: userMsg, Status: session.Status}, nil
	}
	sysMsg, err := e.appendMessage(session.ID, models.RoleSystem, msgForwardedNotice, nil)
	if err != nil {
		return nil, err
	}
	return &Reply{UserMessage: userMsg, ReplyMessage: sysMsg, Status: session.Status}, nil
}

// handleActiveSession calls the AI provider and evaluates the escalation
// triggers on the result.
func (e *Engine) handleActiveSession(ctx context.Context, session *models.ChatSession, userMsg *models.ChatMessage, text string) (*Reply, error) {
	history, err := e.contextWindow(session.ID)
	if err != nil {
		return nil, err
	}
	contextBlock := e.kb.SearchEntityByName(text)
	systemPrompt := e.kb.SystemPrompt(contextBlock)

	completion, err := e.llm.Complete(ctx, history, systemPrompt)
	if err != nil {
		MarkService(e.db, models.ServiceAI, false, err.Error())
		if session.FallbackReason == "" {
			if uerr := e.db.Model(session).Update("fallback_reason", models.FallbackAIError).Error; uerr != nil {
				log.Printf("[Chat] failed to record fallback reason for session %d: %v", session.ID, uerr)
			}
		}
		log.Printf("[Chat] ai completion failed for session %d: %v", session.ID, err)
		return nil, fmt.Errorf("%w: %v", ErrAIFailure, err)
	}
	MarkService(e.db, models.ServiceAI, true, "")

	replyText := strings.TrimSpace(completion.Content)

	var escalationReason string
	if e.kb.IsEscalationKeyword(text) {
		escalationReason = "keyword"
	} else if e.kb.HasUncertaintyMarker(replyText) {
		escalationReason = "ai_uncertain"
	}

	if escalationReason != "" {
		agent, escErr := e.assignAgent(session, escalationReason)
		if errors.Is(escErr, ErrNoAdminAvailable) {
			// No human to take over: the AI answer is discarded entirely. A
			// partial answer mixed with "no human available" messaging would
			// only confuse the visitor.
			log.Printf("[Chat] escalation failed for session %d: no agent available", session.ID)
			if session.FallbackReason == "" {
				session.FallbackReason = models.FallbackNoAdminOnline
				if err := e.db.Model(session).Update("fallback_reason", session.FallbackReason).Error; err != nil {
					log.Printf("[Chat] failed to record fallback reason for session %d: %v", session.ID, err)
				}
			}
			sysMsg, err := e.appendMessage(session.ID, models.RoleSystem, msgNoAgentChoices, nil)
			if err != nil {
				return nil, err
			}
			return &Reply{UserMessage: userMsg, ReplyMessage: sysMsg, ShowOfflineForm: true, Status: session.Status}, nil
		}
		if escErr != nil {
			return nil, escErr
		}

		replyText += escalationSuffix
		replyMsg, err := e.appendCompletion(session.ID, replyText, completion)
		if err != nil {
			return nil, err
		}
		notice := fmt.Sprintf(msgAssignedTemplate, agent.Name)
		if _, err := e.appendMessage(session.ID, models.RoleSystem, notice, nil); err != nil {
			log.Printf("[Chat] failed to save assignment notice for session %d: %v", session.ID, err)
		}
		return &Reply{UserMessage: userMsg, ReplyMessage: replyMsg, Status: session.Status}, nil
	}

	replyMsg, err := e.appendCompletion(session.ID, replyText, completion)
	if err != nil {
		return nil, err
	}
	return &Reply{UserMessage: userMsg, ReplyMessage: replyMsg, Status: session.Status}, nil
}

// assignAgent picks the first available agent, transitions the session to
// escalated and persists the assignment. Returns ErrNoAdminAvailable when
// the pool is empty at this instant.
func (e *Engine) assignAgent(session *models.ChatSession, reason string) (*models.Admin, error) {
	ok, agents := e.oracle.CheckAdminAvailability()
	if !ok {
		return nil, ErrNoAdminAvailable
	}
	candidate := agents[0]

	if err := Transition(session, EventEscalate, time.Now()); err != nil {
		return nil, err
	}
	agentID := candidate.AgentID
	session.AssignedAgentID = &agentID
	session.EscalationReason = reason

	// Guarded write: only the call that still sees the session active wins,
	// so two near-simultaneous escalations produce exactly one assignment.
	res := e.db.Model(&models.ChatSession{}).
		Where("id = ? AND status = ?", session.ID, models.SessionStatusActive).
		Updates(map[string]interface{}{
			"status":            session.Status,
			"assigned_agent_id": agentID,
			"escalation_reason": reason,
			"escalated_at":      session.EscalatedAt,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to persist escalation: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: session already escalated", ErrIllegalTransition)
	}

	admin := candidate.Agent
	if admin == nil {
		admin = &models.Admin{ID: agentID, Name: "munkatárs"}
	}
	return admin, nil
}

// Escalate is the on-demand escalation operation behind POST /escalate.
func (e *Engine) Escalate(token, reason string) (*models.ChatSession, error) {
	session, err := e.SessionByToken(token)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionStatusActive {
		return nil, fmt.Errorf("%w: cannot escalate from %s", ErrIllegalTransition, session.Status)
	}
	if reason == "" {
		reason = "user_request"
	}
	agent, err := e.assignAgent(session, reason)
	if err != nil {
		return nil, err
	}
	notice := fmt.Sprintf(msgAssignedTemplate, agent.Name)
	if _, err := e.appendMessage(session.ID, models.RoleSystem, notice, nil); err != nil {
		log.Printf("[Chat] failed to save assignment notice for session %d: %v", session.ID, err)
	}
	return session, nil
}

// CloseSession applies the terminal transition.
func (e *Engine) CloseSession(token string) (*models.ChatSession, error) {
	session, err := e.SessionByToken(token)
	if err != nil {
		return nil, err
	}
	if err := Transition(session, EventClose, time.Now()); err != nil {
		return nil, err
	}
	if err := e.db.Model(session).Updates(map[string]interface{}{
		"status":    session.Status,
		"closed_at": session.ClosedAt,
	}).Error; err != nil {
		return nil, fmt.Errorf("failed to close session: %w", err)
	}
	return session, nil
}

// ResolveSession marks the conversation answered (admin operation).
func (e *Engine) ResolveSession(token string) (*models.ChatSession, error) {
	session, err := e.SessionByToken(token)
	if err != nil {
		return nil, err
	}
	if err := Transition(session, EventResolve, time.Now()); err != nil {
		return nil, err
	}
	if err := e.db.Model(session).Updates(map[string]interface{}{
		"status":      session.Status,
		"resolved_at": session.ResolvedAt,
	}).Error; err != nil {
		return nil, fmt.Errorf("failed to resolve session: %w", err)
	}
	return session, nil
}

// AdminReply appends a human reply and marks the visitor's messages read.
func (e *Engine) AdminReply(token string, adminID int64, text string) (*models.ChatMessage, error) {
	session, err := e.SessionByToken(token)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionStatusEscalated && session.Status != models.SessionStatusActive {
		return nil, ErrSessionClosed
	}

	msg, err := e.appendMessage(session.ID, models.RoleAdmin, text, &adminID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := e.db.Model(&models.ChatMessage{}).
		Where("session_id = ? AND role = ? AND is_read = ?", session.ID, models.RoleUser, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": now}).Error; err != nil {
		log.Printf("[Chat] failed to mark messages read for session %d: %v", session.ID, err)
	}
	return msg, nil
}

// OfflineMessageInput is the offline form payload.
type OfflineMessageInput struct {
	SessionToken string
	Name         string
	Email        string
	Phone        string
	Message      string
	CurrentPage  string
	IPAddress    string
	UserAgent    string
}

// SubmitOfflineMessage stores the message durably and then attempts the
// staff notification. Mail failure is logged but never fails the submission.
func (e *Engine) SubmitOfflineMessage(ctx context.Context, in OfflineMessageInput) (*models.OfflineMessage, error) {
	record := &models.OfflineMessage{
		Name:        strings.TrimSpace(in.Name),
		Email:       strings.TrimSpace(in.Email),
		Phone:       strings.TrimSpace(in.Phone),
		Message:     strings.TrimSpace(in.Message),
		CurrentPage: in.CurrentPage,
		IPAddress:   in.IPAddress,
		UserAgent:   in.UserAgent,
		Status:      models.OfflineStatusPending,
	}

	if in.SessionToken != "" {
		if session, err := e.SessionByToken(in.SessionToken); err == nil {
			record.SessionID = &session.ID
		}
	}

	if err := e.db.Create(record).Error; err != nil {
		return nil, fmt.Errorf("failed to save offline message: %w", err)
	}

	subject := fmt.Sprintf("Új offline üzenet: %s", record.Name)
	body := fmt.Sprintf("Név: %s\nEmail: %s\nTelefon: %s\nOldal: %s\n\n%s",
		record.Name, record.Email, record.Phone, record.CurrentPage, record.Message)
	if err := e.mailer.Send(ctx, subject, body); err != nil {
		log.Printf("[Chat] offline notification mail failed for message %d: %v", record.ID, err)
		return record, nil
	}

	now := time.Now()
	record.EmailSentAt = &now
	if record.CanAdvanceTo(models.OfflineStatusSent) {
		record.Status = models.OfflineStatusSent
	}
	if err := e.db.Model(record).Updates(map[string]interface{}{
		"email_sent_at": now,
		"status":        record.Status,
	}).Error; err != nil {
		log.Printf("[Chat] failed to update offline message %d: %v", record.ID, err)
	}
	return record, nil
}

// Heartbeat records an agent as online now.
func (e *Engine) Heartbeat(adminID int64) error {
	now := time.Now()
	rec := models.AgentAvailability{
		AgentID:       adminID,
		Online:        true,
		LastHeartbeat: now,
	}
	err := e.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "agent_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"online", "last_heartbeat", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("failed to record heartbeat: %w", err)
	}
	MarkService(e.db, models.ServiceAdminChat, true, "")
	return nil
}

// AgentOffline flips an agent offline and refreshes the admin_chat health row.
func (e *Engine) AgentOffline(adminID int64) error {
	err := e.db.Model(&models.AgentAvailability{}).
		Where("agent_id = ?", adminID).
		Update("online", false).Error
	if err != nil {
		return fmt.Errorf("failed to set agent offline: %w", err)
	}
	if ok, _ := e.oracle.CheckAdminAvailability(); !ok {
		MarkService(e.db, models.ServiceAdminChat, false, "no agents online")
	}
	return nil
}

// StatusSnapshot returns the SystemStatus rows plus the live-computed
// availability booleans.
func (e *Engine) StatusSnapshot() (map[string]interface{}, error) {
	var rows []models.SystemStatus
	if err := e.db.Order("service_name ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to read system status: %w", err)
	}
	adminAvail, agents := e.oracle.CheckAdminAvailability()
	return map[string]interface{}{
		"services":        rows,
		"ai_available":    e.oracle.CheckAIAvailability(),
		"admin_available": adminAvail,
		"agents_online":   len(agents),
	}, nil
}

// contextWindow returns the last N messages in creation order, mapped to the
// LLM roles. System notices are UI chrome and stay out of the prompt; admin
// turns count as assistant turns.
func (e *Engine) contextWindow(sessionID uint) ([]utils.LLMMessage, error) {
	var messages []models.ChatMessage
	err := e.db.Where("session_id = ? AND role <> ?", sessionID, models.RoleSystem).
		Order("created_at DESC, id DESC").
		Limit(e.historyWindow).
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	// reverse into oldest-first order
	history := make([]utils.LLMMessage, 0, len(messages))
	for i := len(messages) - 1; i >= 0; i-- {
		role := messages[i].Role
		if role == models.RoleAdmin {
			role = models.RoleAssistant
		}
		history = append(history, utils.LLMMessage{Role: role, Content: messages[i].Content})
	}
	return history, nil
}

func (e *Engine) appendMessage(sessionID uint, role, content string, adminID *int64) (*models.ChatMessage, error) {
	msg := &models.ChatMessage{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		AdminID:   adminID,
	}
	if err := e.db.Create(msg).Error; err != nil {
		return nil, fmt.Errorf("failed to save %s message: %w", role, err)
	}
	return msg, nil
}

func (e *Engine) appendCompletion(sessionID uint, content string, c *utils.Completion) (*models.ChatMessage, error) {
	msg := &models.ChatMessage{
		SessionID:    sessionID,
		Role:         models.RoleAssistant,
		Content:      content,
		ModelName:    c.Model,
		TokensUsed:   c.TotalTokens,
		FinishReason: c.FinishReason,
	}
	if err := e.db.Create(msg).Error; err != nil {
		return nil, fmt.Errorf("failed to save assistant message: %w", err)
	}
	return msg, nil
}

func (e *Engine) hasMessageWithRole(sessionID uint, role string) (bool, error) {
	var count int64
	err := e.db.Model(&models.ChatMessage{}).
		Where("session_id = ? AND role = ?", sessionID, role).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to inspect history: %w", err)
	}
	return count > 0, nil
}

func (e *Engine) hasSystemMessage(sessionID uint, content string) (bool, error) {
	var count int64
	err := e.db.Model(&models.ChatMessage{}).
		Where("session_id = ? AND role = ? AND content = ?", sessionID, models.RoleSystem, content).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to inspect history: %w", err)
	}
	return count > 0, nil
}

func agentName(rec *models.AgentAvailability) string {
	if rec.Agent != nil && rec.Agent.Name != "" {
		return rec.Agent.Name
	}
	return "munkatárs"
}
