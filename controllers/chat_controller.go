package controllers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/dredbirozsolt/koncert24-hu-sub002/middleware"
	"github.com/dredbirozsolt/koncert24-hu-sub002/services/chat"
	"github.com/dredbirozsolt/koncert24-hu-sub002/utils"
)

const msgAIApology = "Elnézést, az asszisztens jelenleg nem elérhető. " +
	"Kérjük, hagyjon üzenetet az offline űrlapon, és hamarosan válaszolunk."

// ChatController serves the public chat widget endpoints.
type ChatController struct {
	Engine *chat.Engine
}

func NewChatController(engine *chat.Engine) *ChatController {
	return &ChatController{Engine: engine}
}

type createSessionRequest struct {
	Name        string `json:"name" validate:"nameok"`
	Email       string `json:"email" validate:"email"`
	Phone       string `json:"phone"`
	CurrentPage string `json:"current_page"`
}

// CreateSession opens a new session. The response tells the widget which
// mode to render: full_service, admin_only or offline_mode.
func (c *ChatController) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}

	info, err := c.Engine.CreateSession(chat.CreateSessionInput{
		Name:        req.Name,
		Email:       req.Email,
		Phone:       req.Phone,
		CurrentPage: req.CurrentPage,
		IPAddress:   middleware.ClientIP(r),
		UserAgent:   r.Header.Get("User-Agent"),
	})
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{
			Success: false,
			Message: "Nem sikerült elindítani a beszélgetést",
		})
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.APIResponse{
		Success: true,
		Message: "Beszélgetés elindítva",
		Data: map[string]interface{}{
			"session_token":   info.Session.SessionToken,
			"status":          info.Session.Status,
			"mode":            info.Mode,
			"ai_available":    info.AIAvailable,
			"admin_available": info.AdminAvailable,
			"greeting":        info.Greeting,
		},
	})
}

// GetSession returns the session and its full message log.
func (c *ChatController) GetSession(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]
	session, messages, err := c.Engine.SessionWithMessages(token)
	if err != nil {
		writeChatError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "OK",
		Data: map[string]interface{}{
			"session":  session,
			"messages": messages,
		},
	})
}

type sendMessageRequest struct {
	Message string `json:"message" validate:"required,chatmsg"`
}

// SendMessage routes one visitor message through the engine.
func (c *ChatController) SendMessage(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]

	var req sendMessageRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}

	reply, err := c.Engine.HandleUserMessage(r.Context(), token, req.Message)
	if err != nil {
		if errors.Is(err, chat.ErrAIFailure) {
			utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
				Success: false,
				Message: msgAIApology,
				Data:    map[string]interface{}{"show_offline_form": true},
			})
			return
		}
		writeChatError(w, err)
		return
	}

	data := map[string]interface{}{
		"message":           reply.UserMessage,
		"status":            reply.Status,
		"show_offline_form": reply.ShowOfflineForm,
	}
	if reply.ReplyMessage != nil {
		data["reply"] = reply.ReplyMessage
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "OK", Data: data})
}

type escalateRequest struct {
	Reason string `json:"reason"`
}

// Escalate hands the session to a human agent on the visitor's request.
func (c *ChatController) Escalate(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]

	var req escalateRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}

	session, err := c.Engine.Escalate(token, req.Reason)
	if err != nil {
		if errors.Is(err, chat.ErrNoAdminAvailable) {
			utils.WriteJSON(w, http.StatusServiceUnavailable, utils.APIResponse{
				Success: false,
				Message: "Jelenleg egyetlen munkatársunk sem elérhető",
				Error:   chat.ErrNoAdminAvailable.Error(),
				Data:    map[string]interface{}{"show_offline_form": true},
			})
			return
		}
		writeChatError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "A beszélgetést munkatársunk veszi át",
		Data: map[string]interface{}{
			"status":            session.Status,
			"assigned_agent_id": session.AssignedAgentID,
		},
	})
}

// CloseSession ends the conversation.
func (c *ChatController) CloseSession(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]
	session, err := c.Engine.CloseSession(token)
	if err != nil {
		writeChatError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "Beszélgetés lezárva",
		Data:    map[string]interface{}{"status": session.Status},
	})
}

type offlineMessageRequest struct {
	SessionToken string `json:"session_token"`
	Name         string `json:"name" validate:"required,nameok"`
	Email        string `json:"email" validate:"required,email"`
	Phone        string `json:"phone"`
	Message      string `json:"message" validate:"required,msgbody"`
	CurrentPage  string `json:"current_page"`
}

// SubmitOfflineMessage stores the offline form submission and notifies staff.
func (c *ChatController) SubmitOfflineMessage(w http.ResponseWriter, r *http.Request) {
	var req offlineMessageRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}

	record, err := c.Engine.SubmitOfflineMessage(r.Context(), chat.OfflineMessageInput{
		SessionToken: req.SessionToken,
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		Message:      req.Message,
		CurrentPage:  req.CurrentPage,
		IPAddress:    middleware.ClientIP(r),
		UserAgent:    r.Header.Get("User-Agent"),
	})
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{
			Success: false,
			Message: "Nem sikerült elmenteni az üzenetet, kérjük próbálja újra",
		})
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.APIResponse{
		Success: true,
		Message: "Köszönjük! Üzenetét megkaptuk, hamarosan felvesszük Önnel a kapcsolatot.",
		Data:    map[string]interface{}{"id": record.ID, "status": record.Status},
	})
}

// Status reports the live availability snapshot for the widget.
func (c *ChatController) Status(w http.ResponseWriter, r *http.Request) {
	snapshot, err := c.Engine.StatusSnapshot()
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{
			Success: false,
			Message: "Nem sikerült lekérdezni az állapotot",
		})
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "OK", Data: snapshot})
}

// writeChatError maps engine sentinels to HTTP responses.
func writeChatError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chat.ErrSessionNotFound):
		utils.WriteJSON(w, http.StatusNotFound, utils.APIResponse{
			Success: false,
			Message: "A beszélgetés nem található",
		})
	case errors.Is(err, chat.ErrSessionClosed):
		utils.WriteJSON(w, http.StatusGone, utils.APIResponse{
			Success: false,
			Message: "A beszélgetés már lezárult",
		})
	case errors.Is(err, chat.ErrIllegalTransition):
		utils.WriteJSON(w, http.StatusConflict, utils.APIResponse{
			Success: false,
			Message: "A művelet ebben az állapotban nem végezhető el",
		})
	default:
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{
			Success: false,
			Message: "Váratlan hiba történt",
		})
	}
}
