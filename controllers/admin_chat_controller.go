package controllers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/dredbirozsolt/koncert24-hu-sub002/middleware"
	"github.com/dredbirozsolt/koncert24-hu-sub002/services/chat"
	"github.com/dredbirozsolt/koncert24-hu-sub002/utils"
)

// AdminChatController serves the authenticated agent-side endpoints. Every
// handler assumes AdminAuthMiddleware already ran.
type AdminChatController struct {
	Engine *chat.Engine
}

func NewAdminChatController(engine *chat.Engine) *AdminChatController {
	return &AdminChatController{Engine: engine}
}

// Heartbeat marks the calling agent online now. The widget availability
// follows from these heartbeats; a silent agent goes auto-away.
func (c *AdminChatController) Heartbeat(w http.ResponseWriter, r *http.Request) {
	adminID, ok := middleware.GetAdminID(r)
	if !ok {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.APIResponse{Success: false, Message: "Unauthorized"})
		return
	}
	if err := c.Engine.Heartbeat(adminID); err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Failed to record heartbeat"})
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "OK"})
}

// Offline flips the calling agent offline explicitly, ahead of the auto-away
// timeout.
func (c *AdminChatController) Offline(w http.ResponseWriter, r *http.Request) {
	adminID, ok := middleware.GetAdminID(r)
	if !ok {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.APIResponse{Success: false, Message: "Unauthorized"})
		return
	}
	if err := c.Engine.AgentOffline(adminID); err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Failed to set offline"})
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "OK"})
}

type adminReplyRequest struct {
	Message string `json:"message" validate:"required,chatmsg"`
}

// Reply appends a human reply to the session. From this point on the session
// produces no automatic replies.
func (c *AdminChatController) Reply(w http.ResponseWriter, r *http.Request) {
	adminID, ok := middleware.GetAdminID(r)
	if !ok {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.APIResponse{Success: false, Message: "Unauthorized"})
		return
	}
	token := mux.Vars(r)["token"]

	var req adminReplyRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}

	msg, err := c.Engine.AdminReply(token, adminID, req.Message)
	if err != nil {
		writeChatError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, utils.APIResponse{Success: true, Message: "OK", Data: msg})
}

// Resolve marks the session answered.
func (c *AdminChatController) Resolve(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]
	session, err := c.Engine.ResolveSession(token)
	if err != nil {
		writeChatError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "OK",
		Data:    map[string]interface{}{"status": session.Status},
	})
}
