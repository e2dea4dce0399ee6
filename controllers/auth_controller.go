package controllers

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/dredbirozsolt/koncert24-hu-sub002/database"
	"github.com/dredbirozsolt/koncert24-hu-sub002/middleware"
	"github.com/dredbirozsolt/koncert24-hu-sub002/models"
	"github.com/dredbirozsolt/koncert24-hu-sub002/utils"
)

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Login authenticates an admin and issues the access token used by the chat
// agent console.
func Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}

	var admin models.Admin
	if err := database.DB.Where("username = ?", req.Username).First(&admin).Error; err != nil {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.APIResponse{Success: false, Message: "Invalid credentials"})
		return
	}
	if !admin.IsActive || !admin.ValidatePassword(req.Password) {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.APIResponse{Success: false, Message: "Invalid credentials"})
		return
	}

	token, err := utils.GenerateJWT(admin.ID, admin.Username, admin.Role)
	if err != nil {
		log.Printf("[Auth] token generation failed for %s: %v", admin.Username, err)
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Login failed"})
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "Login successful",
		Data: map[string]interface{}{
			"token": token,
			"admin": admin,
		},
	})
}

// Logout revokes the presented token's jti. Without a revocation store the
// token simply expires on its own.
func Logout(w http.ResponseWriter, r *http.Request) {
	authHeader := r.Header.Get("Authorization")
	tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))

	_, claims, err := utils.ValidateAccessToken(tokenString)
	if err == nil {
		if jti, ok := claims["jti"].(string); ok && jti != "" {
			if err := utils.RevokeJTI(jti, 6*time.Hour); err != nil {
				log.Printf("[Auth] jti revocation skipped: %v", err)
			}
		}
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Logged out"})
}
