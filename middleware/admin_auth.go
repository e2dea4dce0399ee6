package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/dredbirozsolt/koncert24-hu-sub002/database"
	"github.com/dredbirozsolt/koncert24-hu-sub002/models"
	"github.com/dredbirozsolt/koncert24-hu-sub002/utils"
)

// AdminAuthMiddleware verifies that the request is from an authenticated,
// active admin and injects the admin id into the request context.
func AdminAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			utils.WriteJSON(w, http.StatusUnauthorized, utils.APIResponse{
				Success: false,
				Message: "Unauthorized: No token provided",
			})
			return
		}

		tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))

		// Centralized validation checks aud/iss/exp/nbf and revocation
		_, claims, err := utils.ValidateAccessToken(tokenString)
		if err != nil {
			utils.WriteJSON(w, http.StatusUnauthorized, utils.APIResponse{
				Success: false,
				Message: "Unauthorized: Invalid token",
			})
			return
		}

		role, ok := claims["role"].(string)
		if !ok || role != "admin" {
			utils.WriteJSON(w, http.StatusForbidden, utils.APIResponse{
				Success: false,
				Message: "Forbidden: Admin access required",
			})
			return
		}

		adminID := utils.AdminIDFromClaims(claims)

		var admin models.Admin
		if err := database.DB.First(&admin, adminID).Error; err != nil {
			utils.WriteJSON(w, http.StatusUnauthorized, utils.APIResponse{
				Success: false,
				Message: "Unauthorized: Admin not found",
			})
			return
		}
		if !admin.IsActive {
			utils.WriteJSON(w, http.StatusForbidden, utils.APIResponse{
				Success: false,
				Message: "Forbidden",
			})
			return
		}

		ctx := context.WithValue(r.Context(), utils.AdminIDKey, admin.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetAdminID returns the authenticated admin id from the request context.
func GetAdminID(r *http.Request) (int64, bool) {
	v := r.Context().Value(utils.AdminIDKey)
	id, ok := v.(int64)
	return id, ok
}
