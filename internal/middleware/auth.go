package middleware

import (
	"net/http"
	"strings"

	"dcabot/backend/internal/util"
	"dcabot/backend/pkg/jwt"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// UserIDKey is the gin context key holding the authenticated user id
const UserIDKey = "user_id"

// AuthMiddleware requires a bearer JWT and stores its subject as the user id
func AuthMiddleware(jwtManager *jwt.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Get token from Authorization header
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" && websocket.IsWebSocketUpgrade(c.Request) {
			// Browsers cannot set headers on a WebSocket handshake
			if token := c.Query("access_token"); token != "" {
				authHeader = "Bearer " + token
			}
		}
		if authHeader == "" {
			util.AbortWithCustomError(c, http.StatusUnauthorized, util.ErrCodeUnauthorized, "Missing authorization header")
			return
		}

		// Check if Bearer token
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			util.AbortWithCustomError(c, http.StatusUnauthorized, util.ErrCodeUnauthorized, "Invalid authorization header format")
			return
		}

		claims, err := jwtManager.ValidateToken(parts[1])
		if err != nil {
			util.AbortWithCustomError(c, http.StatusUnauthorized, util.ErrCodeTokenInvalid, "Invalid or expired token")
			return
		}

		c.Set(UserIDKey, claims.UserID())
		c.Next()
	}
}

// UserID returns the authenticated user, or "" outside AuthMiddleware
func UserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}
