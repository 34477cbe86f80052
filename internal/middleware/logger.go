package middleware

import (
	"time"

	"dcabot/backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestID middleware adds a unique request ID to each request
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// Logger middleware logs HTTP requests
func Logger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID, _ := c.Get("request_id")

		c.Next()

		statusCode := c.Writer.Status()
		logFields := map[string]interface{}{
			"request_id": requestID,
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"route":      c.FullPath(),
			"status":     statusCode,
			"latency_ms": time.Since(start).Milliseconds(),
			"ip":         c.ClientIP(),
		}

		// Webhook paths carry secrets and tokens; log the route instead
		if c.Param("secret") != "" || c.Param("token") != "" {
			logFields["path"] = c.FullPath()
		}
		if botID := c.Param("id"); botID != "" {
			logFields["bot_id"] = botID
		}
		if userID := UserID(c); userID != "" {
			logFields["user_id"] = userID
		}
		if len(c.Errors) > 0 {
			logFields["errors"] = c.Errors.String()
		}

		switch {
		case statusCode >= 500:
			log.WithFields(logFields).Error("Server error", nil)
		case statusCode >= 400:
			log.WithFields(logFields).Warn("Client error")
		default:
			log.WithFields(logFields).Info("Request completed")
		}
	}
}
