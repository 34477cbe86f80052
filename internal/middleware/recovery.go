package middleware

import (
	"fmt"
	"runtime/debug"

	"dcabot/backend/internal/util"
	"dcabot/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Recovery turns a handler panic into a 500 with the standard error body
func Recovery(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				requestID, _ := c.Get("request_id")
				log.WithFields(map[string]interface{}{
					"request_id": requestID,
					"route":      c.FullPath(),
					"stack":      string(debug.Stack()),
				}).Error("Panic recovered", fmt.Errorf("%v", r))

				util.AbortWithError(c, util.ErrInternalServer("Internal server error"))
			}
		}()

		c.Next()
	}
}
