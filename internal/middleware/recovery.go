package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/booking-api/internal/handler"
	"github.com/jwalitptl/booking-api/pkg/logger"
)

// Recovery turns a panic into a 500 response and logs the stack.
func Recovery(l *logger.Logger) gin.HandlerFunc {
	l = l.With("http")

	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				l.Error(fmt.Errorf("panic: %v", r), "Request panic recovered",
					"stack", string(debug.Stack()),
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
					"client_ip", c.ClientIP(),
					"request_id", c.GetString(ContextRequestID))

				c.AbortWithStatusJSON(http.StatusInternalServerError, handler.NewErrorResponse("Server error"))
			}
		}()
		c.Next()
	}
}
