package middleware

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/pkg/logger"
)

var errServerStatus = errors.New("request failed")

// Logger logs one line per request. Request bodies are never logged since
// they carry passwords.
func Logger(l *logger.Logger) gin.HandlerFunc {
	l = l.With("http")

	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		status := c.Writer.Status()
		fields := []interface{}{
			"request_id", c.GetString(ContextRequestID),
			"client_ip", c.ClientIP(),
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latency", time.Since(start).String(),
			"user_agent", c.Request.UserAgent(),
		}
		if id := UserID(c); id != uuid.Nil {
			fields = append(fields, "user_id", id.String())
		}

		switch {
		case status >= 500:
			var err error = errServerStatus
			if last := c.Errors.Last(); last != nil {
				err = last.Err
			}
			l.Error(err, "Server error", fields...)
		case status >= 400:
			if len(c.Errors) > 0 {
				fields = append(fields, "error", c.Errors.String())
			}
			l.Warn("Client error", fields...)
		default:
			l.Info("Request processed", fields...)
		}
	}
}
