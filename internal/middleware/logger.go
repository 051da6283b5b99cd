package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger returns a middleware that logs HTTP requests. Bodies are never
// logged: they carry report text, patient details and passwords.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()
		if raw != "" {
			path = path + "?" + raw
		}

		var evt *zerolog.Event
		msg := "Request processed"
		switch {
		case statusCode >= 500:
			evt, msg = log.Error(), "Server error"
		case statusCode >= 400:
			evt, msg = log.Warn(), "Client error"
		default:
			evt = log.Info()
		}

		evt.
			Str("request_id", c.GetString(ContextRequestID)).
			Str("user_id", c.GetString(ContextUserID)).
			Str("client_ip", c.ClientIP()).
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", statusCode).
			Int("size", c.Writer.Size()).
			Dur("latency", latency).
			Str("user_agent", c.Request.UserAgent()).
			Msg(msg)
	}
}
