package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/report-assistant/pkg/errors"
	"github.com/jwalitptl/report-assistant/pkg/httputil"
)

// ErrorResponse is written when a request fails outside a handler.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	TraceID string `json:"trace_id,omitempty"`
}

// ErrorHandler logs the errors handlers attached with c.Error. Handlers write
// their own responses through httputil.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		traceID := c.GetString(ContextRequestID)
		for _, e := range c.Errors {
			status := httputil.StatusFor(e.Err)
			evt := log.Warn()
			if status >= 500 {
				evt = log.Error()
			}
			evt.
				Err(e.Err).
				Str("request_id", traceID).
				Str("path", c.Request.URL.Path).
				Str("method", c.Request.Method).
				Str("client_ip", c.ClientIP()).
				Int("code", int(errors.CodeOf(e.Err))).
				Int("status", status).
				Msg("Request error")
		}
	}
}
