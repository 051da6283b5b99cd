package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// SizeLimitConfig represents size limit configuration
type SizeLimitConfig struct {
	MaxBodySize   int64 // in bytes
	MaxUploadSize int64 // in bytes, multipart requests only
	ErrorMessage  string
}

func DefaultSizeLimitConfig() SizeLimitConfig {
	return SizeLimitConfig{
		MaxBodySize:   1 << 20,  // 1MB
		MaxUploadSize: 21 << 20, // report limit plus multipart overhead
		ErrorMessage:  "Request size exceeds limit",
	}
}

// SizeLimit rejects oversized requests by Content-Length and caps the body
// reader for requests that do not declare one.
func SizeLimit(config SizeLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := config.MaxBodySize
		if strings.HasPrefix(c.ContentType(), "multipart/") {
			limit = config.MaxUploadSize
		}
		if limit <= 0 {
			c.Next()
			return
		}

		if c.Request.ContentLength > limit {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, ErrorResponse{
				Code:    http.StatusRequestEntityTooLarge,
				Message: fmt.Sprintf("%s: body size exceeds %d bytes", config.ErrorMessage, limit),
				TraceID: c.GetString(ContextRequestID),
			})
			return
		}

		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}
