package httputil

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/report-assistant/pkg/errors"
)

// Response wraps all API responses
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// Error represents API error
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

var statusByCode = map[errors.ErrorCode]int{
	errors.ErrNotFound:        http.StatusNotFound,
	errors.ErrBadRequest:      http.StatusBadRequest,
	errors.ErrUnauthorized:    http.StatusUnauthorized,
	errors.ErrForbidden:       http.StatusForbidden,
	errors.ErrInternal:        http.StatusInternalServerError,
	errors.ErrExternalService: http.StatusBadGateway,
	errors.ErrState:           http.StatusConflict,
	errors.ErrConflict:        http.StatusConflict,
	errors.ErrQuotaExceeded:   http.StatusTooManyRequests,
}

// StatusFor maps an error to the HTTP status it is reported with.
func StatusFor(err error) int {
	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) {
		return http.StatusInternalServerError
	}
	if status, ok := statusByCode[appErr.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// RespondWithSuccess sends a success response
func RespondWithSuccess(c *gin.Context, data interface{}) {
	RespondWithStatus(c, http.StatusOK, data)
}

// RespondWithStatus sends a success response with a custom status code
func RespondWithStatus(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{
		Success: true,
		Data:    data,
	})
}

// RespondWithError sends an error response
func RespondWithError(c *gin.Context, err error) {
	statusCode := StatusFor(err)
	message := "Internal server error"

	var appErr *errors.AppError
	if stderrors.As(err, &appErr) && statusCode != http.StatusInternalServerError {
		message = appErr.Message
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(statusCode, Response{
		Success: false,
		Error: &Error{
			Code:    statusCode,
			Message: message,
		},
	})
}
