package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/report-assistant/pkg/errors"
	"github.com/jwalitptl/report-assistant/pkg/httputil"
	"github.com/jwalitptl/report-assistant/pkg/validator"
)

// BindJSON decodes and validates the request body into obj. On failure it
// writes a validation error and returns false. Custom tags must already be
// installed with validator.Register.
func BindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		httputil.RespondWithError(c, errors.Validation(validator.Describe(err), err))
		return false
	}
	return true
}

// ParamUUID parses a UUID path parameter. On failure it writes a validation
// error and returns false.
func ParamUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		httputil.RespondWithError(c, errors.Validation("invalid "+name, err))
		return uuid.Nil, false
	}
	return id, true
}
