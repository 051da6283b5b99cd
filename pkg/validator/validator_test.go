package validator

import (
	"errors"
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signUp struct {
	Name     string `json:"name" binding:"notblank,max=10"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Confirm  string `json:"confirm_password" binding:"eqfield=Password"`
	Gender   string `json:"gender" binding:"omitempty,oneof=male female"`
}

func TestValidateUsesJSONNames(t *testing.T) {
	v := New()

	err := v.Validate(&signUp{
		Name:     "   ",
		Email:    "not-an-email",
		Password: "short",
		Confirm:  "other",
		Gender:   "x",
	})
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, "name is required")
	assert.Contains(t, msg, "email must be a valid email")
	assert.Contains(t, msg, "password must be at least 8")
	assert.Contains(t, msg, "confirm_password must match password")
	assert.Contains(t, msg, "gender must be one of [male female]")
}

func TestValidateAcceptsValidStruct(t *testing.T) {
	err := New().Validate(&signUp{
		Name:     "Ayesha",
		Email:    "ayesha@example.com",
		Password: "longenough",
		Confirm:  "longenough",
	})
	assert.NoError(t, err)
}

func TestRegisterInstallsTagsOnBindingEngine(t *testing.T) {
	Register()
	Register()

	err := binding.Validator.ValidateStruct(&signUp{
		Name:     " ",
		Email:    "ayesha@example.com",
		Password: "longenough",
		Confirm:  "longenough",
	})
	require.Error(t, err)
	assert.Equal(t, "name is required", Describe(err))
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "malformed request body", Describe(errors.New("unexpected EOF")))

	type body struct {
		Title string `json:"title" binding:"max=3"`
	}
	v := New().(*structValidator)
	err := v.v.Struct(&body{Title: "too long"})
	require.Error(t, err)
	assert.Equal(t, "title must not exceed 3", Describe(err))
}
