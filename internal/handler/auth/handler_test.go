package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/report-assistant/internal/middleware"
	"github.com/jwalitptl/report-assistant/internal/model"
	"github.com/jwalitptl/report-assistant/pkg/errors"
	"github.com/jwalitptl/report-assistant/pkg/validator"
)

type fakeService struct {
	signedUp  *model.SignUpRequest
	signedOut *model.Principal
	signInErr error
	user      *model.User
}

func (f *fakeService) SignUp(ctx context.Context, req *model.SignUpRequest) (*model.AuthSession, error) {
	f.signedUp = req
	return &model.AuthSession{AccessToken: "tok", TokenType: "Bearer", ExpiresAt: time.Now().Add(time.Hour), User: f.user}, nil
}

func (f *fakeService) SignIn(ctx context.Context, email, password string) (*model.AuthSession, error) {
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	return &model.AuthSession{AccessToken: "tok", TokenType: "Bearer", User: f.user}, nil
}

func (f *fakeService) SignOut(ctx context.Context, principal *model.Principal) error {
	f.signedOut = principal
	return nil
}

func (f *fakeService) Me(ctx context.Context, userID uuid.UUID) (*model.User, error) {
	if userID != f.user.ID {
		return nil, errors.NotFound("user", nil)
	}
	return f.user, nil
}

func setup(svc *fakeService, principal *model.Principal) *gin.Engine {
	gin.SetMode(gin.TestMode)
	validator.Register()
	r := gin.New()
	api := r.Group("/api/v1")
	h := NewHandler(svc)
	h.RegisterRoutes(api)

	protected := api.Group("")
	protected.Use(func(c *gin.Context) {
		if principal != nil {
			c.Set(middleware.ContextPrincipal, principal)
		}
		c.Next()
	})
	h.RegisterProtectedRoutes(protected)
	return r
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func newUser() *model.User {
	u := &model.User{Email: "amna@example.com", Name: "Amna"}
	u.ID = uuid.New()
	return u
}

func TestSignUp(t *testing.T) {
	svc := &fakeService{user: newUser()}
	r := setup(svc, nil)

	w := do(r, http.MethodPost, "/api/v1/auth/signup",
		`{"email":"amna@example.com","password":"longenough","confirm_password":"longenough","name":"Amna"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, svc.signedUp)
	assert.Equal(t, "Amna", svc.signedUp.Name)

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			AccessToken string `json:"access_token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "tok", resp.Data.AccessToken)
}

func TestSignUpValidation(t *testing.T) {
	r := setup(&fakeService{user: newUser()}, nil)

	tests := []struct {
		name string
		body string
		msg  string
	}{
		{"bad email", `{"email":"nope","password":"longenough","name":"A"}`, "email must be a valid email"},
		{"short password", `{"email":"a@b.co","password":"short","name":"A"}`, "password must be at least 8"},
		{"mismatch", `{"email":"a@b.co","password":"longenough","confirm_password":"different","name":"A"}`, "confirm_password must match"},
		{"malformed", `{"email":`, "malformed request body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, http.MethodPost, "/api/v1/auth/signup", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tt.msg)
		})
	}
}

func TestSignInFailure(t *testing.T) {
	svc := &fakeService{user: newUser(), signInErr: errors.Auth("invalid email or password", nil)}
	r := setup(svc, nil)

	w := do(r, http.MethodPost, "/api/v1/auth/signin", `{"email":"amna@example.com","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid email or password")
}

func TestSignOutAndMe(t *testing.T) {
	user := newUser()
	principal := &model.Principal{UserID: user.ID, Email: user.Email, TokenID: "jti"}
	svc := &fakeService{user: user}
	r := setup(svc, principal)

	w := do(r, http.MethodGet, "/api/v1/auth/me", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), user.Email)
	assert.NotContains(t, w.Body.String(), "password")

	w = do(r, http.MethodPost, "/api/v1/auth/signout", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, principal, svc.signedOut)
}

func TestSignOutWithoutPrincipal(t *testing.T) {
	r := setup(&fakeService{user: newUser()}, nil)
	w := do(r, http.MethodPost, "/api/v1/auth/signout", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
