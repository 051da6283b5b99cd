package auth

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/report-assistant/internal/handler"
	"github.com/jwalitptl/report-assistant/internal/middleware"
	"github.com/jwalitptl/report-assistant/internal/model"
	"github.com/jwalitptl/report-assistant/pkg/errors"
	"github.com/jwalitptl/report-assistant/pkg/httputil"
)

type Service interface {
	SignUp(ctx context.Context, req *model.SignUpRequest) (*model.AuthSession, error)
	SignIn(ctx context.Context, email, password string) (*model.AuthSession, error)
	SignOut(ctx context.Context, principal *model.Principal) error
	Me(ctx context.Context, userID uuid.UUID) (*model.User, error)
}

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the endpoints reachable without a token.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	auth := r.Group("/auth")
	{
		auth.POST("/signup", h.SignUp)
		auth.POST("/signin", h.SignIn)
	}
}

// RegisterProtectedRoutes mounts the endpoints that need a signed-in caller.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	auth := r.Group("/auth")
	{
		auth.POST("/signout", h.SignOut)
		auth.GET("/me", h.Me)
	}
}

func (h *Handler) SignUp(c *gin.Context) {
	var req model.SignUpRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	session, err := h.svc.SignUp(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithStatus(c, http.StatusCreated, session)
}

func (h *Handler) SignIn(c *gin.Context) {
	var req model.SignInRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	session, err := h.svc.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, session)
}

func (h *Handler) SignOut(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		httputil.RespondWithError(c, errors.Auth("not signed in", nil))
		return
	}

	if err := h.svc.SignOut(c.Request.Context(), principal); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, gin.H{"signed_out": true})
}

func (h *Handler) Me(c *gin.Context) {
	user, err := h.svc.Me(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, user)
}
