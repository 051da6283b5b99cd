package session

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/report-assistant/internal/handler"
	"github.com/jwalitptl/report-assistant/internal/middleware"
	"github.com/jwalitptl/report-assistant/internal/model"
	"github.com/jwalitptl/report-assistant/pkg/errors"
	"github.com/jwalitptl/report-assistant/pkg/httputil"
)

type Service interface {
	Create(ctx context.Context, ownerID uuid.UUID, title string) (*model.Session, error)
	List(ctx context.Context, ownerID uuid.UUID) ([]*model.Session, error)
	EnsureCurrent(ctx context.Context, ownerID uuid.UUID) (*model.Session, bool, error)
	Delete(ctx context.Context, ownerID, id uuid.UUID, current bool) (*model.Session, error)
	ListMessages(ctx context.Context, ownerID, id uuid.UUID) ([]*model.Message, error)
}

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	sessions := r.Group("/sessions")
	{
		sessions.GET("", h.List)
		sessions.POST("", h.Create)
		sessions.POST("/current", h.Current)
		sessions.DELETE("/:id", h.Delete)
		sessions.GET("/:id/messages", h.ListMessages)
	}
}

func (h *Handler) List(c *gin.Context) {
	sessions, err := h.svc.List(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	if sessions == nil {
		sessions = []*model.Session{}
	}
	httputil.RespondWithSuccess(c, sessions)
}

func (h *Handler) Create(c *gin.Context) {
	var req model.CreateSessionRequest
	if c.Request.ContentLength != 0 && !handler.BindJSON(c, &req) {
		return
	}

	session, err := h.svc.Create(c.Request.Context(), middleware.UserID(c), req.Title)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithStatus(c, http.StatusCreated, session)
}

// Current returns the caller's newest session, creating one on first use.
func (h *Handler) Current(c *gin.Context) {
	session, created, err := h.svc.EnsureCurrent(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	httputil.RespondWithStatus(c, status, gin.H{
		"session": session,
		"created": created,
	})
}

// Delete removes a session. With ?current=true the replacement session is
// returned.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}

	current := false
	if raw := c.Query("current"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			httputil.RespondWithError(c, errors.Validation("current must be a boolean", err))
			return
		}
		current = v
	}

	next, err := h.svc.Delete(c.Request.Context(), middleware.UserID(c), id, current)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	data := gin.H{"deleted": id}
	if next != nil {
		data["session"] = next
	}
	httputil.RespondWithSuccess(c, data)
}

func (h *Handler) ListMessages(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}

	messages, err := h.svc.ListMessages(c.Request.Context(), middleware.UserID(c), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	if messages == nil {
		messages = []*model.Message{}
	}
	httputil.RespondWithSuccess(c, messages)
}
