package audio

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	audiostore "github.com/jwalitptl/report-assistant/internal/audio"
	"github.com/jwalitptl/report-assistant/internal/middleware"
	"github.com/jwalitptl/report-assistant/pkg/errors"
	"github.com/jwalitptl/report-assistant/pkg/httputil"
)

type Store interface {
	Get(ownerID uuid.UUID, id string) (*audiostore.Clip, bool)
	Release(ownerID uuid.UUID, id string) bool
}

type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	audio := r.Group("/audio")
	{
		audio.GET("/:id", h.Play)
		audio.DELETE("/:id", h.Release)
	}
}

// Play streams a synthesized clip to its owner.
func (h *Handler) Play(c *gin.Context) {
	clip, ok := h.store.Get(middleware.UserID(c), c.Param("id"))
	if !ok {
		httputil.RespondWithError(c, errors.NotFound("audio", nil))
		return
	}
	a := clip.Audio
	if a == nil {
		httputil.RespondWithError(c, errors.NotFound("audio", nil))
		return
	}

	c.Header("Cache-Control", "private, no-store")
	c.Header("Content-Length", strconv.Itoa(len(a.Data)))
	c.Data(http.StatusOK, a.ContentType, a.Data)
}

// Release drops a clip the client no longer displays.
func (h *Handler) Release(c *gin.Context) {
	if !h.store.Release(middleware.UserID(c), c.Param("id")) {
		httputil.RespondWithError(c, errors.NotFound("audio", nil))
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"released": c.Param("id")})
}
