package report

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/report-assistant/internal/ingest"
	"github.com/jwalitptl/report-assistant/internal/middleware"
	"github.com/jwalitptl/report-assistant/internal/model"
	"github.com/jwalitptl/report-assistant/pkg/errors"
	"github.com/jwalitptl/report-assistant/pkg/httputil"
)

const formField = "file"

type Ingestor interface {
	Ingest(ctx context.Context, ownerID uuid.UUID, upload ingest.Upload) (*model.ReportDocument, error)
	Current(ownerID uuid.UUID) (*model.ReportDocument, bool)
	Clear(ownerID uuid.UUID) bool
}

type Handler struct {
	ingestor Ingestor
}

func NewHandler(ingestor Ingestor) *Handler {
	return &Handler{ingestor: ingestor}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	reports := r.Group("/reports")
	{
		reports.POST("", h.Upload)
		reports.GET("/current", h.Current)
		reports.DELETE("/current", h.Clear)
	}
}

// Upload ingests a PDF sent as multipart field "file" and makes it the
// caller's selected report.
func (h *Handler) Upload(c *gin.Context) {
	fh, err := c.FormFile(formField)
	if err != nil {
		httputil.RespondWithError(c, errors.Validation("a PDF file is required in field \"file\"", err))
		return
	}

	doc, err := h.ingestor.Ingest(c.Request.Context(), middleware.UserID(c), ingest.Upload{
		FileName: fh.Filename,
		Size:     fh.Size,
		MimeType: fh.Header.Get("Content-Type"),
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	})
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithStatus(c, http.StatusCreated, doc)
}

func (h *Handler) Current(c *gin.Context) {
	doc, ok := h.ingestor.Current(middleware.UserID(c))
	if !ok {
		httputil.RespondWithError(c, errors.NotFound("selected report", nil))
		return
	}
	httputil.RespondWithSuccess(c, doc)
}

func (h *Handler) Clear(c *gin.Context) {
	cleared := h.ingestor.Clear(middleware.UserID(c))
	httputil.RespondWithSuccess(c, gin.H{"cleared": cleared})
}
