package analysis

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/report-assistant/internal/handler"
	"github.com/jwalitptl/report-assistant/internal/middleware"
	"github.com/jwalitptl/report-assistant/internal/model"
	analysissvc "github.com/jwalitptl/report-assistant/internal/service/analysis"
	"github.com/jwalitptl/report-assistant/pkg/errors"
	"github.com/jwalitptl/report-assistant/pkg/httputil"
)

type Analyzer interface {
	Analyze(ctx context.Context, sc analysissvc.SessionContext, info model.PatientInfo, reportText string) (*model.AnalysisResult, error)
	State(sessionID uuid.UUID, hasReport bool) model.AnalysisState
	Usage(ctx context.Context, ownerID uuid.UUID) (*model.Usage, error)
}

type SessionGetter interface {
	Get(ctx context.Context, ownerID, id uuid.UUID) (*model.Session, error)
}

type ReportSource interface {
	Current(ownerID uuid.UUID) (*model.ReportDocument, bool)
	Extracting(ownerID uuid.UUID) bool
}

type Handler struct {
	analyzer Analyzer
	sessions SessionGetter
	reports  ReportSource
}

func NewHandler(analyzer Analyzer, sessions SessionGetter, reports ReportSource) *Handler {
	return &Handler{
		analyzer: analyzer,
		sessions: sessions,
		reports:  reports,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/sessions/:id/analyses", h.Analyze)
	r.GET("/sessions/:id/state", h.State)
	r.GET("/usage", h.Usage)
}

// Analyze runs the report pipeline against the caller's selected report in
// the session named by the path.
func (h *Handler) Analyze(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}
	ownerID := middleware.UserID(c)

	session, err := h.sessions.Get(c.Request.Context(), ownerID, id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	if h.reports.Extracting(ownerID) {
		httputil.RespondWithError(c, errors.State("the report is still being processed", nil))
		return
	}
	doc, ok := h.reports.Current(ownerID)
	if !ok {
		httputil.RespondWithError(c, errors.State("upload a report before requesting an analysis", nil))
		return
	}

	var info model.PatientInfo
	if !handler.BindJSON(c, &info) {
		return
	}

	result, err := h.analyzer.Analyze(c.Request.Context(), analysissvc.SessionContext{
		OwnerID: ownerID,
		Session: session,
	}, info, doc.ExtractedText)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, result)
}

func (h *Handler) State(c *gin.Context) {
	id, ok := handler.ParamUUID(c, "id")
	if !ok {
		return
	}
	ownerID := middleware.UserID(c)

	if _, err := h.sessions.Get(c.Request.Context(), ownerID, id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	_, hasReport := h.reports.Current(ownerID)
	httputil.RespondWithSuccess(c, gin.H{
		"session_id": id,
		"state":      h.analyzer.State(id, hasReport),
		"extracting": h.reports.Extracting(ownerID),
		"has_report": hasReport,
	})
}

func (h *Handler) Usage(c *gin.Context) {
	usage, err := h.analyzer.Usage(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, usage)
}
