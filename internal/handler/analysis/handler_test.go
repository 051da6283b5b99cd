package analysis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/report-assistant/internal/middleware"
	"github.com/jwalitptl/report-assistant/internal/model"
	analysissvc "github.com/jwalitptl/report-assistant/internal/service/analysis"
	"github.com/jwalitptl/report-assistant/pkg/errors"
	"github.com/jwalitptl/report-assistant/pkg/validator"
)

type fakeAnalyzer struct {
	called   bool
	gotInfo  model.PatientInfo
	gotText  string
	gotSC    analysissvc.SessionContext
	err      error
	state    model.AnalysisState
	usageErr error
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, sc analysissvc.SessionContext, info model.PatientInfo, reportText string) (*model.AnalysisResult, error) {
	f.called = true
	f.gotSC, f.gotInfo, f.gotText = sc, info, reportText
	if f.err != nil {
		return nil, f.err
	}
	return &model.AnalysisResult{
		SessionID:      sc.Session.ID,
		State:          model.StateCompleted,
		EnglishSummary: "### Medical Analysis Summary",
		Notices:        []model.Notice{{Step: model.StepSpeechSynthesis, Message: "audio unavailable"}},
	}, nil
}

func (f *fakeAnalyzer) State(sessionID uuid.UUID, hasReport bool) model.AnalysisState {
	if f.state != "" {
		return f.state
	}
	if hasReport {
		return model.StateAwaitingPatientInfo
	}
	return model.StateIdle
}

func (f *fakeAnalyzer) Usage(ctx context.Context, ownerID uuid.UUID) (*model.Usage, error) {
	if f.usageErr != nil {
		return nil, f.usageErr
	}
	return &model.Usage{Used: 3, Limit: 15, Remaining: 12}, nil
}

type fakeSessions struct {
	sessions map[uuid.UUID]*model.Session
}

func (f *fakeSessions) Get(ctx context.Context, ownerID, id uuid.UUID) (*model.Session, error) {
	s, ok := f.sessions[id]
	if !ok || s.OwnerID != ownerID {
		return nil, errors.NotFound("session", nil)
	}
	return s, nil
}

type fakeReports struct {
	doc        *model.ReportDocument
	extracting bool
}

func (f *fakeReports) Current(ownerID uuid.UUID) (*model.ReportDocument, bool) {
	return f.doc, f.doc != nil
}

func (f *fakeReports) Extracting(ownerID uuid.UUID) bool {
	return f.extracting
}

type fixture struct {
	router   *gin.Engine
	analyzer *fakeAnalyzer
	reports  *fakeReports
	session  *model.Session
}

func newFixture() *fixture {
	gin.SetMode(gin.TestMode)
	validator.Register()
	owner := uuid.New()
	session := &model.Session{OwnerID: owner, Title: "t"}
	session.ID = uuid.New()

	f := &fixture{
		analyzer: &fakeAnalyzer{},
		reports:  &fakeReports{doc: &model.ReportDocument{ID: uuid.New(), OwnerID: owner, ExtractedText: "Hemoglobin: 13.5 g/dL"}},
		session:  session,
	}
	sessions := &fakeSessions{sessions: map[uuid.UUID]*model.Session{session.ID: session}}

	r := gin.New()
	api := r.Group("/api/v1")
	api.Use(func(c *gin.Context) {
		c.Set(middleware.ContextPrincipal, &model.Principal{UserID: owner})
		c.Next()
	})
	NewHandler(f.analyzer, sessions, f.reports).RegisterRoutes(api)
	f.router = r
	return f
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) analyzePath() string {
	return "/api/v1/sessions/" + f.session.ID.String() + "/analyses"
}

func TestAnalyze(t *testing.T) {
	f := newFixture()

	w := f.do(http.MethodPost, f.analyzePath(), `{"name":"Ali","age":30,"gender":"Male"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	require.True(t, f.analyzer.called)
	assert.Equal(t, "Ali", f.analyzer.gotInfo.Name)
	assert.Equal(t, 30, f.analyzer.gotInfo.AgeValue())
	assert.Equal(t, "Hemoglobin: 13.5 g/dL", f.analyzer.gotText)
	assert.Equal(t, f.session.ID, f.analyzer.gotSC.Session.ID)

	var resp struct {
		Data model.AnalysisResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, model.StateCompleted, resp.Data.State)
	require.Len(t, resp.Data.Notices, 1)
	assert.Empty(t, resp.Data.UrduAudioURL)
}

func TestAnalyzeValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		msg  string
	}{
		{"blank name", `{"name":"  ","age":30,"gender":"Male"}`, "name is required"},
		{"missing age", `{"name":"Ali","gender":"Male"}`, "age is required"},
		{"age over limit", `{"name":"Ali","age":121,"gender":"Male"}`, "age must not exceed 120"},
		{"bad gender", `{"name":"Ali","age":30,"gender":"male"}`, "gender must be one of"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			w := f.do(http.MethodPost, f.analyzePath(), tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tt.msg)
			assert.False(t, f.analyzer.called)
		})
	}
}

func TestAnalyzeAgeZeroAccepted(t *testing.T) {
	f := newFixture()
	w := f.do(http.MethodPost, f.analyzePath(), `{"name":"Baby","age":0,"gender":"Other"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 0, f.analyzer.gotInfo.AgeValue())
}

func TestAnalyzePreconditions(t *testing.T) {
	t.Run("unknown session", func(t *testing.T) {
		f := newFixture()
		w := f.do(http.MethodPost, "/api/v1/sessions/"+uuid.NewString()+"/analyses", `{"name":"Ali","age":30,"gender":"Male"}`)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("no report selected", func(t *testing.T) {
		f := newFixture()
		f.reports.doc = nil
		w := f.do(http.MethodPost, f.analyzePath(), `{"name":"Ali","age":30,"gender":"Male"}`)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, w.Body.String(), "upload a report")
		assert.False(t, f.analyzer.called)
	})

	t.Run("still extracting", func(t *testing.T) {
		f := newFixture()
		f.reports.extracting = true
		w := f.do(http.MethodPost, f.analyzePath(), `{"name":"Ali","age":30,"gender":"Male"}`)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.False(t, f.analyzer.called)
	})

	t.Run("quota exceeded", func(t *testing.T) {
		f := newFixture()
		f.analyzer.err = errors.QuotaExceeded("daily analysis limit reached")
		w := f.do(http.MethodPost, f.analyzePath(), `{"name":"Ali","age":30,"gender":"Male"}`)
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
	})
}

func TestState(t *testing.T) {
	f := newFixture()
	w := f.do(http.MethodGet, "/api/v1/sessions/"+f.session.ID.String()+"/state", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			State     model.AnalysisState `json:"state"`
			HasReport bool                `json:"has_report"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, model.StateAwaitingPatientInfo, resp.Data.State)
	assert.True(t, resp.Data.HasReport)

	f.reports.doc = nil
	w = f.do(http.MethodGet, "/api/v1/sessions/"+f.session.ID.String()+"/state", "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, model.StateIdle, resp.Data.State)
}

func TestUsage(t *testing.T) {
	f := newFixture()
	w := f.do(http.MethodGet, "/api/v1/usage", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"data":{"used":3,"limit":15,"remaining":12}}`, w.Body.String())
}
