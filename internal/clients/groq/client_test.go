package groq

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/report-assistant/internal/model"
)

func testRequest() model.AnalysisRequest {
	age := 30
	return model.AnalysisRequest{
		PatientInfo: model.PatientInfo{Name: "Ali", Age: &age, Gender: model.GenderMale},
		ReportText:  "Hemoglobin: 13.5 g/dL",
	}
}

func TestGenerateEnglishAnalysis(t *testing.T) {
	var got completionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"  ### Medical Analysis Summary\nok  "}}]}`))
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.APIKey = "key"
	cfg.BaseURL = srv.URL
	client := NewClient(cfg, srv.Client())

	text, err := client.GenerateEnglishAnalysis(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "### Medical Analysis Summary\nok", text)

	assert.Equal(t, "llama-3.3-70b-versatile", got.Model)
	assert.Equal(t, 2000, got.MaxTokens)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.JSONEq(t, `{"patient_name":"Ali","age":30,"gender":"Male","report":"Hemoglobin: 13.5 g/dL"}`, got.Messages[1].Content)
}

func TestGenerateUrduScriptUsesUrduModel(t *testing.T) {
	var got completionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"Assalam o Alaikum"}}]}`))
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.APIKey = "key"
	cfg.BaseURL = srv.URL
	text, err := NewClient(cfg, srv.Client()).GenerateUrduScript(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "Assalam o Alaikum", text)
	assert.Equal(t, "llama-3.1-8b-instant", got.Model)
	assert.InDelta(t, 0.8, got.Temperature, 0.0001)
}

func TestAPIErrorIsDecoded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"tokens"}}`))
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.APIKey = "key"
	cfg.BaseURL = srv.URL
	_, err := NewClient(cfg, srv.Client()).GenerateEnglishAnalysis(context.Background(), testRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
	assert.Contains(t, err.Error(), "429")
}

func TestEmptyChoicesIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.APIKey = "key"
	cfg.BaseURL = srv.URL
	_, err := NewClient(cfg, srv.Client()).GenerateEnglishAnalysis(context.Background(), testRequest())
	assert.Error(t, err)
}

func TestMissingAPIKey(t *testing.T) {
	_, err := NewClient(DefaultConfig(), nil).GenerateEnglishAnalysis(context.Background(), testRequest())
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}
