package groq

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jwalitptl/report-assistant/internal/model"
	"github.com/jwalitptl/report-assistant/pkg/circuitbreaker"
)

const (
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	completionPath = "/chat/completions"
)

var ErrMissingAPIKey = errors.New("groq api key is not configured")

// ModelConfig selects the model and sampling for one capability.
type ModelConfig struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	English ModelConfig
	Urdu    ModelConfig
}

// DefaultConfig returns the models and sampling used in production.
func DefaultConfig() Config {
	return Config{
		BaseURL: DefaultBaseURL,
		Timeout: 60 * time.Second,
		English: ModelConfig{Model: "llama-3.3-70b-versatile", Temperature: 0.7, MaxTokens: 2000},
		Urdu:    ModelConfig{Model: "llama-3.1-8b-instant", Temperature: 0.8, MaxTokens: 1500},
	}
}

// Client calls the Groq OpenAI-compatible chat completions API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	cb         *circuitbreaker.CircuitBreaker
}

func NewClient(cfg Config, httpClient *http.Client) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "groq",
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		}),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// GenerateEnglishAnalysis returns the four-section English analysis.
func (c *Client) GenerateEnglishAnalysis(ctx context.Context, req model.AnalysisRequest) (string, error) {
	return c.complete(ctx, c.cfg.English, englishSystemPrompt, req)
}

// GenerateUrduScript returns a conversational Roman Urdu script for speech.
func (c *Client) GenerateUrduScript(ctx context.Context, req model.AnalysisRequest) (string, error) {
	return c.complete(ctx, c.cfg.Urdu, urduSystemPrompt, req)
}

func (c *Client) complete(ctx context.Context, mc ModelConfig, systemPrompt string, req model.AnalysisRequest) (string, error) {
	if c.cfg.APIKey == "" {
		return "", ErrMissingAPIKey
	}

	userContent, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode analysis request: %w", err)
	}

	payload := completionRequest{
		Model: mc.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: string(userContent)},
		},
		Temperature: mc.Temperature,
		MaxTokens:   mc.MaxTokens,
	}

	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(payload); err != nil {
		return "", fmt.Errorf("encode completion payload: %w", err)
	}

	var content string
	err = c.cb.Execute(func() error {
		var callErr error
		content, callErr = c.do(ctx, buf.Bytes())
		return callErr
	})
	if err != nil {
		return "", err
	}
	return content, nil
}

func (c *Client) do(ctx context.Context, body []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.cfg.BaseURL, "/")+completionPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create completion request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("groq request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return "", decodeAPIError(resp)
	}

	var response completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("decode completion response: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", errors.New("no completion returned")
	}

	content := strings.TrimSpace(response.Choices[0].Message.Content)
	if content == "" {
		return "", errors.New("empty completion returned")
	}
	return content, nil
}

func decodeAPIError(resp *http.Response) error {
	var apiErr struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		return fmt.Errorf("groq api error: status %d type %s message %s", resp.StatusCode, apiErr.Error.Type, apiErr.Error.Message)
	}
	return fmt.Errorf("groq api error: status %d body %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
