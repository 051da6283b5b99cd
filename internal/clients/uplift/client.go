package uplift

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
	DefaultBaseURL      = "https://api.upliftai.org/v1"
	DefaultVoiceID      = "v_8eelc901"
	DefaultOutputFormat = "MP3_22050_128"

	synthesisPath = "/synthesis/text-to-speech"

	// Audio larger than this is rejected rather than buffered.
	maxAudioBytes = 32 << 20
)

var ErrMissingAPIKey = errors.New("upliftai api key is not configured")

type Config struct {
	APIKey       string
	BaseURL      string
	VoiceID      string
	OutputFormat string
	Timeout      time.Duration
}

// Client calls the UpliftAI text-to-speech API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	cb         *circuitbreaker.CircuitBreaker
}

func NewClient(cfg Config, httpClient *http.Client) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.VoiceID == "" {
		cfg.VoiceID = DefaultVoiceID
	}
	if cfg.OutputFormat == "" {
		cfg.OutputFormat = DefaultOutputFormat
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "upliftai",
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		}),
	}
}

type synthesisRequest struct {
	VoiceID      string `json:"voiceId"`
	Text         string `json:"text"`
	OutputFormat string `json:"outputFormat"`
}

// SynthesizeSpeech converts text to playable audio.
func (c *Client) SynthesizeSpeech(ctx context.Context, text string) (*model.Audio, error) {
	if c.cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("no text to synthesize")
	}

	body, err := json.Marshal(synthesisRequest{
		VoiceID:      c.cfg.VoiceID,
		Text:         text,
		OutputFormat: c.cfg.OutputFormat,
	})
	if err != nil {
		return nil, fmt.Errorf("encode synthesis payload: %w", err)
	}

	var audio *model.Audio
	err = c.cb.Execute(func() error {
		var callErr error
		audio, callErr = c.do(ctx, body)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return audio, nil
}

func (c *Client) do(ctx context.Context, body []byte) (*model.Audio, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.cfg.BaseURL, "/")+synthesisPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create synthesis request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upliftai request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("upliftai api error: status %d body %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("empty audio returned")
	}
	if len(data) > maxAudioBytes {
		return nil, errors.New("audio exceeds size limit")
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" || strings.HasPrefix(contentType, "application/octet-stream") {
		contentType = "audio/mpeg"
	}
	return &model.Audio{Data: data, ContentType: contentType}, nil
}
