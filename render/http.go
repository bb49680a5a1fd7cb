package render

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// HTTP bridges a remote synthesis server behind the Renderer interface.
// The render request is POSTed as JSON; the response carries base64
// 16-bit PCM like the exec protocol.
type HTTP struct {
	endpoint string
	client   *http.Client
}

type httpResponse struct {
	PCMBase64  string            `json:"pcm_b16"`
	SampleRate int               `json:"sample_rate"`
	Channels   int               `json:"channels"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// NewHTTP targets a render endpoint. A nil client uses
// http.DefaultClient.
func NewHTTP(endpoint string, client *http.Client) *HTTP {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTP{endpoint: endpoint, client: client}
}

func (h *HTTP) Describe() string { return "http engine: " + h.endpoint }

func (h *HTTP) Render(ctx context.Context, cfg *Config) (*Result, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig
	}

	body, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal render request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build render request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("render request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("engine returned status %s: %s", resp.Status, bytes.TrimSpace(msg))
	}

	var payload httpResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode engine response: %w", err)
	}
	raw, err := base64.StdEncoding.DecodeString(payload.PCMBase64)
	if err != nil {
		return nil, fmt.Errorf("decode engine pcm: %w", err)
	}

	rate := payload.SampleRate
	if rate <= 0 {
		rate = cfg.SampleRate
	}
	channels := payload.Channels
	if channels <= 0 {
		channels = cfg.Channels
	}
	return &Result{
		PCM:        DecodePCM16(raw),
		Channels:   channels,
		SampleRate: rate,
		Metadata:   payload.Metadata,
	}, nil
}
