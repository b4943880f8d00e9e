package npc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/valpatel/tritium-sc/engine-core/errkind"
)

// LLMClient is the minimal surface the think scheduler needs from a
// language model host. Any HTTP chat/completion endpoint can satisfy it.
type LLMClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// OllamaClient talks to an Ollama-compatible /api/generate endpoint.
type OllamaClient struct {
	Host    string
	Model   string
	Timeout time.Duration
	HTTP    *http.Client
}

// NewOllamaClient returns a client with sane defaults applied.
func NewOllamaClient(host, model string, timeout time.Duration) *OllamaClient {
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	return &OllamaClient{
		Host:    host,
		Model:   model,
		Timeout: timeout,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Complete posts the prompt and returns the model's raw text output.
func (c *OllamaClient) Complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{Model: c.Model, Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("marshal generate request: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Host+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", errkind.New(errkind.ResourceUnavailable, "llm generate", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", errkind.New(errkind.ResourceUnavailable, "llm generate",
			fmt.Errorf("status %d", resp.StatusCode))
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", errkind.New(errkind.TransientIO, "llm generate read", err)
	}
	var out generateResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", errkind.New(errkind.ProtocolError, "llm generate decode", err)
	}
	return out.Response, nil
}
