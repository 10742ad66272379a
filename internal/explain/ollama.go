package explain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OllamaSummarizer generates summaries using a local Ollama server.
// Recommended for production: decision content stays on-premises and
// never leaves the customer's network.
type OllamaSummarizer struct {
	baseURL    string
	chatModel  string
	httpClient *http.Client
}

// NewOllamaSummarizer creates a summarizer that calls Ollama's generate API.
func NewOllamaSummarizer(baseURL, chatModel string) *OllamaSummarizer {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &OllamaSummarizer{
		baseURL:   baseURL,
		chatModel: chatModel,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
}

// Summarize sends the decision facts to Ollama and returns the model's text.
func (s *OllamaSummarizer) Summarize(ctx context.Context, req Request) (string, error) {
	reqBody, err := json.Marshal(ollamaGenerateRequest{
		Model:  s.chatModel,
		Prompt: req.Prompt(),
		Stream: false,
	})
	if err != nil {
		return "", fmt.Errorf("ollama: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/generate", bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("ollama: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("ollama: send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("ollama: status %d: %s", resp.StatusCode, string(body))
	}

	var result ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("ollama: decode response: %w", err)
	}

	if strings.TrimSpace(result.Response) == "" {
		return "", fmt.Errorf("ollama: empty response returned")
	}

	return strings.TrimSpace(result.Response), nil
}

// Reachable reports whether the Ollama server answers on its base URL.
// Used by provider auto-detection at startup.
func (s *OllamaSummarizer) Reachable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
