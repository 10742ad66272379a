package explain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// OpenAISummarizer generates summaries using the OpenAI chat completions API.
type OpenAISummarizer struct {
	apiKey     string
	chatModel  string
	baseURL    string
	httpClient *http.Client
}

// NewOpenAISummarizer creates a summarizer backed by OpenAI.
func NewOpenAISummarizer(apiKey, chatModel string) *OpenAISummarizer {
	return &OpenAISummarizer{
		apiKey:     apiKey,
		chatModel:  chatModel,
		baseURL:    "https://api.openai.com",
		httpClient: &http.Client{},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Summarize sends the decision facts to OpenAI and returns the model's text.
func (s *OpenAISummarizer) Summarize(ctx context.Context, req Request) (string, error) {
	reqBody, err := json.Marshal(chatRequest{
		Model: s.chatModel,
		Messages: []chatMessage{
			{Role: "system", Content: "You write short factual explanations of AI decisions for compliance reviewers."},
			{Role: "user", Content: req.Prompt()},
		},
		Temperature: 0.2,
		MaxTokens:   200,
	})
	if err != nil {
		return "", fmt.Errorf("explain: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("explain: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("explain: send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("explain: read response: %w", err)
	}

	var result chatResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("explain: unmarshal response: %w", err)
	}

	if result.Error != nil {
		return "", fmt.Errorf("explain: openai error: %s: %s", result.Error.Type, result.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("explain: unexpected status %d: %s", resp.StatusCode, string(body))
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("explain: empty completion returned")
	}

	return strings.TrimSpace(result.Choices[0].Message.Content), nil
}
