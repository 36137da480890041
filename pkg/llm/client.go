// Package llm is a minimal client for OpenAI-compatible chat completion APIs.
// Every call is a single POST; callers decide what to do on failure.
package llm

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
)

var (
	ErrEmptyResponse = errors.New("llm: response has no choices")
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
	}
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// CompleteJSON sends the conversation in JSON mode and decodes the first
// choice into out
func (c *Client) CompleteJSON(ctx context.Context, messages []Message, out interface{}) error {
	content, err := c.complete(ctx, messages, &responseFormat{Type: "json_object"})
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(stripCodeFence(content)), out); err != nil {
		return fmt.Errorf("llm: decode structured output: %w", err)
	}
	return nil
}

func (c *Client) complete(ctx context.Context, messages []Message, format *responseFormat) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:          c.model,
		Messages:       messages,
		Temperature:    0.3,
		ResponseFormat: format,
	})
	if err != nil {
		return "", fmt.Errorf("llm: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("llm: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm: send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("llm: read response: %w", err)
	}

	var decoded chatResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("llm: decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		if decoded.Error != nil {
			return "", fmt.Errorf("llm: status %d: %s", resp.StatusCode, decoded.Error.Message)
		}
		return "", fmt.Errorf("llm: status %d", resp.StatusCode)
	}
	if len(decoded.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return decoded.Choices[0].Message.Content, nil
}

// some models wrap JSON mode output in ```json fences anyway
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
