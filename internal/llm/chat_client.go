package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rxflow/substitute-gateway/internal/pkg/safehttp"
)

const defaultChatTimeout = 60 * time.Second

// ChatClient calls an OpenAI-compatible chat-completions endpoint.
type ChatClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// ChatOption configures the client.
type ChatOption func(*ChatClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ChatOption {
	return func(cc *ChatClient) { cc.httpClient = c }
}

// NewChatClient creates a client for baseURL (e.g. https://api.openai.com/v1).
// The base URL comes from operator configuration, so the default transport
// refuses private and loopback destinations; tests inject their own client.
func NewChatClient(baseURL, apiKey, model string, opts ...ChatOption) *ChatClient {
	cc := &ChatClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout:   defaultChatTimeout,
			Transport: safehttp.SafeTransport,
		},
	}
	for _, opt := range opts {
		opt(cc)
	}
	return cc
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Generate sends one chat completion request and returns the first choice.
func (c *ChatClient) Generate(ctx context.Context, system, user string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result chatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("empty completion response")
	}
	return result.Choices[0].Message.Content, nil
}

// ModelName returns the configured model identifier.
func (c *ChatClient) ModelName() string { return c.model }
