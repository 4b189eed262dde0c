// Package ollama provides an adapter for a local Ollama instance.
// It sends prompts, optionally with an image, to the chat endpoint of a
// vision-capable model and returns the assistant reply.
package ollama

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ewilliams-labs/melomatch/internal/core/ports"
	"github.com/goccy/go-json"
)

const (
	defaultBaseURL = "http://localhost:11434"
	defaultModel   = "llava:7b"
)

type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

var _ ports.LanguageModel = (*Client)(nil)

type chatMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type chatOptions struct {
	Temperature float32 `json:"temperature"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  chatOptions   `json:"options"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Error   string      `json:"error,omitempty"`
}

func NewClient(baseURL, model string, timeout time.Duration) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if model == "" {
		model = defaultModel
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) Generate(ctx context.Context, prompt ports.Prompt) (string, error) {
	msg := chatMessage{Role: "user", Content: prompt.Text}
	if prompt.Image != nil {
		msg.Images = []string{base64.StdEncoding.EncodeToString(prompt.Image.Data)}
	}

	payload := chatRequest{
		Model:    c.model,
		Stream:   false,
		Messages: []chatMessage{msg},
		Options:  chatOptions{Temperature: prompt.Temperature},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("ollama: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("ollama: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if isClientError(resp.StatusCode) {
			return "", fmt.Errorf("ollama: unexpected status %d: %w", resp.StatusCode, ports.ErrRejected)
		}
		return "", fmt.Errorf("ollama: unexpected status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("ollama: decode response: %w", err)
	}
	if parsed.Error != "" {
		return "", fmt.Errorf("ollama: %s: %w", parsed.Error, ports.ErrRejected)
	}

	reply := strings.TrimSpace(parsed.Message.Content)
	if reply == "" {
		return "", fmt.Errorf("ollama: empty response: %w", ports.ErrRejected)
	}

	return reply, nil
}

// isClientError reports a 4xx status other than timeouts and rate limits.
func isClientError(code int) bool {
	return code >= 400 && code < 500 &&
		code != http.StatusRequestTimeout && code != http.StatusTooManyRequests
}
