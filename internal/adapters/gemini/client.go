// Package gemini provides an adapter for Google's Gemini models.
// It sends prompts, optionally with an inline image, through the
// google.golang.org/genai SDK and returns the reply text.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/ewilliams-labs/melomatch/internal/core/ports"
)

const defaultModel = "gemini-2.0-flash"

// Config holds the Gemini connection settings.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string // optional endpoint override
	Timeout time.Duration
}

// Client implements ports.LanguageModel on top of the Gemini API.
type Client struct {
	models *genai.Models
	model  string
}

// compile-time interface assertion
var _ ports.LanguageModel = (*Client)(nil)

// NewClient builds a Gemini client. The context only scopes client setup.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("gemini: api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: strings.TrimRight(cfg.BaseURL, "/") + "/"}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	return &Client{models: client.Models, model: cfg.Model}, nil
}

// Generate sends the prompt (and image, if any) and returns the trimmed reply.
func (c *Client) Generate(ctx context.Context, prompt ports.Prompt) (string, error) {
	parts := make([]*genai.Part, 0, 2)
	if prompt.Image != nil {
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{
			MIMEType: prompt.Image.MIMEType,
			Data:     prompt.Image.Data,
		}})
	}
	parts = append(parts, &genai.Part{Text: prompt.Text})

	contents := []*genai.Content{{Role: "user", Parts: parts}}
	config := &genai.GenerateContentConfig{
		Temperature: ptr(prompt.Temperature),
	}

	resp, err := c.models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) && isClientError(apiErr.Code) {
			return "", fmt.Errorf("gemini: generate content: %w: %w", ports.ErrRejected, err)
		}
		return "", fmt.Errorf("gemini: generate content: %w", err)
	}

	text := extractResponseText(resp)
	if text == "" {
		return "", fmt.Errorf("gemini: empty response: %w", ports.ErrRejected)
	}
	return text, nil
}

// isClientError reports a 4xx status other than timeouts and rate limits.
func isClientError(code int) bool {
	return code >= 400 && code < 500 &&
		code != http.StatusRequestTimeout && code != http.StatusTooManyRequests
}

func extractResponseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			b.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(b.String())
}

func ptr[T any](v T) *T {
	return &v
}
