// Package spotify implements an album artwork lookup against the Spotify Web API.
package spotify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/ewilliams-labs/melomatch/internal/core/ports"
)

const defaultBaseURL = "https://api.spotify.com/v1"

// Config controls the Spotify client.
type Config struct {
	BaseURL       string
	Timeout       time.Duration
	MaxRetries    int
	RetryBackoff  time.Duration
	RatePerSecond float64
}

// Client is an HTTP client for the Spotify adapter.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	tokens      ports.CredentialProvider
	limiter     *rate.Limiter
	maxRetries  int
	baseBackoff time.Duration
}

// compile-time interface assertion
var _ ports.ArtworkFinder = (*Client)(nil)

// NewClient constructs a new Spotify client. Every request carries a bearer
// token obtained from tokens.
func NewClient(cfg Config, tokens ports.CredentialProvider) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RatePerSecond > 0 {
		burst := int(cfg.RatePerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}

	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		baseURL:     baseURL,
		tokens:      tokens,
		limiter:     limiter,
		maxRetries:  cfg.MaxRetries,
		baseBackoff: cfg.RetryBackoff,
	}
}

func (c *Client) authorize(ctx context.Context, req *http.Request) error {
	if c.tokens == nil {
		return fmt.Errorf("spotify adapter: no credential provider configured")
	}
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return fmt.Errorf("spotify adapter: access token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}
