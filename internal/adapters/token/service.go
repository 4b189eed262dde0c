package token

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/ewilliams-labs/melomatch/internal/core/ports"
)

// Service fetches access tokens from the token service endpoint
// GET /get-access-token, which replies {"accessToken": "..."}.
type Service struct {
	baseURL    string
	httpClient *http.Client
}

var _ ports.CredentialProvider = (*Service)(nil)

type serviceResponse struct {
	AccessToken string `json:"accessToken"`
}

func NewService(baseURL string, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Service{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (s *Service) AccessToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/get-access-token", nil)
	if err != nil {
		return "", fmt.Errorf("token: build request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token: unexpected status %d", resp.StatusCode)
	}

	var body serviceResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("token: decode response: %w", err)
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("token: empty access token")
	}

	return body.AccessToken, nil
}
