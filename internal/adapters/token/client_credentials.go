// Package token supplies Spotify bearer tokens, either through the OAuth2
// client credentials grant or from a sibling token service.
package token

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/ewilliams-labs/melomatch/internal/core/ports"
)

const defaultTokenURL = "https://accounts.spotify.com/api/token"

// ClientCredentials obtains app tokens with the client credentials grant.
// Tokens are cached by oauth2.ReuseTokenSource until shortly before expiry.
type ClientCredentials struct {
	source oauth2.TokenSource
}

var _ ports.CredentialProvider = (*ClientCredentials)(nil)

// NewClientCredentials builds a provider for the given app credentials.
// Token fetches are bounded by timeout rather than the caller's context, so
// one canceled request cannot fail a refresh other callers are waiting on.
func NewClientCredentials(clientID, clientSecret, tokenURL string, timeout time.Duration) *ClientCredentials {
	if tokenURL == "" {
		tokenURL = defaultTokenURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	cfg := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: timeout})
	return &ClientCredentials{
		source: oauth2.ReuseTokenSource(nil, cfg.TokenSource(ctx)),
	}
}

// AccessToken returns a valid access token, fetching a new one if needed.
func (c *ClientCredentials) AccessToken(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("token: client credentials: %w", err)
	}

	tok, err := c.source.Token()
	if err != nil {
		return "", fmt.Errorf("token: client credentials: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("token: client credentials: empty access token")
	}
	return tok.AccessToken, nil
}
