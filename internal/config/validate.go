package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}

	switch c.AI.Driver {
	case "gemini":
		if strings.TrimSpace(c.AI.APIKey) == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY is required when ai.driver is gemini"))
		}
	case "ollama":
		if strings.TrimSpace(c.Ollama.Model) == "" {
			errs = append(errs, errors.New("ollama.model is required when ai.driver is ollama"))
		}
	default:
		errs = append(errs, fmt.Errorf("ai.driver must be gemini or ollama, got %q", c.AI.Driver))
	}
	if c.AI.MoodTemperature < 0 || c.AI.MoodTemperature > 2 {
		errs = append(errs, fmt.Errorf("ai.mood_temperature must be between 0 and 2, got %v", c.AI.MoodTemperature))
	}
	if c.AI.RecommendTemperature < 0 || c.AI.RecommendTemperature > 2 {
		errs = append(errs, fmt.Errorf("ai.recommend_temperature must be between 0 and 2, got %v", c.AI.RecommendTemperature))
	}

	r := c.Recommend
	if r.MaxCount < 1 {
		errs = append(errs, fmt.Errorf("recommend.max_count must be positive, got %d", r.MaxCount))
	}
	if r.Count < 1 || r.Count > r.MaxCount {
		errs = append(errs, fmt.Errorf("recommend.count must be between 1 and %d, got %d", r.MaxCount, r.Count))
	}
	if r.MoodWeight < 0 || r.MoodWeight > 100 {
		errs = append(errs, fmt.Errorf("recommend.mood_weight must be a percentage, got %d", r.MoodWeight))
	}
	if r.FamiliarCount < 0 || r.FamiliarCount > r.Count {
		errs = append(errs, fmt.Errorf("recommend.familiar_count must be between 0 and recommend.count, got %d", r.FamiliarCount))
	}

	if c.Catalog.Enabled {
		switch c.Catalog.TokenSource {
		case "client_credentials":
			if c.Catalog.ClientID == "" || c.Catalog.ClientSecret == "" {
				errs = append(errs, errors.New("SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET are required for client_credentials"))
			}
		case "service":
			if c.Catalog.TokenServiceURL == "" {
				errs = append(errs, errors.New("TOKEN_SERVICE_URL is required when catalog.token_source is service"))
			}
		default:
			errs = append(errs, fmt.Errorf("catalog.token_source must be client_credentials or service, got %q", c.Catalog.TokenSource))
		}
		if c.Catalog.Concurrency < 1 {
			errs = append(errs, fmt.Errorf("catalog.concurrency must be positive, got %d", c.Catalog.Concurrency))
		}
	}
	if strings.TrimSpace(c.Catalog.PlaceholderArt) == "" {
		errs = append(errs, errors.New("catalog.placeholder_art must not be empty"))
	}

	if c.Upload.MaxBytes <= 0 {
		errs = append(errs, fmt.Errorf("upload.max_bytes must be positive, got %d", c.Upload.MaxBytes))
	}
	if len(c.Upload.AllowedExtensions) == 0 {
		errs = append(errs, errors.New("upload.allowed_extensions must not be empty"))
	}

	switch c.Storage.Driver {
	case "none":
	case "sqlite":
		if c.Storage.Path == "" {
			errs = append(errs, errors.New("storage.path is required for the sqlite driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver must be sqlite or none, got %q", c.Storage.Driver))
	}

	return errors.Join(errs...)
}
