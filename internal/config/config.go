// Package config loads the service configuration once at startup.
//
// Sources are layered with koanf: built-in defaults, then an optional YAML
// file, then environment variables (highest priority).
package config

import (
	"net"
	"strconv"
	"time"
)

// Config is the root configuration passed into every component.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	AI        AIConfig        `koanf:"ai"`
	Ollama    OllamaConfig    `koanf:"ollama"`
	Recommend RecommendConfig `koanf:"recommend"`
	Catalog   CatalogConfig   `koanf:"catalog"`
	Upload    UploadConfig    `koanf:"upload"`
	Storage   StorageConfig   `koanf:"storage"`
	Security  SecurityConfig  `koanf:"security"`
	Logging   LoggingConfig   `koanf:"logging"`
}

type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              int           `koanf:"port"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	RequestTimeout    time.Duration `koanf:"request_timeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
}

// AIConfig configures the generative model used for mood and recommendations.
type AIConfig struct {
	// Driver selects the model backend: gemini or ollama.
	Driver  string `koanf:"driver"`
	APIKey  string `koanf:"api_key"`
	Model   string `koanf:"model"`
	BaseURL string `koanf:"base_url"` // optional Gemini endpoint override

	Timeout      time.Duration `koanf:"timeout"`
	MaxRetries   int           `koanf:"max_retries"`
	RetryBackoff time.Duration `koanf:"retry_backoff"`

	MoodTemperature      float64 `koanf:"mood_temperature"`
	RecommendTemperature float64 `koanf:"recommend_temperature"`

	BreakerFailureRatio float64       `koanf:"breaker_failure_ratio"`
	BreakerMinRequests  int           `koanf:"breaker_min_requests"`
	BreakerOpenTimeout  time.Duration `koanf:"breaker_open_timeout"`
}

type OllamaConfig struct {
	Host  string `koanf:"host"`
	Model string `koanf:"model"`
}

// RecommendConfig is the recommendation policy. It is a product decision, so
// it lives in configuration rather than in prompt text.
type RecommendConfig struct {
	Count         int `koanf:"count"`
	MaxCount      int `koanf:"max_count"`
	MoodWeight    int `koanf:"mood_weight"`    // percent; 0 omits the weighting
	FamiliarCount int `koanf:"familiar_count"` // songs drawn from the caller's own tracks
}

// CatalogConfig configures album-art enrichment against the Spotify Web API.
type CatalogConfig struct {
	Enabled bool   `koanf:"enabled"`
	BaseURL string `koanf:"base_url"`

	// TokenSource is client_credentials or service.
	TokenSource     string `koanf:"token_source"`
	ClientID        string `koanf:"client_id"`
	ClientSecret    string `koanf:"client_secret"`
	TokenURL        string `koanf:"token_url"`
	TokenServiceURL string `koanf:"token_service_url"`

	PlaceholderArt string        `koanf:"placeholder_art"`
	Timeout        time.Duration `koanf:"timeout"`
	MaxRetries     int           `koanf:"max_retries"`
	RetryBackoff   time.Duration `koanf:"retry_backoff"`
	Concurrency    int           `koanf:"concurrency"`
	RatePerSecond  float64       `koanf:"rate_per_second"`
}

type UploadConfig struct {
	MaxBytes          int64    `koanf:"max_bytes"`
	AllowedExtensions []string `koanf:"allowed_extensions"`
}

// StorageConfig selects the profile store. Driver is sqlite or none.
type StorageConfig struct {
	Driver string `koanf:"driver"`
	Path   string `koanf:"path"`
}

type SecurityConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Addr returns the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}
