package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/melomatch/config.yaml",
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              5000,
			ReadHeaderTimeout: 15 * time.Second,
			RequestTimeout:    60 * time.Second,
			ShutdownTimeout:   10 * time.Second,
		},
		AI: AIConfig{
			Driver:               "gemini",
			Model:                "gemini-2.0-flash",
			Timeout:              30 * time.Second,
			MaxRetries:           3,
			RetryBackoff:         500 * time.Millisecond,
			MoodTemperature:      0.2,
			RecommendTemperature: 0.7,
			BreakerFailureRatio:  0.6,
			BreakerMinRequests:   5,
			BreakerOpenTimeout:   30 * time.Second,
		},
		Ollama: OllamaConfig{
			Host:  "http://localhost:11434",
			Model: "llava:7b",
		},
		Recommend: RecommendConfig{
			Count:         5,
			MaxCount:      20,
			MoodWeight:    75,
			FamiliarCount: 3,
		},
		Catalog: CatalogConfig{
			Enabled:         true,
			BaseURL:         "https://api.spotify.com/v1",
			TokenSource:     "client_credentials",
			TokenURL:        "https://accounts.spotify.com/api/token",
			TokenServiceURL: "http://localhost:5000",
			PlaceholderArt:  "https://placehold.co/300x300?text=No+Art",
			Timeout:         10 * time.Second,
			MaxRetries:      3,
			RetryBackoff:    500 * time.Millisecond,
			Concurrency:     4,
			RatePerSecond:   10,
		},
		Upload: UploadConfig{
			MaxBytes:          10 << 20,
			AllowedExtensions: []string{"png", "jpg", "jpeg", "gif", "webp"},
		},
		Storage: StorageConfig{
			Driver: "sqlite",
			Path:   "melomatch.db",
		},
		Security: SecurityConfig{
			CORSOrigins:       []string{"*"},
			RateLimitRequests: 60,
			RateLimitWindow:   time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Defaults(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: load file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envMappings maps environment variable names (lower-cased) to config paths.
// Variables not listed here are ignored.
var envMappings = map[string]string{
	"server_host":         "server.host",
	"port":                "server.port",
	"request_timeout":     "server.request_timeout",
	"read_header_timeout": "server.read_header_timeout",
	"shutdown_timeout":    "server.shutdown_timeout",

	"ai_driver":                "ai.driver",
	"gemini_api_key":           "ai.api_key",
	"gemini_model":             "ai.model",
	"gemini_base_url":          "ai.base_url",
	"ai_timeout":               "ai.timeout",
	"ai_max_retries":           "ai.max_retries",
	"ai_retry_backoff":         "ai.retry_backoff",
	"ai_mood_temperature":      "ai.mood_temperature",
	"ai_recommend_temperature": "ai.recommend_temperature",

	"ollama_host":  "ollama.host",
	"ollama_model": "ollama.model",

	"recommend_count":          "recommend.count",
	"recommend_max_count":      "recommend.max_count",
	"recommend_mood_weight":    "recommend.mood_weight",
	"recommend_familiar_count": "recommend.familiar_count",

	"catalog_enabled":         "catalog.enabled",
	"spotify_api_url":         "catalog.base_url",
	"spotify_token_source":    "catalog.token_source",
	"spotify_client_id":       "catalog.client_id",
	"spotify_client_secret":   "catalog.client_secret",
	"spotify_token_url":       "catalog.token_url",
	"token_service_url":       "catalog.token_service_url",
	"placeholder_art_url":     "catalog.placeholder_art",
	"spotify_timeout":         "catalog.timeout",
	"spotify_max_retries":     "catalog.max_retries",
	"spotify_retry_backoff":   "catalog.retry_backoff",
	"catalog_concurrency":     "catalog.concurrency",
	"spotify_rate_per_second": "catalog.rate_per_second",

	"upload_max_bytes":   "upload.max_bytes",
	"allowed_extensions": "upload.allowed_extensions",

	"storage_driver": "storage.driver",
	"storage_path":   "storage.path",

	"cors_origins":        "security.cors_origins",
	"rate_limit_requests": "security.rate_limit_requests",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",

	"log_level":  "logging.level",
	"log_format": "logging.format",
}

func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// sliceConfigPaths are parsed as comma-separated lists when set from the environment.
var sliceConfigPaths = []string{
	"upload.allowed_extensions",
	"security.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		raw, ok := k.Get(path).(string)
		if !ok || raw == "" {
			continue
		}
		parts := strings.Split(raw, ",")
		values := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				values = append(values, p)
			}
		}
		if err := k.Set(path, values); err != nil {
			return fmt.Errorf("config: set %s: %w", path, err)
		}
	}
	return nil
}
