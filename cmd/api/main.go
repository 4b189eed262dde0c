package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ewilliams-labs/melomatch/internal/adapters/gemini"
	"github.com/ewilliams-labs/melomatch/internal/adapters/ollama"
	"github.com/ewilliams-labs/melomatch/internal/adapters/resilient"
	"github.com/ewilliams-labs/melomatch/internal/adapters/rest"
	"github.com/ewilliams-labs/melomatch/internal/adapters/spotify"
	"github.com/ewilliams-labs/melomatch/internal/adapters/sqlite"
	"github.com/ewilliams-labs/melomatch/internal/adapters/token"
	"github.com/ewilliams-labs/melomatch/internal/config"
	"github.com/ewilliams-labs/melomatch/internal/core/ports"
	"github.com/ewilliams-labs/melomatch/internal/core/services"
	"github.com/ewilliams-labs/melomatch/internal/logging"
	"github.com/ewilliams-labs/melomatch/internal/worker"
)

func main() {
	// 1. Configuration
	// Crash early if required config is missing.
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Initialize "Driven" Adapters (The Tools)
	// -- Language model
	model, err := newLanguageModel(ctx, cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to initialize language model")
	}

	// -- Catalog adapter
	var finder ports.ArtworkFinder
	if cfg.Catalog.Enabled {
		finder = spotify.NewClient(spotify.Config{
			BaseURL:       cfg.Catalog.BaseURL,
			Timeout:       cfg.Catalog.Timeout,
			MaxRetries:    cfg.Catalog.MaxRetries,
			RetryBackoff:  cfg.Catalog.RetryBackoff,
			RatePerSecond: cfg.Catalog.RatePerSecond,
		}, newCredentialProvider(cfg.Catalog))
	} else {
		logging.Info().Msg("album art lookups disabled, placeholder art will be used")
	}

	// -- Profile store
	var profiles *services.ProfileService
	switch cfg.Storage.Driver {
	case "sqlite":
		store, err := sqlite.NewAdapter(cfg.Storage.Path)
		if err != nil {
			logging.Fatal().Err(err).Str("path", cfg.Storage.Path).Msg("failed to initialize database")
		}
		defer store.Close()
		profiles = services.NewProfileService(store)
	case "none", "":
		logging.Info().Msg("profile storage disabled")
	default:
		logging.Fatal().Str("driver", cfg.Storage.Driver).Msg("unknown storage driver")
	}

	// 3. Initialize Core Logic (The Driver)
	policy := services.Policy{
		Count:         cfg.Recommend.Count,
		MaxCount:      cfg.Recommend.MaxCount,
		MoodWeight:    cfg.Recommend.MoodWeight,
		FamiliarCount: cfg.Recommend.FamiliarCount,
	}
	svc := services.NewOrchestrator(
		services.NewMoodExtractor(model, float32(cfg.AI.MoodTemperature)),
		services.NewRecommender(model, policy, float32(cfg.AI.RecommendTemperature)),
		services.NewEnricher(finder, worker.NewPool(cfg.Catalog.Concurrency), cfg.Catalog.PlaceholderArt),
	)

	// 4. Initialize "Driving" Adapter (The Interface)
	handler := rest.NewHandler(svc, profiles, rest.Options{
		MaxUploadBytes:    cfg.Upload.MaxBytes,
		AllowedExtensions: cfg.Upload.AllowedExtensions,
		RequestTimeout:    cfg.Server.RequestTimeout,
		CORSOrigins:       cfg.Security.CORSOrigins,
		RateLimitRequests: cfg.Security.RateLimitRequests,
		RateLimitWindow:   cfg.Security.RateLimitWindow,
		RateLimitDisabled: cfg.Security.RateLimitDisabled,
	})

	// 5. Start the Server
	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	logging.Info().
		Str("addr", srv.Addr).
		Str("ai_driver", cfg.AI.Driver).
		Bool("catalog", cfg.Catalog.Enabled).
		Str("storage", cfg.Storage.Driver).
		Msg("melomatch API is running")

	serverErr := make(chan error, 1)
	go func() {
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			logging.Fatal().Err(err).Msg("server failed")
		}
	case <-ctx.Done():
		logging.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logging.Error().Err(err).Msg("shutdown error")
		}
	}
}

// newLanguageModel builds the configured model driver behind retry and a
// circuit breaker.
func newLanguageModel(ctx context.Context, cfg *config.Config) (ports.LanguageModel, error) {
	var base ports.LanguageModel
	switch cfg.AI.Driver {
	case "gemini":
		client, err := gemini.NewClient(ctx, gemini.Config{
			APIKey:  cfg.AI.APIKey,
			Model:   cfg.AI.Model,
			BaseURL: cfg.AI.BaseURL,
			Timeout: cfg.AI.Timeout,
		})
		if err != nil {
			return nil, err
		}
		base = client
	case "ollama":
		base = ollama.NewClient(cfg.Ollama.Host, cfg.Ollama.Model, cfg.AI.Timeout)
	default:
		return nil, fmt.Errorf("unknown ai driver %q", cfg.AI.Driver)
	}

	return resilient.NewModel(base, resilient.Settings{
		Name:           cfg.AI.Driver,
		MaxAttempts:    cfg.AI.MaxRetries,
		InitialBackoff: cfg.AI.RetryBackoff,
		FailureRatio:   cfg.AI.BreakerFailureRatio,
		MinRequests:    uint32(cfg.AI.BreakerMinRequests),
		OpenTimeout:    cfg.AI.BreakerOpenTimeout,
	}), nil
}

func newCredentialProvider(cfg config.CatalogConfig) ports.CredentialProvider {
	if cfg.TokenSource == "service" {
		return token.NewService(cfg.TokenServiceURL, cfg.Timeout)
	}
	return token.NewClientCredentials(cfg.ClientID, cfg.ClientSecret, cfg.TokenURL, cfg.Timeout)
}
