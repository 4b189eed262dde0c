package rest

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ewilliams-labs/melomatch/internal/core/services"
)

// Options configures the HTTP boundary.
type Options struct {
	MaxUploadBytes    int64
	AllowedExtensions []string
	RequestTimeout    time.Duration

	CORSOrigins       []string
	RateLimitRequests int
	RateLimitWindow   time.Duration
	RateLimitDisabled bool
}

// Handler manages the HTTP interface for our application.
type Handler struct {
	svc      *services.Orchestrator
	profiles *services.ProfileService // nil when no profile store is configured
	opts     Options
	allowed  map[string]struct{}
	router   chi.Router
}

// NewHandler initializes the HTTP adapter and sets up routes.
func NewHandler(svc *services.Orchestrator, profiles *services.ProfileService, opts Options) *Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	if len(opts.AllowedExtensions) == 0 {
		opts.AllowedExtensions = []string{"png", "jpg", "jpeg", "gif", "webp"}
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}

	h := &Handler{
		svc:      svc,
		profiles: profiles,
		opts:     opts,
		allowed:  extensionSet(opts.AllowedExtensions),
		router:   chi.NewRouter(),
	}

	// Register Routes
	h.routes()

	return h
}

// ServeHTTP satisfies the http.Handler interface.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// routes defines the mapping between URLs and methods.
func (h *Handler) routes() {
	r := h.router

	r.Use(chimiddleware.RequestID)
	r.Use(requestLogging)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: h.opts.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	// Health Check and metrics stay outside the rate limit
	r.Get("/health", h.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(h.rateLimit())
		r.Use(chimiddleware.Timeout(h.opts.RequestTimeout))

		// Mood and recommendations
		r.Post("/analyze-image", h.AnalyzeImage)
		r.Post("/recommend-songs", h.RecommendSongs)

		// User profiles
		r.Route("/api/user", func(r chi.Router) {
			r.Post("/", h.SaveUser)
			r.Get("/all", h.ListUsers)
			r.Get("/{userId}", h.GetUser)
		})
	})
}

func (h *Handler) rateLimit() func(http.Handler) http.Handler {
	if h.opts.RateLimitDisabled || h.opts.RateLimitRequests <= 0 {
		return func(next http.Handler) http.Handler {
			return next
		}
	}
	return httprate.Limit(
		h.opts.RateLimitRequests,
		h.opts.RateLimitWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusTooManyRequests, "Too many requests")
		}),
	)
}

// HealthCheck reports liveness without touching upstream services.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
