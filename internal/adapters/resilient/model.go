// Package resilient wraps a language model with bounded retries and a
// circuit breaker so a failing upstream sheds load instead of piling up.
package resilient

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/ewilliams-labs/melomatch/internal/core/ports"
	"github.com/ewilliams-labs/melomatch/internal/logging"
	"github.com/ewilliams-labs/melomatch/internal/metrics"
)

// Settings configures retry and breaker behavior.
type Settings struct {
	Name           string
	MaxAttempts    int
	InitialBackoff time.Duration
	FailureRatio   float64
	MinRequests    uint32
	OpenTimeout    time.Duration
}

// Model is a ports.LanguageModel guarded by retry and circuit breaker.
type Model struct {
	next     ports.LanguageModel
	cb       *gobreaker.CircuitBreaker[string]
	name     string
	attempts int
	backoff  time.Duration
}

var _ ports.LanguageModel = (*Model)(nil)

// NewModel wraps next. Each call retries up to MaxAttempts times with
// exponential backoff; the whole retry sequence counts as one breaker request.
func NewModel(next ports.LanguageModel, s Settings) *Model {
	if s.Name == "" {
		s.Name = "language-model"
	}
	if s.MaxAttempts < 1 {
		s.MaxAttempts = 1
	}
	if s.InitialBackoff <= 0 {
		s.InitialBackoff = 500 * time.Millisecond
	}
	if s.FailureRatio <= 0 || s.FailureRatio > 1 {
		s.FailureRatio = 0.6
	}
	if s.MinRequests == 0 {
		s.MinRequests = 5
	}
	if s.OpenTimeout <= 0 {
		s.OpenTimeout = 30 * time.Second
	}

	metrics.CircuitBreakerState.WithLabelValues(s.Name).Set(0)

	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= s.FailureRatio
			if shouldTrip {
				logging.Warn().
					Str("breaker", s.Name).
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("[CIRCUIT BREAKER] Opening circuit")
			}
			return shouldTrip
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("[CIRCUIT BREAKER] State transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
		// A caller hanging up or a rejected request says nothing about
		// upstream health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, ports.ErrRejected)
		},
	})

	return &Model{
		next:     next,
		cb:       cb,
		name:     s.Name,
		attempts: s.MaxAttempts,
		backoff:  s.InitialBackoff,
	}
}

// Generate runs the prompt through the breaker and retry policy.
func (m *Model) Generate(ctx context.Context, prompt ports.Prompt) (string, error) {
	start := time.Now()
	reply, err := m.cb.Execute(func() (string, error) {
		return m.generateWithRetry(ctx, prompt)
	})
	metrics.UpstreamDuration.WithLabelValues(m.name).Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.UpstreamRequests.WithLabelValues(m.name, "rejected").Inc()
			logging.Ctx(ctx).Warn().Err(err).Str("breaker", m.name).Msg("[CIRCUIT BREAKER] Request rejected")
		} else {
			metrics.UpstreamRequests.WithLabelValues(m.name, "failure").Inc()
		}
		return "", err
	}

	metrics.UpstreamRequests.WithLabelValues(m.name, "success").Inc()
	return reply, nil
}

// State reports the breaker state.
func (m *Model) State() gobreaker.State {
	return m.cb.State()
}

func (m *Model) generateWithRetry(ctx context.Context, prompt ports.Prompt) (string, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = m.backoff
	b.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(m.attempts-1)), ctx)

	attempt := 0
	operation := func() (string, error) {
		attempt++
		reply, err := m.next.Generate(ctx, prompt)
		if err != nil && (ctx.Err() != nil || errors.Is(err, ports.ErrRejected)) {
			return "", backoff.Permanent(err)
		}
		return reply, err
	}
	notify := func(err error, wait time.Duration) {
		logging.Ctx(ctx).Warn().Err(err).
			Str("upstream", m.name).
			Int("attempt", attempt).
			Int("max_attempts", m.attempts).
			Dur("backoff", wait).
			Msg("model call failed, retrying")
	}

	return backoff.RetryNotifyWithData(operation, policy, notify)
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
