package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/ewilliams-labs/melomatch/internal/core/domain"
	"github.com/ewilliams-labs/melomatch/internal/logging"
	"github.com/ewilliams-labs/melomatch/internal/metrics"
)

// Orchestrator coordinates mood extraction, recommendation and enrichment.
type Orchestrator struct {
	extractor   *MoodExtractor
	recommender *Recommender
	enricher    *Enricher
}

// NewOrchestrator constructs an Orchestrator.
func NewOrchestrator(extractor *MoodExtractor, recommender *Recommender, enricher *Enricher) *Orchestrator {
	return &Orchestrator{
		extractor:   extractor,
		recommender: recommender,
		enricher:    enricher,
	}
}

// AnalyzeImage extracts the mood of an uploaded image.
func (o *Orchestrator) AnalyzeImage(ctx context.Context, data []byte) (domain.MoodResult, error) {
	return o.extractor.Extract(ctx, data)
}

// RecommendSongs asks for count songs (0 selects the default) matching mood
// and tracks, parses the reply and attaches album art. Unparseable lines are
// dropped, so fewer than count songs may come back.
func (o *Orchestrator) RecommendSongs(ctx context.Context, mood string, tracks []domain.Track, count int) ([]domain.RecommendedSong, error) {
	// 1. Validate before spending a model call
	if strings.TrimSpace(mood) == "" {
		return nil, fmt.Errorf("%w: mood is required", domain.ErrInvalidArgument)
	}
	if len(tracks) == 0 {
		return nil, fmt.Errorf("%w: at least one track is required", domain.ErrInvalidArgument)
	}

	// 2. Ask the model
	n := o.recommender.Policy().ResolveCount(count)
	lines := o.recommender.Lines(ctx, mood, tracks, n)

	// 3. Parse the reply
	songs, dropped := domain.ParseRecommendations(lines)
	if dropped > 0 {
		metrics.RecommendationLinesDropped.Add(float64(dropped))
		logging.Ctx(ctx).Debug().
			Int("dropped", dropped).
			Int("kept", len(songs)).
			Msg("dropped malformed recommendation lines")
	}

	// 4. Attach ids and album art
	return o.enricher.Enrich(ctx, songs), nil
}
