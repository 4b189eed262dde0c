package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/ewilliams-labs/melomatch/internal/core/domain"
	"github.com/ewilliams-labs/melomatch/internal/core/ports"
	"github.com/ewilliams-labs/melomatch/internal/logging"
	"github.com/ewilliams-labs/melomatch/internal/metrics"
	"github.com/ewilliams-labs/melomatch/internal/worker"
)

// Enricher attaches an id and album art to each parsed song.
type Enricher struct {
	finder      ports.ArtworkFinder
	pool        *worker.Pool
	placeholder string
}

// NewEnricher constructs an Enricher. A nil finder disables catalog lookups
// and every song receives the placeholder.
func NewEnricher(finder ports.ArtworkFinder, pool *worker.Pool, placeholder string) *Enricher {
	if pool == nil {
		pool = worker.NewPool(1)
	}
	return &Enricher{
		finder:      finder,
		pool:        pool,
		placeholder: placeholder,
	}
}

// Enrich returns one RecommendedSong per input song, in order. Lookup
// failures never fail the batch; the placeholder is used instead.
func (e *Enricher) Enrich(ctx context.Context, songs []domain.Song) []domain.RecommendedSong {
	out := make([]domain.RecommendedSong, len(songs))
	for i, s := range songs {
		out[i] = domain.RecommendedSong{
			ID:     uuid.NewString(),
			Name:   s.Name,
			Artist: s.Artist,
		}
	}

	if e.finder == nil {
		metrics.ArtworkLookups.WithLabelValues("disabled").Add(float64(len(songs)))
	} else {
		// Jobs swallow their own errors, so ForEach only fails on cancellation.
		err := e.pool.ForEach(ctx, len(out), func(ctx context.Context, i int) error {
			out[i].AlbumArt = e.lookup(ctx, out[i].Name, out[i].Artist)
			return nil
		})
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("artwork enrichment interrupted")
		}
	}

	for i := range out {
		if out[i].AlbumArt == "" {
			out[i].AlbumArt = e.placeholder
		}
	}
	return out
}

func (e *Enricher) lookup(ctx context.Context, name, artist string) string {
	art, err := e.finder.FindArtwork(ctx, name, artist)
	switch {
	case err != nil:
		metrics.ArtworkLookups.WithLabelValues("error").Inc()
		logging.Ctx(ctx).Warn().Err(err).
			Str("song", name).
			Str("artist", artist).
			Msg("artwork lookup failed")
		return ""
	case art == "":
		metrics.ArtworkLookups.WithLabelValues("missing").Inc()
		return ""
	default:
		metrics.ArtworkLookups.WithLabelValues("found").Inc()
		return art
	}
}
