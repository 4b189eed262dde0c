package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/ewilliams-labs/melomatch/internal/core/domain"
	"github.com/ewilliams-labs/melomatch/internal/core/ports"
	"github.com/ewilliams-labs/melomatch/internal/logging"
)

// Policy controls how many songs are asked for and how they are balanced.
type Policy struct {
	Count         int // default number of recommendations
	MaxCount      int // upper bound for a caller-supplied count
	MoodWeight    int // percent of weight given to the mood; 0 omits the guidance
	FamiliarCount int // songs taken from the caller's own tracks; 0 asks for new songs only
}

// ResolveCount returns the number of songs to request. A requested value of
// zero selects the default; anything else is clamped to [1, MaxCount].
func (p Policy) ResolveCount(requested int) int {
	count := p.Count
	if requested > 0 {
		count = requested
	}
	if count < 1 {
		count = 1
	}
	if p.MaxCount > 0 && count > p.MaxCount {
		count = p.MaxCount
	}
	return count
}

// Recommender asks the model for songs that fit a mood and a listening history.
type Recommender struct {
	model       ports.LanguageModel
	policy      Policy
	temperature float32
}

// NewRecommender constructs a Recommender.
func NewRecommender(model ports.LanguageModel, policy Policy, temperature float32) *Recommender {
	return &Recommender{
		model:       model,
		policy:      policy,
		temperature: temperature,
	}
}

// Policy returns the recommendation policy.
func (r *Recommender) Policy() Policy {
	return r.policy
}

// BuildPrompt renders the recommendation prompt for count songs.
func (r *Recommender) BuildPrompt(mood string, tracks []domain.Track, count int) string {
	var b strings.Builder

	b.WriteString("User's music taste is based on these tracks:\n")
	for _, t := range tracks {
		b.WriteString(t.HistoryLine())
		b.WriteByte('\n')
	}

	b.WriteString("\nThe uploaded image conveys the following mood:\n")
	b.WriteString(strings.TrimSpace(mood))
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "Based on both, recommend %d songs that match their taste and mood.\n", count)

	if w := r.policy.MoodWeight; w > 0 && w <= 100 {
		fmt.Fprintf(&b, "Weigh the mood at about %d%% and their taste at about %d%%.\n", w, 100-w)
	}

	familiar := r.policy.FamiliarCount
	if familiar > len(tracks) {
		familiar = len(tracks)
	}
	if familiar > count {
		familiar = count
	}
	switch {
	case familiar <= 0:
		fmt.Fprintf(&b, "All %d songs must be new songs that are not in the list above.\n", count)
	case familiar == count:
		fmt.Fprintf(&b, "Pick all %d songs from the user's tracks above.\n", count)
	default:
		fmt.Fprintf(&b, "List %d songs from the user's tracks above first, then %d new songs they have not listed.\n",
			familiar, count-familiar)
	}

	b.WriteString("Return only the list, one song per line, in exactly this format with no extra text:\n\n")
	b.WriteString("1. Song Name" + domain.RecommendationSeparator + "Artist Name\n")
	b.WriteString("2. Song Name" + domain.RecommendationSeparator + "Artist Name\n")
	b.WriteString("...\n")

	return b.String()
}

// Lines asks the model for recommendations and returns the non-blank reply
// lines, with at most count of them parseable as songs. Malformed lines are
// passed through for the parser to drop and do not use up the count. Model
// failures are logged and yield an empty slice.
func (r *Recommender) Lines(ctx context.Context, mood string, tracks []domain.Track, count int) []string {
	prompt := r.BuildPrompt(mood, tracks, count)

	reply, err := r.model.Generate(ctx, ports.Prompt{Text: prompt, Temperature: r.temperature})
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("recommendation request failed")
		return []string{}
	}

	return SplitReplyLines(reply, count)
}

// SplitReplyLines splits a reply on line breaks and drops blank lines. It
// stops once limit well-formed recommendation lines have been collected.
func SplitReplyLines(reply string, limit int) []string {
	lines := []string{}
	wellFormed := 0
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, line)
		if _, ok := domain.ParseRecommendationLine(line); !ok {
			continue
		}
		wellFormed++
		if limit > 0 && wellFormed == limit {
			break
		}
	}
	return lines
}
