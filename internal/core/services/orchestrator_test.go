package services

import (
	"context"
	"errors"
	"testing"

	"github.com/ewilliams-labs/melomatch/internal/core/domain"
	"github.com/ewilliams-labs/melomatch/internal/core/ports"
	"github.com/ewilliams-labs/melomatch/internal/worker"
)

func newTestOrchestrator(model *mockModel, finder *mockFinder) *Orchestrator {
	var e *Enricher
	if finder == nil {
		e = NewEnricher(nil, worker.NewPool(2), testPlaceholder)
	} else {
		e = NewEnricher(finder, worker.NewPool(2), testPlaceholder)
	}
	return NewOrchestrator(
		NewMoodExtractor(model, 0.2),
		NewRecommender(model, defaultPolicy, 0.7),
		e,
	)
}

func TestOrchestrator_RecommendSongs(t *testing.T) {
	tracks := []domain.Track{{Name: "Holocene", Artist: "Bon Iver"}}

	tests := []struct {
		name      string
		mood      string
		tracks    []domain.Track
		count     int
		reply     string
		modelErr  error
		wantErr   error
		wantSongs []domain.Song
		wantCalls int
	}{
		{
			name:   "parses, drops malformed and enriches",
			mood:   "Wistful Dusk",
			tracks: tracks,
			reply:  "1. **Weird Fishes** - Radiohead\nWeird Fishes Radiohead\n2. Pink + White - Frank Ocean",
			wantSongs: []domain.Song{
				{Name: "Weird Fishes", Artist: "Radiohead"},
				{Name: "Pink + White", Artist: "Frank Ocean"},
			},
			wantCalls: 1,
		},
		{
			name:      "blank mood is rejected without a model call",
			mood:      "   ",
			tracks:    tracks,
			wantErr:   domain.ErrInvalidArgument,
			wantCalls: 0,
		},
		{
			name:      "no tracks is rejected without a model call",
			mood:      "Calm",
			tracks:    nil,
			wantErr:   domain.ErrInvalidArgument,
			wantCalls: 0,
		},
		{
			name:      "model failure gives an empty list",
			mood:      "Calm",
			tracks:    tracks,
			modelErr:  errors.New("upstream down"),
			wantSongs: []domain.Song{},
			wantCalls: 1,
		},
		{
			name:   "count limits the reply",
			mood:   "Calm",
			tracks: tracks,
			count:  1,
			reply:  "1. A - X\n2. B - Y",
			wantSongs: []domain.Song{
				{Name: "A", Artist: "X"},
			},
			wantCalls: 1,
		},
		{
			name:   "preamble line does not cost a song",
			mood:   "Calm",
			tracks: tracks,
			count:  5,
			reply:  "Here are 5 songs for you:\n1. A - X\n2. B - Y\n3. C - Z\n4. D - W\n5. E - V",
			wantSongs: []domain.Song{
				{Name: "A", Artist: "X"},
				{Name: "B", Artist: "Y"},
				{Name: "C", Artist: "Z"},
				{Name: "D", Artist: "W"},
				{Name: "E", Artist: "V"},
			},
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := &mockModel{generate: func(p ports.Prompt) (string, error) {
				return tt.reply, tt.modelErr
			}}
			finder := &mockFinder{art: map[string]string{"Weird Fishes": "https://i.scdn.co/fish.jpg"}}
			o := newTestOrchestrator(model, finder)

			got, err := o.RecommendSongs(context.Background(), tt.mood, tt.tracks, tt.count)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected error %v, got %v", tt.wantErr, err)
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if calls := model.calls(); calls != tt.wantCalls {
				t.Fatalf("model calls: got %d, want %d", calls, tt.wantCalls)
			}
			if tt.wantErr != nil {
				return
			}

			if len(got) != len(tt.wantSongs) {
				t.Fatalf("songs: got %+v, want %+v", got, tt.wantSongs)
			}
			for i, want := range tt.wantSongs {
				if got[i].Name != want.Name || got[i].Artist != want.Artist {
					t.Fatalf("song %d: got %+v, want %+v", i, got[i], want)
				}
				wantArt := testPlaceholder
				if want.Name == "Weird Fishes" {
					wantArt = "https://i.scdn.co/fish.jpg"
				}
				if got[i].AlbumArt != wantArt {
					t.Fatalf("song %d art: got %q, want %q", i, got[i].AlbumArt, wantArt)
				}
			}
		})
	}
}

func TestOrchestrator_AnalyzeImage(t *testing.T) {
	model := &mockModel{generate: func(p ports.Prompt) (string, error) {
		if p.Text == moodTitlePrompt {
			return "midnight drive", nil
		}
		return "Headlights trace an empty highway.", nil
	}}
	o := newTestOrchestrator(model, nil)

	got, err := o.AnalyzeImage(context.Background(), testPNG(t))
	if err != nil {
		t.Fatalf("AnalyzeImage: %v", err)
	}
	if got.Mood != "Midnight Drive" {
		t.Fatalf("mood: got %q", got.Mood)
	}

	if _, err := o.AnalyzeImage(context.Background(), []byte("not an image")); !errors.Is(err, domain.ErrInvalidImage) {
		t.Fatalf("expected ErrInvalidImage, got %v", err)
	}
}
