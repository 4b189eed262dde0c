package ollama

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/ewilliams-labs/melomatch/internal/core/ports"
)

// TestClient_Generate_Integration runs against a live Ollama instance.
// Skipped unless RUN_AI_TESTS=true is set.
func TestClient_Generate_Integration(t *testing.T) {
	if os.Getenv("RUN_AI_TESTS") != "true" {
		t.Skip("Skipping AI-dependent test (set RUN_AI_TESTS=true to enable)")
	}

	ollamaHost := os.Getenv("OLLAMA_HOST")
	if ollamaHost == "" {
		ollamaHost = "http://localhost:11434"
	}

	client := NewClient(ollamaHost, os.Getenv("OLLAMA_MODEL"), 2*time.Minute)

	tests := []struct {
		name   string
		prompt string
	}{
		{
			name:   "Mood title",
			prompt: "Give a 2-3 word evocative mood title for a rainy city street at night. Reply with the title only.",
		},
		{
			name:   "Recommendations",
			prompt: "Recommend 3 songs for a calm rainy evening. Reply only with lines like '1. Song Name - Artist Name'.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply, err := client.Generate(context.Background(), ports.Prompt{Text: tt.prompt, Temperature: 0.2})
			if err != nil {
				t.Fatalf("Generate() error = %v", err)
			}
			if reply == "" {
				t.Error("expected non-empty reply")
			}
			t.Logf("Reply: %s", reply)
		})
	}
}
