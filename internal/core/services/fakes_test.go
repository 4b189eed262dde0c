package services

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"

	"github.com/ewilliams-labs/melomatch/internal/core/domain"
	"github.com/ewilliams-labs/melomatch/internal/core/ports"
)

type mockModel struct {
	mu       sync.Mutex
	generate func(prompt ports.Prompt) (string, error)
	prompts  []ports.Prompt
}

func (m *mockModel) Generate(ctx context.Context, prompt ports.Prompt) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()
	return m.generate(prompt)
}

func (m *mockModel) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

type mockFinder struct {
	mu    sync.Mutex
	art   map[string]string
	errs  map[string]error
	calls int
}

func (m *mockFinder) FindArtwork(ctx context.Context, name, artist string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if err := m.errs[name]; err != nil {
		return "", err
	}
	return m.art[name], nil
}

type mockRepo struct {
	profiles map[string]domain.UserProfile
	saveErr  error
}

func (m *mockRepo) GetByID(ctx context.Context, userID string) (domain.UserProfile, error) {
	p, ok := m.profiles[userID]
	if !ok {
		return domain.UserProfile{}, domain.ErrNotFound
	}
	return p, nil
}

func (m *mockRepo) Save(ctx context.Context, p domain.UserProfile) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	if m.profiles == nil {
		m.profiles = map[string]domain.UserProfile{}
	}
	m.profiles[p.UserID] = p
	return nil
}

func (m *mockRepo) List(ctx context.Context) ([]domain.UserProfile, error) {
	out := []domain.UserProfile{}
	for _, p := range m.profiles {
		out = append(out, p)
	}
	return out, nil
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 200, G: 120, B: 40, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}
