package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ewilliams-labs/melomatch/internal/adapters/sqlite"
	"github.com/ewilliams-labs/melomatch/internal/core/domain"
	"github.com/ewilliams-labs/melomatch/internal/core/ports"
	"github.com/ewilliams-labs/melomatch/internal/core/services"
	"github.com/ewilliams-labs/melomatch/internal/worker"
)

// --- Mocks ---

const testPlaceholder = "https://placehold.co/300x300?text=No+Art"

type mockModel struct {
	mu    sync.Mutex
	calls int
	reply func(prompt ports.Prompt) (string, error)
}

func (m *mockModel) Generate(ctx context.Context, prompt ports.Prompt) (string, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.reply == nil {
		return "", errors.New("no reply configured")
	}
	return m.reply(prompt)
}

func (m *mockModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockFinder struct {
	art map[string]string
}

func (m *mockFinder) FindArtwork(ctx context.Context, name, artist string) (string, error) {
	return m.art[name], nil
}

func newTestHandler(t *testing.T, model *mockModel, profiles *services.ProfileService, opts Options) *Handler {
	t.Helper()
	svc := services.NewOrchestrator(
		services.NewMoodExtractor(model, 0.2),
		services.NewRecommender(model, services.Policy{Count: 5, MaxCount: 20, MoodWeight: 75, FamiliarCount: 3}, 0.7),
		services.NewEnricher(&mockFinder{art: map[string]string{"Weird Fishes": "https://i.scdn.co/fish.jpg"}}, worker.NewPool(2), testPlaceholder),
	)
	opts.RateLimitDisabled = true
	return NewHandler(svc, profiles, opts)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 3, 3))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// multipartBody builds a form with one part. An empty filename produces a
// plain form value, the way browsers send an empty file input.
func multipartBody(t *testing.T, field, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename == "" {
		if err := mw.WriteField(field, string(data)); err != nil {
			t.Fatalf("write field: %v", err)
		}
	} else {
		fw, err := mw.CreateFormFile(field, filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := fw.Write(data); err != nil {
			t.Fatalf("write file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

// --- Tests ---

func TestHandler_HealthCheck(t *testing.T) {
	model := &mockModel{}
	h := newTestHandler(t, model, nil, Options{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	var body map[string]string
	decodeBody(t, rec, &body)
	if body["status"] != "healthy" {
		t.Fatalf("body: got %v", body)
	}
	if model.callCount() != 0 {
		t.Fatal("health check must not call the model")
	}
}

func TestHandler_AnalyzeImage(t *testing.T) {
	tests := []struct {
		name       string
		field      string
		filename   string
		data       func(t *testing.T) []byte
		modelErr   error
		maxBytes   int64
		wantStatus int
		wantError  string
		wantMood   string
		wantCalls  int
	}{
		{
			name:       "success",
			field:      "image",
			filename:   "sunset.PNG",
			data:       pngBytes,
			wantStatus: http.StatusOK,
			wantMood:   "Golden Calm",
			wantCalls:  2,
		},
		{
			name:       "missing image field",
			field:      "photo",
			filename:   "sunset.png",
			data:       pngBytes,
			wantStatus: http.StatusBadRequest,
			wantError:  "No image provided",
		},
		{
			name:       "empty filename",
			field:      "image",
			filename:   "",
			data:       func(t *testing.T) []byte { return nil },
			wantStatus: http.StatusBadRequest,
			wantError:  "No selected file",
		},
		{
			name:       "extension not allowed",
			field:      "image",
			filename:   "notes.txt",
			data:       pngBytes,
			wantStatus: http.StatusBadRequest,
			wantError:  "File type not allowed",
		},
		{
			name:       "non-image bytes",
			field:      "image",
			filename:   "fake.jpg",
			data:       func(t *testing.T) []byte { return []byte("plain text, not pixels") },
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid image",
		},
		{
			name:       "model failure hides details",
			field:      "image",
			filename:   "sunset.png",
			data:       pngBytes,
			modelErr:   errors.New("gemini: quota exceeded for key AIza..."),
			wantStatus: http.StatusInternalServerError,
			wantError:  "Failed to analyze image",
			wantCalls:  2,
		},
		{
			name:       "upload too large",
			field:      "image",
			filename:   "big.png",
			data:       func(t *testing.T) []byte { return bytes.Repeat([]byte{0x89}, 4096) },
			maxBytes:   1024,
			wantStatus: http.StatusRequestEntityTooLarge,
			wantError:  "File too large",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := &mockModel{reply: func(p ports.Prompt) (string, error) {
				if tt.modelErr != nil {
					return "", tt.modelErr
				}
				if strings.Contains(p.Text, "mood title") {
					return "golden calm", nil
				}
				return "Soft light over a quiet bay.", nil
			}}
			h := newTestHandler(t, model, nil, Options{MaxUploadBytes: tt.maxBytes})

			body, contentType := multipartBody(t, tt.field, tt.filename, tt.data(t))
			req := httptest.NewRequest(http.MethodPost, "/analyze-image", body)
			req.Header.Set("Content-Type", contentType)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status: got %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantError != "" {
				var errBody map[string]string
				decodeBody(t, rec, &errBody)
				if errBody["error"] != tt.wantError {
					t.Fatalf("error: got %q, want %q", errBody["error"], tt.wantError)
				}
			} else {
				var ok analyzeImageResponse
				decodeBody(t, rec, &ok)
				if !ok.Success || ok.Mood != tt.wantMood || ok.Description == "" {
					t.Fatalf("body: got %+v", ok)
				}
			}
			if got := model.callCount(); got != tt.wantCalls {
				t.Fatalf("model calls: got %d, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestHandler_AnalyzeImage_NotMultipart(t *testing.T) {
	h := newTestHandler(t, &mockModel{}, nil, Options{})

	req := httptest.NewRequest(http.MethodPost, "/analyze-image", strings.NewReader(`{"image":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", rec.Code)
	}
}

func TestHandler_RecommendSongs(t *testing.T) {
	const reply = "1. Weird Fishes - Radiohead\nWeird Fishes Radiohead\n2. **Holocene** - Bon Iver\n"

	tests := []struct {
		name        string
		body        string
		contentType string
		modelReply  string
		modelErr    error
		wantStatus  int
		wantError   string
		wantSongs   []domain.RecommendedSong
		wantCalls   int
	}{
		{
			name:       "success with art and placeholder",
			body:       `{"mood":"Wistful Dusk","top_tracks":[{"name":"Re: Stacks","artist":"Bon Iver","popularity":71}]}`,
			modelReply: reply,
			wantStatus: http.StatusOK,
			wantSongs: []domain.RecommendedSong{
				{Name: "Weird Fishes", Artist: "Radiohead", AlbumArt: "https://i.scdn.co/fish.jpg"},
				{Name: "Holocene", Artist: "Bon Iver", AlbumArt: testPlaceholder},
			},
			wantCalls: 1,
		},
		{
			name:       "missing mood",
			body:       `{"top_tracks":[{"name":"A","artist":"B"}]}`,
			wantStatus: http.StatusBadRequest,
			wantError:  errMissingRequiredData,
		},
		{
			name:       "blank mood",
			body:       `{"mood":"   ","top_tracks":[{"name":"A","artist":"B"}]}`,
			wantStatus: http.StatusBadRequest,
			wantError:  errMissingRequiredData,
		},
		{
			name:       "empty track list",
			body:       `{"mood":"Calm","top_tracks":[]}`,
			wantStatus: http.StatusBadRequest,
			wantError:  errMissingRequiredData,
		},
		{
			name:       "negative count",
			body:       `{"mood":"Calm","top_tracks":[{"name":"A","artist":"B"}],"count":-2}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "count must be at least 1",
		},
		{
			name:       "malformed json",
			body:       `{"mood":`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid request body",
		},
		{
			name:       "oversized body",
			body:       `{"mood":"` + strings.Repeat("a", maxJSONBodyBytes) + `","top_tracks":[{"name":"A","artist":"B"}]}`,
			wantStatus: http.StatusRequestEntityTooLarge,
			wantError:  "Request body too large",
		},
		{
			name:        "wrong content type",
			body:        `{"mood":"Calm"}`,
			contentType: "text/plain",
			wantStatus:  http.StatusUnsupportedMediaType,
		},
		{
			name:       "model failure returns empty list",
			body:       `{"mood":"Calm","top_tracks":[{"name":"A","artist":"B"}]}`,
			modelErr:   errors.New("upstream down"),
			wantStatus: http.StatusOK,
			wantSongs:  []domain.RecommendedSong{},
			wantCalls:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := &mockModel{reply: func(p ports.Prompt) (string, error) {
				return tt.modelReply, tt.modelErr
			}}
			h := newTestHandler(t, model, nil, Options{})

			req := httptest.NewRequest(http.MethodPost, "/recommend-songs", strings.NewReader(tt.body))
			ct := tt.contentType
			if ct == "" {
				ct = "application/json"
			}
			req.Header.Set("Content-Type", ct)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status: got %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if got := model.callCount(); got != tt.wantCalls {
				t.Fatalf("model calls: got %d, want %d", got, tt.wantCalls)
			}
			if tt.wantError != "" {
				var errBody map[string]string
				decodeBody(t, rec, &errBody)
				if errBody["error"] != tt.wantError {
					t.Fatalf("error: got %q, want %q", errBody["error"], tt.wantError)
				}
				return
			}
			if tt.wantStatus != http.StatusOK {
				return
			}

			var body recommendResponse
			decodeBody(t, rec, &body)
			if !body.Success {
				t.Fatal("expected success=true")
			}
			if body.RecommendedSongs == nil {
				t.Fatal("recommended_songs must be an array, not null")
			}
			if len(body.RecommendedSongs) != len(tt.wantSongs) {
				t.Fatalf("songs: got %+v, want %+v", body.RecommendedSongs, tt.wantSongs)
			}
			for i, want := range tt.wantSongs {
				got := body.RecommendedSongs[i]
				if got.ID == "" {
					t.Fatalf("song %d has no id", i)
				}
				if got.Name != want.Name || got.Artist != want.Artist || got.AlbumArt != want.AlbumArt {
					t.Fatalf("song %d: got %+v, want %+v", i, got, want)
				}
			}
		})
	}
}

func TestHandler_Users(t *testing.T) {
	store, err := sqlite.NewAdapter(filepath.Join(t.TempDir(), "users.db"))
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	defer store.Close()

	h := newTestHandler(t, &mockModel{}, services.NewProfileService(store), Options{})

	do := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	// Missing user id
	rec := do(http.MethodPost, "/api/user", `{"topSongs":[]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("save without id: got %d", rec.Code)
	}

	// Oversized body
	rec = do(http.MethodPost, "/api/user", `{"userId":"`+strings.Repeat("x", maxJSONBodyBytes)+`"}`)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("oversized save: got %d", rec.Code)
	}

	// Unknown user
	rec = do(http.MethodGet, "/api/user/nobody", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get unknown: got %d", rec.Code)
	}
	var errBody map[string]string
	decodeBody(t, rec, &errBody)
	if errBody["error"] != "User not found" {
		t.Fatalf("error: got %q", errBody["error"])
	}

	// Save then read back
	rec = do(http.MethodPost, "/api/user", `{"userId":"spotify-42","topSongs":[{"name":"Holocene","artist":"Bon Iver"}],"imageAnalysis":{"mood":"Calm","description":"Still."}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("save: got %d (%s)", rec.Code, rec.Body.String())
	}
	var msg map[string]string
	decodeBody(t, rec, &msg)
	if msg["message"] != "User data saved successfully" {
		t.Fatalf("message: got %q", msg["message"])
	}

	rec = do(http.MethodGet, "/api/user/spotify-42", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get: got %d", rec.Code)
	}
	var profile domain.UserProfile
	decodeBody(t, rec, &profile)
	if profile.UserID != "spotify-42" || len(profile.TopSongs) != 1 || profile.ImageAnalysis == nil {
		t.Fatalf("profile: got %+v", profile)
	}

	rec = do(http.MethodGet, "/api/user/all", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list: got %d", rec.Code)
	}
	var entries []userEntry
	decodeBody(t, rec, &entries)
	if len(entries) != 1 || entries[0].ID != "spotify-42" || entries[0].Data.UserID != "spotify-42" {
		t.Fatalf("entries: got %+v", entries)
	}
}

func TestHandler_UsersNotConfigured(t *testing.T) {
	h := newTestHandler(t, &mockModel{}, nil, Options{})

	req := httptest.NewRequest(http.MethodGet, "/api/user/all", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("status: got %d, want 501", rec.Code)
	}
}

func TestHandler_RateLimit(t *testing.T) {
	svc := services.NewOrchestrator(
		services.NewMoodExtractor(&mockModel{}, 0.2),
		services.NewRecommender(&mockModel{}, services.Policy{Count: 5, MaxCount: 20}, 0.7),
		services.NewEnricher(nil, worker.NewPool(1), testPlaceholder),
	)
	h := NewHandler(svc, nil, Options{RateLimitRequests: 1, RateLimitWindow: time.Minute})

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/recommend-songs", strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "203.0.113.7:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	if codes[0] != http.StatusBadRequest || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("codes: got %v, want [400 429]", codes)
	}
}
