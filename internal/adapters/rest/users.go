package rest

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ewilliams-labs/melomatch/internal/core/domain"
	"github.com/ewilliams-labs/melomatch/internal/logging"
)

type saveUserRequest struct {
	UserID        string             `json:"userId" validate:"required"`
	TopSongs      []domain.Track     `json:"topSongs"`
	ImageAnalysis *domain.MoodResult `json:"imageAnalysis"`
}

type userEntry struct {
	ID   string             `json:"id"`
	Data domain.UserProfile `json:"data"`
}

// SaveUser handles POST /api/user
func (h *Handler) SaveUser(w http.ResponseWriter, r *http.Request) {
	if !h.profilesEnabled(w) {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	var req saveUserRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		if isBodyTooLarge(err) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validateRequest(req); err != nil {
		writeError(w, http.StatusBadRequest, "User ID is required")
		return
	}

	if _, err := h.profiles.Save(r.Context(), req.UserID, req.TopSongs, req.ImageAnalysis); err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) {
			writeError(w, http.StatusBadRequest, "User ID is required")
			return
		}
		logging.Ctx(r.Context()).Error().Err(err).Str("user_id", req.UserID).Msg("failed to save user")
		writeError(w, http.StatusInternalServerError, "Failed to save user data")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "User data saved successfully"})
}

// GetUser handles GET /api/user/{userId}
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	if !h.profilesEnabled(w) {
		return
	}

	userID := chi.URLParam(r, "userId")
	profile, err := h.profiles.Get(r.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		logging.Ctx(r.Context()).Error().Err(err).Str("user_id", userID).Msg("failed to load user")
		writeError(w, http.StatusInternalServerError, "Failed to load user data")
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// ListUsers handles GET /api/user/all
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	if !h.profilesEnabled(w) {
		return
	}

	profiles, err := h.profiles.List(r.Context())
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("failed to list users")
		writeError(w, http.StatusInternalServerError, "Failed to load user data")
		return
	}

	entries := make([]userEntry, 0, len(profiles))
	for _, p := range profiles {
		entries = append(entries, userEntry{ID: p.UserID, Data: p})
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) profilesEnabled(w http.ResponseWriter) bool {
	if h.profiles == nil {
		writeError(w, http.StatusNotImplemented, "User storage is not configured")
		return false
	}
	return true
}
