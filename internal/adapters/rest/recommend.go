package rest

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ewilliams-labs/melomatch/internal/core/domain"
	"github.com/ewilliams-labs/melomatch/internal/logging"
)

const (
	errMissingRequiredData = "Missing required data"

	// maxJSONBodyBytes bounds JSON request bodies.
	maxJSONBodyBytes = 1 << 20
)

// recommendRequest is what the client sends us. Track objects may carry
// extra fields; only name, artist and album are kept.
type recommendRequest struct {
	Mood      string         `json:"mood" validate:"required"`
	TopTracks []domain.Track `json:"top_tracks" validate:"required,min=1"`
	Count     int            `json:"count" validate:"omitempty,min=1"`
}

type recommendResponse struct {
	Success          bool                     `json:"success"`
	RecommendedSongs []domain.RecommendedSong `json:"recommended_songs"`
}

// RecommendSongs handles POST /recommend-songs
func (h *Handler) RecommendSongs(w http.ResponseWriter, r *http.Request) {
	if !isJSONContentType(r) {
		writeError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return
	}

	// 1. Decode the Request Body
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	var req recommendRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		if isBodyTooLarge(err) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	// 2. Validate Input
	if err := validateRequest(req); err != nil {
		if req.Mood == "" || len(req.TopTracks) == 0 {
			writeError(w, http.StatusBadRequest, errMissingRequiredData)
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// 3. Call the Service
	songs, err := h.svc.RecommendSongs(r.Context(), req.Mood, req.TopTracks, req.Count)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) {
			writeError(w, http.StatusBadRequest, errMissingRequiredData)
			return
		}
		logging.Ctx(r.Context()).Error().Err(err).Msg("song recommendation failed")
		writeError(w, http.StatusInternalServerError, "Failed to generate song recommendations")
		return
	}

	writeJSON(w, http.StatusOK, recommendResponse{
		Success:          true,
		RecommendedSongs: songs,
	})
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large")
}
