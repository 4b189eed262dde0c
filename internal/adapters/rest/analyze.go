package rest

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/ewilliams-labs/melomatch/internal/core/domain"
	"github.com/ewilliams-labs/melomatch/internal/logging"
)

const imageField = "image"

type analyzeImageResponse struct {
	Success     bool   `json:"success"`
	Mood        string `json:"mood"`
	Description string `json:"description"`
}

// AnalyzeImage handles POST /analyze-image with a multipart "image" field.
func (h *Handler) AnalyzeImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes)

	// 1. Parse the upload; the body limit keeps the whole file in memory
	if err := r.ParseMultipartForm(h.opts.MaxUploadBytes); err != nil {
		if isBodyTooLarge(err) {
			writeError(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		writeError(w, http.StatusBadRequest, "No image provided")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	// 2. Validate the file part
	file, header, err := r.FormFile(imageField)
	if err != nil {
		// A part without a filename is parsed as a plain value.
		if _, ok := r.MultipartForm.Value[imageField]; ok {
			writeError(w, http.StatusBadRequest, "No selected file")
			return
		}
		writeError(w, http.StatusBadRequest, "No image provided")
		return
	}
	defer file.Close()

	if strings.TrimSpace(header.Filename) == "" {
		writeError(w, http.StatusBadRequest, "No selected file")
		return
	}
	if !h.extensionAllowed(header.Filename) {
		writeError(w, http.StatusBadRequest, "File type not allowed")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("failed to read upload")
		writeError(w, http.StatusBadRequest, "No image provided")
		return
	}

	// 3. Analyze
	result, err := h.svc.AnalyzeImage(r.Context(), data)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidImage) {
			writeError(w, http.StatusBadRequest, "Invalid image")
			return
		}
		logging.Ctx(r.Context()).Error().Err(err).Str("filename", header.Filename).Msg("image analysis failed")
		writeError(w, http.StatusInternalServerError, "Failed to analyze image")
		return
	}

	writeJSON(w, http.StatusOK, analyzeImageResponse{
		Success:     true,
		Mood:        result.Mood,
		Description: result.Description,
	})
}

func (h *Handler) extensionAllowed(filename string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if ext == "" {
		return false
	}
	_, ok := h.allowed[ext]
	return ok
}

func extensionSet(exts []string) map[string]struct{} {
	set := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			set[ext] = struct{}{}
		}
	}
	return set
}
