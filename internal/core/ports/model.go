package ports

import (
	"context"
	"errors"
)

// ErrRejected marks a model failure that retrying cannot fix, such as a
// malformed request, bad credentials or an empty reply.
var ErrRejected = errors.New("model rejected request")

// Image is an image payload sent alongside a prompt.
type Image struct {
	Data     []byte
	MIMEType string
}

// Prompt is a single request to a generative model.
type Prompt struct {
	Text        string
	Image       *Image // optional
	Temperature float32
}

// LanguageModel produces free-form text from a prompt and an optional image.
type LanguageModel interface {
	Generate(ctx context.Context, prompt Prompt) (string, error)
}
