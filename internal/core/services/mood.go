package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp" // register WebP decoder
	"golang.org/x/sync/errgroup"

	"github.com/ewilliams-labs/melomatch/internal/core/domain"
	"github.com/ewilliams-labs/melomatch/internal/core/ports"
	"github.com/ewilliams-labs/melomatch/internal/logging"
)

const (
	moodTitlePrompt = "Look at this image and name the mood it conveys. " +
		"Reply with only a 2-3 word evocative mood title. No punctuation, quotes, or explanation."

	moodDescriptionPrompt = "Describe this image in a single sentence of 30 to 60 words, including its mood and themes. " +
		"If there's a character, mention its origin (e.g., 'Anime character from One Piece'). " +
		"There is no need of extra words such as 'here is a description of the image', just give the description."

	// FallbackDescription is used when the model returns an empty description.
	FallbackDescription = "No description available."
)

// ErrEmptyReply is returned when the model answers with nothing usable.
var ErrEmptyReply = errors.New("service: empty model reply")

// MoodExtractor turns an uploaded image into a mood title and description.
type MoodExtractor struct {
	model       ports.LanguageModel
	temperature float32
}

// NewMoodExtractor constructs a MoodExtractor.
func NewMoodExtractor(model ports.LanguageModel, temperature float32) *MoodExtractor {
	return &MoodExtractor{
		model:       model,
		temperature: temperature,
	}
}

// Extract validates the image and asks the model for a title and a description.
// Undecodable input fails with domain.ErrInvalidImage.
func (e *MoodExtractor) Extract(ctx context.Context, data []byte) (domain.MoodResult, error) {
	img, err := DecodeImage(data)
	if err != nil {
		return domain.MoodResult{}, err
	}

	var title, description string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		reply, err := e.model.Generate(gctx, ports.Prompt{Text: moodTitlePrompt, Image: img, Temperature: e.temperature})
		if err != nil {
			return fmt.Errorf("service: mood title: %w", err)
		}
		title = reply
		return nil
	})
	g.Go(func() error {
		reply, err := e.model.Generate(gctx, ports.Prompt{Text: moodDescriptionPrompt, Image: img, Temperature: e.temperature})
		if err != nil {
			return fmt.Errorf("service: mood description: %w", err)
		}
		description = reply
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.MoodResult{}, err
	}

	mood := CleanMoodTitle(title)
	if mood == "" {
		return domain.MoodResult{}, fmt.Errorf("service: mood title: %w", ErrEmptyReply)
	}

	desc := cleanReply(description)
	if desc == "" {
		logging.Ctx(ctx).Warn().Msg("model returned an empty description, using fallback")
		desc = FallbackDescription
	}

	return domain.MoodResult{Mood: mood, Description: desc}, nil
}

// DecodeImage checks that data is a PNG, JPEG, GIF or WebP image and returns
// it with its sniffed MIME type.
func DecodeImage(data []byte) (*ports.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", domain.ErrInvalidImage)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: %s image has no pixels", domain.ErrInvalidImage, format)
	}

	mime := mimetype.Detect(data)
	if !strings.HasPrefix(mime.String(), "image/") {
		return nil, fmt.Errorf("%w: detected %s", domain.ErrInvalidImage, mime.String())
	}

	return &ports.Image{Data: data, MIMEType: mime.String()}, nil
}

// CleanMoodTitle reduces a model reply to a capitalized title: first line only,
// without quotes, emphasis or trailing punctuation.
func CleanMoodTitle(reply string) string {
	line := cleanReply(reply)
	if i := strings.IndexAny(line, "\r\n"); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimRightFunc(line, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r)
	})
	line = strings.TrimSpace(strings.Trim(line, quoteChars))

	words := strings.Fields(line)
	for i, w := range words {
		words[i] = capitalize(w)
	}
	return strings.Join(words, " ")
}

const quoteChars = "\"'“”‘’"

func cleanReply(reply string) string {
	s := domain.StripEmphasis(reply)
	s = strings.Trim(s, quoteChars)
	return strings.TrimSpace(s)
}

func capitalize(word string) string {
	r, size := utf8.DecodeRuneInString(word)
	if r == utf8.RuneError {
		return word
	}
	return string(unicode.ToUpper(r)) + word[size:]
}
