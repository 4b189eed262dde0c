package domain

import (
	"regexp"
	"strings"
)

// RecommendationSeparator splits a recommendation line into name and artist.
const RecommendationSeparator = " - "

// leadingIndex matches list markers such as "1.", "2)", "-", or "*" at line start.
var leadingIndex = regexp.MustCompile(`^\s*(?:\d+\s*[.)]|[-*•])\s*`)

// emphasisReplacer removes markdown emphasis the model tends to wrap around names.
var emphasisReplacer = strings.NewReplacer("*", "", "_", "", "`", "", "#", "", "~", "")

// Song is a recommendation parsed out of one model reply line.
type Song struct {
	Name   string
	Artist string
}

// RecommendedSong is a song returned to the client.
type RecommendedSong struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Artist   string `json:"artist"`
	AlbumArt string `json:"albumArt"`
}

// StripEmphasis removes markdown emphasis characters and surrounding whitespace.
func StripEmphasis(s string) string {
	return strings.TrimSpace(emphasisReplacer.Replace(s))
}

// ParseRecommendationLine parses a line of the form "<index>. <name> - <artist>".
// The index is optional. Lines without the separator, or with an empty name or
// artist, are rejected.
func ParseRecommendationLine(line string) (Song, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Song{}, false
	}

	// Emphasis is stripped before the index so "**1. Song**" still parses.
	line = leadingIndex.ReplaceAllString(StripEmphasis(line), "")

	parts := strings.Split(line, RecommendationSeparator)
	if len(parts) < 2 {
		return Song{}, false
	}

	name := StripEmphasis(parts[0])
	artist := StripEmphasis(parts[1])
	if name == "" || artist == "" {
		return Song{}, false
	}

	return Song{Name: name, Artist: artist}, true
}

// ParseRecommendations parses every line and reports how many were dropped.
func ParseRecommendations(lines []string) ([]Song, int) {
	songs := make([]Song, 0, len(lines))
	dropped := 0
	for _, line := range lines {
		song, ok := ParseRecommendationLine(line)
		if !ok {
			dropped++
			continue
		}
		songs = append(songs, song)
	}
	return songs, dropped
}
