package domain

import "strings"

// UnknownAlbum is substituted when a caller omits the album of a track.
const UnknownAlbum = "Unknown"

// Track represents a track from the caller's listening history.
type Track struct {
	Name   string `json:"name"`
	Artist string `json:"artist"`
	Album  string `json:"album,omitempty"` // optional
}

// AlbumOrDefault returns the album name, or UnknownAlbum when none was supplied.
func (t Track) AlbumOrDefault() string {
	if strings.TrimSpace(t.Album) == "" {
		return UnknownAlbum
	}
	return t.Album
}

// HistoryLine renders the track the way it is listed to the model.
func (t Track) HistoryLine() string {
	return t.Name + " by " + t.Artist + " (Album: " + t.AlbumOrDefault() + ")"
}

// MoodResult is the mood label and description extracted from one image.
type MoodResult struct {
	Mood        string `json:"mood"`
	Description string `json:"description"`
}
