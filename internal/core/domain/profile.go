package domain

import (
	"fmt"
	"strings"
	"time"
)

// UserProfile is a user's saved listening history and latest image analysis.
type UserProfile struct {
	UserID        string      `json:"spotifyId"`
	TopSongs      []Track     `json:"topSongs"`
	ImageAnalysis *MoodResult `json:"imageAnalysis,omitempty"`
	CreatedAt     time.Time   `json:"createdAt"`
}

// NewUserProfile validates the user id and stamps the creation time.
func NewUserProfile(userID string, topSongs []Track, analysis *MoodResult, now time.Time) (UserProfile, error) {
	if strings.TrimSpace(userID) == "" {
		return UserProfile{}, fmt.Errorf("%w: user id is required", ErrInvalidArgument)
	}
	if topSongs == nil {
		topSongs = []Track{}
	}
	return UserProfile{
		UserID:        userID,
		TopSongs:      topSongs,
		ImageAnalysis: analysis,
		CreatedAt:     now.UTC(),
	}, nil
}
