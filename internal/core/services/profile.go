package services

import (
	"context"
	"fmt"
	"time"

	"github.com/ewilliams-labs/melomatch/internal/core/domain"
	"github.com/ewilliams-labs/melomatch/internal/core/ports"
)

// ProfileService saves and reads user profiles.
type ProfileService struct {
	repo ports.ProfileRepository
	now  func() time.Time
}

// NewProfileService constructs a ProfileService.
func NewProfileService(repo ports.ProfileRepository) *ProfileService {
	return &ProfileService{
		repo: repo,
		now:  time.Now,
	}
}

// Save stores the profile for userID, replacing any previous one.
func (s *ProfileService) Save(ctx context.Context, userID string, topSongs []domain.Track, analysis *domain.MoodResult) (domain.UserProfile, error) {
	profile, err := domain.NewUserProfile(userID, topSongs, analysis, s.now())
	if err != nil {
		return domain.UserProfile{}, err
	}

	if err := s.repo.Save(ctx, profile); err != nil {
		return domain.UserProfile{}, fmt.Errorf("service: failed to save profile: %w", err)
	}

	return profile, nil
}

// Get returns the profile for userID or domain.ErrNotFound.
func (s *ProfileService) Get(ctx context.Context, userID string) (domain.UserProfile, error) {
	profile, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return domain.UserProfile{}, fmt.Errorf("service: failed to load profile: %w", err)
	}
	return profile, nil
}

// List returns every stored profile.
func (s *ProfileService) List(ctx context.Context) ([]domain.UserProfile, error) {
	profiles, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list profiles: %w", err)
	}
	return profiles, nil
}
