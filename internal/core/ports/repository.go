package ports

import (
	"context"

	"github.com/ewilliams-labs/melomatch/internal/core/domain"
)

type ProfileRepository interface {
	GetByID(ctx context.Context, userID string) (domain.UserProfile, error)
	Save(ctx context.Context, p domain.UserProfile) error
	List(ctx context.Context) ([]domain.UserProfile, error)
}
