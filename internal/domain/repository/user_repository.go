package repository

import (
	"context"

	"github.com/mundotango/mundo-tango-api/internal/domain/entity"
)

// UserRepository defines the interface for user-related database operations.
type UserRepository interface {
	Create(ctx context.Context, u *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	Update(ctx context.Context, u *entity.User) error
	// SetVerified marks the user's email as confirmed.
	SetVerified(ctx context.Context, id string) error
	List(ctx context.Context, limit int) ([]*entity.User, error)
}

// FollowRepository stores the directed follow graph.
type FollowRepository interface {
	Follow(ctx context.Context, followerID, followeeID string) error
	Unfollow(ctx context.Context, followerID, followeeID string) error
	IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error)
	// Following returns the ids the user follows.
	Following(ctx context.Context, userID string) ([]string, error)
	// Friends returns the ids that follow the user back.
	Friends(ctx context.Context, userID string) ([]string, error)
}
