package repository

import (
	"context"
	"time"

	"github.com/mundotango/mundo-tango-api/internal/domain/entity"
)

// FeedQuery selects posts visible to a viewer, newest first.
type FeedQuery struct {
	ViewerID  string
	FriendIDs []string
	Before    time.Time // zero means now
	Limit     int
}

type PostRepository interface {
	Create(ctx context.Context, p *entity.Post) error
	GetByID(ctx context.Context, id string) (*entity.Post, error)
	Feed(ctx context.Context, q FeedQuery) ([]*entity.Post, error)
	ListPublic(ctx context.Context, limit int) ([]*entity.Post, error)
	AddComment(ctx context.Context, c *entity.Comment) error
	ListComments(ctx context.Context, postID string, limit int) ([]*entity.Comment, error)
}
