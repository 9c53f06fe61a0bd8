package repository

import (
	"context"

	"github.com/mundotango/mundo-tango-api/internal/domain/entity"
)

type HostHomeRepository interface {
	Create(ctx context.Context, h *entity.HostHome) error
	GetByID(ctx context.Context, id string) (*entity.HostHome, error)
	List(ctx context.Context, city string, limit int) ([]*entity.HostHome, error)
	AddPhoto(ctx context.Context, id, url string) error
}

type SubscriptionTierRepository interface {
	List(ctx context.Context) ([]*entity.SubscriptionTier, error)
}
