package application

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/mundotango/mundo-tango-api/internal/domain/entity"
	repo "github.com/mundotango/mundo-tango-api/internal/domain/repository"
	"github.com/mundotango/mundo-tango-api/internal/infrastructure/cache"
)

const (
	PricingTiersKey = "pricing:tiers"
	pricingUrgency  = 0.2
)

type PricingService struct {
	tiers repo.SubscriptionTierRepository
	cache *cache.Cache
	ttl   time.Duration
}

func NewPricingService(tiers repo.SubscriptionTierRepository, c *cache.Cache, ttl time.Duration) *PricingService {
	return &PricingService{tiers: tiers, cache: c, ttl: ttl}
}

// Tiers lists subscription tiers by SortOrder.
func (s *PricingService) Tiers(ctx context.Context) ([]*entity.SubscriptionTier, error) {
	if s.cache == nil {
		return s.load(ctx)
	}
	return cache.GetOrLoad(ctx, s.cache, PricingTiersKey, s.ttl, s.load)
}

func (s *PricingService) load(ctx context.Context) ([]*entity.SubscriptionTier, error) {
	ts, err := s.tiers.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tiers: %w", err)
	}
	if ts == nil {
		ts = []*entity.SubscriptionTier{}
	}
	sort.SliceStable(ts, func(i, j int) bool { return ts[i].SortOrder < ts[j].SortOrder })
	return ts, nil
}

func (s *PricingService) WarmLoader() cache.Loader {
	return cache.Loader{
		TTL:     s.ttl,
		Urgency: pricingUrgency,
		Load: func(ctx context.Context, _ string) (any, error) {
			return s.load(ctx)
		},
	}
}
