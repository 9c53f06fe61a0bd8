package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mundotango/mundo-tango-api/internal/domain/entity"
	"github.com/mundotango/mundo-tango-api/internal/domain/repository"
)

type HostHomeRepository struct {
	pool *pgxpool.Pool
}

func NewHostHomeRepository(pool *pgxpool.Pool) *HostHomeRepository {
	return &HostHomeRepository{pool: pool}
}

const homeColumns = `id, host_id, title, description, city, country, price_per_night, photo_urls, created_at, updated_at`

func scanHome(row pgx.Row) (*entity.HostHome, error) {
	h := &entity.HostHome{}
	if err := row.Scan(&h.ID, &h.HostID, &h.Title, &h.Description, &h.City, &h.Country,
		&h.PricePerNight, &h.PhotoURLs, &h.CreatedAt, &h.UpdatedAt); err != nil {
		return nil, notFound(err)
	}
	return h, nil
}

func (r *HostHomeRepository) Create(ctx context.Context, h *entity.HostHome) error {
	if h.PhotoURLs == nil {
		h.PhotoURLs = []string{}
	}
	return r.pool.QueryRow(ctx, `
		INSERT INTO host_homes (host_id, title, description, city, country, price_per_night, photo_urls)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`, h.HostID, h.Title, h.Description, h.City, h.Country, h.PricePerNight, h.PhotoURLs).Scan(&h.ID, &h.CreatedAt, &h.UpdatedAt)
}

func (r *HostHomeRepository) GetByID(ctx context.Context, id string) (*entity.HostHome, error) {
	if !validID(id) {
		return nil, repository.ErrNotFound
	}
	return scanHome(r.pool.QueryRow(ctx, `SELECT `+homeColumns+` FROM host_homes WHERE id = $1`, id))
}

func (r *HostHomeRepository) List(ctx context.Context, city string, limit int) ([]*entity.HostHome, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+homeColumns+` FROM host_homes
		WHERE ($1 = '' OR lower(city) = lower($1))
		ORDER BY created_at DESC LIMIT $2
	`, city, clampLimit(limit, 50, 1000))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*entity.HostHome
	for rows.Next() {
		h, err := scanHome(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (r *HostHomeRepository) AddPhoto(ctx context.Context, id, url string) error {
	if !validID(id) {
		return repository.ErrNotFound
	}
	res, err := r.pool.Exec(ctx, `
		UPDATE host_homes SET photo_urls = array_append(photo_urls, $2), updated_at = now() WHERE id = $1
	`, id, url)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

type SubscriptionTierRepository struct {
	pool *pgxpool.Pool
}

func NewSubscriptionTierRepository(pool *pgxpool.Pool) *SubscriptionTierRepository {
	return &SubscriptionTierRepository{pool: pool}
}

func (r *SubscriptionTierRepository) List(ctx context.Context) ([]*entity.SubscriptionTier, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, price_cents, billing_interval, features, sort_order
		FROM subscription_tiers ORDER BY sort_order ASC, price_cents ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*entity.SubscriptionTier{}
	for rows.Next() {
		t := &entity.SubscriptionTier{}
		if err := rows.Scan(&t.ID, &t.Name, &t.PriceCents, &t.Interval, &t.Features, &t.SortOrder); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

var (
	_ repository.HostHomeRepository         = (*HostHomeRepository)(nil)
	_ repository.SubscriptionTierRepository = (*SubscriptionTierRepository)(nil)
)
