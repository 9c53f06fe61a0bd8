package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mundotango/mundo-tango-api/internal/domain/entity"
	"github.com/mundotango/mundo-tango-api/internal/domain/repository"
)

type PostRepository struct {
	pool *pgxpool.Pool
}

func NewPostRepository(pool *pgxpool.Pool) *PostRepository {
	return &PostRepository{pool: pool}
}

const postColumns = `id, author_id, content, visibility, tags, created_at, updated_at`

func scanPost(row pgx.Row) (*entity.Post, error) {
	p := &entity.Post{}
	var vis string
	if err := row.Scan(&p.ID, &p.AuthorID, &p.Content, &vis, &p.Tags, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, notFound(err)
	}
	p.Visibility = entity.Visibility(vis)
	return p, nil
}

func scanPosts(rows pgx.Rows) ([]*entity.Post, error) {
	defer rows.Close()
	var out []*entity.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PostRepository) Create(ctx context.Context, p *entity.Post) error {
	if p.Tags == nil {
		p.Tags = []string{}
	}
	return r.pool.QueryRow(ctx, `
		INSERT INTO posts (author_id, content, visibility, tags)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`, p.AuthorID, p.Content, string(p.Visibility), p.Tags).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

func (r *PostRepository) GetByID(ctx context.Context, id string) (*entity.Post, error) {
	if !validID(id) {
		return nil, repository.ErrNotFound
	}
	return scanPost(r.pool.QueryRow(ctx, `SELECT `+postColumns+` FROM posts WHERE id = $1`, id))
}

// Feed returns the viewer's own posts, every public post and friends-only
// posts written by the viewer's friends.
func (r *PostRepository) Feed(ctx context.Context, q repository.FeedQuery) ([]*entity.Post, error) {
	before := q.Before
	if before.IsZero() {
		before = time.Now().Add(time.Minute)
	}
	friends := q.FriendIDs
	if friends == nil {
		friends = []string{}
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+postColumns+`
		FROM posts
		WHERE created_at < $1
		  AND (
			author_id = $2
			OR visibility = 'public'
			OR (visibility = 'friends' AND author_id = ANY($3::uuid[]))
		  )
		ORDER BY created_at DESC, id DESC
		LIMIT $4
	`, before, q.ViewerID, friends, clampLimit(q.Limit, 20, 100))
	if err != nil {
		return nil, err
	}
	return scanPosts(rows)
}

func (r *PostRepository) ListPublic(ctx context.Context, limit int) ([]*entity.Post, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+postColumns+` FROM posts WHERE visibility = 'public'
		ORDER BY created_at DESC LIMIT $1
	`, clampLimit(limit, 100, 5000))
	if err != nil {
		return nil, err
	}
	return scanPosts(rows)
}

func (r *PostRepository) AddComment(ctx context.Context, c *entity.Comment) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO comments (post_id, author_id, content)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, c.PostID, c.AuthorID, c.Content).Scan(&c.ID, &c.CreatedAt)
}

func (r *PostRepository) ListComments(ctx context.Context, postID string, limit int) ([]*entity.Comment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, post_id, author_id, content, created_at
		FROM comments WHERE post_id = $1
		ORDER BY created_at ASC LIMIT $2
	`, postID, clampLimit(limit, 50, 500))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*entity.Comment{}
	for rows.Next() {
		c := &entity.Comment{}
		if err := rows.Scan(&c.ID, &c.PostID, &c.AuthorID, &c.Content, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

var _ repository.PostRepository = (*PostRepository)(nil)
