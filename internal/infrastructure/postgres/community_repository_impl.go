package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mundotango/mundo-tango-api/internal/domain/entity"
	"github.com/mundotango/mundo-tango-api/internal/domain/repository"
)

type GroupRepository struct {
	pool *pgxpool.Pool
}

func NewGroupRepository(pool *pgxpool.Pool) *GroupRepository {
	return &GroupRepository{pool: pool}
}

const groupSelect = `
	SELECT g.id, g.name, g.description, g.city, g.tags, g.created_by, g.created_at,
	       (SELECT count(*) FROM group_members m WHERE m.group_id = g.id) AS member_count
	FROM groups g`

func scanGroup(row pgx.Row) (*entity.Group, error) {
	g := &entity.Group{}
	if err := row.Scan(&g.ID, &g.Name, &g.Description, &g.City, &g.Tags, &g.CreatedBy, &g.CreatedAt, &g.MemberCount); err != nil {
		return nil, notFound(err)
	}
	return g, nil
}

// Create inserts the group and makes its creator an admin member in one transaction.
func (r *GroupRepository) Create(ctx context.Context, g *entity.Group) error {
	if g.Tags == nil {
		g.Tags = []string{}
	}
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `
			INSERT INTO groups (name, description, city, tags, created_by)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, created_at
		`, g.Name, g.Description, g.City, g.Tags, g.CreatedBy).Scan(&g.ID, &g.CreatedAt); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO group_members (group_id, user_id, role) VALUES ($1, $2, 'admin')
		`, g.ID, g.CreatedBy); err != nil {
			return err
		}
		g.MemberCount = 1
		return nil
	})
}

func (r *GroupRepository) GetByID(ctx context.Context, id string) (*entity.Group, error) {
	if !validID(id) {
		return nil, repository.ErrNotFound
	}
	return scanGroup(r.pool.QueryRow(ctx, groupSelect+` WHERE g.id = $1`, id))
}

func (r *GroupRepository) List(ctx context.Context, city string, limit int) ([]*entity.Group, error) {
	rows, err := r.pool.Query(ctx, groupSelect+`
		WHERE ($1 = '' OR lower(g.city) = lower($1))
		ORDER BY g.created_at DESC LIMIT $2
	`, city, clampLimit(limit, 50, 1000))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*entity.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *GroupRepository) AddMember(ctx context.Context, m *entity.Membership) error {
	if !validID(m.GroupID, m.UserID) {
		return repository.ErrNotFound
	}
	if m.Role == "" {
		m.Role = entity.GroupRoleMember
	}
	return r.pool.QueryRow(ctx, `
		INSERT INTO group_members (group_id, user_id, role) VALUES ($1, $2, $3)
		ON CONFLICT (group_id, user_id) DO UPDATE SET role = group_members.role
		RETURNING joined_at
	`, m.GroupID, m.UserID, string(m.Role)).Scan(&m.JoinedAt)
}

func (r *GroupRepository) RemoveMember(ctx context.Context, groupID, userID string) error {
	if !validID(groupID, userID) {
		return nil
	}
	_, err := r.pool.Exec(ctx, `DELETE FROM group_members WHERE group_id = $1 AND user_id = $2`, groupID, userID)
	return err
}

func (r *GroupRepository) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	if !validID(groupID, userID) {
		return false, nil
	}
	var ok bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM group_members WHERE group_id = $1 AND user_id = $2)
	`, groupID, userID).Scan(&ok)
	return ok, err
}

func (r *GroupRepository) GroupIDsForUser(ctx context.Context, userID string) ([]string, error) {
	return collectIDs(ctx, r.pool, `SELECT group_id FROM group_members WHERE user_id = $1`, userID)
}

type EventRepository struct {
	pool *pgxpool.Pool
}

func NewEventRepository(pool *pgxpool.Pool) *EventRepository {
	return &EventRepository{pool: pool}
}

const eventSelect = `
	SELECT e.id, e.title, e.description, e.city, e.venue, e.starts_at, e.organizer_id, e.tags, e.created_at,
	       (SELECT count(*) FROM event_attendees a WHERE a.event_id = e.id) AS attendee_count
	FROM events e`

func scanEvent(row pgx.Row) (*entity.Event, error) {
	e := &entity.Event{}
	if err := row.Scan(&e.ID, &e.Title, &e.Description, &e.City, &e.Venue, &e.StartsAt,
		&e.OrganizerID, &e.Tags, &e.CreatedAt, &e.AttendeeCount); err != nil {
		return nil, notFound(err)
	}
	return e, nil
}

func (r *EventRepository) Create(ctx context.Context, e *entity.Event) error {
	if e.Tags == nil {
		e.Tags = []string{}
	}
	return r.pool.QueryRow(ctx, `
		INSERT INTO events (title, description, city, venue, starts_at, organizer_id, tags)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, e.Title, e.Description, e.City, e.Venue, e.StartsAt, e.OrganizerID, e.Tags).Scan(&e.ID, &e.CreatedAt)
}

func (r *EventRepository) GetByID(ctx context.Context, id string) (*entity.Event, error) {
	if !validID(id) {
		return nil, repository.ErrNotFound
	}
	return scanEvent(r.pool.QueryRow(ctx, eventSelect+` WHERE e.id = $1`, id))
}

func (r *EventRepository) Upcoming(ctx context.Context, from time.Time, city string, limit int) ([]*entity.Event, error) {
	rows, err := r.pool.Query(ctx, eventSelect+`
		WHERE e.starts_at >= $1 AND ($2 = '' OR lower(e.city) = lower($2))
		ORDER BY e.starts_at ASC LIMIT $3
	`, from, city, clampLimit(limit, 50, 1000))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*entity.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *EventRepository) RSVP(ctx context.Context, eventID, userID string) (int, error) {
	if !validID(eventID, userID) {
		return 0, repository.ErrNotFound
	}
	if _, err := r.pool.Exec(ctx, `
		INSERT INTO event_attendees (event_id, user_id) VALUES ($1, $2)
		ON CONFLICT (event_id, user_id) DO NOTHING
	`, eventID, userID); err != nil {
		return 0, err
	}
	var n int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM event_attendees WHERE event_id = $1`, eventID).Scan(&n)
	return n, err
}

var (
	_ repository.GroupRepository = (*GroupRepository)(nil)
	_ repository.EventRepository = (*EventRepository)(nil)
)
