package repository

import (
	"context"
	"time"

	"github.com/mundotango/mundo-tango-api/internal/domain/entity"
)

type GroupRepository interface {
	Create(ctx context.Context, g *entity.Group) error
	GetByID(ctx context.Context, id string) (*entity.Group, error)
	List(ctx context.Context, city string, limit int) ([]*entity.Group, error)
	AddMember(ctx context.Context, m *entity.Membership) error
	RemoveMember(ctx context.Context, groupID, userID string) error
	IsMember(ctx context.Context, groupID, userID string) (bool, error)
	// GroupIDsForUser returns the ids of the groups the user belongs to.
	GroupIDsForUser(ctx context.Context, userID string) ([]string, error)
}

type EventRepository interface {
	Create(ctx context.Context, e *entity.Event) error
	GetByID(ctx context.Context, id string) (*entity.Event, error)
	// Upcoming lists events starting after from, soonest first.
	Upcoming(ctx context.Context, from time.Time, city string, limit int) ([]*entity.Event, error)
	// RSVP records attendance once per user and returns the new attendee count.
	RSVP(ctx context.Context, eventID, userID string) (int, error)
}
