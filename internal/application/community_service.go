package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mundotango/mundo-tango-api/internal/domain/entity"
	repo "github.com/mundotango/mundo-tango-api/internal/domain/repository"
	"github.com/mundotango/mundo-tango-api/internal/infrastructure/search"
)

// RecInvalidator drops cached recommendations after community changes.
type RecInvalidator interface {
	Invalidate(ctx context.Context)
}

type CommunityService struct {
	groups repo.GroupRepository
	events repo.EventRepository
	index  Indexer
	recs   RecInvalidator
	logger *logrus.Logger
	now    func() time.Time
}

func NewCommunityService(groups repo.GroupRepository, events repo.EventRepository, index Indexer, recs RecInvalidator, logger *logrus.Logger) *CommunityService {
	return &CommunityService{groups: groups, events: events, index: index, recs: recs, logger: logger, now: time.Now}
}

type CreateGroupInput struct {
	Name        string
	Description string
	City        string
	Tags        []string
}

type CreateEventInput struct {
	Title       string
	Description string
	City        string
	Venue       string
	StartsAt    time.Time
	Tags        []string
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := map[string]bool{}
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(t, "#")))
		if t != "" && !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

func (s *CommunityService) changed(ctx context.Context, d search.Document) {
	if s.index != nil {
		if err := s.index.Index(ctx, d); err != nil && s.logger != nil {
			s.logger.WithError(err).WithField("doc", d.Key()).Warn("index failed")
		}
	}
	if s.recs != nil {
		s.recs.Invalidate(ctx)
	}
}

// CreateGroup stores the group with its creator as the first admin.
func (s *CommunityService) CreateGroup(ctx context.Context, userID string, in CreateGroupInput) (*entity.Group, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: group name is required", ErrInvalidContent)
	}
	g := &entity.Group{
		ID:          uuid.NewString(),
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		City:        strings.TrimSpace(in.City),
		Tags:        cleanTags(in.Tags),
		MemberCount: 1,
		CreatedBy:   userID,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.groups.Create(ctx, g); err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}
	s.changed(ctx, GroupDocument(g))
	return g, nil
}

func (s *CommunityService) GetGroup(ctx context.Context, id string) (*entity.Group, error) {
	g, err := s.groups.GetByID(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrGroupNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}
	return g, nil
}

func (s *CommunityService) ListGroups(ctx context.Context, city string, limit int) ([]*entity.Group, error) {
	gs, err := s.groups.List(ctx, strings.TrimSpace(city), limit)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	if gs == nil {
		gs = []*entity.Group{}
	}
	return gs, nil
}

func (s *CommunityService) JoinGroup(ctx context.Context, userID, groupID string) (*entity.Group, error) {
	if _, err := s.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	m := &entity.Membership{GroupID: groupID, UserID: userID, Role: entity.GroupRoleMember, JoinedAt: s.now().UTC()}
	if err := s.groups.AddMember(ctx, m); err != nil {
		return nil, fmt.Errorf("join group: %w", err)
	}
	g, err := s.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	s.changed(ctx, GroupDocument(g))
	return g, nil
}

func (s *CommunityService) LeaveGroup(ctx context.Context, userID, groupID string) error {
	ok, err := s.groups.IsMember(ctx, groupID, userID)
	if err != nil {
		return fmt.Errorf("check membership: %w", err)
	}
	if !ok {
		return ErrNotMember
	}
	if err := s.groups.RemoveMember(ctx, groupID, userID); err != nil {
		return fmt.Errorf("leave group: %w", err)
	}
	if g, err := s.GetGroup(ctx, groupID); err == nil {
		s.changed(ctx, GroupDocument(g))
	}
	return nil
}

func (s *CommunityService) IsMember(ctx context.Context, userID, groupID string) (bool, error) {
	return s.groups.IsMember(ctx, groupID, userID)
}

func (s *CommunityService) CreateEvent(ctx context.Context, userID string, in CreateEventInput) (*entity.Event, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: event title is required", ErrInvalidContent)
	}
	now := s.now().UTC()
	if !in.StartsAt.After(now) {
		return nil, ErrInvalidEvent
	}
	e := &entity.Event{
		ID:          uuid.NewString(),
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		City:        strings.TrimSpace(in.City),
		Venue:       strings.TrimSpace(in.Venue),
		StartsAt:    in.StartsAt.UTC(),
		OrganizerID: userID,
		Tags:        cleanTags(in.Tags),
		CreatedAt:   now,
	}
	if err := s.events.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	s.changed(ctx, EventDocument(e))
	return e, nil
}

func (s *CommunityService) ListUpcoming(ctx context.Context, city string, limit int) ([]*entity.Event, error) {
	es, err := s.events.Upcoming(ctx, s.now(), strings.TrimSpace(city), limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	if es == nil {
		es = []*entity.Event{}
	}
	return es, nil
}

// RSVP records the user's attendance once and returns the attendee count.
func (s *CommunityService) RSVP(ctx context.Context, userID, eventID string) (int, error) {
	e, err := s.events.GetByID(ctx, eventID)
	if errors.Is(err, repo.ErrNotFound) {
		return 0, ErrEventNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("get event: %w", err)
	}
	if !e.StartsAt.After(s.now()) {
		return 0, ErrEventPast
	}
	n, err := s.events.RSVP(ctx, eventID, userID)
	if err != nil {
		return 0, fmt.Errorf("rsvp: %w", err)
	}
	e.AttendeeCount = n
	s.changed(ctx, EventDocument(e))
	return n, nil
}
