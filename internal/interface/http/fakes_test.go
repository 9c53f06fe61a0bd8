package handlers

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/mundotango/mundo-tango-api/internal/domain/entity"
	repo "github.com/mundotango/mundo-tango-api/internal/domain/repository"
)

type memUsers struct {
	mu    sync.Mutex
	users map[string]*entity.User
}

func newMemUsers(us ...*entity.User) *memUsers {
	m := &memUsers{users: map[string]*entity.User{}}
	for _, u := range us {
		m.users[u.ID] = u
	}
	return m
}

func (m *memUsers) Create(_ context.Context, u *entity.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	return nil
}

func (m *memUsers) GetByID(_ context.Context, id string) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, repo.ErrNotFound
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (m *memUsers) Update(_ context.Context, u *entity.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	return nil
}

func (m *memUsers) SetVerified(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return repo.ErrNotFound
	}
	u.IsVerified = true
	return nil
}

func (m *memUsers) List(_ context.Context, _ int) ([]*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.User
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

type memFollows struct {
	mu    sync.Mutex
	edges map[[2]string]bool
}

func newMemFollows() *memFollows { return &memFollows{edges: map[[2]string]bool{}} }

func (m *memFollows) Follow(_ context.Context, a, b string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edges[[2]string{a, b}] = true
	return nil
}

func (m *memFollows) Unfollow(_ context.Context, a, b string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.edges, [2]string{a, b})
	return nil
}

func (m *memFollows) IsFollowing(_ context.Context, a, b string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.edges[[2]string{a, b}], nil
}

func (m *memFollows) Following(_ context.Context, id string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for e := range m.edges {
		if e[0] == id {
			out = append(out, e[1])
		}
	}
	return out, nil
}

func (m *memFollows) Friends(_ context.Context, id string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for e := range m.edges {
		if e[0] == id && m.edges[[2]string{e[1], id}] {
			out = append(out, e[1])
		}
	}
	return out, nil
}

type memPosts struct {
	mu    sync.Mutex
	posts map[string]*entity.Post
}

func newMemPosts() *memPosts { return &memPosts{posts: map[string]*entity.Post{}} }

func (m *memPosts) Create(_ context.Context, p *entity.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posts[p.ID] = p
	return nil
}

func (m *memPosts) GetByID(_ context.Context, id string) (*entity.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.posts[id]; ok {
		return p, nil
	}
	return nil, repo.ErrNotFound
}

func (m *memPosts) Feed(_ context.Context, q repo.FeedQuery) ([]*entity.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	friends := map[string]bool{}
	for _, f := range q.FriendIDs {
		friends[f] = true
	}
	var out []*entity.Post
	for _, p := range m.posts {
		if !q.Before.IsZero() && !p.CreatedAt.Before(q.Before) {
			continue
		}
		if p.VisibleTo(q.ViewerID, friends[p.AuthorID]) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *memPosts) ListPublic(context.Context, int) ([]*entity.Post, error) { return nil, nil }
func (m *memPosts) AddComment(context.Context, *entity.Comment) error       { return nil }
func (m *memPosts) ListComments(context.Context, string, int) ([]*entity.Comment, error) {
	return nil, nil
}

type memGroups struct {
	mu      sync.Mutex
	groups  map[string]*entity.Group
	members map[string]map[string]bool
}

func newMemGroups(gs ...*entity.Group) *memGroups {
	m := &memGroups{groups: map[string]*entity.Group{}, members: map[string]map[string]bool{}}
	for _, g := range gs {
		m.groups[g.ID] = g
		m.members[g.ID] = map[string]bool{}
	}
	return m
}

func (m *memGroups) Create(_ context.Context, g *entity.Group) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groups[g.ID] = g
	m.members[g.ID] = map[string]bool{g.CreatedBy: true}
	return nil
}

func (m *memGroups) GetByID(_ context.Context, id string) (*entity.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *g
	cp.MemberCount = len(m.members[id])
	return &cp, nil
}

func (m *memGroups) List(context.Context, string, int) ([]*entity.Group, error) { return nil, nil }

func (m *memGroups) AddMember(_ context.Context, ms *entity.Membership) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members[ms.GroupID][ms.UserID] = true
	return nil
}

func (m *memGroups) RemoveMember(_ context.Context, groupID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.members[groupID], userID)
	return nil
}

func (m *memGroups) IsMember(_ context.Context, groupID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.members[groupID][userID], nil
}

func (m *memGroups) GroupIDsForUser(context.Context, string) ([]string, error) { return nil, nil }

type memEvents struct{}

func (memEvents) Create(context.Context, *entity.Event) error { return nil }
func (memEvents) GetByID(context.Context, string) (*entity.Event, error) {
	return nil, repo.ErrNotFound
}
func (memEvents) Upcoming(context.Context, time.Time, string, int) ([]*entity.Event, error) {
	return nil, nil
}
func (memEvents) RSVP(context.Context, string, string) (int, error) { return 0, repo.ErrNotFound }

type memTiers struct{ tiers []*entity.SubscriptionTier }

func (m memTiers) List(context.Context) ([]*entity.SubscriptionTier, error) { return m.tiers, nil }

type memPublisher struct {
	mu     sync.Mutex
	bodies [][]byte
}

func (m *memPublisher) PublishJSON(_ context.Context, body any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.bodies = append(m.bodies, b)
	m.mu.Unlock()
	return nil
}
