package application

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mundotango/mundo-tango-api/internal/domain/entity"
	repo "github.com/mundotango/mundo-tango-api/internal/domain/repository"
)

type fakeUsers struct {
	mu    sync.Mutex
	users map[string]*entity.User
}

func newFakeUsers(us ...*entity.User) *fakeUsers {
	f := &fakeUsers{users: map[string]*entity.User{}}
	for _, u := range us {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUsers) Create(_ context.Context, u *entity.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[u.ID] = u
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*entity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*entity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (f *fakeUsers) Update(_ context.Context, u *entity.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[u.ID]; !ok {
		return repo.ErrNotFound
	}
	cp := *u
	f.users[u.ID] = &cp
	return nil
}

func (f *fakeUsers) SetVerified(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return repo.ErrNotFound
	}
	u.IsVerified = true
	return nil
}

func (f *fakeUsers) List(_ context.Context, limit int) ([]*entity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*entity.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeFollows struct {
	mu    sync.Mutex
	edges map[[2]string]bool
}

func newFakeFollows() *fakeFollows { return &fakeFollows{edges: map[[2]string]bool{}} }

func (f *fakeFollows) Follow(_ context.Context, a, b string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edges[[2]string{a, b}] = true
	return nil
}

func (f *fakeFollows) Unfollow(_ context.Context, a, b string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.edges, [2]string{a, b})
	return nil
}

func (f *fakeFollows) IsFollowing(_ context.Context, a, b string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.edges[[2]string{a, b}], nil
}

func (f *fakeFollows) Following(_ context.Context, id string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for e := range f.edges {
		if e[0] == id {
			out = append(out, e[1])
		}
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeFollows) Friends(_ context.Context, id string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for e := range f.edges {
		if e[0] == id && f.edges[[2]string{e[1], id}] {
			out = append(out, e[1])
		}
	}
	sort.Strings(out)
	return out, nil
}

type fakePosts struct {
	mu       sync.Mutex
	posts    map[string]*entity.Post
	comments []*entity.Comment
	feedHits int
}

func newFakePosts() *fakePosts { return &fakePosts{posts: map[string]*entity.Post{}} }

func (f *fakePosts) Create(_ context.Context, p *entity.Post) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts[p.ID] = p
	return nil
}

func (f *fakePosts) GetByID(_ context.Context, id string) (*entity.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.posts[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return p, nil
}

func (f *fakePosts) Feed(_ context.Context, q repo.FeedQuery) ([]*entity.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feedHits++
	friends := map[string]bool{}
	for _, id := range q.FriendIDs {
		friends[id] = true
	}
	var out []*entity.Post
	for _, p := range f.posts {
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

func (f *fakePosts) ListPublic(_ context.Context, limit int) ([]*entity.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entity.Post
	for _, p := range f.posts {
		if p.Visibility == entity.VisibilityPublic {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePosts) AddComment(_ context.Context, c *entity.Comment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.comments = append(f.comments, c)
	return nil
}

func (f *fakePosts) ListComments(_ context.Context, postID string, limit int) ([]*entity.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entity.Comment
	for _, c := range f.comments {
		if c.PostID == postID {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeGroups struct {
	mu      sync.Mutex
	groups  map[string]*entity.Group
	members map[string]map[string]entity.GroupRole
}

func newFakeGroups(gs ...*entity.Group) *fakeGroups {
	f := &fakeGroups{groups: map[string]*entity.Group{}, members: map[string]map[string]entity.GroupRole{}}
	for _, g := range gs {
		f.groups[g.ID] = g
		f.members[g.ID] = map[string]entity.GroupRole{}
	}
	return f
}

func (f *fakeGroups) Create(_ context.Context, g *entity.Group) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.groups[g.ID] = g
	f.members[g.ID] = map[string]entity.GroupRole{g.CreatedBy: entity.GroupRoleAdmin}
	return nil
}

func (f *fakeGroups) GetByID(_ context.Context, id string) (*entity.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.groups[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *g
	if m := f.members[id]; len(m) > 0 {
		cp.MemberCount = len(m)
	}
	return &cp, nil
}

func (f *fakeGroups) List(_ context.Context, city string, limit int) ([]*entity.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entity.Group
	for _, g := range f.groups {
		if city == "" || strings.EqualFold(g.City, city) {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeGroups) AddMember(_ context.Context, m *entity.Membership) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.members[m.GroupID] == nil {
		f.members[m.GroupID] = map[string]entity.GroupRole{}
	}
	if _, ok := f.members[m.GroupID][m.UserID]; !ok {
		f.members[m.GroupID][m.UserID] = m.Role
	}
	return nil
}

func (f *fakeGroups) RemoveMember(_ context.Context, groupID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.members[groupID], userID)
	return nil
}

func (f *fakeGroups) IsMember(_ context.Context, groupID, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.members[groupID][userID]
	return ok, nil
}

func (f *fakeGroups) GroupIDsForUser(_ context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for gid, m := range f.members {
		if _, ok := m[userID]; ok {
			out = append(out, gid)
		}
	}
	sort.Strings(out)
	return out, nil
}

type fakeEvents struct {
	mu     sync.Mutex
	events map[string]*entity.Event
	rsvps  map[string]map[string]bool
}

func newFakeEvents(es ...*entity.Event) *fakeEvents {
	f := &fakeEvents{events: map[string]*entity.Event{}, rsvps: map[string]map[string]bool{}}
	for _, e := range es {
		f.events[e.ID] = e
	}
	return f
}

func (f *fakeEvents) Create(_ context.Context, e *entity.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[e.ID] = e
	return nil
}

func (f *fakeEvents) GetByID(_ context.Context, id string) (*entity.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (f *fakeEvents) Upcoming(_ context.Context, from time.Time, city string, limit int) ([]*entity.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entity.Event
	for _, e := range f.events {
		if e.StartsAt.After(from) && (city == "" || strings.EqualFold(e.City, city)) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

func (f *fakeEvents) RSVP(_ context.Context, eventID, userID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rsvps[eventID] == nil {
		f.rsvps[eventID] = map[string]bool{}
	}
	f.rsvps[eventID][userID] = true
	return len(f.rsvps[eventID]), nil
}

type fakeHomes struct {
	mu    sync.Mutex
	homes map[string]*entity.HostHome
}

func newFakeHomes() *fakeHomes { return &fakeHomes{homes: map[string]*entity.HostHome{}} }

func (f *fakeHomes) Create(_ context.Context, h *entity.HostHome) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.homes[h.ID] = h
	return nil
}

func (f *fakeHomes) GetByID(_ context.Context, id string) (*entity.HostHome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.homes[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *h
	cp.PhotoURLs = append([]string(nil), h.PhotoURLs...)
	return &cp, nil
}

func (f *fakeHomes) List(_ context.Context, city string, limit int) ([]*entity.HostHome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entity.HostHome
	for _, h := range f.homes {
		if city == "" || strings.EqualFold(h.City, city) {
			out = append(out, h)
		}
	}
	return out, nil
}

func (f *fakeHomes) AddPhoto(_ context.Context, id, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.homes[id]
	if !ok {
		return repo.ErrNotFound
	}
	h.PhotoURLs = append(h.PhotoURLs, url)
	return nil
}

type fakeTiers struct {
	tiers []*entity.SubscriptionTier
	calls int
}

func (f *fakeTiers) List(context.Context) ([]*entity.SubscriptionTier, error) {
	f.calls++
	out := make([]*entity.SubscriptionTier, len(f.tiers))
	copy(out, f.tiers)
	return out, nil
}

type fakeUploader struct {
	objects map[string][]byte
}

func (f *fakeUploader) Upload(_ context.Context, objectPath, _ string, r io.Reader) (string, error) {
	if f.objects == nil {
		f.objects = map[string][]byte{}
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return "", err
	}
	f.objects[objectPath] = buf.Bytes()
	return "https://cdn.test/" + objectPath, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	bodies [][]byte
	err    error
}

func (f *fakePublisher) PublishJSON(_ context.Context, body any) error {
	if f.err != nil {
		return f.err
	}
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.bodies = append(f.bodies, b)
	f.mu.Unlock()
	return nil
}

var (
	_ repo.UserRepository             = (*fakeUsers)(nil)
	_ repo.FollowRepository           = (*fakeFollows)(nil)
	_ repo.PostRepository             = (*fakePosts)(nil)
	_ repo.GroupRepository            = (*fakeGroups)(nil)
	_ repo.EventRepository            = (*fakeEvents)(nil)
	_ repo.HostHomeRepository         = (*fakeHomes)(nil)
	_ repo.SubscriptionTierRepository = (*fakeTiers)(nil)
)
