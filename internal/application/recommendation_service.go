package application

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mundotango/mundo-tango-api/internal/domain/entity"
	repo "github.com/mundotango/mundo-tango-api/internal/domain/repository"
	"github.com/mundotango/mundo-tango-api/internal/infrastructure/cache"
	"github.com/mundotango/mundo-tango-api/pkg/helpers"
	"github.com/mundotango/mundo-tango-api/pkg/mailer"
	tpl "github.com/mundotango/mundo-tango-api/pkg/mailer/templates"
)

type RecKind string

const (
	RecEvents RecKind = "events"
	RecGroups RecKind = "groups"
	RecPeople RecKind = "people"
)

func (k RecKind) Valid() bool {
	switch k {
	case RecEvents, RecGroups, RecPeople:
		return true
	}
	return false
}

const (
	RecKeyPrefix     = "rec:"
	recUrgency       = 0.6
	recCandidates    = 200
	recMaxResults    = 50
	defaultRecLimit  = 10
	soonWindow       = 14 * 24 * time.Hour
	sharedGroupsFull = 3.0
	digestItems      = 3
)

// Recommendation is one scored candidate with the reasons behind the score.
type Recommendation struct {
	Kind     RecKind    `json:"kind"`
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	City     string     `json:"city,omitempty"`
	StartsAt *time.Time `json:"starts_at,omitempty"`
	Score    float64    `json:"score"`
	Reasons  []string   `json:"reasons"`
}

type RecommendationService struct {
	users   repo.UserRepository
	follows repo.FollowRepository
	groups  repo.GroupRepository
	events  repo.EventRepository
	cache   *cache.Cache
	pub     helpers.Publisher
	logger  *logrus.Logger
	ttl     time.Duration
	now     func() time.Time

	CompanyName    string
	AppURL         string
	UnsubscribeURL string
}

func NewRecommendationService(users repo.UserRepository, follows repo.FollowRepository, groups repo.GroupRepository, events repo.EventRepository, c *cache.Cache, pub helpers.Publisher, logger *logrus.Logger, ttl time.Duration) *RecommendationService {
	return &RecommendationService{users: users, follows: follows, groups: groups, events: events, cache: c, pub: pub, logger: logger, ttl: ttl, now: time.Now}
}

func recKey(kind RecKind, userID string) string {
	return RecKeyPrefix + string(kind) + ":" + userID
}

func parseRecKey(key string) (RecKind, string, error) {
	kind, user, ok := strings.Cut(strings.TrimPrefix(key, RecKeyPrefix), ":")
	if !ok || user == "" || !RecKind(kind).Valid() {
		return "", "", fmt.Errorf("bad recommendation key %q", key)
	}
	return RecKind(kind), user, nil
}

// For returns up to limit recommendations of kind for the user, best first.
func (s *RecommendationService) For(ctx context.Context, userID string, kind RecKind, limit int) ([]Recommendation, error) {
	if !kind.Valid() {
		return nil, ErrInvalidKind
	}
	if limit <= 0 {
		limit = defaultRecLimit
	}
	if limit > recMaxResults {
		limit = recMaxResults
	}
	var (
		recs []Recommendation
		err  error
	)
	if s.cache != nil {
		recs, err = cache.GetOrLoad(ctx, s.cache, recKey(kind, userID), s.ttl, func(ctx context.Context) ([]Recommendation, error) {
			return s.compute(ctx, userID, kind)
		})
	} else {
		recs, err = s.compute(ctx, userID, kind)
	}
	if err != nil {
		return nil, err
	}
	if len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

// WarmLoader recomputes cached recommendation lists for the cache warmer.
func (s *RecommendationService) WarmLoader() cache.Loader {
	return cache.Loader{
		TTL:     s.ttl,
		Urgency: recUrgency,
		Load: func(ctx context.Context, key string) (any, error) {
			kind, user, err := parseRecKey(key)
			if err != nil {
				return nil, err
			}
			return s.compute(ctx, user, kind)
		},
	}
}

func (s *RecommendationService) compute(ctx context.Context, userID string, kind RecKind) ([]Recommendation, error) {
	u, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	var recs []Recommendation
	switch kind {
	case RecEvents:
		recs, err = s.eventRecs(ctx, u)
	case RecGroups:
		recs, err = s.groupRecs(ctx, u)
	case RecPeople:
		recs, err = s.peopleRecs(ctx, u)
	}
	if err != nil {
		return nil, err
	}
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Score != recs[j].Score {
			return recs[i].Score > recs[j].Score
		}
		return recs[i].ID < recs[j].ID
	})
	if len(recs) > recMaxResults {
		recs = recs[:recMaxResults]
	}
	if recs == nil {
		recs = []Recommendation{}
	}
	return recs, nil
}

func (s *RecommendationService) eventRecs(ctx context.Context, u *entity.User) ([]Recommendation, error) {
	now := s.now()
	events, err := s.events.Upcoming(ctx, now, "", recCandidates)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	maxAtt := 0
	for _, e := range events {
		if e.AttendeeCount > maxAtt {
			maxAtt = e.AttendeeCount
		}
	}
	out := make([]Recommendation, 0, len(events))
	for _, e := range events {
		if e.OrganizerID == u.ID || !e.StartsAt.After(now) {
			continue
		}
		var score float64
		var reasons []string
		if sameCity(u.City, e.City) {
			score += 0.4
			reasons = append(reasons, "In your city")
		}
		if j, shared := jaccard(u.Interests, e.Tags); j > 0 {
			score += 0.3 * j
			reasons = append(reasons, "Matches your interests: "+strings.Join(shared, ", "))
		}
		if p := popularity(e.AttendeeCount, maxAtt); p > 0 {
			score += 0.2 * p
			reasons = append(reasons, fmt.Sprintf("%d attending", e.AttendeeCount))
		}
		if e.StartsAt.Sub(now) <= soonWindow {
			score += 0.1
			reasons = append(reasons, "Starts soon")
		}
		if score <= 0 {
			continue
		}
		starts := e.StartsAt
		out = append(out, Recommendation{Kind: RecEvents, ID: e.ID, Title: e.Title, City: e.City, StartsAt: &starts, Score: round4(score), Reasons: reasons})
	}
	return out, nil
}

func (s *RecommendationService) groupRecs(ctx context.Context, u *entity.User) ([]Recommendation, error) {
	groups, err := s.groups.List(ctx, "", recCandidates)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	mine, err := s.groups.GroupIDsForUser(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	member := toSet(mine)
	maxMembers := 0
	for _, g := range groups {
		if g.MemberCount > maxMembers {
			maxMembers = g.MemberCount
		}
	}
	out := make([]Recommendation, 0, len(groups))
	for _, g := range groups {
		if member[g.ID] {
			continue
		}
		var score float64
		var reasons []string
		if sameCity(u.City, g.City) {
			score += 0.3
			reasons = append(reasons, "In your city")
		}
		if j, shared := jaccard(u.Interests, g.Tags); j > 0 {
			score += 0.4 * j
			reasons = append(reasons, "Matches your interests: "+strings.Join(shared, ", "))
		}
		if p := popularity(g.MemberCount, maxMembers); p > 0 {
			score += 0.3 * p
			reasons = append(reasons, fmt.Sprintf("%d members", g.MemberCount))
		}
		if score <= 0 {
			continue
		}
		out = append(out, Recommendation{Kind: RecGroups, ID: g.ID, Title: g.Name, City: g.City, Score: round4(score), Reasons: reasons})
	}
	return out, nil
}

func (s *RecommendationService) peopleRecs(ctx context.Context, u *entity.User) ([]Recommendation, error) {
	users, err := s.users.List(ctx, recCandidates)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	following, err := s.follows.Following(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("list following: %w", err)
	}
	followed := toSet(following)
	mine, err := s.groups.GroupIDsForUser(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	myGroups := toSet(mine)

	out := make([]Recommendation, 0, len(users))
	for _, c := range users {
		if c.ID == u.ID || followed[c.ID] {
			continue
		}
		var score float64
		var reasons []string
		if sameCity(u.City, c.City) {
			score += 0.3
			reasons = append(reasons, "Lives in your city")
		}
		if j, shared := jaccard(u.Interests, c.Interests); j > 0 {
			score += 0.4 * j
			reasons = append(reasons, "Shares your interests: "+strings.Join(shared, ", "))
		}
		if len(myGroups) > 0 {
			theirs, err := s.groups.GroupIDsForUser(ctx, c.ID)
			if err != nil {
				return nil, fmt.Errorf("list memberships: %w", err)
			}
			shared := 0
			for _, id := range theirs {
				if myGroups[id] {
					shared++
				}
			}
			if shared > 0 {
				score += 0.3 * math.Min(float64(shared)/sharedGroupsFull, 1)
				reasons = append(reasons, fmt.Sprintf("%d groups in common", shared))
			}
		}
		if score <= 0 {
			continue
		}
		out = append(out, Recommendation{Kind: RecPeople, ID: c.ID, Title: c.Name, City: c.City, Score: round4(score), Reasons: reasons})
	}
	return out, nil
}

// Invalidate drops cached recommendations of every user.
func (s *RecommendationService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if _, err := s.cache.DelPrefix(ctx, RecKeyPrefix); err != nil && s.logger != nil {
		s.logger.WithError(err).Warn("recommendation cache invalidation failed")
	}
}

// EnqueueDigest queues a digest email with the user's top events and groups.
func (s *RecommendationService) EnqueueDigest(ctx context.Context, userID string) (*mailer.EmailJob, error) {
	if s.pub == nil {
		return nil, ErrQueueDisabled
	}
	u, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	events, err := s.For(ctx, userID, RecEvents, digestItems)
	if err != nil {
		return nil, err
	}
	groups, err := s.For(ctx, userID, RecGroups, digestItems)
	if err != nil {
		return nil, err
	}
	data := tpl.DigestData{
		Name:           u.Name,
		CompanyName:    s.CompanyName,
		AppURL:         s.AppURL,
		UnsubscribeURL: s.UnsubscribeURL,
		Events:         digestItemsOf(events),
		Groups:         digestItemsOf(groups),
	}
	job := &mailer.EmailJob{To: u.Email, Template: tpl.Digest, Data: tpl.ToMap(data)}
	if err := s.pub.PublishJSON(ctx, job); err != nil {
		return nil, fmt.Errorf("publish digest: %w", err)
	}
	return job, nil
}

func digestItemsOf(recs []Recommendation) []tpl.DigestItem {
	out := make([]tpl.DigestItem, 0, len(recs))
	for _, r := range recs {
		it := tpl.DigestItem{Title: r.Title, City: r.City, Score: r.Score}
		if r.StartsAt != nil {
			it.When = r.StartsAt.UTC().Format("Mon 02 Jan, 15:04")
		}
		if len(r.Reasons) > 0 {
			it.Reason = r.Reasons[0]
		}
		out = append(out, it)
	}
	return out
}

func sameCity(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	return a != "" && strings.EqualFold(a, b)
}

func normTags(tags []string) map[string]bool {
	out := make(map[string]bool, len(tags))
	for _, t := range tags {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			out[t] = true
		}
	}
	return out
}

// jaccard returns |a∩b| / |a∪b| over case-folded tags and the shared tags, sorted.
func jaccard(a, b []string) (float64, []string) {
	sa, sb := normTags(a), normTags(b)
	union := len(sa)
	var shared []string
	for t := range sb {
		if sa[t] {
			shared = append(shared, t)
		} else {
			union++
		}
	}
	if union == 0 || len(shared) == 0 {
		return 0, nil
	}
	sort.Strings(shared)
	return float64(len(shared)) / float64(union), shared
}

func popularity(n, max int) float64 {
	if n <= 0 || max <= 0 {
		return 0
	}
	return math.Log1p(float64(n)) / math.Log1p(float64(max))
}

func toSet(ids []string) map[string]bool {
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
