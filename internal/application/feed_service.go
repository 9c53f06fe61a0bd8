package application

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mundotango/mundo-tango-api/internal/domain/entity"
	repo "github.com/mundotango/mundo-tango-api/internal/domain/repository"
	"github.com/mundotango/mundo-tango-api/internal/infrastructure/cache"
)

const (
	FeedKeyPrefix    = "feed:"
	feedUrgency      = 0.9
	postMaxRunes     = 5000
	commentMaxRunes  = 2000
	defaultFeedLimit = 20
	maxFeedLimit     = 100
)

type FeedService struct {
	posts   repo.PostRepository
	follows repo.FollowRepository
	users   repo.UserRepository
	cache   *cache.Cache
	index   Indexer
	logger  *logrus.Logger
	ttl     time.Duration
	now     func() time.Time
}

func NewFeedService(posts repo.PostRepository, follows repo.FollowRepository, users repo.UserRepository, c *cache.Cache, index Indexer, logger *logrus.Logger, ttl time.Duration) *FeedService {
	return &FeedService{posts: posts, follows: follows, users: users, cache: c, index: index, logger: logger, ttl: ttl, now: time.Now}
}

type CreatePostInput struct {
	Content    string
	Visibility entity.Visibility
}

func checkLength(s string, max int) (string, error) {
	s = strings.TrimSpace(s)
	n := utf8.RuneCountInString(s)
	if n == 0 || n > max {
		return "", fmt.Errorf("%w: must be 1..%d characters", ErrInvalidContent, max)
	}
	return s, nil
}

// ExtractHashtags returns the lowercased #tags in s in order of first use.
func ExtractHashtags(s string) []string {
	var out []string
	seen := map[string]bool{}
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		if runes[i] != '#' || (i > 0 && isTagRune(runes[i-1])) {
			continue
		}
		j := i + 1
		for j < len(runes) && isTagRune(runes[j]) {
			j++
		}
		if j > i+1 {
			tag := strings.ToLower(string(runes[i+1 : j]))
			if !seen[tag] {
				seen[tag] = true
				out = append(out, tag)
			}
		}
		i = j - 1
	}
	return out
}

func isTagRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

func (s *FeedService) CreatePost(ctx context.Context, authorID string, in CreatePostInput) (*entity.Post, error) {
	if in.Visibility == "" {
		in.Visibility = entity.VisibilityPublic
	}
	if !in.Visibility.Valid() {
		return nil, ErrInvalidVisibility
	}
	content, err := checkLength(in.Content, postMaxRunes)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC().Truncate(time.Microsecond)
	p := &entity.Post{
		ID:         uuid.NewString(),
		AuthorID:   authorID,
		Content:    content,
		Visibility: in.Visibility,
		Tags:       ExtractHashtags(content),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.posts.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	if p.Visibility == entity.VisibilityPublic && s.index != nil {
		if err := s.index.Index(ctx, PostDocument(p)); err != nil && s.logger != nil {
			s.logger.WithError(err).WithField("post_id", p.ID).Warn("index post failed")
		}
	}
	// any viewer's first page may now include the post
	s.invalidate(ctx, FeedKeyPrefix)
	return p, nil
}

func (s *FeedService) invalidate(ctx context.Context, prefix string) {
	if s.cache == nil {
		return
	}
	if _, err := s.cache.DelPrefix(ctx, prefix); err != nil && s.logger != nil {
		s.logger.WithError(err).WithField("prefix", prefix).Warn("cache invalidation failed")
	}
}

func feedKey(viewerID string, limit int, before time.Time) string {
	var b int64
	if !before.IsZero() {
		b = before.UnixMicro()
	}
	return FeedKeyPrefix + viewerID + ":" + strconv.Itoa(limit) + ":" + strconv.FormatInt(b, 10)
}

func parseFeedKey(key string) (viewerID string, limit int, before time.Time, err error) {
	parts := strings.Split(strings.TrimPrefix(key, FeedKeyPrefix), ":")
	if len(parts) != 3 {
		return "", 0, time.Time{}, fmt.Errorf("bad feed key %q", key)
	}
	limit, err = strconv.Atoi(parts[1])
	if err != nil {
		return "", 0, time.Time{}, fmt.Errorf("bad feed key %q: %w", key, err)
	}
	us, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return "", 0, time.Time{}, fmt.Errorf("bad feed key %q: %w", key, err)
	}
	if us > 0 {
		before = time.UnixMicro(us).UTC()
	}
	return parts[0], limit, before, nil
}

func clampFeedLimit(limit int) int {
	if limit <= 0 {
		return defaultFeedLimit
	}
	if limit > maxFeedLimit {
		return maxFeedLimit
	}
	return limit
}

// Feed returns the posts visible to viewer, newest first. A zero before
// starts at the newest post. Cursors keep microsecond precision, the
// resolution posts are stored with.
func (s *FeedService) Feed(ctx context.Context, viewerID string, limit int, before time.Time) ([]*entity.Post, error) {
	limit = clampFeedLimit(limit)
	if !before.IsZero() {
		before = before.UTC().Truncate(time.Microsecond)
	}
	if s.cache == nil {
		return s.loadFeed(ctx, viewerID, limit, before)
	}
	return cache.GetOrLoad(ctx, s.cache, feedKey(viewerID, limit, before), s.ttl, func(ctx context.Context) ([]*entity.Post, error) {
		return s.loadFeed(ctx, viewerID, limit, before)
	})
}

func (s *FeedService) loadFeed(ctx context.Context, viewerID string, limit int, before time.Time) ([]*entity.Post, error) {
	friends, err := s.follows.Friends(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("load friends: %w", err)
	}
	posts, err := s.posts.Feed(ctx, repo.FeedQuery{ViewerID: viewerID, FriendIDs: friends, Before: before, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("load feed: %w", err)
	}
	if posts == nil {
		posts = []*entity.Post{}
	}
	return posts, nil
}

// WarmLoader rebuilds feed pages for the cache warmer.
func (s *FeedService) WarmLoader() cache.Loader {
	return cache.Loader{
		TTL:     s.ttl,
		Urgency: feedUrgency,
		Load: func(ctx context.Context, key string) (any, error) {
			viewer, limit, before, err := parseFeedKey(key)
			if err != nil {
				return nil, err
			}
			return s.loadFeed(ctx, viewer, clampFeedLimit(limit), before)
		},
	}
}

func (s *FeedService) areFriends(ctx context.Context, a, b string) (bool, error) {
	if a == "" || b == "" {
		return false, nil
	}
	ab, err := s.follows.IsFollowing(ctx, a, b)
	if err != nil || !ab {
		return false, err
	}
	return s.follows.IsFollowing(ctx, b, a)
}

// GetPost returns the post when viewer may read it.
func (s *FeedService) GetPost(ctx context.Context, viewerID, postID string) (*entity.Post, error) {
	p, err := s.posts.GetByID(ctx, postID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}
	friends := false
	if p.Visibility == entity.VisibilityFriends && p.AuthorID != viewerID {
		if friends, err = s.areFriends(ctx, viewerID, p.AuthorID); err != nil {
			return nil, fmt.Errorf("check friendship: %w", err)
		}
	}
	if !p.VisibleTo(viewerID, friends) {
		return nil, ErrForbidden
	}
	return p, nil
}

func (s *FeedService) AddComment(ctx context.Context, authorID, postID, content string) (*entity.Comment, error) {
	if _, err := s.GetPost(ctx, authorID, postID); err != nil {
		return nil, err
	}
	body, err := checkLength(content, commentMaxRunes)
	if err != nil {
		return nil, err
	}
	c := &entity.Comment{ID: uuid.NewString(), PostID: postID, AuthorID: authorID, Content: body, CreatedAt: s.now().UTC()}
	if err := s.posts.AddComment(ctx, c); err != nil {
		return nil, fmt.Errorf("add comment: %w", err)
	}
	return c, nil
}

func (s *FeedService) ListComments(ctx context.Context, viewerID, postID string, limit int) ([]*entity.Comment, error) {
	if _, err := s.GetPost(ctx, viewerID, postID); err != nil {
		return nil, err
	}
	cs, err := s.posts.ListComments(ctx, postID, clampFeedLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	if cs == nil {
		cs = []*entity.Comment{}
	}
	return cs, nil
}

// Follow makes follower follow followee. Both feeds change when the follow
// completes a friendship, so both are invalidated.
func (s *FeedService) Follow(ctx context.Context, followerID, followeeID string) error {
	if followerID == followeeID {
		return ErrSelfFollow
	}
	if _, err := s.users.GetByID(ctx, followeeID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("get user: %w", err)
	}
	if err := s.follows.Follow(ctx, followerID, followeeID); err != nil {
		return fmt.Errorf("follow: %w", err)
	}
	s.afterFollowChange(ctx, followerID, followeeID)
	return nil
}

func (s *FeedService) Unfollow(ctx context.Context, followerID, followeeID string) error {
	if followerID == followeeID {
		return ErrSelfFollow
	}
	if err := s.follows.Unfollow(ctx, followerID, followeeID); err != nil {
		return fmt.Errorf("unfollow: %w", err)
	}
	s.afterFollowChange(ctx, followerID, followeeID)
	return nil
}

func (s *FeedService) afterFollowChange(ctx context.Context, followerID, followeeID string) {
	s.invalidate(ctx, FeedKeyPrefix+followerID+":")
	s.invalidate(ctx, FeedKeyPrefix+followeeID+":")
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, recKey(RecPeople, followerID)); err != nil && s.logger != nil {
		s.logger.WithError(err).WithField("user_id", followerID).Warn("recommendation invalidation failed")
	}
}
