package application

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mundotango/mundo-tango-api/internal/domain/entity"
	"github.com/mundotango/mundo-tango-api/internal/infrastructure/cache"
	"github.com/mundotango/mundo-tango-api/internal/infrastructure/search"
)

type feedFixture struct {
	svc     *FeedService
	posts   *fakePosts
	follows *fakeFollows
	search  *SearchService
	cache   *cache.Cache
}

func newFeedFixture(t *testing.T) *feedFixture {
	t.Helper()
	users := newFakeUsers(
		&entity.User{ID: "u1", Name: "Ana"},
		&entity.User{ID: "u2", Name: "Beto"},
		&entity.User{ID: "u3", Name: "Carla"},
	)
	posts := newFakePosts()
	follows := newFakeFollows()
	c := cache.New(nil, nil)
	ss := NewSearchService(search.NewMemoryIndex(), nil, nil, nil)
	svc := NewFeedService(posts, follows, users, c, ss, nil, time.Minute)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	svc.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}
	return &feedFixture{svc: svc, posts: posts, follows: follows, search: ss, cache: c}
}

func (f *feedFixture) befriend(t *testing.T, a, b string) {
	t.Helper()
	require.NoError(t, f.svc.Follow(context.Background(), a, b))
	require.NoError(t, f.svc.Follow(context.Background(), b, a))
}

func TestExtractHashtags(t *testing.T) {
	got := ExtractHashtags("Milonga tonight #Tango #milonga #tango a#b #_x # end")
	assert.Equal(t, []string{"tango", "milonga", "_x"}, got)
	assert.Nil(t, ExtractHashtags("no tags here"))
	assert.Equal(t, []string{"vals2026"}, ExtractHashtags("#vals2026!"))
}

func TestCreatePost_Validation(t *testing.T) {
	f := newFeedFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreatePost(ctx, "u1", CreatePostInput{Content: "hi", Visibility: "everyone"})
	assert.ErrorIs(t, err, ErrInvalidVisibility)

	_, err = f.svc.CreatePost(ctx, "u1", CreatePostInput{Content: "   "})
	assert.ErrorIs(t, err, ErrInvalidContent)

	_, err = f.svc.CreatePost(ctx, "u1", CreatePostInput{Content: strings.Repeat("ñ", 5001)})
	assert.ErrorIs(t, err, ErrInvalidContent)

	p, err := f.svc.CreatePost(ctx, "u1", CreatePostInput{Content: strings.Repeat("ñ", 5000)})
	require.NoError(t, err)
	assert.Equal(t, entity.VisibilityPublic, p.Visibility)
}

func TestCreatePost_IndexesOnlyPublic(t *testing.T) {
	f := newFeedFixture(t)
	ctx := context.Background()

	pub, err := f.svc.CreatePost(ctx, "u1", CreatePostInput{Content: "Practica en #BuenosAires", Visibility: entity.VisibilityPublic})
	require.NoError(t, err)
	assert.Equal(t, []string{"buenosaires"}, pub.Tags)
	_, err = f.svc.CreatePost(ctx, "u1", CreatePostInput{Content: "Secret practica", Visibility: entity.VisibilityFriends})
	require.NoError(t, err)

	res, err := f.search.Search(ctx, search.Query{Text: "practica"})
	require.NoError(t, err)
	require.Equal(t, 1, res.Total)
	assert.Equal(t, pub.ID, res.Hits[0].Document.ID)
}

func TestFeed_CachedAndInvalidated(t *testing.T) {
	f := newFeedFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreatePost(ctx, "u2", CreatePostInput{Content: "first"})
	require.NoError(t, err)

	got, err := f.svc.Feed(ctx, "u1", 10, time.Time{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	_, err = f.svc.Feed(ctx, "u1", 10, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 1, f.posts.feedHits, "second read must come from cache")

	_, err = f.svc.CreatePost(ctx, "u2", CreatePostInput{Content: "second"})
	require.NoError(t, err)
	got, err = f.svc.Feed(ctx, "u1", 10, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 2, f.posts.feedHits)
	require.Len(t, got, 2)
	assert.Equal(t, "second", got[0].Content, "newest first")
}

func TestFeed_Visibility(t *testing.T) {
	f := newFeedFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreatePost(ctx, "u2", CreatePostInput{Content: "for friends", Visibility: entity.VisibilityFriends})
	require.NoError(t, err)
	_, err = f.svc.CreatePost(ctx, "u2", CreatePostInput{Content: "just me", Visibility: entity.VisibilityPrivate})
	require.NoError(t, err)

	got, err := f.svc.Feed(ctx, "u1", 10, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, got)

	f.befriend(t, "u1", "u2")
	got, err = f.svc.Feed(ctx, "u1", 10, time.Time{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "for friends", got[0].Content)

	own, err := f.svc.Feed(ctx, "u2", 10, time.Time{})
	require.NoError(t, err)
	assert.Len(t, own, 2)
}

func TestGetPost_EnforcesVisibility(t *testing.T) {
	f := newFeedFixture(t)
	ctx := context.Background()

	friendsPost, err := f.svc.CreatePost(ctx, "u2", CreatePostInput{Content: "hola", Visibility: entity.VisibilityFriends})
	require.NoError(t, err)
	privatePost, err := f.svc.CreatePost(ctx, "u2", CreatePostInput{Content: "diario", Visibility: entity.VisibilityPrivate})
	require.NoError(t, err)

	_, err = f.svc.GetPost(ctx, "u1", friendsPost.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	// one-way follow is not friendship
	require.NoError(t, f.svc.Follow(ctx, "u1", "u2"))
	_, err = f.svc.GetPost(ctx, "u1", friendsPost.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	require.NoError(t, f.svc.Follow(ctx, "u2", "u1"))
	p, err := f.svc.GetPost(ctx, "u1", friendsPost.ID)
	require.NoError(t, err)
	assert.Equal(t, friendsPost.ID, p.ID)

	_, err = f.svc.GetPost(ctx, "u1", privatePost.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.GetPost(ctx, "u2", privatePost.ID)
	assert.NoError(t, err)

	_, err = f.svc.GetPost(ctx, "u1", "missing")
	assert.ErrorIs(t, err, ErrPostNotFound)
}

func TestComments(t *testing.T) {
	f := newFeedFixture(t)
	ctx := context.Background()

	p, err := f.svc.CreatePost(ctx, "u2", CreatePostInput{Content: "private", Visibility: entity.VisibilityPrivate})
	require.NoError(t, err)
	_, err = f.svc.AddComment(ctx, "u1", p.ID, "nice")
	assert.ErrorIs(t, err, ErrForbidden)

	pub, err := f.svc.CreatePost(ctx, "u2", CreatePostInput{Content: "public"})
	require.NoError(t, err)
	_, err = f.svc.AddComment(ctx, "u1", pub.ID, "")
	assert.ErrorIs(t, err, ErrInvalidContent)
	c, err := f.svc.AddComment(ctx, "u1", pub.ID, " great ")
	require.NoError(t, err)
	assert.Equal(t, "great", c.Content)

	cs, err := f.svc.ListComments(ctx, "u3", pub.ID, 0)
	require.NoError(t, err)
	require.Len(t, cs, 1)
	assert.Equal(t, "u1", cs[0].AuthorID)
}

func TestFollow_Errors(t *testing.T) {
	f := newFeedFixture(t)
	ctx := context.Background()
	assert.ErrorIs(t, f.svc.Follow(ctx, "u1", "u1"), ErrSelfFollow)
	assert.ErrorIs(t, f.svc.Follow(ctx, "u1", "ghost"), ErrUserNotFound)
	assert.ErrorIs(t, f.svc.Unfollow(ctx, "u1", "u1"), ErrSelfFollow)
}

func TestFeedKeyRoundTrip(t *testing.T) {
	before := time.UnixMicro(1767225600123456).UTC()
	key := feedKey("u1", 20, before)
	assert.Equal(t, "feed:u1:20:1767225600123456", key)

	viewer, limit, got, err := parseFeedKey(key)
	require.NoError(t, err)
	assert.Equal(t, "u1", viewer)
	assert.Equal(t, 20, limit)
	assert.True(t, before.Equal(got))

	_, _, zero, err := parseFeedKey(feedKey("u1", 20, time.Time{}))
	require.NoError(t, err)
	assert.True(t, zero.IsZero())

	_, _, _, err = parseFeedKey("feed:broken")
	assert.Error(t, err)
}

func TestFeedWarmLoader(t *testing.T) {
	f := newFeedFixture(t)
	ctx := context.Background()
	_, err := f.svc.CreatePost(ctx, "u2", CreatePostInput{Content: "warm me"})
	require.NoError(t, err)

	l := f.svc.WarmLoader()
	assert.InDelta(t, 0.9, l.Urgency, 1e-9)
	v, err := l.Load(ctx, feedKey("u1", 20, time.Time{}))
	require.NoError(t, err)
	posts, ok := v.([]*entity.Post)
	require.True(t, ok)
	require.Len(t, posts, 1)
	assert.Equal(t, "warm me", posts[0].Content)
}

func TestFeed_PagesWithinOneMillisecond(t *testing.T) {
	f := newFeedFixture(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	f.svc.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * 100 * time.Microsecond)
	}
	var ids []string
	for i := 0; i < 3; i++ {
		p, err := f.svc.CreatePost(ctx, "u2", CreatePostInput{Content: "post"})
		require.NoError(t, err)
		ids = append(ids, p.ID)
	}

	page1, err := f.svc.Feed(ctx, "u1", 2, time.Time{})
	require.NoError(t, err)
	require.Len(t, page1, 2)
	assert.Equal(t, []string{ids[2], ids[1]}, []string{page1[0].ID, page1[1].ID})

	// the cursor travels as RFC 3339 text, like the HTTP meta
	cursor, err := time.Parse(time.RFC3339Nano, page1[1].CreatedAt.Format(time.RFC3339Nano))
	require.NoError(t, err)
	page2, err := f.svc.Feed(ctx, "u1", 2, cursor)
	require.NoError(t, err)
	require.Len(t, page2, 1)
	assert.Equal(t, ids[0], page2[0].ID)

	assert.NotEqual(t, feedKey("u1", 2, page1[0].CreatedAt), feedKey("u1", 2, page1[1].CreatedAt))
}

func TestCreatePost_StoresMicrosecondTimestamps(t *testing.T) {
	f := newFeedFixture(t)
	f.svc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC) }

	p, err := f.svc.CreatePost(context.Background(), "u2", CreatePostInput{Content: "hi"})
	require.NoError(t, err)
	assert.Equal(t, 123456000, p.CreatedAt.Nanosecond())
}
