package application

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mundotango/mundo-tango-api/internal/domain/entity"
	"github.com/mundotango/mundo-tango-api/internal/infrastructure/search"
	"github.com/mundotango/mundo-tango-api/pkg/helpers"
)

// stubSearcher records calls and can be told to fail searches.
type stubSearcher struct {
	indexed   []search.Document
	deleted   []string
	searchErr error
	result    search.Result
}

func (s *stubSearcher) Index(_ context.Context, d search.Document) error {
	s.indexed = append(s.indexed, d)
	return nil
}

func (s *stubSearcher) Delete(_ context.Context, t search.DocType, id string) error {
	s.deleted = append(s.deleted, string(t)+":"+id)
	return nil
}

func (s *stubSearcher) Search(context.Context, search.Query) (search.Result, error) {
	return s.result, s.searchErr
}

func TestSearchService_MemoryOnly(t *testing.T) {
	ctx := context.Background()
	s := NewSearchService(nil, nil, nil, nil)
	require.NoError(t, s.Index(ctx, search.Document{ID: "g1", Type: search.TypeGroup, Title: "Tango Berlin"}))

	res, err := s.Search(ctx, search.Query{Text: "tango"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)

	res, err = s.Search(ctx, search.Query{Text: "  "})
	require.NoError(t, err)
	assert.Empty(t, res.Hits)

	require.NoError(t, s.Delete(ctx, search.TypeGroup, "g1"))
	assert.Equal(t, 0, s.Memory().Len())
}

func TestSearchService_RemoteDirectAndFallback(t *testing.T) {
	ctx := context.Background()
	remote := &stubSearcher{result: search.Result{Total: 7, Hits: []search.Hit{}}}
	s := NewSearchService(nil, remote, nil, nil)

	d := search.Document{ID: "e1", Type: search.TypeEvent, Title: "Milonga"}
	require.NoError(t, s.Index(ctx, d))
	require.NoError(t, s.Delete(ctx, search.TypeEvent, "e1"))
	assert.Equal(t, []search.Document{d}, remote.indexed)
	assert.Equal(t, []string{"event:e1"}, remote.deleted)

	res, err := s.Search(ctx, search.Query{Text: "milonga"})
	require.NoError(t, err)
	assert.Equal(t, 7, res.Total)

	require.NoError(t, s.Index(ctx, d))
	remote.searchErr = errors.New("cluster down")
	res, err = s.Search(ctx, search.Query{Text: "milonga"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total, "memory index answers when the remote fails")
}

func TestSearchService_PublishesJobs(t *testing.T) {
	ctx := context.Background()
	remote := &stubSearcher{}
	pub := &fakePublisher{}
	s := NewSearchService(nil, remote, pub, nil)

	require.NoError(t, s.Index(ctx, search.Document{ID: "h1", Type: search.TypeHome, Title: "Loft"}))
	assert.Empty(t, remote.indexed, "queued, not applied inline")
	require.Len(t, pub.bodies, 1)

	job, err := DecodeIndexJob(pub.bodies[0])
	require.NoError(t, err)
	assert.Equal(t, IndexOpIndex, job.Op)
	assert.Equal(t, "home:h1", job.Document.Key())

	require.NoError(t, ApplyIndexJob(ctx, remote, job))
	assert.Len(t, remote.indexed, 1)

	pub.err = errors.New("broker down")
	assert.NoError(t, s.Index(ctx, search.Document{ID: "h2", Type: search.TypeHome, Title: "Studio"}), "queue failures are logged only")
	assert.Equal(t, 2, s.Memory().Len())
}

func TestDecodeIndexJob_Invalid(t *testing.T) {
	_, err := DecodeIndexJob([]byte("{"))
	assert.Error(t, err)
	assert.True(t, helpers.IsPermanent(err))

	b, _ := json.Marshal(IndexJob{Op: IndexOpIndex})
	_, err = DecodeIndexJob(b)
	assert.True(t, helpers.IsPermanent(err))

	err = ApplyIndexJob(context.Background(), &stubSearcher{}, IndexJob{Op: "upsert", Document: search.Document{ID: "x", Type: search.TypePost}})
	assert.True(t, helpers.IsPermanent(err))
}

// failingSearcher simulates an unreachable Elasticsearch.
type failingSearcher struct{ stubSearcher }

func (failingSearcher) Index(context.Context, search.Document) error {
	return errors.New("dial tcp: connection refused")
}

func TestApplyIndexJob_BackendErrorsAreRetryable(t *testing.T) {
	err := ApplyIndexJob(context.Background(), &failingSearcher{}, IndexJob{Op: IndexOpIndex, Document: search.Document{ID: "x", Type: search.TypePost}})
	require.Error(t, err)
	assert.False(t, helpers.IsPermanent(err))
}

func TestSearchService_Reindex(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	posts := newFakePosts()
	require.NoError(t, posts.Create(ctx, &entity.Post{ID: "p1", AuthorID: "u1", Content: "Vals night\nsee you", Visibility: entity.VisibilityPublic, CreatedAt: now}))
	require.NoError(t, posts.Create(ctx, &entity.Post{ID: "p2", AuthorID: "u1", Content: "hidden vals", Visibility: entity.VisibilityPrivate, CreatedAt: now}))

	src := SearchSources{
		Users:  newFakeUsers(&entity.User{ID: "u1", Name: "Ana", Email: "ana@example.com", Interests: []string{"vals"}}),
		Posts:  posts,
		Events: newFakeEvents(&entity.Event{ID: "e1", Title: "Vals marathon", StartsAt: now.Add(time.Hour)}),
		Groups: newFakeGroups(&entity.Group{ID: "g1", Name: "Vals lovers"}),
		Homes:  newFakeHomes(),
	}
	s := NewSearchService(nil, nil, nil, nil)
	n, err := s.Reindex(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	res, err := s.Search(ctx, search.Query{Text: "vals"})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Total)

	res, err = s.Search(ctx, search.Query{Text: "example.com"})
	require.NoError(t, err)
	assert.Zero(t, res.Total, "emails are never indexed")
}

func TestPostDocument_TitleIsFirstLine(t *testing.T) {
	d := PostDocument(&entity.Post{ID: "p1", Content: "Line one\nLine two"})
	assert.Equal(t, "Line one", d.Title)
	assert.Equal(t, search.TypePost, d.Type)
}
