package search

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedIndex(t *testing.T) *MemoryIndex {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	idx := NewMemoryIndex()
	docs := []Document{
		{ID: "e1", Type: TypeEvent, Title: "Milonga de los Domingos", Body: "Social tango night", City: "Buenos Aires", CreatedAt: base},
		{ID: "e2", Type: TypeEvent, Title: "Tango Marathon", Body: "Three days of milonga dancing", Tags: []string{"marathon"}, City: "Berlin", CreatedAt: base.Add(time.Hour)},
		{ID: "g1", Type: TypeGroup, Title: "Berlin Tango Community", Body: "Weekly practica", Tags: []string{"practica"}, City: "Berlin", CreatedAt: base.Add(2 * time.Hour)},
		{ID: "h1", Type: TypeHome, Title: "Room near Canning", Body: "Walk to the milonga", City: "Buenos Aires", CreatedAt: base.Add(3 * time.Hour)},
	}
	for _, d := range docs {
		require.NoError(t, idx.Index(ctx, d))
	}
	return idx
}

func keys(res Result) []string {
	out := make([]string, 0, len(res.Hits))
	for _, h := range res.Hits {
		out = append(out, h.Document.Key())
	}
	return out
}

func TestMemoryIndex_TitleOutranksBody(t *testing.T) {
	idx := seedIndex(t)
	res, err := idx.Search(context.Background(), Query{Text: "milonga"})
	require.NoError(t, err)
	require.Equal(t, 3, res.Total)
	assert.Equal(t, "event:e1", res.Hits[0].Document.Key())
	// equal body-only scores fall back to newest first
	assert.Equal(t, []string{"event:e1", "home:h1", "event:e2"}, keys(res))
}

func TestMemoryIndex_Fuzzy(t *testing.T) {
	idx := seedIndex(t)
	res, err := idx.Search(context.Background(), Query{Text: "milnoga"})
	require.NoError(t, err)
	require.NotEmpty(t, res.Hits)
	assert.Equal(t, "event:e1", res.Hits[0].Document.Key())
	assert.Equal(t, []string{"milonga"}, res.Hits[0].Matched)
}

func TestMemoryIndex_FuzzyScoresBelowExact(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()
	require.NoError(t, idx.Index(ctx, Document{ID: "1", Type: TypePost, Title: "tango"}))

	exact, _ := idx.Search(ctx, Query{Text: "tango"})
	fuzzy, _ := idx.Search(ctx, Query{Text: "tanga"})
	require.Len(t, exact.Hits, 1)
	require.Len(t, fuzzy.Hits, 1)
	assert.InDelta(t, exact.Hits[0].Score/2, fuzzy.Hits[0].Score, 1e-9)
}

func TestMemoryIndex_Prefix(t *testing.T) {
	idx := seedIndex(t)
	res, err := idx.Search(context.Background(), Query{Text: "mara"})
	require.NoError(t, err)
	assert.Equal(t, []string{"event:e2"}, keys(res))
}

func TestMemoryIndex_Filters(t *testing.T) {
	idx := seedIndex(t)
	ctx := context.Background()

	res, err := idx.Search(ctx, Query{Text: "tango", Types: []DocType{TypeGroup}})
	require.NoError(t, err)
	assert.Equal(t, []string{"group:g1"}, keys(res))

	res, err = idx.Search(ctx, Query{Text: "milonga", City: "buenos aires"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"event:e1", "home:h1"}, keys(res))
}

func TestMemoryIndex_Pagination(t *testing.T) {
	idx := seedIndex(t)
	ctx := context.Background()

	res, err := idx.Search(ctx, Query{Text: "milonga", Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, []string{"home:h1"}, keys(res))

	res, err = idx.Search(ctx, Query{Text: "milonga", Offset: 10})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	assert.Empty(t, res.Hits)
}

func TestMemoryIndex_ReindexAndDelete(t *testing.T) {
	idx := seedIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, Document{ID: "e1", Type: TypeEvent, Title: "Vals evening"}))
	res, _ := idx.Search(ctx, Query{Text: "domingos"})
	assert.Empty(t, res.Hits, "old terms must be dropped on reindex")
	assert.Equal(t, 4, idx.Len())

	require.NoError(t, idx.Delete(ctx, TypeEvent, "e1"))
	res, _ = idx.Search(ctx, Query{Text: "vals"})
	assert.Empty(t, res.Hits)
	assert.Equal(t, 3, idx.Len())
}

func TestMemoryIndex_EmptyQuery(t *testing.T) {
	idx := seedIndex(t)
	res, err := idx.Search(context.Background(), Query{Text: "the a"})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Total)
	assert.NotNil(t, res.Hits)
}

func TestMemoryIndex_Suggest(t *testing.T) {
	idx := seedIndex(t)
	assert.Equal(t, []string{"milonga"}, idx.Suggest("Mil", 5))
	assert.Equal(t, []string{"tango"}, idx.Suggest("tan", 5))
	assert.Empty(t, idx.Suggest("", 5))
}

func TestMemoryIndex_SuggestLimit(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()
	for i := 0; i < 25; i++ {
		require.NoError(t, idx.Index(ctx, Document{ID: fmt.Sprint(i), Type: TypeEvent, Title: fmt.Sprintf("salida%02d", i)}))
	}
	assert.Len(t, idx.Suggest("salida", 0), 10)
	assert.Len(t, idx.Suggest("salida", 15), 15)
	assert.Len(t, idx.Suggest("salida", 20), 20)
	assert.Len(t, idx.Suggest("salida", 100), 20, "large limits are capped, not reset")
}
