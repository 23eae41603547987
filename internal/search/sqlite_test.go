package search

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := NewIndex(filepath.Join(t.TempDir(), "search.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func guideEntries() []Entry {
	return []Entry{
		{
			Repository: "acme/guide",
			Slug:       "guide",
			SitePath:   "/guide/install/",
			Title:      "Install",
			Body:       "Install the service with docker compose and a volume mount",
			Anchors:    "prerequisites quickstart",
		},
		{
			Repository: "acme/guide",
			Slug:       "guide",
			SitePath:   "/guide/api/",
			Title:      "API Reference",
			Body:       "Authentication tokens and endpoint listing",
		},
	}
}

func TestIndexQueryMatchesBody(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, "acme/guide", guideEntries()))

	resp, err := idx.Query(ctx, "docker", []string{"acme/guide"}, 10, 0)
	require.NoError(t, err)
	require.Equal(t, 1, resp.Total)
	require.Len(t, resp.Results, 1)
	require.Equal(t, "/guide/install/", resp.Results[0].SitePath)
	require.Equal(t, "Install", resp.Results[0].Title)
	require.Equal(t, "acme/guide", resp.Results[0].Repository)
	require.Contains(t, resp.Results[0].Snippet, "[docker]")
}

func TestIndexQueryMatchesTitleAndAnchors(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, "acme/guide", guideEntries()))

	byTitle, err := idx.Query(ctx, "reference", []string{"acme/guide"}, 10, 0)
	require.NoError(t, err)
	require.Equal(t, 1, byTitle.Total)
	require.Equal(t, "/guide/api/", byTitle.Results[0].SitePath)

	byAnchor, err := idx.Query(ctx, "quickstart", []string{"acme/guide"}, 10, 0)
	require.NoError(t, err)
	require.Equal(t, 1, byAnchor.Total)
	require.Equal(t, "/guide/install/", byAnchor.Results[0].SitePath)
}

func TestIndexQueryPrefixAndAllTokens(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, "acme/guide", guideEntries()))

	prefix, err := idx.Query(ctx, "dock", []string{"acme/guide"}, 10, 0)
	require.NoError(t, err)
	require.Equal(t, 1, prefix.Total)

	// Tokens that live in different documents match nothing together.
	split, err := idx.Query(ctx, "docker endpoint", []string{"acme/guide"}, 10, 0)
	require.NoError(t, err)
	require.Equal(t, 0, split.Total)
}

func TestIndexUpsertReplacesPreviousRows(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, "acme/guide", guideEntries()))

	require.NoError(t, idx.Upsert(ctx, "acme/guide", guideEntries()[:1]))

	gone, err := idx.Query(ctx, "authentication", []string{"acme/guide"}, 10, 0)
	require.NoError(t, err)
	require.Equal(t, 0, gone.Total)

	kept, err := idx.Query(ctx, "docker", []string{"acme/guide"}, 10, 0)
	require.NoError(t, err)
	require.Equal(t, 1, kept.Total)
}

func TestIndexQueryFiltersByRepository(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, "acme/guide", guideEntries()))
	require.NoError(t, idx.Upsert(ctx, "acme/payments", []Entry{{
		Repository: "acme/payments",
		Slug:       "payments",
		SitePath:   "/payments/",
		Title:      "Payments",
		Body:       "Billing invoices and settlement",
	}}))

	hidden, err := idx.Query(ctx, "docker", []string{"acme/payments"}, 10, 0)
	require.NoError(t, err)
	require.Equal(t, 0, hidden.Total)

	visible, err := idx.Query(ctx, "docker", []string{"acme/guide", "acme/payments"}, 10, 0)
	require.NoError(t, err)
	require.Equal(t, 1, visible.Total)

	none, err := idx.Query(ctx, "docker", nil, 10, 0)
	require.NoError(t, err)
	require.Equal(t, 0, none.Total)
}

func TestIndexQueryPagination(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	entries := []Entry{
		{Repository: "acme/guide", Slug: "guide", SitePath: "/guide/a/", Title: "A", Body: "widget assembly"},
		{Repository: "acme/guide", Slug: "guide", SitePath: "/guide/b/", Title: "B", Body: "widget teardown"},
		{Repository: "acme/guide", Slug: "guide", SitePath: "/guide/c/", Title: "C", Body: "widget maintenance"},
	}
	require.NoError(t, idx.Upsert(ctx, "acme/guide", entries))

	first, err := idx.Query(ctx, "widget", []string{"acme/guide"}, 2, 0)
	require.NoError(t, err)
	require.Equal(t, 3, first.Total)
	require.Len(t, first.Results, 2)

	second, err := idx.Query(ctx, "widget", []string{"acme/guide"}, 2, 2)
	require.NoError(t, err)
	require.Equal(t, 3, second.Total)
	require.Len(t, second.Results, 1)
}

func TestIndexPurge(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, "acme/guide", guideEntries()))

	require.NoError(t, idx.Purge(ctx, "acme/guide"))

	resp, err := idx.Query(ctx, "docker", []string{"acme/guide"}, 10, 0)
	require.NoError(t, err)
	require.Equal(t, 0, resp.Total)
}

func TestIndexQueryWithoutTokens(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, "acme/guide", guideEntries()))

	for _, q := range []string{"", "   ", "!!!"} {
		resp, err := idx.Query(ctx, q, []string{"acme/guide"}, 10, 0)
		require.NoError(t, err)
		require.Equal(t, 0, resp.Total)
		require.Empty(t, resp.Results)
	}
}

func TestIndexSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "search.db")
	ctx := context.Background()

	idx, err := NewIndex(path)
	require.NoError(t, err)
	require.NoError(t, idx.Upsert(ctx, "acme/guide", guideEntries()))
	require.NoError(t, idx.Close())

	reopened, err := NewIndex(path)
	require.NoError(t, err)
	defer reopened.Close()

	resp, err := reopened.Query(ctx, "docker", []string{"acme/guide"}, 10, 0)
	require.NoError(t, err)
	require.Equal(t, 1, resp.Total)
}
