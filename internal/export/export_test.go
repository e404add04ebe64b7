package export

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ttrss-cli/internal/db"
	"ttrss-cli/internal/model"
)

func newTestStore(t *testing.T) *db.Store {
	t.Helper()
	store, err := db.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestExportArticleWritesFrontMatterAndMarkdown(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.MergeFeeds(ctx, []model.Feed{
		{ID: 10, CategoryID: 1, Title: "Daily Gopher"},
	}))
	require.NoError(t, store.MergeArticles(ctx, []model.Article{{
		ID: 1, FeedID: 10,
		Title:   "On Channels & Locks",
		Author:  "R. Pike",
		URL:     "https://blog.example/channels",
		Updated: time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
		Starred: true,
		Content: "<h2>Intro</h2><p>Share memory by <strong>communicating</strong>.</p>",
		Labels:  []model.Label{{ID: -11, Caption: "golang", Checked: true}},
	}}))

	out := filepath.Join(t.TempDir(), "channels.md")
	require.NoError(t, New(store).ExportArticle(ctx, 1, out, false))

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	got := string(raw)

	assert.True(t, strings.HasPrefix(got, "---\n"))
	assert.Contains(t, got, "title: On Channels & Locks")
	assert.Contains(t, got, "feed: Daily Gopher")
	assert.Contains(t, got, "author: R. Pike")
	assert.Contains(t, got, "source: https://blog.example/channels")
	assert.Contains(t, got, "starred: true")
	assert.Contains(t, got, "- golang")

	assert.Contains(t, got, "## Intro")
	assert.Contains(t, got, "**communicating**")
	assert.NotContains(t, got, "<p>")
}

func TestExportArticleNotCached(t *testing.T) {
	store := newTestStore(t)
	err := New(store).ExportArticle(context.Background(), 42, "", false)
	assert.ErrorContains(t, err, "not cached")
}

func TestExportAllWritesDistinctFiles(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.MergeFeeds(ctx, []model.Feed{{ID: 10, CategoryID: 1}}))
	require.NoError(t, store.MergeArticles(ctx, []model.Article{
		{ID: 1, FeedID: 10, Title: "Same Title", Updated: time.Now(), Content: "<p>a</p>"},
		{ID: 2, FeedID: 10, Title: "Same Title", Updated: time.Now(), Content: "<p>b</p>"},
	}))

	dir := t.TempDir()
	require.NoError(t, New(store).ExportAll(ctx, Options{
		Directory: dir,
		FeedID:    10,
		Limit:     50,
	}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.True(t, strings.HasPrefix(e.Name(), "same-title-"))
		assert.True(t, strings.HasSuffix(e.Name(), ".md"))
	}
}
