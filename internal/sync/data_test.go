package sync

import (
	"context"
	"errors"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ttrss-cli/internal/api"
	"ttrss-cli/internal/config"
	"ttrss-cli/internal/db"
	"ttrss-cli/internal/model"
)

// fakeRemote counts calls and replays canned data.
type fakeRemote struct {
	mu gosync.Mutex

	categories []model.Category
	feeds      []model.Feed
	headlines  []model.Article

	failNext error

	categoryCalls    int
	feedCalls        int
	headlineCalls    int
	lastHeadlineOpts api.HeadlineOptions
	fieldCalls       []fieldCall
	noteCalls        map[int64]string
}

type fieldCall struct {
	ids   []int64
	field int
	mode  int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{noteCalls: make(map[int64]string)}
}

func (f *fakeRemote) takeErr() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	err := f.failNext
	f.failNext = nil
	return err
}

func (f *fakeRemote) Login(ctx context.Context) error { return nil }

func (f *fakeRemote) GetCategories(ctx context.Context) ([]model.Category, error) {
	if err := f.takeErr(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.categoryCalls++
	return f.categories, nil
}

func (f *fakeRemote) GetFeeds(ctx context.Context) ([]model.Feed, error) {
	if err := f.takeErr(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feedCalls++
	return f.feeds, nil
}

func (f *fakeRemote) GetHeadlines(ctx context.Context, opts api.HeadlineOptions) ([]model.Article, error) {
	if err := f.takeErr(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.headlineCalls++
	f.lastHeadlineOpts = opts
	return f.headlines, nil
}

func (f *fakeRemote) GetArticle(ctx context.Context, id int64) (*model.Article, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeRemote) SetArticleField(ctx context.Context, ids []int64, field, mode int) error {
	if err := f.takeErr(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fieldCalls = append(f.fieldCalls, fieldCall{ids: append([]int64(nil), ids...), field: field, mode: mode})
	return nil
}

func (f *fakeRemote) SetArticleNote(ctx context.Context, id int64, note string) error {
	if err := f.takeErr(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.noteCalls[id] = note
	return nil
}

func (f *fakeRemote) CatchupFeed(ctx context.Context, id int64, isCat bool) error { return f.takeErr() }
func (f *fakeRemote) SetArticleLabel(ctx context.Context, ids []int64, labelID int64, assign bool) error {
	return f.takeErr()
}
func (f *fakeRemote) UnsubscribeFeed(ctx context.Context, feedID int64) error { return f.takeErr() }
func (f *fakeRemote) ShareToPublished(ctx context.Context, title, url, content string) error {
	return f.takeErr()
}
func (f *fakeRemote) FetchFeedIcon(ctx context.Context, feedID int64) ([]byte, error) {
	return nil, nil
}

func testConfig() *config.Config {
	return &config.Config{
		ServerURL:        "http://example.com",
		Username:         "reader",
		Password:         "secret",
		FreshMaxAgeHours: 24,
		ArticleLimit:     600,
		KeepArticles:     2000,
		StalenessMinutes: 10,
	}
}

func newTestData(t *testing.T) (*Data, *fakeRemote, *db.Store) {
	t.Helper()
	store, err := db.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	remote := newFakeRemote()
	data := NewData(remote, store, testConfig(), nil)
	return data, remote, store
}

func TestUpdateCategoriesCoalescesWithinStaleness(t *testing.T) {
	data, remote, store := newTestData(t)
	remote.categories = []model.Category{{ID: 1, Title: "News"}}
	ctx := context.Background()

	require.NoError(t, data.UpdateCategories(ctx, false))
	require.NoError(t, data.UpdateCategories(ctx, false))
	assert.Equal(t, 1, remote.categoryCalls, "second sync inside the staleness window is a no-op")

	require.NoError(t, data.UpdateCategories(ctx, true))
	assert.Equal(t, 2, remote.categoryCalls, "force bypasses the staleness window")

	cats, err := store.GetCategories(ctx)
	require.NoError(t, err)
	var titles []string
	for _, c := range cats {
		titles = append(titles, c.Title)
	}
	assert.Contains(t, titles, "News")
	assert.Contains(t, titles, "Fresh Articles", "virtual categories are materialized locally")
}

func TestOfflinePullIsNoop(t *testing.T) {
	data, remote, _ := newTestData(t)
	data.SetOffline(true)
	ctx := context.Background()

	require.NoError(t, data.UpdateCategories(ctx, true))
	require.NoError(t, data.UpdateFeeds(ctx, true))
	assert.Zero(t, remote.categoryCalls)
	assert.Zero(t, remote.feedCalls)
}

func TestFailedSyncDoesNotMarkFresh(t *testing.T) {
	data, remote, _ := newTestData(t)
	remote.failNext = errors.New("boom")
	ctx := context.Background()

	require.Error(t, data.UpdateCategories(ctx, false))
	assert.Error(t, data.LastError())

	// Target was not marked synced, so the next attempt talks to the server.
	require.NoError(t, data.UpdateCategories(ctx, false))
	assert.Equal(t, 1, remote.categoryCalls)
}

func TestSynchronizeStatusSweepOrderAndClear(t *testing.T) {
	data, remote, store := newTestData(t)
	ctx := context.Background()

	require.NoError(t, store.QueueMarks(ctx, []int64{1, 2}, db.MarkUnread, 0))
	require.NoError(t, store.QueueMarks(ctx, []int64{3}, db.MarkStarred, 1))
	require.NoError(t, store.QueueNote(ctx, 3, "remember this"))

	require.NoError(t, data.SynchronizeStatus(ctx))

	require.Len(t, remote.fieldCalls, 2)
	assert.Equal(t, fieldCall{ids: []int64{1, 2}, field: api.FieldUnread, mode: 0}, remote.fieldCalls[0])
	assert.Equal(t, fieldCall{ids: []int64{3}, field: api.FieldStarred, mode: 1}, remote.fieldCalls[1])
	assert.Equal(t, map[int64]string{3: "remember this"}, remote.noteCalls)

	pending, err := store.PendingCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)

	// Nothing queued: the next sweep pushes nothing.
	require.NoError(t, data.SynchronizeStatus(ctx))
	assert.Len(t, remote.fieldCalls, 2)
}

func TestSynchronizeStatusKeepsQueueOnFailure(t *testing.T) {
	data, remote, store := newTestData(t)
	ctx := context.Background()

	require.NoError(t, store.QueueMarks(ctx, []int64{9}, db.MarkStarred, 1))
	remote.failNext = errors.New("network down")

	require.Error(t, data.SynchronizeStatus(ctx))

	ids, err := store.GetMarked(ctx, db.MarkStarred, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{9}, ids, "failed push leaves the mark queued")

	require.NoError(t, data.SynchronizeStatus(ctx))
	require.Len(t, remote.fieldCalls, 1)
	assert.Equal(t, []int64{9}, remote.fieldCalls[0].ids)
}

func TestCacheNewArticlesUsesSinceID(t *testing.T) {
	data, remote, store := newTestData(t)
	ctx := context.Background()

	remote.headlines = []model.Article{{
		ID: 100, FeedID: 10, Title: "first", Unread: true, Updated: time.Now(),
	}}
	require.NoError(t, data.CacheNewArticles(ctx, true))

	got, err := store.GetArticle(ctx, 100)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "first", got.Title)
	assert.Equal(t, 1, remote.headlineCalls)
	assert.Equal(t, api.ViewUnread, remote.lastHeadlineOpts.ViewMode,
		"the very first pull fetches the unread backlog")
	assert.Zero(t, remote.lastHeadlineOpts.SinceID)

	// With something cached, the next pull is a since-id delta.
	remote.headlines = nil
	require.NoError(t, data.CacheNewArticles(ctx, true))
	assert.Equal(t, int64(100), remote.lastHeadlineOpts.SinceID)
	assert.Equal(t, api.ViewAll, remote.lastHeadlineOpts.ViewMode)
}

func TestUpdateArticlesScopedPull(t *testing.T) {
	data, remote, store := newTestData(t)
	ctx := context.Background()

	remote.headlines = []model.Article{{
		ID: 200, FeedID: 10, Title: "scoped", Unread: true, Updated: time.Now(),
	}}
	require.NoError(t, data.UpdateArticles(ctx, 10, true, false, false))

	assert.Equal(t, int64(10), remote.lastHeadlineOpts.FeedID)
	assert.False(t, remote.lastHeadlineOpts.IsCat)
	assert.Equal(t, api.ViewUnread, remote.lastHeadlineOpts.ViewMode)

	got, err := store.GetArticle(ctx, 200)
	require.NoError(t, err)
	require.NotNil(t, got)

	// Within the staleness window the same scope coalesces to no call, but
	// the full-view pull of the same feed is its own target.
	require.NoError(t, data.UpdateArticles(ctx, 10, true, false, false))
	assert.Equal(t, 1, remote.headlineCalls)
	require.NoError(t, data.UpdateArticles(ctx, 10, false, false, false))
	assert.Equal(t, 2, remote.headlineCalls)
	assert.Equal(t, api.ViewAll, remote.lastHeadlineOpts.ViewMode)
}
