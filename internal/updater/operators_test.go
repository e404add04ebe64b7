package updater

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
	"ttrss-cli/internal/sync"
)

type fakeRemote struct {
	mu         gosync.Mutex
	failNext   error
	fieldCalls [][]int64
	lastField  int
	lastMode   int
	notes      map[int64]string
	catchups   int
	unsubs     []int64
	labelCalls []labelCall
}

type labelCall struct {
	ids     []int64
	labelID int64
	assign  bool
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{notes: make(map[int64]string)}
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
	return nil, nil
}
func (f *fakeRemote) GetFeeds(ctx context.Context) ([]model.Feed, error) { return nil, nil }
func (f *fakeRemote) GetHeadlines(ctx context.Context, opts api.HeadlineOptions) ([]model.Article, error) {
	return nil, nil
}
func (f *fakeRemote) GetArticle(ctx context.Context, id int64) (*model.Article, error) {
	return nil, nil
}

func (f *fakeRemote) SetArticleField(ctx context.Context, ids []int64, field, mode int) error {
	if err := f.takeErr(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fieldCalls = append(f.fieldCalls, append([]int64(nil), ids...))
	f.lastField = field
	f.lastMode = mode
	return nil
}

func (f *fakeRemote) SetArticleNote(ctx context.Context, id int64, note string) error {
	if err := f.takeErr(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes[id] = note
	return nil
}

func (f *fakeRemote) CatchupFeed(ctx context.Context, id int64, isCat bool) error {
	if err := f.takeErr(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.catchups++
	return nil
}

func (f *fakeRemote) SetArticleLabel(ctx context.Context, ids []int64, labelID int64, assign bool) error {
	if err := f.takeErr(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.labelCalls = append(f.labelCalls, labelCall{
		ids: append([]int64(nil), ids...), labelID: labelID, assign: assign,
	})
	return nil
}

func (f *fakeRemote) UnsubscribeFeed(ctx context.Context, feedID int64) error {
	if err := f.takeErr(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubs = append(f.unsubs, feedID)
	return nil
}

func (f *fakeRemote) ShareToPublished(ctx context.Context, title, url, content string) error {
	return f.takeErr()
}

func (f *fakeRemote) FetchFeedIcon(ctx context.Context, feedID int64) ([]byte, error) {
	return nil, nil
}

func newTestData(t *testing.T) (*sync.Data, *fakeRemote, *db.Store) {
	t.Helper()
	store, err := db.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := &config.Config{
		ServerURL:        "http://example.com",
		Username:         "reader",
		Password:         "secret",
		FreshMaxAgeHours: 24,
		ArticleLimit:     600,
		KeepArticles:     2000,
		StalenessMinutes: 10,
	}
	remote := newFakeRemote()
	return sync.NewData(remote, store, cfg, nil), remote, store
}

func seedArticles(t *testing.T, store *db.Store, articles ...model.Article) {
	t.Helper()
	require.NoError(t, store.MergeArticles(context.Background(), articles))
}

func article(id, feedID int64, unread bool) model.Article {
	return model.Article{
		ID: id, FeedID: feedID, Title: "article", Unread: unread,
		Updated: time.Now().Add(-time.Hour), Content: "<p>x</p>",
	}
}

func TestReadStateMarksScopeAndPushesExactIDs(t *testing.T) {
	data, remote, store := newTestData(t)
	ctx := context.Background()

	require.NoError(t, store.MergeFeeds(ctx, []model.Feed{{ID: 10, CategoryID: 1}}))
	seedArticles(t, store,
		article(1, 10, true),
		article(2, 10, true),
		article(3, 10, false),
		article(4, 11, true),
	)

	task := &ReadState{Data: data, ID: 10}
	require.NoError(t, task.Update(ctx))

	require.Len(t, remote.fieldCalls, 1)
	assert.ElementsMatch(t, []int64{1, 2}, remote.fieldCalls[0])
	assert.Equal(t, api.FieldUnread, remote.lastField)
	assert.Equal(t, 0, remote.lastMode)

	n, err := store.GetUnreadCount(ctx, 10, false, data.FreshMaxAge())
	require.NoError(t, err)
	assert.Zero(t, n)

	other, err := store.GetArticle(ctx, 4)
	require.NoError(t, err)
	assert.True(t, other.Unread, "articles outside the scope stay unread")

	// Re-running changes nothing and pushes nothing.
	require.NoError(t, task.Update(ctx))
	assert.Len(t, remote.fieldCalls, 1)
}

func TestOfflineStarQueuedAndPushedOnceOnReconnect(t *testing.T) {
	data, remote, store := newTestData(t)
	ctx := context.Background()
	seedArticles(t, store, article(5, 10, true))

	data.SetOffline(true)
	task := &StarredState{Data: data, ArticleID: 5, Starred: true}
	require.NoError(t, task.Update(ctx))

	got, err := store.GetArticle(ctx, 5)
	require.NoError(t, err)
	assert.True(t, got.Starred, "the star shows up locally at once")
	assert.Empty(t, remote.fieldCalls, "nothing is pushed while offline")

	ids, err := store.GetMarked(ctx, db.MarkStarred, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{5}, ids)

	// Back online: the queued star goes out exactly once.
	data.SetOffline(false)
	require.NoError(t, data.SynchronizeStatus(ctx))
	require.Len(t, remote.fieldCalls, 1)
	assert.Equal(t, []int64{5}, remote.fieldCalls[0])

	require.NoError(t, data.SynchronizeStatus(ctx))
	assert.Len(t, remote.fieldCalls, 1, "the mark was cleared after the push")
}

func TestPushFailureQueuesWithoutRollback(t *testing.T) {
	data, remote, store := newTestData(t)
	ctx := context.Background()
	seedArticles(t, store, article(6, 10, true))

	remote.failNext = errors.New("connection reset")
	task := &UnreadState{Data: data, ArticleID: 6, Unread: false}
	require.NoError(t, task.Update(ctx), "a failed push is not an operator failure")

	got, err := store.GetArticle(ctx, 6)
	require.NoError(t, err)
	assert.False(t, got.Unread, "the local change sticks")

	ids, err := store.GetMarked(ctx, db.MarkUnread, 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{6}, ids)
}

func TestPublishedStateWithNote(t *testing.T) {
	data, remote, store := newTestData(t)
	ctx := context.Background()
	seedArticles(t, store, article(7, 10, false))

	task := &PublishedState{Data: data, ArticleID: 7, Published: true, Note: "worth sharing"}
	require.NoError(t, task.Update(ctx))

	got, err := store.GetArticle(ctx, 7)
	require.NoError(t, err)
	assert.True(t, got.Published)
	assert.Equal(t, "worth sharing", got.Note)
	assert.Equal(t, map[int64]string{7: "worth sharing"}, remote.notes)
}

func TestUnsubscribeRequiresServerAgreement(t *testing.T) {
	data, remote, store := newTestData(t)
	ctx := context.Background()

	require.NoError(t, store.MergeFeeds(ctx, []model.Feed{{ID: 10, CategoryID: 1}}))
	seedArticles(t, store, article(8, 10, true))

	remote.failNext = errors.New("server unreachable")
	task := &Unsubscribe{Data: data, FeedID: 10}
	require.Error(t, task.Update(ctx))

	feed, err := store.GetFeed(ctx, 10)
	require.NoError(t, err)
	assert.NotNil(t, feed, "local feed stays when the server refused")

	require.NoError(t, task.Update(ctx))
	feed, err = store.GetFeed(ctx, 10)
	require.NoError(t, err)
	assert.Nil(t, feed)
	assert.Equal(t, []int64{10}, remote.unsubs)
}

func TestOfflineLabelQueuedAndPushedOnReconnect(t *testing.T) {
	data, remote, store := newTestData(t)
	ctx := context.Background()
	seedArticles(t, store, article(12, 10, true))

	data.SetOffline(true)
	task := &Label{Data: data, ArticleIDs: []int64{12}, LabelID: -12, Assign: true}
	require.NoError(t, task.Update(ctx), "an offline label change queues instead of failing")

	labels, err := store.GetLabelsForArticle(ctx, 12)
	require.NoError(t, err)
	require.Len(t, labels, 1)
	assert.True(t, labels[0].Checked, "the label shows up locally at once")
	assert.Empty(t, remote.labelCalls)

	pending, err := store.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pending)

	data.SetOffline(false)
	require.NoError(t, data.SynchronizeStatus(ctx))
	require.Len(t, remote.labelCalls, 1)
	assert.Equal(t, []int64{12}, remote.labelCalls[0].ids)
	assert.Equal(t, int64(-12), remote.labelCalls[0].labelID)
	assert.True(t, remote.labelCalls[0].assign)

	require.NoError(t, data.SynchronizeStatus(ctx))
	assert.Len(t, remote.labelCalls, 1, "the queued label was cleared after the push")
}

func TestLabelPushFailureQueues(t *testing.T) {
	data, remote, store := newTestData(t)
	ctx := context.Background()
	seedArticles(t, store, article(13, 10, true))

	remote.failNext = errors.New("connection reset")
	task := &Label{Data: data, ArticleIDs: []int64{13}, LabelID: -12, Assign: true}
	require.NoError(t, task.Update(ctx))

	queued, err := store.GetQueuedLabels(ctx)
	require.NoError(t, err)
	require.Len(t, queued, 1)
	assert.Equal(t, db.QueuedLabel{ArticleID: 13, LabelID: -12, Assign: true}, queued[0])
}

func TestCatchupFallsBackLocallyWhenOffline(t *testing.T) {
	data, remote, store := newTestData(t)
	ctx := context.Background()
	seedArticles(t, store, article(9, 10, true))

	data.SetOffline(true)
	task := &Catchup{Data: data, ID: 10, IsCategory: false}
	require.NoError(t, task.Update(ctx))

	assert.Zero(t, remote.catchups)
	got, err := store.GetArticle(ctx, 9)
	require.NoError(t, err)
	assert.False(t, got.Unread)

	ids, err := store.GetMarked(ctx, db.MarkUnread, 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{9}, ids, "the offline catchup queues the read marks")
}

func TestUpdaterRunsAsync(t *testing.T) {
	data, _, store := newTestData(t)
	ctx := context.Background()
	seedArticles(t, store, article(11, 10, true))

	u := New(nil)
	done := make(chan error, 1)
	u.Go(ctx, &UnreadState{Data: data, ArticleID: 11, Unread: false}, func(err error) {
		done <- err
	})
	u.Wait()
	require.NoError(t, <-done)

	got, err := store.GetArticle(ctx, 11)
	require.NoError(t, err)
	assert.False(t, got.Unread)
}
