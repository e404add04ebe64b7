package sync

import (
	"context"
	"errors"
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	"ttrss-cli/internal/api"
	"ttrss-cli/internal/config"
	"ttrss-cli/internal/db"
	"ttrss-cli/internal/model"
)

// Remote is the slice of the API client the orchestrator needs. The concrete
// client satisfies it; tests substitute a fake.
type Remote interface {
	Login(ctx context.Context) error
	GetCategories(ctx context.Context) ([]model.Category, error)
	GetFeeds(ctx context.Context) ([]model.Feed, error)
	GetHeadlines(ctx context.Context, opts api.HeadlineOptions) ([]model.Article, error)
	GetArticle(ctx context.Context, id int64) (*model.Article, error)
	SetArticleField(ctx context.Context, ids []int64, field, mode int) error
	SetArticleNote(ctx context.Context, id int64, note string) error
	CatchupFeed(ctx context.Context, id int64, isCat bool) error
	SetArticleLabel(ctx context.Context, ids []int64, labelID int64, assign bool) error
	UnsubscribeFeed(ctx context.Context, feedID int64) error
	ShareToPublished(ctx context.Context, title, url, content string) error
	FetchFeedIcon(ctx context.Context, feedID int64) ([]byte, error)
}

// Data coordinates pulls from the server into the local store. Every target
// (categories, feeds, one article scope) carries a staleness timestamp;
// a sync within the staleness window is a no-op unless forced, and concurrent
// syncs of the same target coalesce onto one network call.
type Data struct {
	remote Remote
	store  *db.Store
	cfg    *config.Config
	logger *log.Logger

	mu       sync.Mutex
	synced   map[string]time.Time
	inflight map[string]*sync.WaitGroup
	offline  bool
	lastErr  error

	listenerMu sync.Mutex
	listeners  []func()
}

func NewData(remote Remote, store *db.Store, cfg *config.Config, logger *log.Logger) *Data {
	if logger == nil {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	return &Data{
		remote:   remote,
		store:    store,
		cfg:      cfg,
		logger:   logger,
		synced:   make(map[string]time.Time),
		inflight: make(map[string]*sync.WaitGroup),
		offline:  cfg.Offline,
	}
}

// Store exposes the local store for mutation operators.
func (d *Data) Store() *db.Store {
	return d.store
}

// Remote exposes the API client for mutation operators.
func (d *Data) Remote() Remote {
	return d.remote
}

// FreshMaxAge returns the configured fresh-article window.
func (d *Data) FreshMaxAge() time.Duration {
	return d.cfg.FreshMaxAge()
}

// Subscribe registers a callback invoked after any change to the local store.
func (d *Data) Subscribe(fn func()) {
	d.listenerMu.Lock()
	defer d.listenerMu.Unlock()
	d.listeners = append(d.listeners, fn)
}

func (d *Data) Notify() {
	d.listenerMu.Lock()
	fns := make([]func(), len(d.listeners))
	copy(fns, d.listeners)
	d.listenerMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// SetOffline toggles offline mode. While offline every pull is a no-op and
// every mutation is queued locally.
func (d *Data) SetOffline(offline bool) {
	d.mu.Lock()
	d.offline = offline
	d.mu.Unlock()
}

func (d *Data) Offline() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.offline
}

// LastError returns the most recent sync failure, or nil.
func (d *Data) LastError() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastErr
}

func (d *Data) setLastError(err error) {
	d.mu.Lock()
	d.lastErr = err
	d.mu.Unlock()
}

// begin gates a sync of one target. It returns false when the target is still
// fresh, the engine is offline, or another goroutine is already syncing it
// (in which case begin waits for that sync and reports its freshness).
func (d *Data) begin(target string, force bool) (done func(ok bool), run bool) {
	for {
		d.mu.Lock()
		if d.offline {
			d.mu.Unlock()
			return nil, false
		}
		if !force {
			if at, ok := d.synced[target]; ok && time.Since(at) < d.cfg.Staleness() {
				d.mu.Unlock()
				return nil, false
			}
		}
		if wg := d.inflight[target]; wg != nil {
			d.mu.Unlock()
			wg.Wait()
			if force {
				continue
			}
			return nil, false
		}
		wg := &sync.WaitGroup{}
		wg.Add(1)
		d.inflight[target] = wg
		d.mu.Unlock()

		return func(ok bool) {
			d.mu.Lock()
			if ok {
				d.synced[target] = time.Now()
			}
			delete(d.inflight, target)
			d.mu.Unlock()
			wg.Done()
		}, true
	}
}

// UpdateCategories pulls the category list if stale.
func (d *Data) UpdateCategories(ctx context.Context, force bool) error {
	done, run := d.begin("categories", force)
	if !run {
		return nil
	}
	err := d.updateCategories(ctx)
	done(err == nil)
	if err != nil {
		d.setLastError(err)
		return err
	}
	d.Notify()
	return nil
}

func (d *Data) updateCategories(ctx context.Context) error {
	cats, err := d.remote.GetCategories(ctx)
	if err != nil {
		return err
	}
	if err := d.store.MergeCategories(ctx, cats); err != nil {
		return err
	}
	return d.updateVirtualCategories(ctx)
}

// updateVirtualCategories recomputes the counter rows for the reserved
// virtual categories from the local articles table.
func (d *Data) updateVirtualCategories(ctx context.Context) error {
	if err := d.store.CalculateCounters(ctx, d.cfg.FreshMaxAge()); err != nil {
		return err
	}
	vcats := []model.Category{
		{ID: model.VcatAll, Title: "All Articles"},
		{ID: model.VcatFresh, Title: "Fresh Articles"},
		{ID: model.VcatPub, Title: "Published"},
		{ID: model.VcatStar, Title: "Starred"},
		{ID: model.VcatUncat, Title: "Uncategorized"},
	}
	for _, c := range vcats {
		n, err := d.store.GetUnreadCount(ctx, c.ID, false, d.cfg.FreshMaxAge())
		if err != nil {
			return err
		}
		c.Unread = n
		if err := d.store.ReplaceVirtualCategory(ctx, c); err != nil {
			return err
		}
	}
	return d.store.CalculateCounters(ctx, d.cfg.FreshMaxAge())
}

// UpdateFeeds pulls the feed list if stale and fetches icons for feeds that
// have none yet.
func (d *Data) UpdateFeeds(ctx context.Context, force bool) error {
	done, run := d.begin("feeds", force)
	if !run {
		return nil
	}
	err := d.updateFeeds(ctx)
	done(err == nil)
	if err != nil {
		d.setLastError(err)
		return err
	}
	d.Notify()
	return nil
}

func (d *Data) updateFeeds(ctx context.Context) error {
	feeds, err := d.remote.GetFeeds(ctx)
	if err != nil {
		return err
	}
	if err := d.store.MergeFeeds(ctx, feeds); err != nil {
		return err
	}

	for _, f := range feeds {
		if f.ID <= 0 {
			continue
		}
		existing, err := d.store.GetFeed(ctx, f.ID)
		if err != nil {
			return err
		}
		if existing == nil || len(existing.Icon) > 0 {
			continue
		}
		icon, err := d.remote.FetchFeedIcon(ctx, f.ID)
		if err != nil {
			d.logger.Printf("icon fetch for feed %d failed: %v", f.ID, err)
			continue
		}
		if len(icon) > 0 {
			if err := d.store.UpdateFeedIcon(ctx, f.ID, icon); err != nil {
				return err
			}
		}
	}
	return nil
}

// UpdateArticles pulls headlines for one feed or category scope if stale.
func (d *Data) UpdateArticles(ctx context.Context, feedID int64, unreadOnly, isCat, force bool) error {
	target := articleTarget(feedID, unreadOnly, isCat)
	done, run := d.begin(target, force)
	if !run {
		return nil
	}
	err := d.updateArticles(ctx, feedID, unreadOnly, isCat)
	done(err == nil)
	if err != nil {
		d.setLastError(err)
		return err
	}
	d.Notify()
	return nil
}

func articleTarget(feedID int64, unreadOnly, isCat bool) string {
	target := "articles/feed/"
	if isCat {
		target = "articles/cat/"
	}
	target += strconv.FormatInt(feedID, 10)
	if unreadOnly {
		target += "/unread"
	}
	return target
}

func (d *Data) updateArticles(ctx context.Context, feedID int64, unreadOnly, isCat bool) error {
	viewMode := api.ViewAll
	if unreadOnly {
		viewMode = api.ViewUnread
	}
	articles, err := d.remote.GetHeadlines(ctx, api.HeadlineOptions{
		FeedID:      feedID,
		IsCat:       isCat,
		Limit:       d.cfg.ArticleLimit,
		ViewMode:    viewMode,
		ShowContent: true,
	})
	if err != nil {
		return err
	}
	if err := d.store.MergeArticles(ctx, articles); err != nil {
		return err
	}
	return d.store.CalculateCounters(ctx, d.cfg.FreshMaxAge())
}

// CacheNewArticles pulls everything newer than the highest cached article id,
// so a full backlog fetch happens only on the very first sync.
func (d *Data) CacheNewArticles(ctx context.Context, force bool) error {
	done, run := d.begin("articles/new", force)
	if !run {
		return nil
	}
	err := d.cacheNewArticles(ctx)
	done(err == nil)
	if err != nil {
		d.setLastError(err)
		return err
	}
	d.Notify()
	return nil
}

func (d *Data) cacheNewArticles(ctx context.Context) error {
	sinceID, err := d.store.MaxArticleID(ctx)
	if err != nil {
		return err
	}

	opts := api.HeadlineOptions{
		FeedID:      model.VcatAll,
		IsCat:       true,
		Limit:       d.cfg.ArticleLimit,
		ViewMode:    api.ViewAll,
		ShowContent: true,
	}
	if sinceID > 0 {
		opts.SinceID = sinceID
	} else {
		opts.ViewMode = api.ViewUnread
	}

	articles, err := d.remote.GetHeadlines(ctx, opts)
	if err != nil {
		return err
	}
	if err := d.store.MergeArticles(ctx, articles); err != nil {
		return err
	}
	return d.store.CalculateCounters(ctx, d.cfg.FreshMaxAge())
}

// Sync runs a full cycle: push queued state, pull categories, feeds and new
// articles, then trim the article cache.
func (d *Data) Sync(ctx context.Context, force bool) error {
	if d.Offline() {
		return errors.New("offline")
	}

	if err := d.SynchronizeStatus(ctx); err != nil {
		return err
	}
	if err := d.UpdateCategories(ctx, force); err != nil {
		return err
	}
	if err := d.UpdateFeeds(ctx, force); err != nil {
		return err
	}
	if err := d.CacheNewArticles(ctx, force); err != nil {
		return err
	}

	if _, err := d.store.PurgeOrphanedArticles(ctx); err != nil {
		return err
	}
	if _, err := d.store.PurgeOldArticles(ctx, d.cfg.KeepArticles); err != nil {
		return err
	}
	d.setLastError(nil)
	return nil
}
