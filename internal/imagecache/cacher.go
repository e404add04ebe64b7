package imagecache

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"ttrss-cli/internal/db"
)

const downloadWorkers = 4

// Cacher runs the bulk image pass: walk articles whose images have not been
// processed, download what fits the size window through a bounded worker
// pool, book every URL in the store, then evict the cache back under budget.
type Cacher struct {
	store      *db.Store
	cache      *Cache
	downloader *Downloader
	logger     *log.Logger

	maxCacheSize int64
	maxAge       time.Duration
	unreadOnly   bool
	limit        int
}

type CacherOptions struct {
	MaxCacheSize int64
	MaxAge       time.Duration
	UnreadOnly   bool
	Limit        int
}

func NewCacher(store *db.Store, cache *Cache, downloader *Downloader, logger *log.Logger, opts CacherOptions) *Cacher {
	if logger == nil {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	return &Cacher{
		store:        store,
		cache:        cache,
		downloader:   downloader,
		logger:       logger,
		maxCacheSize: opts.MaxCacheSize,
		maxAge:       opts.MaxAge,
		unreadOnly:   opts.UnreadOnly,
		limit:        opts.Limit,
	}
}

// Run executes one caching pass and returns the number of images downloaded.
// The pass stops scheduling new downloads once the bytes fetched in this run
// exceed the cache budget; eviction afterwards brings the directory back
// under it.
func (c *Cacher) Run(ctx context.Context) (int, error) {
	articles, err := c.store.ArticlesNeedingImageCache(ctx, c.unreadOnly, c.limit)
	if err != nil {
		return 0, err
	}

	sem := semaphore.NewWeighted(downloadWorkers)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var downloaded int64
	var count int

	for i := range articles {
		a := &articles[i]
		urls := ExtractImageURLs(a)

		cached := 0
		articleNew := 0
		articleFailed := 0
		for _, u := range urls {
			mu.Lock()
			overBudget := downloaded > c.maxCacheSize
			mu.Unlock()
			if overBudget {
				break
			}

			if c.cache.Contains(u) {
				cached++
				continue
			}
			if seen, err := c.store.ContainsRemoteFile(ctx, u); err != nil {
				wg.Wait()
				return count, err
			} else if seen {
				continue
			}

			if err := sem.Acquire(ctx, 1); err != nil {
				wg.Wait()
				return count, err
			}
			wg.Add(1)
			go func(u string) {
				defer wg.Done()
				defer sem.Release(1)

				n, err := c.downloader.DownloadToFile(ctx, u, c.cache.Path(u))
				if err != nil {
					// Transient failure: leave the URL unbooked so the next
					// pass retries it.
					c.logger.Printf("image download failed: %v", err)
					mu.Lock()
					articleFailed++
					mu.Unlock()
					return
				}
				if rerr := c.store.RecordRemoteFile(ctx, u, n, time.Now()); rerr != nil {
					c.logger.Printf("failed to record remote file: %v", rerr)
				}
				if n > 0 {
					mu.Lock()
					downloaded += n
					count++
					articleNew++
					mu.Unlock()
				}
			}(u)
		}
		wg.Wait()

		if err := ctx.Err(); err != nil {
			return count, err
		}
		if articleFailed > 0 {
			// Keep the article queued so the failed images get another try.
			continue
		}
		if err := c.store.UpdateArticleCachedImages(ctx, a.ID, cached+articleNew); err != nil {
			return count, err
		}
	}

	if err := c.Purge(ctx); err != nil {
		c.logger.Printf("cache eviction failed: %v", err)
	}

	return count, nil
}

// Purge brings the cache directory back under the size budget in two phases:
// first delete files older than the maximum age, then, if still over budget,
// delete the least recently modified files until the total fits.
func (c *Cacher) Purge(ctx context.Context) error {
	size, err := c.cache.Size()
	if err != nil {
		return err
	}
	if size <= c.maxCacheSize {
		return nil
	}

	entries, err := os.ReadDir(c.cache.Dir())
	if err != nil {
		return err
	}

	type fileInfo struct {
		path  string
		size  int64
		mtime time.Time
	}
	var files []fileInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, fileInfo{
			path:  filepath.Join(c.cache.Dir(), e.Name()),
			size:  info.Size(),
			mtime: info.ModTime(),
		})
	}

	cutoff := time.Now().Add(-c.maxAge)
	var remaining []fileInfo
	for _, f := range files {
		if f.mtime.Before(cutoff) {
			if err := os.Remove(f.path); err == nil {
				size -= f.size
			}
			continue
		}
		remaining = append(remaining, f)
	}
	if err := c.store.DeleteRemoteFilesOlderThan(ctx, cutoff); err != nil {
		c.logger.Printf("failed to drop aged cache bookkeeping: %v", err)
	}

	if size <= c.maxCacheSize {
		return nil
	}

	sort.Slice(remaining, func(i, j int) bool {
		return remaining[i].mtime.Before(remaining[j].mtime)
	})

	var evictedNames []string
	for _, f := range remaining {
		if size <= c.maxCacheSize {
			break
		}
		if err := os.Remove(f.path); err != nil {
			continue
		}
		size -= f.size
		evictedNames = append(evictedNames, filepath.Base(f.path))
	}

	if len(evictedNames) > 0 {
		if err := c.dropBookkeepingFor(ctx, evictedNames); err != nil {
			c.logger.Printf("failed to drop evicted cache bookkeeping: %v", err)
		}
	}

	return nil
}

func (c *Cacher) dropBookkeepingFor(ctx context.Context, names []string) error {
	evicted := make(map[string]bool, len(names))
	for _, n := range names {
		evicted[n] = true
	}

	records, err := c.store.OldestRemoteFiles(ctx, 10000)
	if err != nil {
		return err
	}

	var urls []string
	for _, r := range records {
		if evicted[c.cache.FileName(r.URL)] {
			urls = append(urls, r.URL)
		}
	}
	return c.store.DeleteRemoteFiles(ctx, urls)
}
