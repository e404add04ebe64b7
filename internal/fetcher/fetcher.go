// Package fetcher fills in article bodies for feeds that only ship excerpts.
// It downloads the article page, runs readability extraction over it and
// stores the result back into the local cache.
package fetcher

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-shiori/go-readability"

	"ttrss-cli/internal/db"
	"ttrss-cli/internal/model"
)

// MinContentLength is the threshold below which a cached body counts as an
// excerpt worth refetching.
const MinContentLength = 300

type Fetcher struct {
	client *http.Client
	store  *db.Store
	logger *log.Logger
}

func New(store *db.Store, logger *log.Logger) *Fetcher {
	if logger == nil {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	return &Fetcher{
		client: &http.Client{Timeout: 30 * time.Second},
		store:  store,
		logger: logger,
	}
}

// FetchFullContent extracts the readable body from the article's page and
// persists it when it improves on what is cached. Returns the content that
// should be displayed.
func (f *Fetcher) FetchFullContent(ctx context.Context, article *model.Article) (string, error) {
	if article.URL == "" {
		return article.Content, fmt.Errorf("article %d has no URL", article.ID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, article.URL, nil)
	if err != nil {
		return article.Content, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", "ttrss-cli/1.0")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return article.Content, fmt.Errorf("failed to fetch %s: %w", article.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return article.Content, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, article.URL)
	}

	result, err := readability.FromReader(resp.Body, resp.Request.URL)
	if err != nil {
		return article.Content, fmt.Errorf("failed to extract content: %w", err)
	}

	if len(result.Content) <= len(article.Content) {
		return article.Content, nil
	}

	if err := f.store.UpdateArticleContent(ctx, article.ID, result.Content); err != nil {
		f.logger.Printf("failed to store fetched content for article %d: %v", article.ID, err)
	}
	return result.Content, nil
}

// NeedsFetch reports whether the cached body looks like an excerpt.
func NeedsFetch(article *model.Article) bool {
	return len(article.Content) < MinContentLength && article.URL != ""
}
