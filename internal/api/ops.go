package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ttrss-cli/internal/model"
)

// flexInt tolerates the server sending numeric fields as either numbers or
// strings, which varies between TTRSS versions.
type flexInt int64

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

type wireCategory struct {
	ID     flexInt `json:"id"`
	Title  string  `json:"title"`
	Unread flexInt `json:"unread"`
}

type wireFeed struct {
	ID     flexInt `json:"id"`
	CatID  flexInt `json:"cat_id"`
	Title  string  `json:"title"`
	URL    string  `json:"feed_url"`
	Unread flexInt `json:"unread"`
}

type wireAttachment struct {
	ContentURL string `json:"content_url"`
}

type wireArticle struct {
	ID           flexInt           `json:"id"`
	FeedID       flexInt           `json:"feed_id"`
	Title        string            `json:"title"`
	Unread       bool              `json:"unread"`
	Marked       bool              `json:"marked"`
	Published    bool              `json:"published"`
	Updated      int64             `json:"updated"`
	Content      string            `json:"content"`
	Link         string            `json:"link"`
	CommentsLink string            `json:"comments_link"`
	Author       string            `json:"author"`
	Note         string            `json:"note"`
	Attachments  []wireAttachment  `json:"attachments"`
	Labels       []json.RawMessage `json:"labels"`
}

func (w *wireArticle) toModel() model.Article {
	a := model.Article{
		ID:         int64(w.ID),
		FeedID:     int64(w.FeedID),
		Title:      w.Title,
		Unread:     w.Unread,
		Starred:    w.Marked,
		Published:  w.Published,
		Updated:    time.Unix(w.Updated, 0).UTC(),
		Content:    w.Content,
		URL:        w.Link,
		CommentURL: w.CommentsLink,
		Author:     w.Author,
		Note:       w.Note,
	}

	var urls []string
	for _, att := range w.Attachments {
		u := att.ContentURL
		// Scheme-relative URLs are common in attachment payloads.
		if strings.HasPrefix(u, "//") {
			u = "https:" + u
		}
		if u != "" {
			urls = append(urls, u)
		}
	}
	a.Attachments = model.JoinAttachments(urls)

	for _, raw := range w.Labels {
		// Each label is a tuple [id, caption, fg, bg].
		var tuple []json.RawMessage
		if err := json.Unmarshal(raw, &tuple); err != nil || len(tuple) < 2 {
			continue
		}
		var id flexInt
		var caption string
		if json.Unmarshal(tuple[0], &id) != nil {
			continue
		}
		_ = json.Unmarshal(tuple[1], &caption)
		a.Labels = append(a.Labels, model.Label{ID: int64(id), Caption: caption, Checked: true})
	}
	return a
}

// GetCategories returns the real categories known to the server.
func (c *Client) GetCategories(ctx context.Context) ([]model.Category, error) {
	var wire []wireCategory
	params := map[string]interface{}{"include_empty": true}
	if err := c.call(ctx, opGetCategories, params, &wire, false); err != nil {
		return nil, err
	}
	cats := make([]model.Category, 0, len(wire))
	for _, w := range wire {
		cats = append(cats, model.Category{ID: int64(w.ID), Title: w.Title, Unread: int(w.Unread)})
	}
	return cats, nil
}

// GetFeeds returns all subscribed feeds regardless of category; the caller
// filters by category id.
func (c *Client) GetFeeds(ctx context.Context) ([]model.Feed, error) {
	var wire []wireFeed
	params := map[string]interface{}{
		"cat_id":      model.VcatAll,
		"unread_only": false,
	}
	if err := c.call(ctx, opGetFeeds, params, &wire, false); err != nil {
		return nil, err
	}
	feeds := make([]model.Feed, 0, len(wire))
	for _, w := range wire {
		feeds = append(feeds, model.Feed{
			ID:         int64(w.ID),
			CategoryID: int64(w.CatID),
			Title:      w.Title,
			URL:        w.URL,
			Unread:     int(w.Unread),
		})
	}
	return feeds, nil
}

// HeadlineOptions selects what GetHeadlines pulls.
type HeadlineOptions struct {
	FeedID      int64
	IsCat       bool
	Limit       int
	ViewMode    string // ViewAll or ViewUnread
	SinceID     int64
	ShowContent bool
}

// GetHeadlines pulls article headlines, batching through the server's
// per-call limit until opts.Limit articles were received or the server runs
// out. Headline calls use the slow timeout, they are expensive on
// constrained servers.
func (c *Client) GetHeadlines(ctx context.Context, opts HeadlineOptions) ([]model.Article, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = HeadlineLimit
	}
	viewMode := opts.ViewMode
	if viewMode == "" {
		viewMode = ViewAll
	}

	var articles []model.Article
	for skip := 0; skip < limit; {
		chunk := limit - skip
		if chunk > HeadlineLimit {
			chunk = HeadlineLimit
		}

		params := map[string]interface{}{
			"feed_id":             opts.FeedID,
			"limit":               chunk,
			"view_mode":           viewMode,
			"is_cat":              opts.IsCat,
			"show_content":        opts.ShowContent,
			"include_attachments": true,
			"skip":                skip,
		}
		if opts.SinceID > 0 {
			params["since_id"] = opts.SinceID
		}

		var wire []wireArticle
		if err := c.call(ctx, opGetHeadlines, params, &wire, true); err != nil {
			return articles, err
		}
		for i := range wire {
			articles = append(articles, wire[i].toModel())
		}
		if len(wire) < chunk {
			break
		}
		skip += len(wire)
	}
	return articles, nil
}

// GetArticle fetches one article including its full content.
func (c *Client) GetArticle(ctx context.Context, id int64) (*model.Article, error) {
	var wire []wireArticle
	params := map[string]interface{}{"article_id": id}
	if err := c.call(ctx, opGetArticle, params, &wire, true); err != nil {
		return nil, err
	}
	if len(wire) == 0 {
		return nil, newError(KindServer, opGetArticle, fmt.Sprintf("article %d not found", id), nil)
	}
	a := wire[0].toModel()
	return &a, nil
}

// SetArticleField flips one boolean field (starred/published/unread) on the
// given articles. mode is 0 (clear) or 1 (set).
func (c *Client) SetArticleField(ctx context.Context, ids []int64, field, mode int) error {
	if len(ids) == 0 {
		return nil
	}
	params := map[string]interface{}{
		"article_ids": joinIDs(ids),
		"field":       field,
		"mode":        mode,
	}
	return c.callNoAnswer(ctx, opUpdateArticle, params)
}

// SetArticleNote attaches a free-text note to an article.
func (c *Client) SetArticleNote(ctx context.Context, id int64, note string) error {
	params := map[string]interface{}{
		"article_ids": strconv.FormatInt(id, 10),
		"field":       FieldNote,
		"mode":        1,
		"data":        note,
	}
	return c.callNoAnswer(ctx, opUpdateArticle, params)
}

// CatchupFeed marks a whole feed or category as read server-side.
func (c *Client) CatchupFeed(ctx context.Context, id int64, isCat bool) error {
	params := map[string]interface{}{
		"feed_id": id,
		"is_cat":  isCat,
	}
	return c.callNoAnswer(ctx, opCatchupFeed, params)
}

// SetArticleLabel assigns or removes a label on the given articles.
func (c *Client) SetArticleLabel(ctx context.Context, ids []int64, labelID int64, assign bool) error {
	if len(ids) == 0 {
		return nil
	}
	params := map[string]interface{}{
		"article_ids": joinIDs(ids),
		"label_id":    labelID,
		"assign":      assign,
	}
	return c.callNoAnswer(ctx, opSetArticleLabel, params)
}

// UnsubscribeFeed removes the subscription server-side.
func (c *Client) UnsubscribeFeed(ctx context.Context, feedID int64) error {
	params := map[string]interface{}{"feed_id": feedID}
	var res statusResult
	if err := c.call(ctx, opUnsubscribeFeed, params, &res, false); err != nil {
		return err
	}
	if res.Status != "OK" {
		return newError(KindServer, opUnsubscribeFeed, "unsubscribe not acknowledged", nil)
	}
	return nil
}

// ShareToPublished publishes arbitrary content through the server.
func (c *Client) ShareToPublished(ctx context.Context, title, url, content string) error {
	params := map[string]interface{}{
		"title":   title,
		"url":     url,
		"content": content,
	}
	return c.callNoAnswer(ctx, opShareToPublished, params)
}

// FetchFeedIcon downloads the favicon the server keeps for a feed. Icons
// live outside the JSON API under feed-icons/.
func (c *Client) FetchFeedIcon(ctx context.Context, feedID int64) ([]byte, error) {
	base := strings.TrimSuffix(c.endpoint, "/api/")
	url := fmt.Sprintf("%s/feed-icons/%d.ico", base, feedID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, newError(KindServer, "feedIcon", "build request", err)
	}
	if c.basicAuth != "" {
		req.Header.Set("Authorization", "Basic "+c.basicAuth)
	}

	resp, err := c.fast.Do(req)
	if err != nil {
		return nil, transportError("feedIcon", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, newError(KindServer, "feedIcon", fmt.Sprintf("server returned status %d", resp.StatusCode), nil)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
}
