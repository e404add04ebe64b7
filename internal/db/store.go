package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"ttrss-cli/internal/model"
)

// DefaultArticleLimit bounds every article query so a huge backlog on the
// server never produces an unbounded local result set.
const DefaultArticleLimit = 600

// articleRow is the database shape of an article. Timestamps are stored as
// unix seconds so the fresh-window predicate stays a plain integer compare.
type articleRow struct {
	ID           int64         `db:"id"`
	FeedID       int64         `db:"feed_id"`
	Title        string        `db:"title"`
	IsUnread     bool          `db:"is_unread"`
	IsStarred    bool          `db:"is_starred"`
	IsPublished  bool          `db:"is_published"`
	Updated      int64         `db:"updated"`
	Content      string        `db:"content"`
	URL          string        `db:"url"`
	CommentURL   string        `db:"comment_url"`
	Attachments  string        `db:"attachments"`
	Author       string        `db:"author"`
	Note         string        `db:"note"`
	CachedImages sql.NullInt64 `db:"cached_images"`
}

func (r articleRow) toModel() model.Article {
	a := model.Article{
		ID:          r.ID,
		FeedID:      r.FeedID,
		Title:       r.Title,
		Unread:      r.IsUnread,
		Starred:     r.IsStarred,
		Published:   r.IsPublished,
		Updated:     time.Unix(r.Updated, 0),
		Content:     r.Content,
		URL:         r.URL,
		CommentURL:  r.CommentURL,
		Attachments: r.Attachments,
		Author:      r.Author,
		Note:        r.Note,
	}
	if r.CachedImages.Valid {
		n := int(r.CachedImages.Int64)
		a.CachedImages = &n
	}
	return a
}

// MergeCategories upserts the given categories. Unread counts are owned by
// CalculateCounters and left untouched on conflict.
func (s *Store) MergeCategories(ctx context.Context, cats []model.Category) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, c := range cats {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO categories (id, title, unread) VALUES (?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET title = excluded.title
		`, c.ID, c.Title, c.Unread)
		if err != nil {
			return fmt.Errorf("failed to upsert category %d: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

// ReplaceVirtualCategory sets title and unread for one of the virtual
// category rows (Fresh, Starred, Published, All, Uncategorized).
func (s *Store) ReplaceVirtualCategory(ctx context.Context, c model.Category) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.ExecContext(ctx, `
		INSERT INTO categories (id, title, unread) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET title = excluded.title, unread = excluded.unread
	`, c.ID, c.Title, c.Unread)
	if err != nil {
		return fmt.Errorf("failed to upsert virtual category %d: %w", c.ID, err)
	}
	return nil
}

// MergeFeeds upserts the given feeds. Icons are fetched separately and
// preserved on conflict, as are unread counts.
func (s *Store) MergeFeeds(ctx context.Context, feeds []model.Feed) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, f := range feeds {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO feeds (id, category_id, title, url, unread) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				category_id = excluded.category_id,
				title = excluded.title,
				url = excluded.url
		`, f.ID, f.CategoryID, f.Title, f.URL, f.Unread)
		if err != nil {
			return fmt.Errorf("failed to upsert feed %d: %w", f.ID, err)
		}
	}

	return tx.Commit()
}

// MergeArticles upserts incoming articles field by field. An incoming article
// with empty content never clobbers locally stored content (headline fetches
// omit bodies). After the upsert any state still queued in the marks table is
// reapplied, so an unsynchronized local flag survives a pull that raced it.
func (s *Store) MergeArticles(ctx context.Context, articles []model.Article) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, a := range articles {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO articles (id, feed_id, title, is_unread, is_starred, is_published,
				updated, content, url, comment_url, attachments, author, note)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				feed_id = excluded.feed_id,
				title = excluded.title,
				is_unread = excluded.is_unread,
				is_starred = excluded.is_starred,
				is_published = excluded.is_published,
				updated = excluded.updated,
				content = CASE WHEN excluded.content = '' THEN articles.content ELSE excluded.content END,
				url = CASE WHEN excluded.url = '' THEN articles.url ELSE excluded.url END,
				comment_url = CASE WHEN excluded.comment_url = '' THEN articles.comment_url ELSE excluded.comment_url END,
				attachments = CASE WHEN excluded.attachments = '' THEN articles.attachments ELSE excluded.attachments END,
				author = CASE WHEN excluded.author = '' THEN articles.author ELSE excluded.author END,
				note = CASE WHEN excluded.note = '' THEN articles.note ELSE excluded.note END
		`, a.ID, a.FeedID, a.Title, a.Unread, a.Starred, a.Published,
			a.Updated.Unix(), a.Content, a.URL, a.CommentURL, a.Attachments, a.Author, a.Note)
		if err != nil {
			return fmt.Errorf("failed to upsert article %d: %w", a.ID, err)
		}

		for _, l := range a.Labels {
			if err := insertLabelTx(ctx, tx, a.ID, l); err != nil {
				return err
			}
		}
	}

	// Local mutations queued for push win over whatever the server sent.
	_, err = tx.ExecContext(ctx, `
		UPDATE articles SET
			is_unread = COALESCE((SELECT m.is_unread FROM marks m WHERE m.article_id = articles.id), is_unread),
			is_starred = COALESCE((SELECT m.is_starred FROM marks m WHERE m.article_id = articles.id), is_starred),
			is_published = COALESCE((SELECT m.is_published FROM marks m WHERE m.article_id = articles.id), is_published)
		WHERE id IN (SELECT article_id FROM marks)
	`)
	if err != nil {
		return fmt.Errorf("failed to reapply pending marks: %w", err)
	}

	return tx.Commit()
}

func insertLabelTx(ctx context.Context, tx *sqlx.Tx, articleID int64, l model.Label) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO labels (id, caption) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET caption = excluded.caption
	`, l.ID, l.Caption); err != nil {
		return fmt.Errorf("failed to upsert label %d: %w", l.ID, err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO article_labels (article_id, label_id) VALUES (?, ?)",
		articleID, l.ID); err != nil {
		return fmt.Errorf("failed to link label %d to article %d: %w", l.ID, articleID, err)
	}
	return nil
}

// CalculateCounters recomputes every unread counter from the articles table in
// a single transaction: feeds first, then real categories as sums of their
// feeds, then the virtual categories from their defining predicates.
func (s *Store) CalculateCounters(ctx context.Context, freshMaxAge time.Duration) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmts := []struct {
		query string
		args  []any
	}{
		{"UPDATE feeds SET unread = 0", nil},
		{"UPDATE categories SET unread = 0", nil},
		{`UPDATE feeds SET unread = (
			SELECT COUNT(*) FROM articles WHERE articles.feed_id = feeds.id AND articles.is_unread > 0
		)`, nil},
		{`UPDATE categories SET unread = (
			SELECT COALESCE(SUM(feeds.unread), 0) FROM feeds WHERE feeds.category_id = categories.id
		) WHERE id >= 0`, nil},
		{"UPDATE categories SET unread = (SELECT COUNT(*) FROM articles WHERE is_unread > 0) WHERE id = ?",
			[]any{model.VcatAll}},
		{"UPDATE categories SET unread = (SELECT COUNT(*) FROM articles WHERE is_unread > 0 AND updated > ?) WHERE id = ?",
			[]any{time.Now().Add(-freshMaxAge).Unix(), model.VcatFresh}},
		{"UPDATE categories SET unread = (SELECT COUNT(*) FROM articles WHERE is_unread > 0 AND is_published > 0) WHERE id = ?",
			[]any{model.VcatPub}},
		{"UPDATE categories SET unread = (SELECT COUNT(*) FROM articles WHERE is_unread > 0 AND is_starred > 0) WHERE id = ?",
			[]any{model.VcatStar}},
	}

	for _, st := range stmts {
		if _, err := tx.ExecContext(ctx, st.query, st.args...); err != nil {
			return fmt.Errorf("failed to recompute counters: %w", err)
		}
	}

	return tx.Commit()
}

// GetCategories returns all categories, virtual ones first.
func (s *Store) GetCategories(ctx context.Context) ([]model.Category, error) {
	var cats []model.Category
	err := s.SelectContext(ctx, &cats, `
		SELECT id, title, unread FROM categories
		ORDER BY CASE WHEN id < 0 THEN 0 ELSE 1 END, id, title
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	return cats, nil
}

func (s *Store) GetCategory(ctx context.Context, id int64) (*model.Category, error) {
	var c model.Category
	err := s.GetContext(ctx, &c, "SELECT id, title, unread FROM categories WHERE id = ?", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query category %d: %w", id, err)
	}
	return &c, nil
}

// GetFeeds returns feeds, optionally restricted to a category.
// Pass model.VcatAll to list every feed.
func (s *Store) GetFeeds(ctx context.Context, categoryID int64) ([]model.Feed, error) {
	query := "SELECT id, category_id, title, url, unread, icon FROM feeds"
	var args []any
	if categoryID != model.VcatAll {
		query += " WHERE category_id = ?"
		args = append(args, categoryID)
	}
	query += " ORDER BY title"

	var feeds []model.Feed
	if err := s.SelectContext(ctx, &feeds, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query feeds: %w", err)
	}
	return feeds, nil
}

func (s *Store) GetFeed(ctx context.Context, id int64) (*model.Feed, error) {
	var f model.Feed
	err := s.GetContext(ctx, &f, "SELECT id, category_id, title, url, unread, icon FROM feeds WHERE id = ?", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query feed %d: %w", id, err)
	}
	return &f, nil
}

// ArticleFilter selects articles for display. FeedID follows the id
// convention: positive ids are real feeds, ids in the virtual category range
// select by predicate, ids below the label threshold select by label.
type ArticleFilter struct {
	FeedID      int64
	IsCategory  bool
	UnreadOnly  bool
	Search      string
	Limit       int
	FreshMaxAge time.Duration
}

func (f ArticleFilter) whereClause() (string, []any) {
	var conds []string
	var args []any

	switch {
	case f.IsCategory && f.FeedID >= 0:
		conds = append(conds, "feed_id IN (SELECT id FROM feeds WHERE category_id = ?)")
		args = append(args, f.FeedID)
	case model.IsLabelFeed(f.FeedID):
		conds = append(conds, "id IN (SELECT article_id FROM article_labels WHERE label_id = ?)")
		args = append(args, f.FeedID)
	case f.FeedID == model.VcatStar:
		conds = append(conds, "is_starred > 0")
	case f.FeedID == model.VcatPub:
		conds = append(conds, "is_published > 0")
	case f.FeedID == model.VcatFresh:
		conds = append(conds, "is_unread > 0 AND updated > ?")
		args = append(args, time.Now().Add(-f.FreshMaxAge).Unix())
	case f.FeedID == model.VcatAll:
		// no restriction
	case f.FeedID == model.VcatUncat:
		conds = append(conds, "feed_id IN (SELECT id FROM feeds WHERE category_id = 0)")
	default:
		conds = append(conds, "feed_id = ?")
		args = append(args, f.FeedID)
	}

	if f.UnreadOnly && f.FeedID != model.VcatFresh {
		conds = append(conds, "is_unread > 0")
	}
	if f.Search != "" {
		conds = append(conds, "(title LIKE ? OR content LIKE ?)")
		pattern := "%" + f.Search + "%"
		args = append(args, pattern, pattern)
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// GetArticles returns articles matching the filter, newest first with the id
// as tie-breaker, bounded by the filter limit (DefaultArticleLimit if unset).
func (s *Store) GetArticles(ctx context.Context, f ArticleFilter) ([]model.Article, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultArticleLimit
	}

	where, args := f.whereClause()
	query := `SELECT id, feed_id, title, is_unread, is_starred, is_published, updated,
		content, url, comment_url, attachments, author, note, cached_images
		FROM articles` + where + " ORDER BY updated DESC, id DESC LIMIT ?"
	args = append(args, limit)

	var rows []articleRow
	if err := s.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query articles: %w", err)
	}

	articles := make([]model.Article, 0, len(rows))
	for _, r := range rows {
		articles = append(articles, r.toModel())
	}
	return articles, nil
}

func (s *Store) GetArticle(ctx context.Context, id int64) (*model.Article, error) {
	var r articleRow
	err := s.GetContext(ctx, &r, `SELECT id, feed_id, title, is_unread, is_starred, is_published,
		updated, content, url, comment_url, attachments, author, note, cached_images
		FROM articles WHERE id = ?`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query article %d: %w", id, err)
	}

	a := r.toModel()
	labels, err := s.GetLabelsForArticle(ctx, id)
	if err != nil {
		return nil, err
	}
	a.Labels = labels
	return &a, nil
}

func (s *Store) GetLabelsForArticle(ctx context.Context, articleID int64) ([]model.Label, error) {
	var labels []model.Label
	err := s.SelectContext(ctx, &labels, `
		SELECT l.id, l.caption,
			EXISTS (SELECT 1 FROM article_labels al WHERE al.label_id = l.id AND al.article_id = ?) AS checked
		FROM labels l ORDER BY l.caption
	`, articleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query labels for article %d: %w", articleID, err)
	}
	return labels, nil
}

// MaxArticleID returns the highest cached article id, used as since_id for
// incremental pulls. Zero when the cache is empty.
func (s *Store) MaxArticleID(ctx context.Context) (int64, error) {
	var id sql.NullInt64
	if err := s.GetContext(ctx, &id, "SELECT MAX(id) FROM articles"); err != nil {
		return 0, fmt.Errorf("failed to query max article id: %w", err)
	}
	return id.Int64, nil
}

// GetUnreadCount computes the live unread count for a feed or category from
// the articles table, bypassing the cached counters.
func (s *Store) GetUnreadCount(ctx context.Context, id int64, isCategory bool, freshMaxAge time.Duration) (int, error) {
	f := ArticleFilter{FeedID: id, IsCategory: isCategory, UnreadOnly: true, FreshMaxAge: freshMaxAge}
	where, args := f.whereClause()
	var n int
	if err := s.GetContext(ctx, &n, "SELECT COUNT(*) FROM articles"+where, args...); err != nil {
		return 0, fmt.Errorf("failed to count unread: %w", err)
	}
	return n, nil
}

// MarkRead flips every unread article in the given scope to read and returns
// the ids that actually changed, so the caller can push exactly those.
func (s *Store) MarkRead(ctx context.Context, id int64, isCategory bool, freshMaxAge time.Duration) ([]int64, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	f := ArticleFilter{FeedID: id, IsCategory: isCategory, UnreadOnly: true, FreshMaxAge: freshMaxAge}
	where, args := f.whereClause()

	tx, err := s.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var ids []int64
	if err := tx.SelectContext(ctx, &ids, "SELECT id FROM articles"+where, args...); err != nil {
		return nil, fmt.Errorf("failed to select unread articles: %w", err)
	}
	if len(ids) == 0 {
		return nil, tx.Commit()
	}

	query, inArgs, err := sqlx.In("UPDATE articles SET is_unread = 0 WHERE id IN (?)", ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build update: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, inArgs...); err != nil {
		return nil, fmt.Errorf("failed to mark articles read: %w", err)
	}

	return ids, tx.Commit()
}

// SetArticleState flips a single boolean column for the given articles.
func (s *Store) SetArticleState(ctx context.Context, ids []int64, column string, state int) error {
	if len(ids) == 0 {
		return nil
	}
	switch column {
	case "is_unread", "is_starred", "is_published":
	default:
		return fmt.Errorf("invalid article state column %q", column)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	query, args, err := sqlx.In(
		fmt.Sprintf("UPDATE articles SET %s = ? WHERE id IN (?)", column), state, ids)
	if err != nil {
		return fmt.Errorf("failed to build update: %w", err)
	}
	if _, err := s.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update %s: %w", column, err)
	}
	return nil
}

func (s *Store) SetArticleNote(ctx context.Context, id int64, note string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.ExecContext(ctx, "UPDATE articles SET note = ? WHERE id = ?", note, id); err != nil {
		return fmt.Errorf("failed to set note on article %d: %w", id, err)
	}
	return nil
}

// SetLabel assigns or removes a label on the given articles.
func (s *Store) SetLabel(ctx context.Context, articleIDs []int64, labelID int64, assign bool) error {
	if len(articleIDs) == 0 {
		return nil
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, id := range articleIDs {
		if assign {
			if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO labels (id) VALUES (?)", labelID); err != nil {
				return fmt.Errorf("failed to ensure label %d: %w", labelID, err)
			}
			_, err = tx.ExecContext(ctx,
				"INSERT OR IGNORE INTO article_labels (article_id, label_id) VALUES (?, ?)", id, labelID)
		} else {
			_, err = tx.ExecContext(ctx,
				"DELETE FROM article_labels WHERE article_id = ? AND label_id = ?", id, labelID)
		}
		if err != nil {
			return fmt.Errorf("failed to set label %d on article %d: %w", labelID, id, err)
		}
	}

	return tx.Commit()
}

// DeleteFeed removes a feed together with its articles and their label links.
func (s *Store) DeleteFeed(ctx context.Context, feedID int64) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM article_labels WHERE article_id IN (SELECT id FROM articles WHERE feed_id = ?)", feedID); err != nil {
		return fmt.Errorf("failed to delete label links for feed %d: %w", feedID, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM articles WHERE feed_id = ?", feedID); err != nil {
		return fmt.Errorf("failed to delete articles for feed %d: %w", feedID, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM feeds WHERE id = ?", feedID); err != nil {
		return fmt.Errorf("failed to delete feed %d: %w", feedID, err)
	}

	return tx.Commit()
}

// PurgeOrphanedArticles deletes articles whose feed no longer exists, keeping
// starred and published ones.
func (s *Store) PurgeOrphanedArticles(ctx context.Context) (int64, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.ExecContext(ctx, `
		DELETE FROM articles
		WHERE is_starred = 0 AND is_published = 0
		  AND feed_id > 0 AND feed_id NOT IN (SELECT id FROM feeds)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to purge orphaned articles: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// PurgeOldArticles trims the cache to roughly keep articles, deleting the
// oldest read, unstarred, unpublished ones first.
func (s *Store) PurgeOldArticles(ctx context.Context, keep int) (int64, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.ExecContext(ctx, `
		DELETE FROM articles
		WHERE is_starred = 0 AND is_published = 0 AND is_unread = 0
		  AND id NOT IN (SELECT id FROM articles ORDER BY updated DESC, id DESC LIMIT ?)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to purge old articles: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (s *Store) UpdateFeedIcon(ctx context.Context, feedID int64, icon []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.ExecContext(ctx, "UPDATE feeds SET icon = ? WHERE id = ?", icon, feedID); err != nil {
		return fmt.Errorf("failed to store icon for feed %d: %w", feedID, err)
	}
	return nil
}

func (s *Store) UpdateArticleContent(ctx context.Context, id int64, content string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.ExecContext(ctx, "UPDATE articles SET content = ? WHERE id = ?", content, id); err != nil {
		return fmt.Errorf("failed to update content for article %d: %w", id, err)
	}
	return nil
}

func (s *Store) UpdateArticleCachedImages(ctx context.Context, id int64, count int) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.ExecContext(ctx, "UPDATE articles SET cached_images = ? WHERE id = ?", count, id); err != nil {
		return fmt.Errorf("failed to update cached image count for article %d: %w", id, err)
	}
	return nil
}

// ArticlesNeedingImageCache returns articles whose images have not been
// processed yet, newest first.
func (s *Store) ArticlesNeedingImageCache(ctx context.Context, unreadOnly bool, limit int) ([]model.Article, error) {
	if limit <= 0 {
		limit = DefaultArticleLimit
	}
	query := `SELECT id, feed_id, title, is_unread, is_starred, is_published, updated,
		content, url, comment_url, attachments, author, note, cached_images
		FROM articles WHERE cached_images IS NULL`
	if unreadOnly {
		query += " AND is_unread > 0"
	}
	query += " ORDER BY updated DESC, id DESC LIMIT ?"

	var rows []articleRow
	if err := s.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to query articles for image cache: %w", err)
	}

	articles := make([]model.Article, 0, len(rows))
	for _, r := range rows {
		articles = append(articles, r.toModel())
	}
	return articles, nil
}
