package updater

import (
	"context"
	"fmt"

	"ttrss-cli/internal/api"
	"ttrss-cli/internal/db"
	"ttrss-cli/internal/sync"
)

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// ReadState marks every unread article in a scope as read. The scope follows
// the id convention: a positive id with IsCategory selects a category, a
// plain positive id a feed, ids in the virtual range select by predicate and
// label ids select by label.
type ReadState struct {
	Data       *sync.Data
	ID         int64
	IsCategory bool
}

func (r *ReadState) Update(ctx context.Context) error {
	ids, err := r.Data.Store().MarkRead(ctx, r.ID, r.IsCategory, r.Data.FreshMaxAge())
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	if err := r.Data.Store().CalculateCounters(ctx, r.Data.FreshMaxAge()); err != nil {
		return err
	}
	r.Data.Notify()

	if r.Data.Offline() {
		return r.Data.Store().QueueMarks(ctx, ids, db.MarkUnread, 0)
	}
	if err := r.Data.Remote().SetArticleField(ctx, ids, api.FieldUnread, 0); err != nil {
		if qerr := r.Data.Store().QueueMarks(ctx, ids, db.MarkUnread, 0); qerr != nil {
			return qerr
		}
		return nil
	}
	return nil
}

// UnreadState flips a single article between read and unread.
type UnreadState struct {
	Data      *sync.Data
	ArticleID int64
	Unread    bool
}

func (s *UnreadState) Update(ctx context.Context) error {
	return flipState(ctx, s.Data, s.ArticleID, db.MarkUnread, api.FieldUnread, boolToInt(s.Unread))
}

// StarredState flips the starred flag of a single article.
type StarredState struct {
	Data      *sync.Data
	ArticleID int64
	Starred   bool
}

func (s *StarredState) Update(ctx context.Context) error {
	return flipState(ctx, s.Data, s.ArticleID, db.MarkStarred, api.FieldStarred, boolToInt(s.Starred))
}

// PublishedState flips the published flag of a single article, optionally
// attaching a note in the same operation.
type PublishedState struct {
	Data      *sync.Data
	ArticleID int64
	Published bool
	Note      string
}

func (s *PublishedState) Update(ctx context.Context) error {
	if err := flipState(ctx, s.Data, s.ArticleID, db.MarkPublished, api.FieldPublished, boolToInt(s.Published)); err != nil {
		return err
	}
	if s.Note == "" {
		return nil
	}
	note := &Note{Data: s.Data, ArticleID: s.ArticleID, Note: s.Note}
	return note.Update(ctx)
}

func flipState(ctx context.Context, data *sync.Data, articleID int64, mark string, field, state int) error {
	ids := []int64{articleID}
	if err := data.Store().SetArticleState(ctx, ids, mark, state); err != nil {
		return err
	}
	if err := data.Store().CalculateCounters(ctx, data.FreshMaxAge()); err != nil {
		return err
	}
	data.Notify()

	if data.Offline() {
		return data.Store().QueueMarks(ctx, ids, mark, state)
	}
	if err := data.Remote().SetArticleField(ctx, ids, field, state); err != nil {
		return data.Store().QueueMarks(ctx, ids, mark, state)
	}
	return nil
}

// Note replaces the note on an article.
type Note struct {
	Data      *sync.Data
	ArticleID int64
	Note      string
}

func (n *Note) Update(ctx context.Context) error {
	if err := n.Data.Store().SetArticleNote(ctx, n.ArticleID, n.Note); err != nil {
		return err
	}
	n.Data.Notify()

	if n.Data.Offline() {
		return n.Data.Store().QueueNote(ctx, n.ArticleID, n.Note)
	}
	if err := n.Data.Remote().SetArticleNote(ctx, n.ArticleID, n.Note); err != nil {
		return n.Data.Store().QueueNote(ctx, n.ArticleID, n.Note)
	}
	return nil
}

// Label assigns or removes a label on articles.
type Label struct {
	Data       *sync.Data
	ArticleIDs []int64
	LabelID    int64
	Assign     bool
}

func (l *Label) Update(ctx context.Context) error {
	if err := l.Data.Store().SetLabel(ctx, l.ArticleIDs, l.LabelID, l.Assign); err != nil {
		return err
	}
	l.Data.Notify()

	if l.Data.Offline() {
		return l.Data.Store().QueueLabels(ctx, l.ArticleIDs, l.LabelID, l.Assign)
	}
	if err := l.Data.Remote().SetArticleLabel(ctx, l.ArticleIDs, l.LabelID, l.Assign); err != nil {
		return l.Data.Store().QueueLabels(ctx, l.ArticleIDs, l.LabelID, l.Assign)
	}
	return nil
}

// Unsubscribe removes a feed. The server is asked first, the local rows only
// go away once it agreed, so an offline client cannot diverge its feed list.
type Unsubscribe struct {
	Data   *sync.Data
	FeedID int64
}

func (u *Unsubscribe) Update(ctx context.Context) error {
	if u.Data.Offline() {
		return fmt.Errorf("cannot unsubscribe feed %d: offline", u.FeedID)
	}
	if err := u.Data.Remote().UnsubscribeFeed(ctx, u.FeedID); err != nil {
		return err
	}
	if err := u.Data.Store().DeleteFeed(ctx, u.FeedID); err != nil {
		return err
	}
	if err := u.Data.Store().CalculateCounters(ctx, u.Data.FreshMaxAge()); err != nil {
		return err
	}
	u.Data.Notify()
	return nil
}

// Catchup asks the server to mark a whole feed or category read in one call,
// then mirrors the result locally.
type Catchup struct {
	Data       *sync.Data
	ID         int64
	IsCategory bool
}

func (c *Catchup) Update(ctx context.Context) error {
	if c.Data.Offline() {
		read := &ReadState{Data: c.Data, ID: c.ID, IsCategory: c.IsCategory}
		return read.Update(ctx)
	}
	if err := c.Data.Remote().CatchupFeed(ctx, c.ID, c.IsCategory); err != nil {
		return err
	}
	if _, err := c.Data.Store().MarkRead(ctx, c.ID, c.IsCategory, c.Data.FreshMaxAge()); err != nil {
		return err
	}
	if err := c.Data.Store().CalculateCounters(ctx, c.Data.FreshMaxAge()); err != nil {
		return err
	}
	c.Data.Notify()
	return nil
}

// Share publishes a free-standing item to the user's published feed.
type Share struct {
	Data    *sync.Data
	Title   string
	URL     string
	Content string
}

func (s *Share) Update(ctx context.Context) error {
	if s.Data.Offline() {
		return fmt.Errorf("cannot share while offline")
	}
	return s.Data.Remote().ShareToPublished(ctx, s.Title, s.URL, s.Content)
}
