package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Columns of the marks table a pending state change can live in.
const (
	MarkUnread    = "is_unread"
	MarkStarred   = "is_starred"
	MarkPublished = "is_published"
)

// QueueMarks records the desired remote state for articles whose push failed
// or was skipped while offline. An UPDATE first, then INSERT OR IGNORE, so an
// article already queued for another field keeps both pending changes in one
// row.
func (s *Store) QueueMarks(ctx context.Context, ids []int64, mark string, state int) error {
	if len(ids) == 0 {
		return nil
	}
	switch mark {
	case MarkUnread, MarkStarred, MarkPublished:
	default:
		return fmt.Errorf("invalid mark column %q", mark)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query, args, err := sqlx.In(
		fmt.Sprintf("UPDATE marks SET %s = ? WHERE article_id IN (?)", mark), state, ids)
	if err != nil {
		return fmt.Errorf("failed to build mark update: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update marks: %w", err)
	}

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("INSERT OR IGNORE INTO marks (article_id, %s) VALUES (?, ?)", mark),
			id, state); err != nil {
			return fmt.Errorf("failed to queue mark for article %d: %w", id, err)
		}
	}

	return tx.Commit()
}

// GetMarked returns the article ids queued with the given state for a mark
// column.
func (s *Store) GetMarked(ctx context.Context, mark string, state int) ([]int64, error) {
	switch mark {
	case MarkUnread, MarkStarred, MarkPublished:
	default:
		return nil, fmt.Errorf("invalid mark column %q", mark)
	}

	var ids []int64
	query := fmt.Sprintf("SELECT article_id FROM marks WHERE %s = ? ORDER BY article_id", mark)
	if err := s.SelectContext(ctx, &ids, query, state); err != nil {
		return nil, fmt.Errorf("failed to query marks: %w", err)
	}
	return ids, nil
}

// ClearMarks drops a pending mark after a successful push and removes rows
// that have nothing pending anymore.
func (s *Store) ClearMarks(ctx context.Context, ids []int64, mark string) error {
	if len(ids) == 0 {
		return nil
	}
	switch mark {
	case MarkUnread, MarkStarred, MarkPublished:
	default:
		return fmt.Errorf("invalid mark column %q", mark)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query, args, err := sqlx.In(
		fmt.Sprintf("UPDATE marks SET %s = NULL WHERE article_id IN (?)", mark), ids)
	if err != nil {
		return fmt.Errorf("failed to build mark clear: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to clear marks: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM marks WHERE is_unread IS NULL AND is_starred IS NULL AND is_published IS NULL"); err != nil {
		return fmt.Errorf("failed to drop empty mark rows: %w", err)
	}

	return tx.Commit()
}

// QueueNote records a note edit awaiting push. The latest edit wins.
func (s *Store) QueueNote(ctx context.Context, articleID int64, note string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.ExecContext(ctx, `
		INSERT INTO notes_queue (article_id, note) VALUES (?, ?)
		ON CONFLICT(article_id) DO UPDATE SET note = excluded.note
	`, articleID, note); err != nil {
		return fmt.Errorf("failed to queue note for article %d: %w", articleID, err)
	}
	return nil
}

func (s *Store) GetQueuedNotes(ctx context.Context) (map[int64]string, error) {
	rows, err := s.QueryContext(ctx, "SELECT article_id, note FROM notes_queue ORDER BY article_id")
	if err != nil {
		return nil, fmt.Errorf("failed to query queued notes: %w", err)
	}
	defer rows.Close()

	notes := make(map[int64]string)
	for rows.Next() {
		var id int64
		var note string
		if err := rows.Scan(&id, &note); err != nil {
			return nil, fmt.Errorf("failed to scan queued note: %w", err)
		}
		notes[id] = note
	}
	return notes, rows.Err()
}

func (s *Store) ClearQueuedNote(ctx context.Context, articleID int64) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.ExecContext(ctx, "DELETE FROM notes_queue WHERE article_id = ?", articleID); err != nil {
		return fmt.Errorf("failed to clear queued note for article %d: %w", articleID, err)
	}
	return nil
}

// QueuedLabel is a label assignment or removal awaiting push.
type QueuedLabel struct {
	ArticleID int64 `db:"article_id"`
	LabelID   int64 `db:"label_id"`
	Assign    bool  `db:"assign"`
}

// QueueLabels records label changes awaiting push. The latest change per
// article and label wins, so assign followed by remove collapses to remove.
func (s *Store) QueueLabels(ctx context.Context, articleIDs []int64, labelID int64, assign bool) error {
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
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO labels_queue (article_id, label_id, assign) VALUES (?, ?, ?)
			ON CONFLICT(article_id, label_id) DO UPDATE SET assign = excluded.assign
		`, id, labelID, assign); err != nil {
			return fmt.Errorf("failed to queue label %d for article %d: %w", labelID, id, err)
		}
	}

	return tx.Commit()
}

func (s *Store) GetQueuedLabels(ctx context.Context) ([]QueuedLabel, error) {
	var labels []QueuedLabel
	err := s.SelectContext(ctx, &labels,
		"SELECT article_id, label_id, assign FROM labels_queue ORDER BY label_id, article_id")
	if err != nil {
		return nil, fmt.Errorf("failed to query queued labels: %w", err)
	}
	return labels, nil
}

func (s *Store) ClearQueuedLabel(ctx context.Context, articleID, labelID int64) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.ExecContext(ctx,
		"DELETE FROM labels_queue WHERE article_id = ? AND label_id = ?",
		articleID, labelID); err != nil {
		return fmt.Errorf("failed to clear queued label %d for article %d: %w", labelID, articleID, err)
	}
	return nil
}

// PendingCount reports how many articles have unsynchronized state queued,
// notes and labels included.
func (s *Store) PendingCount(ctx context.Context) (int, error) {
	var n int
	err := s.GetContext(ctx, &n, `
		SELECT (SELECT COUNT(*) FROM marks)
			+ (SELECT COUNT(*) FROM notes_queue)
			+ (SELECT COUNT(*) FROM labels_queue)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending marks: %w", err)
	}
	return n, nil
}
