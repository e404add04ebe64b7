package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"ttrss-cli/internal/model"
)

// RecordRemoteFile books a downloaded image into the remote_files table.
// A negative length marks a rejected download so it is not retried.
func (s *Store) RecordRemoteFile(ctx context.Context, url string, length int64, cachedAt time.Time) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.ExecContext(ctx, `
		INSERT INTO remote_files (url, length, cached_at) VALUES (?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET length = excluded.length, cached_at = excluded.cached_at
	`, url, length, cachedAt.Unix()); err != nil {
		return fmt.Errorf("failed to record remote file: %w", err)
	}
	return nil
}

// ContainsRemoteFile reports whether a URL was already downloaded or rejected.
func (s *Store) ContainsRemoteFile(ctx context.Context, url string) (bool, error) {
	var n int
	if err := s.GetContext(ctx, &n, "SELECT COUNT(*) FROM remote_files WHERE url = ?", url); err != nil {
		return false, fmt.Errorf("failed to query remote file: %w", err)
	}
	return n > 0, nil
}

// RemoteFilesSize returns the total bytes booked for successfully cached
// files. Rejected entries carry negative lengths and are excluded.
func (s *Store) RemoteFilesSize(ctx context.Context) (int64, error) {
	var size int64
	err := s.GetContext(ctx, &size,
		"SELECT COALESCE(SUM(length), 0) FROM remote_files WHERE length > 0")
	if err != nil {
		return 0, fmt.Errorf("failed to sum remote file sizes: %w", err)
	}
	return size, nil
}

type remoteFileRow struct {
	URL      string `db:"url"`
	Length   int64  `db:"length"`
	CachedAt int64  `db:"cached_at"`
}

// OldestRemoteFiles returns cached entries ordered oldest first, for eviction.
func (s *Store) OldestRemoteFiles(ctx context.Context, limit int) ([]model.RemoteFile, error) {
	var rows []remoteFileRow
	err := s.SelectContext(ctx, &rows, `
		SELECT url, length, cached_at FROM remote_files
		WHERE length > 0 ORDER BY cached_at, url LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query oldest remote files: %w", err)
	}

	files := make([]model.RemoteFile, 0, len(rows))
	for _, r := range rows {
		files = append(files, model.RemoteFile{
			URL:      r.URL,
			Length:   r.Length,
			CachedAt: time.Unix(r.CachedAt, 0),
		})
	}
	return files, nil
}

func (s *Store) DeleteRemoteFiles(ctx context.Context, urls []string) error {
	if len(urls) == 0 {
		return nil
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	query, args, err := sqlx.In("DELETE FROM remote_files WHERE url IN (?)", urls)
	if err != nil {
		return fmt.Errorf("failed to build remote file delete: %w", err)
	}
	if _, err := s.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete remote files: %w", err)
	}
	return nil
}

// DeleteRemoteFilesOlderThan drops bookkeeping rows for entries cached before
// the cutoff.
func (s *Store) DeleteRemoteFilesOlderThan(ctx context.Context, cutoff time.Time) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.ExecContext(ctx,
		"DELETE FROM remote_files WHERE length > 0 AND cached_at < ?", cutoff.Unix()); err != nil {
		return fmt.Errorf("failed to delete aged remote files: %w", err)
	}
	return nil
}

// ClearRemoteFiles wipes all bookkeeping, used when the cache directory is
// deleted wholesale.
func (s *Store) ClearRemoteFiles(ctx context.Context) (int64, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.ExecContext(ctx, "DELETE FROM remote_files")
	if err != nil {
		return 0, fmt.Errorf("failed to clear remote files: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
