package imagecache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"ttrss-cli/internal/util"
)

// Cache is the on-disk image store. Files are content-addressed by the hash
// of their source URL so a URL maps to exactly one file regardless of how
// hostile the URL itself is.
type Cache struct {
	dir string
}

func New(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}
	return &Cache{dir: dir}, nil
}

func (c *Cache) Dir() string {
	return c.dir
}

// FileName derives the cache filename for a URL: sha256 of the URL plus a
// slug-sanitized extension.
func (c *Cache) FileName(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return hex.EncodeToString(sum[:]) + util.SlugExt(rawURL)
}

func (c *Cache) Path(rawURL string) string {
	return filepath.Join(c.dir, c.FileName(rawURL))
}

// Contains reports whether the image for a URL is already on disk.
func (c *Cache) Contains(rawURL string) bool {
	_, err := os.Stat(c.Path(rawURL))
	return err == nil
}

// Size walks the cache directory and returns the total bytes on disk.
func (c *Cache) Size() (int64, error) {
	var total int64
	err := filepath.WalkDir(c.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to measure cache: %w", err)
	}
	return total, nil
}

// Clear deletes the whole cache directory and recreates it empty.
func (c *Cache) Clear() error {
	if err := os.RemoveAll(c.dir); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return os.MkdirAll(c.dir, 0o755)
}
