package util

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gosimple/slug"
)

// SafeFilename turns an arbitrary title into a filesystem-safe name.
func SafeFilename(name string) string {
	s := slug.Make(name)
	if len(s) > 120 {
		s = s[:120]
	}
	if s == "" {
		s = "untitled"
	}
	return s
}

// SlugExt normalizes a URL path extension into a slug-safe suffix, keeping
// cache filenames readable without trusting remote input.
func SlugExt(rawURL string) string {
	ext := strings.ToLower(filepath.Ext(rawURL))
	if i := strings.IndexAny(ext, "?#"); i >= 0 {
		ext = ext[:i]
	}
	ext = strings.TrimPrefix(ext, ".")
	ext = slug.Make(ext)
	if ext == "" || len(ext) > 8 {
		return ""
	}
	return "." + ext
}

// FormatByteSize renders a byte count for humans.
func FormatByteSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// Truncate shortens s to max runes, appending an ellipsis when cut.
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
