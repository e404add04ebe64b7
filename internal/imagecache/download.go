package imagecache

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Downloader fetches single images subject to size limits. A download that is
// rejected or aborted reports a negative byte count so callers can book the
// URL as seen without treating it as cached, and never leaves a partial file
// behind.
type Downloader struct {
	client  *http.Client
	minSize int64
	maxSize int64
}

func NewDownloader(client *http.Client, minSize, maxSize int64) *Downloader {
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}
	return &Downloader{client: client, minSize: minSize, maxSize: maxSize}
}

// DownloadToFile streams rawURL into dest. The advertised Content-Length is
// checked against the size window before any bytes are written; a body that
// grows past the maximum mid-stream is aborted and the file deleted. The
// return value is the byte count on success and its negation on rejection.
func (d *Downloader) DownloadToFile(ctx context.Context, rawURL, dest string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build request for %s: %w", rawURL, err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, rawURL)
	}

	if cl := resp.ContentLength; cl > 0 {
		if cl > d.maxSize || cl < d.minSize {
			return -cl, nil
		}
	}

	f, err := os.Create(dest)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", dest, err)
	}

	written, err := io.Copy(f, io.LimitReader(resp.Body, d.maxSize+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dest)
		return -written, fmt.Errorf("failed to download %s: %w", rawURL, err)
	}

	if written > d.maxSize || written < d.minSize {
		os.Remove(dest)
		return -written, nil
	}

	return written, nil
}
