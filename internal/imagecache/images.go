package imagecache

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"ttrss-cli/internal/model"
)

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".svg"}

// ExtractImageURLs collects the downloadable image URLs of an article: img
// sources from the HTML content plus any attachment that looks like an image.
// Scheme-relative URLs are normalized, everything non-http is dropped.
func ExtractImageURLs(a *model.Article) []string {
	seen := make(map[string]bool)
	var urls []string

	add := func(u string) {
		u = strings.TrimSpace(u)
		if strings.HasPrefix(u, "//") {
			u = "https:" + u
		}
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			return
		}
		if !seen[u] {
			seen[u] = true
			urls = append(urls, u)
		}
	}

	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(a.Content)); err == nil {
		doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
			if src, ok := sel.Attr("src"); ok {
				add(src)
			}
		})
	}

	for _, u := range a.AttachmentURLs() {
		if hasImageExtension(u) {
			add(u)
		}
	}

	return urls
}

func hasImageExtension(u string) bool {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	u = strings.ToLower(u)
	for _, ext := range imageExtensions {
		if strings.HasSuffix(u, ext) {
			return true
		}
	}
	return false
}
