package model

import (
	"strings"
	"time"
)

// Reserved ids for the virtual categories the server defines. Everything in
// [VcatAll, VcatUncat] is virtual; ids below LabelIDThreshold are label
// pseudo-feeds.
const (
	VcatUncat = 0
	VcatStar  = -1
	VcatPub   = -2
	VcatFresh = -3
	VcatAll   = -4

	LabelIDThreshold = -10
)

// IsVirtualCategory reports whether id falls into the reserved virtual
// category range. Label ids (id < LabelIDThreshold) are not virtual
// categories, the server treats them as feeds.
func IsVirtualCategory(id int64) bool {
	return id >= VcatAll && id <= VcatUncat
}

// IsLabelFeed reports whether id denotes a label pseudo-feed.
func IsLabelFeed(id int64) bool {
	return id < LabelIDThreshold
}

type Category struct {
	ID     int64  `db:"id" json:"id"`
	Title  string `db:"title" json:"title"`
	Unread int    `db:"unread" json:"unread"`
}

type Feed struct {
	ID         int64  `db:"id" json:"id"`
	CategoryID int64  `db:"category_id" json:"category_id"`
	Title      string `db:"title" json:"title"`
	URL        string `db:"url" json:"url"`
	Unread     int    `db:"unread" json:"unread"`
	Icon       []byte `db:"icon" json:"-"`
}

type Article struct {
	ID           int64     `db:"id" json:"id"`
	FeedID       int64     `db:"feed_id" json:"feed_id"`
	Title        string    `db:"title" json:"title"`
	Unread       bool      `db:"is_unread" json:"unread"`
	Starred      bool      `db:"is_starred" json:"starred"`
	Published    bool      `db:"is_published" json:"published"`
	Updated      time.Time `db:"updated" json:"updated"`
	Content      string    `db:"content" json:"content,omitempty"`
	URL          string    `db:"url" json:"url"`
	CommentURL   string    `db:"comment_url" json:"comment_url,omitempty"`
	Attachments  string    `db:"attachments" json:"-"`
	Author       string    `db:"author" json:"author,omitempty"`
	Note         string    `db:"note" json:"note,omitempty"`
	CachedImages *int      `db:"cached_images" json:"-"`

	Labels []Label `db:"-" json:"labels,omitempty"`
}

// AttachmentURLs splits the semicolon-separated attachments column.
func (a *Article) AttachmentURLs() []string {
	if a.Attachments == "" {
		return nil
	}
	var urls []string
	for _, u := range strings.Split(a.Attachments, ";") {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

// JoinAttachments is the inverse of AttachmentURLs.
func JoinAttachments(urls []string) string {
	return strings.Join(urls, ";")
}

type Label struct {
	ID      int64  `db:"id" json:"id"`
	Caption string `db:"caption" json:"caption"`
	Checked bool   `db:"checked" json:"checked"`
}

// RemoteFile is one downloaded image tracked by the cache.
type RemoteFile struct {
	URL      string    `db:"url" json:"url"`
	Length   int64     `db:"length" json:"length"`
	CachedAt time.Time `db:"cached_at" json:"cached_at"`
}
