// Package export renders cached articles into markdown files with YAML
// front matter, suitable for dropping into a notes vault.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"gopkg.in/yaml.v3"

	"ttrss-cli/internal/db"
	"ttrss-cli/internal/model"
	"ttrss-cli/internal/util"
)

type Export struct {
	store     *db.Store
	converter *md.Converter
}

type Options struct {
	Directory  string
	FeedID     int64
	IsCategory bool
	UnreadOnly bool
	Limit      int
}

type frontMatter struct {
	Title      string    `yaml:"title"`
	Feed       string    `yaml:"feed,omitempty"`
	Author     string    `yaml:"author,omitempty"`
	Published  time.Time `yaml:"published"`
	ExportedAt time.Time `yaml:"exported_at"`
	Source     string    `yaml:"source"`
	Starred    bool      `yaml:"starred,omitempty"`
	Note       string    `yaml:"note,omitempty"`
	Tags       []string  `yaml:"tags,omitempty"`
}

func New(store *db.Store) *Export {
	return &Export{
		store:     store,
		converter: md.NewConverter("", true, nil),
	}
}

// ExportArticle writes one article to outPath, or to stdout when requested.
func (e *Export) ExportArticle(ctx context.Context, id int64, outPath string, stdout bool) error {
	article, err := e.store.GetArticle(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get article: %w", err)
	}
	if article == nil {
		return fmt.Errorf("article %d not cached", id)
	}

	content, err := e.buildMarkdownContent(ctx, article)
	if err != nil {
		return fmt.Errorf("failed to build content: %w", err)
	}

	if stdout {
		fmt.Print(content)
		return nil
	}

	if outPath == "" {
		outPath = e.generateFilename(article)
	}
	if err := os.WriteFile(outPath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	fmt.Printf("Exported article to: %s\n", outPath)
	return nil
}

// ExportAll writes every article in the scope into the target directory.
func (e *Export) ExportAll(ctx context.Context, opts Options) error {
	if err := os.MkdirAll(opts.Directory, 0o755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}

	articles, err := e.store.GetArticles(ctx, db.ArticleFilter{
		FeedID:     opts.FeedID,
		IsCategory: opts.IsCategory,
		UnreadOnly: opts.UnreadOnly,
		Limit:      opts.Limit,
	})
	if err != nil {
		return fmt.Errorf("failed to get articles: %w", err)
	}

	if len(articles) == 0 {
		fmt.Println("No articles found matching criteria.")
		return nil
	}

	fmt.Printf("Exporting %d articles...\n", len(articles))

	exported := 0
	for i := range articles {
		a := &articles[i]
		content, err := e.buildMarkdownContent(ctx, a)
		if err != nil {
			fmt.Printf("Failed to export article %d (%s): %v\n", a.ID, a.Title, err)
			continue
		}

		path := resolveCollision(filepath.Join(opts.Directory, e.generateFilename(a)))
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			fmt.Printf("Failed to export article %d (%s): %v\n", a.ID, a.Title, err)
			continue
		}
		exported++
	}

	fmt.Printf("Export completed: %d articles\n", exported)
	return nil
}

func (e *Export) buildMarkdownContent(ctx context.Context, article *model.Article) (string, error) {
	tags := []string{"ttrss"}
	for _, l := range article.Labels {
		if l.Checked {
			tags = append(tags, l.Caption)
		}
	}

	fm := frontMatter{
		Title:      article.Title,
		Author:     article.Author,
		Published:  article.Updated,
		ExportedAt: time.Now().UTC(),
		Source:     article.URL,
		Starred:    article.Starred,
		Note:       article.Note,
		Tags:       tags,
	}
	if feed, err := e.store.GetFeed(ctx, article.FeedID); err == nil && feed != nil {
		fm.Feed = feed.Title
	}

	yamlBytes, err := yaml.Marshal(fm)
	if err != nil {
		return "", fmt.Errorf("failed to marshal frontmatter: %w", err)
	}

	var content strings.Builder
	content.WriteString("---\n")
	content.Write(yamlBytes)
	content.WriteString("---\n\n")

	if article.Content != "" {
		markdown, err := e.converter.ConvertString(article.Content)
		if err != nil {
			return "", fmt.Errorf("failed to convert content: %w", err)
		}
		content.WriteString(markdown)
		content.WriteString("\n")
	} else {
		content.WriteString(fmt.Sprintf("*Article content not cached. Source: %s*\n", article.URL))
	}

	return content.String(), nil
}

func (e *Export) generateFilename(article *model.Article) string {
	return fmt.Sprintf("%s-%d.md", util.SafeFilename(article.Title), article.ID)
}

func resolveCollision(path string) string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}

	dir := filepath.Dir(path)
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(filepath.Base(path), ext)

	for counter := 2; counter <= 100; counter++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s-%d%s", base, counter, ext))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
	return path
}
