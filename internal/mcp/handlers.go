package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"ttrss-cli/internal/db"
	"ttrss-cli/internal/model"
	"ttrss-cli/internal/updater"
	"ttrss-cli/internal/util"
)

const handlerTimeout = 30 * time.Second

func (s *Server) handleListCategories(arguments map[string]interface{}) (*mcp.CallToolResult, error) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	cats, err := s.store.GetCategories(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list categories: %v", err)), nil
	}
	if len(cats) == 0 {
		return mcp.NewToolResultText("No categories cached yet. Run a sync first."), nil
	}

	var output strings.Builder
	output.WriteString(fmt.Sprintf("%d categories:\n\n", len(cats)))
	for _, c := range cats {
		output.WriteString(fmt.Sprintf("- [%d] %s (%d unread)\n", c.ID, c.Title, c.Unread))
	}
	return mcp.NewToolResultText(output.String()), nil
}

func (s *Server) handleListFeeds(arguments map[string]interface{}) (*mcp.CallToolResult, error) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	categoryID := int64(model.VcatAll)
	if v, ok := arguments["category_id"].(float64); ok {
		categoryID = int64(v)
	}

	feeds, err := s.store.GetFeeds(ctx, categoryID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list feeds: %v", err)), nil
	}
	if len(feeds) == 0 {
		return mcp.NewToolResultText("No feeds found."), nil
	}

	var output strings.Builder
	output.WriteString(fmt.Sprintf("%d feeds:\n\n", len(feeds)))
	for _, f := range feeds {
		output.WriteString(fmt.Sprintf("- [%d] %s (%d unread)\n", f.ID, f.Title, f.Unread))
	}
	return mcp.NewToolResultText(output.String()), nil
}

func (s *Server) handleListArticles(arguments map[string]interface{}) (*mcp.CallToolResult, error) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	feedIDFloat, ok := arguments["feed_id"].(float64)
	if !ok {
		return mcp.NewToolResultError("feed_id is required and must be a number"), nil
	}

	limit := 50
	if l, ok := arguments["limit"].(float64); ok {
		limit = int(l)
	}
	isCategory, _ := arguments["is_category"].(bool)
	unreadOnly, _ := arguments["unread_only"].(bool)
	search, _ := arguments["search"].(string)

	articles, err := s.store.GetArticles(ctx, db.ArticleFilter{
		FeedID:      int64(feedIDFloat),
		IsCategory:  isCategory,
		UnreadOnly:  unreadOnly,
		Search:      search,
		Limit:       limit,
		FreshMaxAge: s.data.FreshMaxAge(),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list articles: %v", err)), nil
	}
	if len(articles) == 0 {
		return mcp.NewToolResultText("No articles found matching the criteria."), nil
	}

	var output strings.Builder
	output.WriteString(fmt.Sprintf("Found %d articles:\n\n", len(articles)))
	for i, a := range articles {
		marker := " "
		if a.Unread {
			marker = "*"
		}
		output.WriteString(fmt.Sprintf("%s **%d. %s**\n", marker, i+1, a.Title))
		output.WriteString(fmt.Sprintf("ID: %d\n", a.ID))
		output.WriteString(fmt.Sprintf("Updated: %s\n", a.Updated.Format("2006-01-02 15:04")))
		if a.URL != "" {
			output.WriteString(fmt.Sprintf("URL: %s\n", a.URL))
		}
		output.WriteString("\n")
	}
	return mcp.NewToolResultText(output.String()), nil
}

func (s *Server) handleGetArticle(arguments map[string]interface{}) (*mcp.CallToolResult, error) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	idFloat, ok := arguments["id"].(float64)
	if !ok {
		return mcp.NewToolResultError("Article id is required and must be a number"), nil
	}

	article, err := s.store.GetArticle(ctx, int64(idFloat))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get article: %v", err)), nil
	}
	if article == nil {
		return mcp.NewToolResultText(fmt.Sprintf("Article %d is not in the local cache.", int64(idFloat))), nil
	}

	var output strings.Builder
	output.WriteString(fmt.Sprintf("# %s\n\n", article.Title))
	output.WriteString(fmt.Sprintf("ID: %d\n", article.ID))
	output.WriteString(fmt.Sprintf("Updated: %s\n", article.Updated.Format("2006-01-02 15:04")))
	if article.Author != "" {
		output.WriteString(fmt.Sprintf("Author: %s\n", article.Author))
	}
	if article.URL != "" {
		output.WriteString(fmt.Sprintf("URL: %s\n", article.URL))
	}
	output.WriteString(fmt.Sprintf("Unread: %v, Starred: %v, Published: %v\n", article.Unread, article.Starred, article.Published))
	if article.Note != "" {
		output.WriteString(fmt.Sprintf("Note: %s\n", article.Note))
	}
	output.WriteString("\n")
	if article.Content != "" {
		output.WriteString(util.Truncate(article.Content, 20000))
		output.WriteString("\n")
	} else {
		output.WriteString("*Content not cached.*\n")
	}
	return mcp.NewToolResultText(output.String()), nil
}

func (s *Server) handleMarkRead(arguments map[string]interface{}) (*mcp.CallToolResult, error) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	idFloat, ok := arguments["id"].(float64)
	if !ok {
		return mcp.NewToolResultError("id is required and must be a number"), nil
	}
	id := int64(idFloat)
	scope, _ := arguments["scope"].(string)

	var task updater.Updatable
	switch scope {
	case "feed":
		task = &updater.ReadState{Data: s.data, ID: id, IsCategory: false}
	case "category":
		task = &updater.ReadState{Data: s.data, ID: id, IsCategory: true}
	default:
		task = &updater.UnreadState{Data: s.data, ArticleID: id, Unread: false}
	}

	if err := task.Update(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to mark read: %v", err)), nil
	}
	return mcp.NewToolResultText("Marked as read."), nil
}
