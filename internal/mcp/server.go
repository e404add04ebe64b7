package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"ttrss-cli/internal/db"
	"ttrss-cli/internal/sync"
	"ttrss-cli/internal/version"
)

// Server exposes the local article cache over MCP so AI tools can browse and
// mark the reading list.
type Server struct {
	store     *db.Store
	data      *sync.Data
	mcpServer *server.MCPServer
}

func NewServer(store *db.Store, data *sync.Data) *Server {
	s := &Server{
		store: store,
		data:  data,
	}

	s.mcpServer = server.NewMCPServer(
		"ttrss",
		version.GetVersion(),
	)

	s.registerTools()
	return s
}

// Start serves the MCP protocol over stdio until the client disconnects.
func (s *Server) Start() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.Tool{
		Name:        "list_categories",
		Description: "List all feed categories with their unread counts, including the virtual categories (Fresh, Starred, Published, All Articles).",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, s.handleListCategories)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "list_feeds",
		Description: "List subscribed feeds with unread counts, optionally restricted to one category.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"category_id": map[string]interface{}{
					"type":        "integer",
					"description": "Restrict to this category id. Omit for all feeds.",
				},
			},
		},
	}, s.handleListFeeds)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "list_articles",
		Description: "List cached articles for a feed or category, newest first. Use feed_id -1 for starred, -2 for published, -3 for fresh, -4 for all articles.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"feed_id": map[string]interface{}{
					"type":        "integer",
					"description": "Feed id, or a virtual id (-1 starred, -2 published, -3 fresh, -4 all)",
				},
				"is_category": map[string]interface{}{
					"type":        "boolean",
					"description": "Treat feed_id as a category id",
				},
				"unread_only": map[string]interface{}{
					"type":        "boolean",
					"description": "Only list unread articles",
				},
				"search": map[string]interface{}{
					"type":        "string",
					"description": "Filter by a substring of title or content",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of articles to return (default: 50)",
				},
			},
			Required: []string{"feed_id"},
		},
	}, s.handleListArticles)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "get_article",
		Description: "Get a single cached article by id with its full content.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"id": map[string]interface{}{
					"type":        "integer",
					"description": "Article id",
				},
			},
			Required: []string{"id"},
		},
	}, s.handleGetArticle)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "mark_read",
		Description: "Mark an article, feed or category as read. The change applies locally at once and is pushed to the server, or queued if the server is unreachable.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"id": map[string]interface{}{
					"type":        "integer",
					"description": "Article id, feed id, or category id",
				},
				"scope": map[string]interface{}{
					"type":        "string",
					"description": "What the id refers to (default: article)",
					"enum":        []string{"article", "feed", "category"},
				},
			},
			Required: []string{"id"},
		},
	}, s.handleMarkRead)
}
