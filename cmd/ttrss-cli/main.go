package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"ttrss-cli/internal/api"
	"ttrss-cli/internal/config"
	"ttrss-cli/internal/db"
	"ttrss-cli/internal/export"
	"ttrss-cli/internal/fetcher"
	"ttrss-cli/internal/imagecache"
	"ttrss-cli/internal/mcp"
	"ttrss-cli/internal/model"
	syncpkg "ttrss-cli/internal/sync"
	"ttrss-cli/internal/updater"
	"ttrss-cli/internal/util"
	"ttrss-cli/internal/version"

	"github.com/spf13/cobra"
)

var (
	cfgPath string
	offline bool

	cfg    *config.Config
	store  *db.Store
	client *api.Client
	data   *syncpkg.Data
	upd    *updater.Updater
	logger *log.Logger
)

func init() {
	cobra.OnInitialize(initApp)
}

func initApp() {
	logger = log.New(os.Stderr, "", log.LstdFlags)

	var err error
	if cfgPath == "" {
		cfgPath = config.DefaultPath()
	}
	cfg, err = config.Load(cfgPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if offline {
		cfg.Offline = true
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}
	store, err = db.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	client = api.NewClient(api.Config{
		BaseURL:      cfg.ServerURL,
		Username:     cfg.Username,
		Password:     cfg.Password,
		HTTPUser:     cfg.HTTPUser,
		HTTPPassword: cfg.HTTPPassword,
		LazyServer:   cfg.LazyServer,
	})
	data = syncpkg.NewData(client, store, cfg, logger)
	upd = updater.New(logger)
}

// requireOnline rejects remote commands when the config has no credentials
// or offline mode is forced.
func requireOnline() error {
	if cfg.Offline {
		return fmt.Errorf("running in offline mode")
	}
	return cfg.Validate()
}

func main() {
	var rootCmd = &cobra.Command{
		Use:   "ttrss-cli",
		Short: "An offline-capable client for Tiny Tiny RSS",
		Long:  "Sync, browse, and mark articles from a Tiny Tiny RSS server with a local cache that works offline",
	}

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to config file")
	rootCmd.PersistentFlags().BoolVar(&offline, "offline", false, "Work against the local cache only")

	var syncCmd = &cobra.Command{
		Use:   "sync",
		Short: "Push queued changes and pull new articles",
		RunE:  runSync,
	}
	syncCmd.Flags().Bool("force", false, "Sync even if the cache is still fresh")

	var categoriesCmd = &cobra.Command{
		Use:   "categories",
		Short: "List categories with unread counts",
		RunE:  runCategories,
	}
	categoriesCmd.Flags().Bool("json", false, "Output as JSON")

	var feedsCmd = &cobra.Command{
		Use:   "feeds",
		Short: "List feeds with unread counts",
		RunE:  runFeeds,
	}
	feedsCmd.Flags().Int64("category", model.VcatAll, "Restrict to a category id")
	feedsCmd.Flags().Bool("json", false, "Output as JSON")

	var articlesCmd = &cobra.Command{
		Use:   "articles [feed-id]",
		Short: "List cached articles for a feed or category",
		Long:  "List cached articles. Virtual ids work too: -1 starred, -2 published, -3 fresh, -4 all articles.",
		Args:  cobra.ExactArgs(1),
		RunE:  runArticles,
	}
	articlesCmd.Flags().Bool("category", false, "Treat the id as a category id")
	articlesCmd.Flags().Bool("unread", false, "Only unread articles")
	articlesCmd.Flags().Bool("refresh", false, "Pull this scope from the server before listing")
	articlesCmd.Flags().String("search", "", "Filter by a substring of title or content")
	articlesCmd.Flags().Int("limit", 50, "Maximum number of articles")
	articlesCmd.Flags().Bool("json", false, "Output as JSON")

	var articleCmd = &cobra.Command{
		Use:   "article [id]",
		Short: "Show a single article",
		Args:  cobra.ExactArgs(1),
		RunE:  runArticle,
	}
	articleCmd.Flags().Bool("fetch", false, "Fetch the full content from the article page if the cached body is an excerpt")
	articleCmd.Flags().Bool("markdown", false, "Render as markdown with front matter")
	articleCmd.Flags().Bool("json", false, "Output as JSON")

	var readCmd = &cobra.Command{
		Use:   "read [id]",
		Short: "Mark an article, feed or category as read",
		Args:  cobra.ExactArgs(1),
		RunE:  runRead,
	}
	readCmd.Flags().Bool("feed", false, "Treat the id as a feed id and mark everything in it")
	readCmd.Flags().Bool("category", false, "Treat the id as a category id and mark everything in it")
	readCmd.Flags().Bool("unread", false, "Mark as unread instead")

	var catchupCmd = &cobra.Command{
		Use:   "catchup [feed-id]",
		Short: "Ask the server to mark a whole feed or category as read",
		Args:  cobra.ExactArgs(1),
		RunE:  runCatchup,
	}
	catchupCmd.Flags().Bool("category", false, "Treat the id as a category id")

	var starCmd = &cobra.Command{
		Use:   "star [id]",
		Short: "Star or unstar an article",
		Args:  cobra.ExactArgs(1),
		RunE:  runStar,
	}
	starCmd.Flags().Bool("remove", false, "Remove the star")

	var publishCmd = &cobra.Command{
		Use:   "publish [id]",
		Short: "Publish or unpublish an article",
		Args:  cobra.ExactArgs(1),
		RunE:  runPublish,
	}
	publishCmd.Flags().Bool("remove", false, "Unpublish")
	publishCmd.Flags().String("note", "", "Attach a note")

	var noteCmd = &cobra.Command{
		Use:   "note [id] [text]",
		Short: "Set the note on an article",
		Args:  cobra.ExactArgs(2),
		RunE:  runNote,
	}

	var labelCmd = &cobra.Command{
		Use:   "label [label-id] [article-id...]",
		Short: "Assign or remove a label on articles",
		Args:  cobra.MinimumNArgs(2),
		RunE:  runLabel,
	}
	labelCmd.Flags().Bool("remove", false, "Remove the label instead of assigning it")

	var unsubscribeCmd = &cobra.Command{
		Use:   "unsubscribe [feed-id]",
		Short: "Unsubscribe from a feed and drop its cached articles",
		Args:  cobra.ExactArgs(1),
		RunE:  runUnsubscribe,
	}

	var shareCmd = &cobra.Command{
		Use:   "share [url]",
		Short: "Share an item to the published feed",
		Args:  cobra.ExactArgs(1),
		RunE:  runShare,
	}
	shareCmd.Flags().String("title", "", "Title for the shared item")
	shareCmd.Flags().String("content", "", "Content for the shared item")

	var cacheImagesCmd = &cobra.Command{
		Use:   "cache-images",
		Short: "Download article images for offline reading",
		RunE:  runCacheImages,
	}
	cacheImagesCmd.Flags().Bool("unread-only", false, "Only process unread articles")
	cacheImagesCmd.Flags().Int("limit", 0, "Maximum number of articles to process")

	var exportCmd = &cobra.Command{
		Use:   "export [id]",
		Short: "Export a single article as markdown",
		Args:  cobra.ExactArgs(1),
		RunE:  runExport,
	}
	exportCmd.Flags().String("out", "", "Output file path")
	exportCmd.Flags().Bool("stdout", false, "Write to stdout")

	var exportAllCmd = &cobra.Command{
		Use:   "export-all [directory]",
		Short: "Export cached articles as markdown files",
		Args:  cobra.ExactArgs(1),
		RunE:  runExportAll,
	}
	exportAllCmd.Flags().Int64("feed", model.VcatAll, "Restrict to a feed id")
	exportAllCmd.Flags().Bool("category", false, "Treat the feed id as a category id")
	exportAllCmd.Flags().Bool("unread", false, "Only unread articles")
	exportAllCmd.Flags().Int("limit", 0, "Maximum number of articles")

	var statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show cache statistics and pending changes",
		RunE:  runStatus,
	}

	var mcpCmd = &cobra.Command{
		Use:   "mcp",
		Short: "Serve the local cache over MCP on stdio",
		RunE:  runMCP,
	}

	var versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version.GetFullVersion())
		},
	}

	rootCmd.AddCommand(syncCmd, categoriesCmd, feedsCmd, articlesCmd, articleCmd,
		readCmd, catchupCmd, starCmd, publishCmd, noteCmd, labelCmd,
		unsubscribeCmd, shareCmd, cacheImagesCmd, exportCmd, exportAllCmd,
		statusCmd, mcpCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runTask executes a mutation through the async runner and waits for it, so
// the CLI exits with the task's result.
func runTask(task updater.Updatable) error {
	var taskErr error
	upd.Go(context.Background(), task, func(err error) { taskErr = err })
	upd.Wait()
	return taskErr
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", arg)
	}
	return id, nil
}

func runSync(cmd *cobra.Command, args []string) error {
	if err := requireOnline(); err != nil {
		return err
	}
	force, _ := cmd.Flags().GetBool("force")

	ctx := context.Background()
	if err := data.Sync(ctx, force); err != nil {
		return err
	}

	pending, err := store.PendingCount(ctx)
	if err != nil {
		return err
	}
	fmt.Println("Sync completed.")
	if pending > 0 {
		fmt.Printf("%d local changes still queued.\n", pending)
	}
	return nil
}

func runCategories(cmd *cobra.Command, args []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")

	ctx := context.Background()
	cats, err := store.GetCategories(ctx)
	if err != nil {
		return err
	}

	if asJSON {
		return json.NewEncoder(os.Stdout).Encode(cats)
	}
	if len(cats) == 0 {
		fmt.Println("No categories cached. Run 'ttrss-cli sync' first.")
		return nil
	}
	for _, c := range cats {
		fmt.Printf("%6d  %-40s %d unread\n", c.ID, util.Truncate(c.Title, 40), c.Unread)
	}
	return nil
}

func runFeeds(cmd *cobra.Command, args []string) error {
	categoryID, _ := cmd.Flags().GetInt64("category")
	asJSON, _ := cmd.Flags().GetBool("json")

	ctx := context.Background()
	feeds, err := store.GetFeeds(ctx, categoryID)
	if err != nil {
		return err
	}

	if asJSON {
		return json.NewEncoder(os.Stdout).Encode(feeds)
	}
	if len(feeds) == 0 {
		fmt.Println("No feeds cached. Run 'ttrss-cli sync' first.")
		return nil
	}
	for _, f := range feeds {
		fmt.Printf("%6d  %-40s %d unread\n", f.ID, util.Truncate(f.Title, 40), f.Unread)
	}
	return nil
}

func runArticles(cmd *cobra.Command, args []string) error {
	feedID, err := parseID(args[0])
	if err != nil {
		return err
	}
	isCategory, _ := cmd.Flags().GetBool("category")
	unreadOnly, _ := cmd.Flags().GetBool("unread")
	search, _ := cmd.Flags().GetString("search")
	limit, _ := cmd.Flags().GetInt("limit")
	refresh, _ := cmd.Flags().GetBool("refresh")
	asJSON, _ := cmd.Flags().GetBool("json")

	ctx := context.Background()
	if refresh {
		if err := requireOnline(); err != nil {
			return err
		}
		if err := data.UpdateArticles(ctx, feedID, unreadOnly, isCategory, true); err != nil {
			return err
		}
	}
	articles, err := store.GetArticles(ctx, db.ArticleFilter{
		FeedID:      feedID,
		IsCategory:  isCategory,
		UnreadOnly:  unreadOnly,
		Search:      search,
		Limit:       limit,
		FreshMaxAge: cfg.FreshMaxAge(),
	})
	if err != nil {
		return err
	}

	if asJSON {
		return json.NewEncoder(os.Stdout).Encode(articles)
	}
	if len(articles) == 0 {
		fmt.Println("No articles found.")
		return nil
	}
	for _, a := range articles {
		marker := " "
		if a.Unread {
			marker = "*"
		}
		star := " "
		if a.Starred {
			star = "s"
		}
		fmt.Printf("%s%s %8d  %s  %s\n", marker, star, a.ID,
			a.Updated.Format("2006-01-02 15:04"), util.Truncate(a.Title, 70))
	}
	return nil
}

func runArticle(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	fetchFull, _ := cmd.Flags().GetBool("fetch")
	asJSON, _ := cmd.Flags().GetBool("json")

	ctx := context.Background()
	article, err := store.GetArticle(ctx, id)
	if err != nil {
		return err
	}
	if article == nil {
		return fmt.Errorf("article %d is not cached", id)
	}

	if fetchFull && fetcher.NeedsFetch(article) && !cfg.Offline {
		f := fetcher.New(store, logger)
		content, err := f.FetchFullContent(ctx, article)
		if err != nil {
			logger.Printf("full content fetch failed: %v", err)
		} else {
			article.Content = content
		}
	}

	if asJSON {
		return json.NewEncoder(os.Stdout).Encode(article)
	}
	if asMarkdown, _ := cmd.Flags().GetBool("markdown"); asMarkdown {
		return export.New(store).ExportArticle(ctx, id, "", true)
	}

	fmt.Printf("%s\n", article.Title)
	fmt.Printf("id %d, updated %s\n", article.ID, article.Updated.Format("2006-01-02 15:04"))
	if article.Author != "" {
		fmt.Printf("by %s\n", article.Author)
	}
	if article.URL != "" {
		fmt.Println(article.URL)
	}
	if article.Note != "" {
		fmt.Printf("note: %s\n", article.Note)
	}
	fmt.Println()
	fmt.Println(article.Content)
	return nil
}

func runRead(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	isFeed, _ := cmd.Flags().GetBool("feed")
	isCategory, _ := cmd.Flags().GetBool("category")
	unread, _ := cmd.Flags().GetBool("unread")

	var task updater.Updatable
	switch {
	case isCategory:
		task = &updater.ReadState{Data: data, ID: id, IsCategory: true}
	case isFeed:
		task = &updater.ReadState{Data: data, ID: id}
	default:
		task = &updater.UnreadState{Data: data, ArticleID: id, Unread: unread}
	}
	return runTask(task)
}

func runCatchup(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	isCategory, _ := cmd.Flags().GetBool("category")

	return runTask(&updater.Catchup{Data: data, ID: id, IsCategory: isCategory})
}

func runStar(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	remove, _ := cmd.Flags().GetBool("remove")

	return runTask(&updater.StarredState{Data: data, ArticleID: id, Starred: !remove})
}

func runPublish(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	remove, _ := cmd.Flags().GetBool("remove")
	note, _ := cmd.Flags().GetString("note")

	return runTask(&updater.PublishedState{Data: data, ArticleID: id, Published: !remove, Note: note})
}

func runNote(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	return runTask(&updater.Note{Data: data, ArticleID: id, Note: args[1]})
}

func runLabel(cmd *cobra.Command, args []string) error {
	labelID, err := parseID(args[0])
	if err != nil {
		return err
	}
	remove, _ := cmd.Flags().GetBool("remove")

	var articleIDs []int64
	for _, arg := range args[1:] {
		id, err := parseID(arg)
		if err != nil {
			return err
		}
		articleIDs = append(articleIDs, id)
	}

	return runTask(&updater.Label{Data: data, ArticleIDs: articleIDs, LabelID: labelID, Assign: !remove})
}

func runUnsubscribe(cmd *cobra.Command, args []string) error {
	if err := requireOnline(); err != nil {
		return err
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	if err := runTask(&updater.Unsubscribe{Data: data, FeedID: id}); err != nil {
		return err
	}
	fmt.Printf("Unsubscribed from feed %d.\n", id)
	return nil
}

func runShare(cmd *cobra.Command, args []string) error {
	if err := requireOnline(); err != nil {
		return err
	}
	title, _ := cmd.Flags().GetString("title")
	content, _ := cmd.Flags().GetString("content")

	if err := runTask(&updater.Share{Data: data, Title: title, URL: args[0], Content: content}); err != nil {
		return err
	}
	fmt.Println("Shared to published feed.")
	return nil
}

func runCacheImages(cmd *cobra.Command, args []string) error {
	unreadOnly, _ := cmd.Flags().GetBool("unread-only")
	limit, _ := cmd.Flags().GetInt("limit")
	if !unreadOnly {
		unreadOnly = cfg.UnreadImagesOnly
	}

	// Pick up new articles first so their images land in the same pass.
	if requireOnline() == nil {
		if err := data.Sync(context.Background(), false); err != nil {
			logger.Printf("sync before image caching failed: %v", err)
		}
	}

	cache, err := imagecache.New(cfg.CacheDir)
	if err != nil {
		return err
	}
	downloader := imagecache.NewDownloader(nil, cfg.ImageMinSize(), cfg.ImageMaxSize())
	cacher := imagecache.NewCacher(store, cache, downloader, logger, imagecache.CacherOptions{
		MaxCacheSize: cfg.CacheMaxSize(),
		MaxAge:       cfg.CacheMaxAge(),
		UnreadOnly:   unreadOnly,
		Limit:        limit,
	})

	n, err := cacher.Run(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("Cached %d images.\n", n)
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	outPath, _ := cmd.Flags().GetString("out")
	stdout, _ := cmd.Flags().GetBool("stdout")

	e := export.New(store)
	return e.ExportArticle(context.Background(), id, outPath, stdout)
}

func runExportAll(cmd *cobra.Command, args []string) error {
	feedID, _ := cmd.Flags().GetInt64("feed")
	isCategory, _ := cmd.Flags().GetBool("category")
	unreadOnly, _ := cmd.Flags().GetBool("unread")
	limit, _ := cmd.Flags().GetInt("limit")

	e := export.New(store)
	return e.ExportAll(context.Background(), export.Options{
		Directory:  args[0],
		FeedID:     feedID,
		IsCategory: isCategory,
		UnreadOnly: unreadOnly,
		Limit:      limit,
	})
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	var articleCount, unreadCount, feedCount int
	if err := store.GetContext(ctx, &articleCount, "SELECT COUNT(*) FROM articles"); err != nil {
		return err
	}
	if err := store.GetContext(ctx, &unreadCount, "SELECT COUNT(*) FROM articles WHERE is_unread > 0"); err != nil {
		return err
	}
	if err := store.GetContext(ctx, &feedCount, "SELECT COUNT(*) FROM feeds"); err != nil {
		return err
	}
	pending, err := store.PendingCount(ctx)
	if err != nil {
		return err
	}
	cacheSize, err := store.RemoteFilesSize(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Database:      %s\n", cfg.DBPath)
	fmt.Printf("Feeds:         %d\n", feedCount)
	fmt.Printf("Articles:      %d (%d unread)\n", articleCount, unreadCount)
	fmt.Printf("Image cache:   %s in %s\n", util.FormatByteSize(cacheSize), cfg.CacheDir)
	fmt.Printf("Pending:       %d queued changes\n", pending)
	if err := data.LastError(); err != nil {
		fmt.Printf("Last error:    %v\n", err)
	}
	return nil
}

func runMCP(cmd *cobra.Command, args []string) error {
	s := mcp.NewServer(store, data)
	return s.Start()
}
