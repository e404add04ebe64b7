package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds everything the sync engine needs: server coordinates, cache
// locations and the tuning knobs for purging and image caching.
type Config struct {
	ServerURL    string `yaml:"server_url"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	HTTPUser     string `yaml:"http_user"`
	HTTPPassword string `yaml:"http_password"`

	// LazyServer widens the slow-call timeout for servers that update feeds
	// on demand and can take minutes to answer a headline request.
	LazyServer bool `yaml:"lazy_server"`

	DBPath   string `yaml:"db_path"`
	CacheDir string `yaml:"cache_dir"`

	CacheMaxSizeMB  int64 `yaml:"cache_max_size_mb"`
	ImageMinSizeKB  int64 `yaml:"image_min_size_kb"`
	ImageMaxSizeMB  int64 `yaml:"image_max_size_mb"`
	CacheMaxAgeDays int   `yaml:"cache_max_age_days"`

	FreshMaxAgeHours int `yaml:"fresh_max_age_hours"`
	ArticleLimit     int `yaml:"article_limit"`
	KeepArticles     int `yaml:"keep_articles"`

	// StalenessMinutes is how long a synced target stays fresh before the
	// next sync actually talks to the server again.
	StalenessMinutes int `yaml:"staleness_minutes"`

	UnreadImagesOnly bool `yaml:"unread_images_only"`
	Offline          bool `yaml:"offline"`
}

// DefaultPath returns the config location under the user config dir.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "ttrss-cli", "config.yaml")
}

// Load reads the YAML config at path and applies defaults and environment
// overrides. A missing file is fine as long as the environment supplies the
// server coordinates. Callers that talk to the server run Validate first,
// purely local commands work without credentials.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// fall through to env + defaults
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("TTRSS_URL"); v != "" {
		c.ServerURL = v
	}
	if v := os.Getenv("TTRSS_USERNAME"); v != "" {
		c.Username = v
	}
	if v := os.Getenv("TTRSS_PASSWORD"); v != "" {
		c.Password = v
	}
	if v := os.Getenv("TTRSS_HTTP_USER"); v != "" {
		c.HTTPUser = v
	}
	if v := os.Getenv("TTRSS_HTTP_PASSWORD"); v != "" {
		c.HTTPPassword = v
	}
}

func (c *Config) applyDefaults() {
	if c.DBPath == "" {
		dir, err := os.UserCacheDir()
		if err != nil {
			dir = "."
		}
		c.DBPath = filepath.Join(dir, "ttrss-cli", "cache.db")
	}
	if c.CacheDir == "" {
		c.CacheDir = filepath.Join(filepath.Dir(c.DBPath), "images")
	}
	if c.CacheMaxSizeMB <= 0 {
		c.CacheMaxSizeMB = 80
	}
	if c.ImageMinSizeKB <= 0 {
		c.ImageMinSizeKB = 32
	}
	if c.ImageMaxSizeMB <= 0 {
		c.ImageMaxSizeMB = 6
	}
	if c.CacheMaxAgeDays <= 0 {
		c.CacheMaxAgeDays = 14
	}
	if c.FreshMaxAgeHours <= 0 {
		c.FreshMaxAgeHours = 24
	}
	if c.ArticleLimit <= 0 {
		c.ArticleLimit = 600
	}
	if c.KeepArticles <= 0 {
		c.KeepArticles = 2000
	}
	if c.StalenessMinutes <= 0 {
		c.StalenessMinutes = 10
	}
}

// Validate checks the fields the engine cannot guess.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server_url is required (or set TTRSS_URL)")
	}
	if !strings.HasPrefix(c.ServerURL, "http://") && !strings.HasPrefix(c.ServerURL, "https://") {
		return fmt.Errorf("server_url must start with http:// or https://")
	}
	if c.Username == "" {
		return fmt.Errorf("username is required (or set TTRSS_USERNAME)")
	}
	if c.Password == "" {
		return fmt.Errorf("password is required (or set TTRSS_PASSWORD)")
	}
	return nil
}

func (c *Config) FreshMaxAge() time.Duration {
	return time.Duration(c.FreshMaxAgeHours) * time.Hour
}

func (c *Config) Staleness() time.Duration {
	return time.Duration(c.StalenessMinutes) * time.Minute
}

func (c *Config) CacheMaxSize() int64 {
	return c.CacheMaxSizeMB * 1024 * 1024
}

func (c *Config) ImageMinSize() int64 {
	return c.ImageMinSizeKB * 1024
}

func (c *Config) ImageMaxSize() int64 {
	return c.ImageMaxSizeMB * 1024 * 1024
}

func (c *Config) CacheMaxAge() time.Duration {
	return time.Duration(c.CacheMaxAgeDays) * 24 * time.Hour
}
