package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, int64(80), cfg.CacheMaxSizeMB)
	assert.Equal(t, int64(32), cfg.ImageMinSizeKB)
	assert.Equal(t, int64(6), cfg.ImageMaxSizeMB)
	assert.Equal(t, 14, cfg.CacheMaxAgeDays)
	assert.Equal(t, 24, cfg.FreshMaxAgeHours)
	assert.Equal(t, 600, cfg.ArticleLimit)
	assert.Equal(t, 2000, cfg.KeepArticles)
	assert.Equal(t, 10, cfg.StalenessMinutes)
	assert.NotEmpty(t, cfg.DBPath)
	assert.NotEmpty(t, cfg.CacheDir)
}

func TestLoadFileAndOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server_url: https://rss.example.com
username: reader
password: from-file
lazy_server: true
cache_max_size_mb: 200
fresh_max_age_hours: 48
`), 0o600))

	t.Setenv("TTRSS_PASSWORD", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://rss.example.com", cfg.ServerURL)
	assert.Equal(t, "reader", cfg.Username)
	assert.Equal(t, "from-env", cfg.Password, "the environment beats the file")
	assert.True(t, cfg.LazyServer)
	assert.Equal(t, int64(200), cfg.CacheMaxSizeMB)
	assert.Equal(t, 48*time.Hour, cfg.FreshMaxAge())
	assert.Equal(t, int64(200*1024*1024), cfg.CacheMaxSize())
	assert.Equal(t, 600, cfg.ArticleLimit, "unset knobs still get defaults")
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	assert.ErrorContains(t, cfg.Validate(), "server_url")

	cfg.ServerURL = "rss.example.com"
	assert.ErrorContains(t, cfg.Validate(), "http")

	cfg.ServerURL = "https://rss.example.com"
	assert.ErrorContains(t, cfg.Validate(), "username")

	cfg.Username = "reader"
	assert.ErrorContains(t, cfg.Validate(), "password")

	cfg.Password = "secret"
	assert.NoError(t, cfg.Validate())
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server_url: [unclosed"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}
