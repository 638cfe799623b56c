package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miku1hhhh/sina-dl/internal/domain"
)

func TestLoadConfig_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9999
scan:
  default_concurrency: 8
  batch_delay: 250ms
download:
  format_override: flv
  max_retries: 2
archive:
  output_dir: `+dir+`/out
  database_path: `+dir+`/catalog.db
`), 0644))

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, config.Server.Port)
	assert.Equal(t, 8, config.Scan.DefaultConcurrency)
	assert.Equal(t, 10, config.Scan.MaxConcurrency)
	assert.Equal(t, 250*time.Millisecond, config.Scan.BatchDelay)
	assert.Equal(t, "flv", config.Download.FormatOverride)
	assert.Equal(t, 2, config.Download.MaxRetries)
	assert.Equal(t, filepath.Join(dir, "out"), config.Archive.OutputDir)
	assert.Equal(t, "sina_videos", config.Archive.Folder)
	assert.Len(t, config.Upstream.UserAgents, 3)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9000\n"), 0644))

	t.Setenv("SINADL_SERVER_PORT", "9100")
	t.Setenv("SINADL_UPSTREAM_PROXY", "http://127.0.0.1:3128")

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, config.Server.Port)
	assert.Equal(t, "http://127.0.0.1:3128", config.Upstream.Proxy)
}

func TestLoadConfig_Invalid(t *testing.T) {
	dir := t.TempDir()

	cases := map[string]string{
		"port":   "server:\n  port: 70000\n",
		"url":    "upstream:\n  api_base: not-a-url\n",
		"retry":  "download:\n  max_retries: -1\n",
		"mirror": "archive:\n  mirror:\n    enabled: true\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0644))
			_, err := LoadConfig(path)
			assert.Error(t, err)
		})
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")

	config := domain.DefaultConfig()
	config.Server.Port = 8123
	config.Scan.BatchDelay = 300 * time.Millisecond
	config.Archive.OutputDir = filepath.Join(dir, "out")
	config.Archive.DatabasePath = filepath.Join(dir, "db.sqlite")
	config.Archive.Mirror.Bucket = "videos"
	require.NoError(t, SaveConfig(config, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 8123, loaded.Server.Port)
	assert.Equal(t, 300*time.Millisecond, loaded.Scan.BatchDelay)
	assert.Equal(t, config.Archive.OutputDir, loaded.Archive.OutputDir)
	assert.Equal(t, "videos", loaded.Archive.Mirror.Bucket)
	assert.Equal(t, config.Upstream.UserAgents, loaded.Upstream.UserAgents)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "x"), expandPath("~/x"))
	assert.Equal(t, home+"/y", expandPath("$HOME/y"))
	assert.Equal(t, "/abs", expandPath("/abs"))
}
