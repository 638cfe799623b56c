package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.NotNil(t, config)
	assert.Equal(t, "localhost", config.Server.Host)
	assert.Equal(t, 8090, config.Server.Port)
	assert.Len(t, config.Upstream.UserAgents, 3)
	assert.Equal(t, 30*time.Second, config.Upstream.Timeout)
	assert.Equal(t, 5, config.Scan.DefaultConcurrency)
	assert.Equal(t, 10, config.Scan.MaxConcurrency)
	assert.Equal(t, 100*time.Millisecond, config.Scan.BatchDelay)
	assert.Equal(t, "auto", config.Download.FormatOverride)
	assert.Equal(t, 0, config.Download.MaxRetries)
	assert.Equal(t, "sina_videos", config.Archive.Folder)
	assert.False(t, config.Archive.Mirror.Enabled)
	assert.Equal(t, "info", config.Logging.Level)
}

func TestDefaultConfig_UserAgentsAreCopied(t *testing.T) {
	config := DefaultConfig()
	config.Upstream.UserAgents[0] = "changed"

	assert.NotEqual(t, "changed", DefaultUserAgents[0])
}
