package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/miku1hhhh/sina-dl/internal/domain"
	"github.com/miku1hhhh/sina-dl/pkg/logger"
)

func runtimeConfig(t *testing.T) *domain.Config {
	dir := t.TempDir()
	config := domain.DefaultConfig()
	config.Archive.OutputDir = filepath.Join(dir, "archives")
	config.Archive.DatabasePath = filepath.Join(dir, "archives.db")
	return config
}

func TestNewRuntime(t *testing.T) {
	extra := &recordingSink{}
	runtime, err := NewRuntime(context.Background(), runtimeConfig(t), logger.NewLoggerAdapter(zap.NewNop(), nil), extra)
	require.NoError(t, err)

	session := runtime.Manager.CreateSession()
	_, err = runtime.Manager.Scan(context.Background(), session.ID, domain.ScanRequest{
		Range: domain.Range{Start: 5, End: 1},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidRange)

	stats, err := runtime.Manager.Archives().Stats()
	require.NoError(t, err)
	assert.Zero(t, stats.Archives)

	assert.NoError(t, runtime.Close())
}

func TestNewRuntime_UnreachableMirror(t *testing.T) {
	config := runtimeConfig(t)
	config.Archive.Mirror = domain.MirrorConfig{
		Enabled:  true,
		Endpoint: "http://127.0.0.1:1",
		Bucket:   "archives",
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewRuntime(ctx, config, logger.NewLoggerAdapter(zap.NewNop(), nil))
	assert.Error(t, err)
}
