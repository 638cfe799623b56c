package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/miku1hhhh/sina-dl/internal/domain"
	"github.com/miku1hhhh/sina-dl/internal/infrastructure"
	"github.com/miku1hhhh/sina-dl/pkg/logger"
)

// Runtime is the wired service graph shared by the server and the CLI
type Runtime struct {
	Config  *domain.Config
	Manager *SessionManager
	Hub     *EventHub
	Logs    *logger.LoggerAdapter

	repo *infrastructure.SQLiteArchiveRepository
}

// NewRuntime builds every component from config. extraSinks receive pipeline
// events next to the event hub and the log sink.
func NewRuntime(ctx context.Context, config *domain.Config, logs *logger.LoggerAdapter, extraSinks ...domain.ProgressSink) (*Runtime, error) {
	log := logs.General()

	client, err := infrastructure.NewUpstreamClient(&config.Upstream)
	if err != nil {
		return nil, err
	}

	repo, err := infrastructure.NewSQLiteArchiveRepository(config.Archive.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize archive catalog: %w", err)
	}

	var mirror ArchiveMirror
	if config.Archive.Mirror.Enabled {
		m, err := infrastructure.NewMinioArchiveMirror(ctx, config.Archive.Mirror, log)
		if err != nil {
			repo.Close()
			return nil, fmt.Errorf("failed to initialize archive mirror: %w", err)
		}
		mirror = m
	}

	scanner := NewBatchScanner(
		infrastructure.NewLookupProbe(client, config.Upstream.APIBase, log),
		infrastructure.NewHeadFormatResolver(client, config.Upstream.ContentBase, log),
		&config.Scan,
		log,
	)
	sequencer := NewDownloadSequencer(
		infrastructure.NewHTTPPayloadFetcher(client, config.Upstream.ContentBase, &config.Download, log),
		log,
	)
	archiver := NewArchiveService(
		infrastructure.NewZipArchiveBuilder(config.Archive.Folder, config.Archive.NamePrefix),
		repo,
		mirror,
		&config.Archive,
		log,
	)

	hub := NewEventHub()
	sinks := domain.MultiSink{hub, NewLogSink(logs)}
	sinks = append(sinks, extraSinks...)

	manager := NewSessionManager(
		scanner,
		sequencer,
		archiver,
		infrastructure.NewNotificationService(&config.Notification, log),
		sinks,
		config,
		logs.Multi(),
		log,
	)

	log.Debug("Runtime ready",
		zap.String("api_base", config.Upstream.APIBase),
		zap.String("content_base", config.Upstream.ContentBase),
		zap.Bool("mirror", mirror != nil))

	return &Runtime{
		Config:  config,
		Manager: manager,
		Hub:     hub,
		Logs:    logs,
		repo:    repo,
	}, nil
}

// Close stops background work and releases the catalog
func (r *Runtime) Close() error {
	r.Manager.Shutdown()
	return r.repo.Close()
}
