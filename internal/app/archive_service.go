package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/miku1hhhh/sina-dl/internal/domain"
)

// ArchiveMirror copies a finalized archive to remote storage
type ArchiveMirror interface {
	Upload(ctx context.Context, archive *domain.Archive) (string, error)
}

// ArchiveService packages a session's downloads, writes the container to disk
// and records it in the catalog
type ArchiveService struct {
	builder domain.ArchiveBuilder
	repo    domain.ArchiveRepository
	mirror  ArchiveMirror
	config  *domain.ArchiveConfig
	logger  *zap.Logger
}

// NewArchiveService creates a new archive service; mirror may be nil
func NewArchiveService(
	builder domain.ArchiveBuilder,
	repo domain.ArchiveRepository,
	mirror ArchiveMirror,
	config *domain.ArchiveConfig,
	logger *zap.Logger,
) *ArchiveService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArchiveService{
		builder: builder,
		repo:    repo,
		mirror:  mirror,
		config:  config,
		logger:  logger,
	}
}

// Pack builds an archive from the session's completed downloads. The session
// stays in the packing state until the archive is written, so a busy session
// yields domain.ErrSessionConflict.
func (a *ArchiveService) Pack(ctx context.Context, session *domain.ScanSession, sink domain.ProgressSink) (*domain.ArchiveRecord, error) {
	if sink == nil {
		sink = domain.NopSink{}
	}
	if err := session.BeginPack(); err != nil {
		return nil, err
	}
	defer session.Finish()

	items := session.Downloaded()
	sink.OnLog(session.ID, domain.LogInfo, fmt.Sprintf("Packing %d videos", len(items)))

	archive, err := a.builder.Build(items)
	if err != nil {
		if errors.Is(err, domain.ErrArchiveEmpty) {
			sink.OnLog(session.ID, domain.LogWarning, "No downloaded videos to pack")
		} else {
			sink.OnLog(session.ID, domain.LogError, fmt.Sprintf("Packing failed: %v", err))
		}
		return nil, err
	}

	if err := os.MkdirAll(a.config.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(a.config.OutputDir, archive.Name)
	if err := os.WriteFile(path, archive.Data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write archive: %w", err)
	}

	record := domain.NewArchiveRecord(session.ID, archive, path)
	if err := a.repo.Create(record); err != nil {
		return nil, fmt.Errorf("failed to record archive: %w", err)
	}

	if a.mirror != nil {
		if url, err := a.mirror.Upload(ctx, archive); err != nil {
			a.logger.Warn("Archive mirror failed",
				zap.String("archive", archive.Name),
				zap.Error(err))
			sink.OnLog(session.ID, domain.LogWarning, fmt.Sprintf("Mirror upload failed: %v", err))
		} else {
			record.MirrorURL = url
			if err := a.repo.Update(record); err != nil {
				a.logger.Error("Failed to update archive record", zap.Error(err))
			}
		}
	}

	if a.config.ReleaseAfterPack {
		session.ReleasePayloads()
	}

	a.logger.Info("Archive written",
		zap.String("session_id", session.ID),
		zap.String("path", path),
		zap.Int("entries", len(archive.Entries)),
		zap.String("size", humanize.Bytes(uint64(archive.Size()))))
	sink.OnProgress(domain.Progress{
		SessionID: session.ID,
		Phase:     domain.PhaseArchive,
		Current:   1,
		Total:     1,
		Message:   archive.Name,
	})
	sink.OnLog(session.ID, domain.LogSuccess, fmt.Sprintf("Archive ready: %s", archive.Name))
	return record, nil
}

// Get returns a catalog record
func (a *ArchiveService) Get(id string) (*domain.ArchiveRecord, error) {
	return a.repo.FindByID(id)
}

// List returns catalog records, newest first
func (a *ArchiveService) List(limit int) ([]*domain.ArchiveRecord, error) {
	return a.repo.FindAll(limit)
}

// ListBySession returns the archives produced by one session
func (a *ArchiveService) ListBySession(sessionID string) ([]*domain.ArchiveRecord, error) {
	return a.repo.FindBySession(sessionID)
}

// Stats returns catalog statistics
func (a *ArchiveService) Stats() (*domain.ArchiveStats, error) {
	return a.repo.GetStats()
}

// Delete removes an archive record and its file
func (a *ArchiveService) Delete(id string) error {
	record, err := a.repo.FindByID(id)
	if err != nil {
		return err
	}
	if err := a.repo.Delete(id); err != nil {
		return err
	}
	if record.Path != "" {
		if err := os.Remove(record.Path); err != nil && !os.IsNotExist(err) {
			a.logger.Warn("Failed to remove archive file", zap.String("path", record.Path), zap.Error(err))
		}
	}
	return nil
}
