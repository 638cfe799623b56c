package app

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/miku1hhhh/sina-dl/internal/domain"
)

// DownloadSequencer fetches validated items one at a time, in validated order
type DownloadSequencer struct {
	fetcher domain.PayloadFetcher
	logger  *zap.Logger
}

// NewDownloadSequencer creates a new download sequencer
func NewDownloadSequencer(fetcher domain.PayloadFetcher, logger *zap.Logger) *DownloadSequencer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DownloadSequencer{
		fetcher: fetcher,
		logger:  logger,
	}
}

// DownloadAll downloads every validated item of an idle session and returns
// the completed ones. A busy session yields domain.ErrSessionConflict.
func (d *DownloadSequencer) DownloadAll(ctx context.Context, session *domain.ScanSession, req domain.DownloadRequest, sink domain.ProgressSink) ([]*domain.DownloadedItem, error) {
	if err := session.BeginDownload(); err != nil {
		return nil, err
	}
	defer session.Finish()

	return d.run(ctx, session, req, sink)
}

func (d *DownloadSequencer) run(ctx context.Context, session *domain.ScanSession, req domain.DownloadRequest, sink domain.ProgressSink) ([]*domain.DownloadedItem, error) {
	if sink == nil {
		sink = domain.NopSink{}
	}

	items := session.Validated()
	total := len(items)
	if total == 0 {
		sink.OnLog(session.ID, domain.LogWarning, "Nothing to download")
		return session.Downloaded(), nil
	}

	d.logger.Info("Download started",
		zap.String("session_id", session.ID),
		zap.Int("items", total),
		zap.String("format", string(req.FormatOverride)))
	sink.OnLog(session.ID, domain.LogInfo, fmt.Sprintf("Downloading %d videos", total))

	for i, item := range items {
		if session.StopRequested() {
			sink.OnLog(session.ID, domain.LogWarning, "Download stopped")
			break
		}
		if err := ctx.Err(); err != nil {
			return session.Downloaded(), err
		}

		d.downloadOne(ctx, session, item, req.FormatFor(item), sink)

		sink.OnProgress(domain.Progress{
			SessionID: session.ID,
			Phase:     domain.PhaseDownload,
			Current:   int64(i + 1),
			Total:     int64(total),
			Message:   fmt.Sprintf("Downloading... %d/%d", i+1, total),
		})
	}

	downloaded := session.Downloaded()
	d.logger.Info("Download finished",
		zap.String("session_id", session.ID),
		zap.Int("downloaded", len(downloaded)),
		zap.Int("total", total))
	sink.OnLog(session.ID, domain.LogSuccess,
		fmt.Sprintf("Download complete: %d of %d", len(downloaded), total))
	return downloaded, nil
}

// downloadOne never fails the sequence; errors end up on the item
func (d *DownloadSequencer) downloadOne(ctx context.Context, session *domain.ScanSession, item *domain.ValidatedItem, format domain.Format, sink domain.ProgressSink) {
	id := item.Identifier
	tracked := domain.NewDownloadedItem(item, format)
	session.Track(tracked)

	session.Update(tracked, (*domain.DownloadedItem).MarkDownloading)
	sink.OnItemStatusChanged(session.ID, id, domain.ItemDownloading)
	sink.OnLog(session.ID, domain.LogInfo, fmt.Sprintf("Downloading vid %d (%s)", id, format))

	payload, err := d.fetcher.Fetch(ctx, id, format)
	if err == nil {
		session.Update(tracked, func(di *domain.DownloadedItem) {
			err = di.MarkCompleted(payload.Data, payload.ContentType)
		})
	} else {
		session.Update(tracked, func(di *domain.DownloadedItem) {
			di.MarkFailed(err)
		})
	}

	if err != nil {
		d.logger.Warn("Item download failed",
			zap.String("session_id", session.ID),
			zap.Int64("vid", id),
			zap.String("format", string(format)),
			zap.Error(err))
		sink.OnItemStatusChanged(session.ID, id, domain.ItemFailed)
		sink.OnLog(session.ID, domain.LogError, fmt.Sprintf("Download failed vid %d: %v", id, err))
		return
	}

	session.AddDownloaded(tracked)
	sink.OnItemStatusChanged(session.ID, id, domain.ItemCompleted)
	sink.OnLog(session.ID, domain.LogSuccess,
		fmt.Sprintf("Downloaded %s (%s)", tracked.Filename, humanize.Bytes(uint64(tracked.Size))))
}
