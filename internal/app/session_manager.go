package app

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/miku1hhhh/sina-dl/internal/domain"
	"github.com/miku1hhhh/sina-dl/internal/infrastructure"
	"github.com/miku1hhhh/sina-dl/pkg/logger"
)

// SessionManager owns the in-memory scan sessions and runs their pipelines
type SessionManager struct {
	scanner     *BatchScanner
	sequencer   *DownloadSequencer
	archiver    *ArchiveService
	notifier    *infrastructure.NotificationService
	sink        domain.ProgressSink
	config      *domain.Config
	multiLogger *logger.MultiLogger
	logger      *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*domain.ScanSession

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSessionManager creates a new session manager
func NewSessionManager(
	scanner *BatchScanner,
	sequencer *DownloadSequencer,
	archiver *ArchiveService,
	notifier *infrastructure.NotificationService,
	sink domain.ProgressSink,
	config *domain.Config,
	multiLogger *logger.MultiLogger,
	log *zap.Logger,
) *SessionManager {
	if sink == nil {
		sink = domain.NopSink{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &SessionManager{
		scanner:     scanner,
		sequencer:   sequencer,
		archiver:    archiver,
		notifier:    notifier,
		sink:        sink,
		config:      config,
		multiLogger: multiLogger,
		logger:      log,
		sessions:    make(map[string]*domain.ScanSession),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Archives returns the archive service
func (m *SessionManager) Archives() *ArchiveService {
	return m.archiver
}

// CreateSession creates a new idle session
func (m *SessionManager) CreateSession() *domain.ScanSession {
	session := domain.NewScanSession()

	m.mu.Lock()
	m.sessions[session.ID] = session
	m.mu.Unlock()

	m.logSessionEvent("session_created", zap.String("session_id", session.ID))
	return session
}

// GetSession returns a session by ID
func (m *SessionManager) GetSession(id string) (*domain.ScanSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	return session, nil
}

// ListSessions returns all sessions, oldest first
func (m *SessionManager) ListSessions() []*domain.ScanSession {
	m.mu.RLock()
	out := make([]*domain.ScanSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// DeleteSession drops an idle session and its payloads
func (m *SessionManager) DeleteSession(id string) error {
	session, err := m.GetSession(id)
	if err != nil {
		return err
	}
	if err := session.Clear(); err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()

	m.logSessionEvent("session_deleted", zap.String("session_id", id))
	return nil
}

// ClearSession drops the results of an idle session
func (m *SessionManager) ClearSession(id string) error {
	session, err := m.GetSession(id)
	if err != nil {
		return err
	}
	if err := session.Clear(); err != nil {
		return err
	}
	m.logSessionEvent("session_cleared", zap.String("session_id", id))
	return nil
}

// NormalizeScanRequest fills in the configured default concurrency
func (m *SessionManager) NormalizeScanRequest(req domain.ScanRequest) domain.ScanRequest {
	if req.Concurrency == 0 {
		req.Concurrency = m.config.Scan.DefaultConcurrency
	}
	return req
}

// StartScan begins a scan in the background. The conflict check is synchronous.
func (m *SessionManager) StartScan(id string, req domain.ScanRequest) error {
	session, err := m.GetSession(id)
	if err != nil {
		return err
	}
	req = m.NormalizeScanRequest(req)
	if err := req.Range.Validate(); err != nil {
		return err
	}
	if err := session.BeginScan(req.Range); err != nil {
		m.logger.Warn("Scan rejected", zap.String("session_id", id), zap.Error(err))
		return err
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer session.Finish()
		m.runScan(m.ctx, session, req)
	}()
	return nil
}

// Scan runs a scan and waits for it to finish
func (m *SessionManager) Scan(ctx context.Context, id string, req domain.ScanRequest) ([]*domain.ValidatedItem, error) {
	session, err := m.GetSession(id)
	if err != nil {
		return nil, err
	}
	req = m.NormalizeScanRequest(req)
	if err := req.Range.Validate(); err != nil {
		return nil, err
	}
	if err := session.BeginScan(req.Range); err != nil {
		return nil, err
	}
	defer session.Finish()
	return m.runScan(ctx, session, req)
}

func (m *SessionManager) runScan(ctx context.Context, session *domain.ScanSession, req domain.ScanRequest) ([]*domain.ValidatedItem, error) {
	m.logSessionEvent("scan_started",
		zap.String("session_id", session.ID),
		zap.Int64("start", req.Range.Start),
		zap.Int64("end", req.Range.End),
		zap.Int("concurrency", req.Concurrency))

	items, err := m.scanner.run(ctx, session, req, m.sink)
	if err != nil {
		m.logAppError("Scan interrupted", zap.String("session_id", session.ID), zap.Error(err))
		return items, err
	}

	m.logSessionEvent("scan_completed",
		zap.String("session_id", session.ID),
		zap.Int("valid", len(items)),
		zap.Bool("stopped", session.StopRequested()))
	if m.notifier != nil {
		m.notifier.NotifyScanCompleted(req.Range, len(items))
	}
	return items, nil
}

// NormalizeDownloadRequest maps unknown format overrides to auto
func (m *SessionManager) NormalizeDownloadRequest(raw string) domain.DownloadRequest {
	if raw == "" {
		raw = m.config.Download.FormatOverride
	}
	format, ok := domain.ParseFormatOverride(raw)
	if !ok {
		m.logger.Warn("Unknown format override, using auto", zap.String("format", raw))
	}
	return domain.DownloadRequest{FormatOverride: format}
}

// StartDownload begins a download sequence in the background
func (m *SessionManager) StartDownload(id string, req domain.DownloadRequest) error {
	session, err := m.GetSession(id)
	if err != nil {
		return err
	}
	if err := session.BeginDownload(); err != nil {
		m.logger.Warn("Download rejected", zap.String("session_id", id), zap.Error(err))
		return err
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer session.Finish()
		m.runDownload(m.ctx, session, req)
	}()
	return nil
}

// Download runs a download sequence and waits for it to finish
func (m *SessionManager) Download(ctx context.Context, id string, req domain.DownloadRequest) ([]*domain.DownloadedItem, error) {
	session, err := m.GetSession(id)
	if err != nil {
		return nil, err
	}
	if err := session.BeginDownload(); err != nil {
		return nil, err
	}
	defer session.Finish()
	return m.runDownload(ctx, session, req)
}

func (m *SessionManager) runDownload(ctx context.Context, session *domain.ScanSession, req domain.DownloadRequest) ([]*domain.DownloadedItem, error) {
	m.logSessionEvent("download_started",
		zap.String("session_id", session.ID),
		zap.Int("items", session.ValidCount()),
		zap.String("format", string(req.FormatOverride)))

	downloaded, err := m.sequencer.run(ctx, session, req, m.sink)
	if err != nil {
		m.logAppError("Download interrupted", zap.String("session_id", session.ID), zap.Error(err))
		return downloaded, err
	}

	m.logSessionEvent("download_completed",
		zap.String("session_id", session.ID),
		zap.Int("downloaded", len(downloaded)),
		zap.Int("total", session.ValidCount()))
	if m.notifier != nil {
		m.notifier.NotifyDownloadCompleted(len(downloaded), session.ValidCount())
	}
	return downloaded, nil
}

// Stop asks the running scan or download of a session to halt
func (m *SessionManager) Stop(id string) (bool, error) {
	session, err := m.GetSession(id)
	if err != nil {
		return false, err
	}
	stopped := session.RequestStop()
	if stopped {
		m.logSessionEvent("stop_requested", zap.String("session_id", id))
	}
	return stopped, nil
}

// Pack archives the completed downloads of an idle session
func (m *SessionManager) Pack(ctx context.Context, id string) (*domain.ArchiveRecord, error) {
	session, err := m.GetSession(id)
	if err != nil {
		return nil, err
	}

	record, err := m.archiver.Pack(ctx, session, m.sink)
	if err != nil {
		return nil, err
	}

	m.logSessionEvent("archive_created",
		zap.String("session_id", id),
		zap.String("archive_id", record.ID),
		zap.String("name", record.Name),
		zap.Int("entries", record.EntryCount))
	if m.notifier != nil {
		m.notifier.NotifyArchiveReady(record.Name, record.EntryCount)
	}
	return record, nil
}

// ItemPayload returns a completed download of a session
func (m *SessionManager) ItemPayload(id string, vid int64) (*domain.DownloadedItem, error) {
	session, err := m.GetSession(id)
	if err != nil {
		return nil, err
	}
	item, err := session.DownloadedItem(vid)
	if err != nil {
		m.logger.Warn("Item payload unavailable",
			zap.String("session_id", id),
			zap.Int64("vid", vid))
		return nil, err
	}
	return item, nil
}

// Shutdown cancels background operations and waits for them to exit
func (m *SessionManager) Shutdown() {
	m.cancel()
	m.wg.Wait()
}

// Wait blocks until every background operation has finished
func (m *SessionManager) Wait() {
	m.wg.Wait()
}

func (m *SessionManager) logSessionEvent(event string, fields ...zap.Field) {
	if m.multiLogger != nil {
		m.multiLogger.LogSessionEvent(event, fields...)
	}
	m.logger.Debug(event, fields...)
}

func (m *SessionManager) logAppError(msg string, fields ...zap.Field) {
	if m.multiLogger != nil {
		m.multiLogger.LogAppError(msg, fields...)
	}
	m.logger.Error(msg, fields...)
}
