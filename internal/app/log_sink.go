package app

import (
	"go.uber.org/zap"

	"github.com/miku1hhhh/sina-dl/internal/domain"
	"github.com/miku1hhhh/sina-dl/pkg/logger"
)

// LogSink records pipeline events in the categorized log files
type LogSink struct {
	logs *logger.LoggerAdapter
}

// NewLogSink creates a sink writing through the adapter
func NewLogSink(logs *logger.LoggerAdapter) *LogSink {
	return &LogSink{logs: logs}
}

func (s *LogSink) OnProgress(p domain.Progress) {
	s.logs.General().Debug("Progress",
		zap.String("session_id", p.SessionID),
		zap.String("phase", string(p.Phase)),
		zap.Int64("current", p.Current),
		zap.Int64("total", p.Total),
		zap.Int("valid", p.Valid))
}

func (s *LogSink) OnItemFound(sessionID string, item *domain.ValidatedItem) {
	s.logs.Category(logger.CategorySession).Info("item_found",
		zap.String("session_id", sessionID),
		zap.Int64("vid", item.Identifier),
		zap.String("format", string(item.Format)),
		zap.String("title", item.Title))
}

func (s *LogSink) OnItemStatusChanged(sessionID string, id int64, status domain.ItemStatus) {
	if !status.IsFinished() {
		return
	}
	s.logs.Category(logger.CategoryDownload).Info("item_"+string(status),
		zap.String("session_id", sessionID),
		zap.Int64("vid", id))
}

func (s *LogSink) OnLog(sessionID string, level domain.LogLevel, message string) {
	fields := []zap.Field{zap.String("session_id", sessionID)}
	switch level {
	case domain.LogError:
		s.logs.LogError(message, fields...)
	case domain.LogWarning:
		s.logs.General().Warn(message, fields...)
	default:
		s.logs.General().Info(message, fields...)
	}
}
