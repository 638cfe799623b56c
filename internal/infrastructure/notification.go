package infrastructure

import (
	"fmt"
	"os/exec"

	"go.uber.org/zap"

	"github.com/miku1hhhh/sina-dl/internal/domain"
)

// NotificationService handles sending desktop notifications
type NotificationService struct {
	config *domain.NotificationConfig
	logger *zap.Logger
	run    func(name string, args ...string) error
}

// NewNotificationService creates a new notification service
func NewNotificationService(config *domain.NotificationConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		config: config,
		logger: logger,
		run: func(name string, args ...string) error {
			return exec.Command(name, args...).Run()
		},
	}
}

// Send sends a notification
func (n *NotificationService) Send(title, message string) error {
	if n.config == nil || !n.config.Enabled {
		n.logger.Debug("Notifications disabled, skipping",
			zap.String("title", title),
			zap.String("message", message))
		return nil
	}

	var err error
	switch n.config.Method {
	case "osascript":
		script := fmt.Sprintf(`display notification %q with title %q`, message, title)
		if n.config.Sound {
			script += ` sound name "default"`
		}
		err = n.run("osascript", "-e", script)
	case "notify-send":
		err = n.run("notify-send", title, message)
	default:
		n.logger.Warn("Unknown notification method", zap.String("method", n.config.Method))
		return nil
	}

	if err != nil {
		n.logger.Error("Failed to send notification",
			zap.String("method", n.config.Method),
			zap.Error(err))
		return err
	}

	n.logger.Debug("Notification sent",
		zap.String("title", title),
		zap.String("message", message))
	return nil
}

// NotifyScanCompleted sends notification when a scan finishes
func (n *NotificationService) NotifyScanCompleted(r domain.Range, valid int) {
	n.Send("Scan Completed", fmt.Sprintf("%d valid videos in %d-%d", valid, r.Start, r.End))
}

// NotifyDownloadCompleted sends notification when a download sequence finishes
func (n *NotificationService) NotifyDownloadCompleted(downloaded, total int) {
	n.Send("Download Completed", fmt.Sprintf("Downloaded %d of %d videos", downloaded, total))
}

// NotifyArchiveReady sends notification when an archive is written
func (n *NotificationService) NotifyArchiveReady(name string, entries int) {
	n.Send("Archive Ready", fmt.Sprintf("%s (%d files)", truncateString(name, 40), entries))
}

// truncateString truncates a string to the specified length
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
