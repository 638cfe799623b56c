package logger

import (
	"go.uber.org/zap"
)

// LoggerAdapter pairs the console logger with the optional category files.
// Without a MultiLogger every category resolves to the console logger.
type LoggerAdapter struct {
	general *zap.Logger
	multi   *MultiLogger
}

// NewLoggerAdapter creates a new logger adapter; multi may be nil
func NewLoggerAdapter(general *zap.Logger, multi *MultiLogger) *LoggerAdapter {
	if general == nil {
		general = zap.NewNop()
	}
	return &LoggerAdapter{general: general, multi: multi}
}

// General returns the console logger
func (la *LoggerAdapter) General() *zap.Logger {
	return la.general
}

// Category returns the logger for a category
func (la *LoggerAdapter) Category(category LogCategory) *zap.Logger {
	if la.multi == nil {
		return la.general
	}
	return la.multi.GetLogger(category)
}

// LogError logs an error to the console and to the error file
func (la *LoggerAdapter) LogError(msg string, fields ...zap.Field) {
	la.general.Error(msg, fields...)
	if la.multi != nil {
		la.multi.LogAppError(msg, fields...)
	}
}

// Multi returns the underlying multi-logger, which may be nil
func (la *LoggerAdapter) Multi() *MultiLogger {
	return la.multi
}

// LogsDir returns the category file directory, or "" when file logging is off
func (la *LoggerAdapter) LogsDir() string {
	if la.multi == nil {
		return ""
	}
	return la.multi.LogsDir()
}

// Sync flushes all loggers
func (la *LoggerAdapter) Sync() error {
	if la.multi != nil {
		la.multi.Sync()
	}
	return la.general.Sync()
}
