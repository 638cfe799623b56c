package domain

import "time"

// Phase identifies which pipeline stage produced a progress event
type Phase string

const (
	PhaseScan     Phase = "scan"
	PhaseDownload Phase = "download"
	PhaseArchive  Phase = "archive"
)

// LogLevel is the severity attached to OnLog messages
type LogLevel string

const (
	LogInfo    LogLevel = "info"
	LogSuccess LogLevel = "success"
	LogWarning LogLevel = "warning"
	LogError   LogLevel = "error"
)

// Progress is emitted after every scan batch and every download item
type Progress struct {
	SessionID string `json:"session_id"`
	Phase     Phase  `json:"phase"`
	Current   int64  `json:"current"`
	Total     int64  `json:"total"`
	// Valid is the number of validated items found so far (scan only)
	Valid   int    `json:"valid"`
	Message string `json:"message"`
}

// Percent returns the completion percentage of the event
func (p Progress) Percent() float64 {
	if p.Total <= 0 {
		return 0
	}
	return float64(p.Current) / float64(p.Total) * 100
}

// ProgressSink receives pipeline notifications. The UI layer implements it;
// the core never depends on how events are rendered.
type ProgressSink interface {
	OnProgress(p Progress)
	OnItemFound(sessionID string, item *ValidatedItem)
	OnItemStatusChanged(sessionID string, id int64, status ItemStatus)
	OnLog(sessionID string, level LogLevel, message string)
}

// NopSink discards all events
type NopSink struct{}

func (NopSink) OnProgress(Progress)                           {}
func (NopSink) OnItemFound(string, *ValidatedItem)            {}
func (NopSink) OnItemStatusChanged(string, int64, ItemStatus) {}
func (NopSink) OnLog(string, LogLevel, string)                {}

// MultiSink fans events out to several sinks in order
type MultiSink []ProgressSink

func (m MultiSink) OnProgress(p Progress) {
	for _, s := range m {
		s.OnProgress(p)
	}
}

func (m MultiSink) OnItemFound(sessionID string, item *ValidatedItem) {
	for _, s := range m {
		s.OnItemFound(sessionID, item)
	}
}

func (m MultiSink) OnItemStatusChanged(sessionID string, id int64, status ItemStatus) {
	for _, s := range m {
		s.OnItemStatusChanged(sessionID, id, status)
	}
}

func (m MultiSink) OnLog(sessionID string, level LogLevel, message string) {
	for _, s := range m {
		s.OnLog(sessionID, level, message)
	}
}

// Event is the serialized form of a sink notification, used by streaming
// consumers such as the websocket endpoint
type Event struct {
	Type      string         `json:"type"`
	SessionID string         `json:"session_id"`
	Time      time.Time      `json:"time"`
	Progress  *Progress      `json:"progress,omitempty"`
	Item      *ValidatedItem `json:"item,omitempty"`
	VID       int64          `json:"vid,omitempty"`
	Status    ItemStatus     `json:"status,omitempty"`
	Level     LogLevel       `json:"level,omitempty"`
	Message   string         `json:"message,omitempty"`
}

// Event types
const (
	EventProgress   = "progress"
	EventItemFound  = "item_found"
	EventItemStatus = "item_status"
	EventLog        = "log"
)
