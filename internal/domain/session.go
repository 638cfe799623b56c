package domain

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// SessionState is the single activity a session may be running
type SessionState string

const (
	StateIdle        SessionState = "idle"
	StateScanning    SessionState = "scanning"
	StateDownloading SessionState = "downloading"
	StatePacking     SessionState = "packing"
)

// ScanSession owns the results of one scan and one download sequence.
// Only one operation runs at a time; the state enum rejects re-entrant starts.
type ScanSession struct {
	ID        string
	CreatedAt time.Time

	mu         sync.RWMutex
	state      SessionState
	lastRange  Range
	validated  []*ValidatedItem
	seen       map[int64]int // identifier -> position in validated
	tracked    map[int64]*DownloadedItem
	downloaded []*DownloadedItem
	stop       atomic.Bool
}

// NewScanSession creates an idle session
func NewScanSession() *ScanSession {
	return &ScanSession{
		ID:        uuid.New().String(),
		CreatedAt: time.Now(),
		state:     StateIdle,
		seen:      make(map[int64]int),
		tracked:   make(map[int64]*DownloadedItem),
	}
}

// State returns the current session state
func (s *ScanSession) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// BeginScan moves an idle session into scanning and clears previous results.
// A busy session is left untouched and ErrSessionConflict is returned.
func (s *ScanSession) BeginScan(r Range) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return fmt.Errorf("%w: cannot scan while %s", ErrSessionConflict, s.state)
	}
	s.state = StateScanning
	s.lastRange = r
	s.resetLocked()
	s.stop.Store(false)
	return nil
}

// BeginDownload moves an idle session into downloading
func (s *ScanSession) BeginDownload() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return fmt.Errorf("%w: cannot download while %s", ErrSessionConflict, s.state)
	}
	s.state = StateDownloading
	s.stop.Store(false)
	return nil
}

// BeginPack moves an idle session into packing. Payloads cannot be
// cleared or replaced until Finish.
func (s *ScanSession) BeginPack() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return fmt.Errorf("%w: cannot pack while %s", ErrSessionConflict, s.state)
	}
	s.state = StatePacking
	return nil
}

// Finish returns the session to idle
func (s *ScanSession) Finish() {
	s.mu.Lock()
	s.state = StateIdle
	s.mu.Unlock()
}

// RequestStop asks the running operation to halt at its next checkpoint.
// It returns false when nothing is running.
func (s *ScanSession) RequestStop() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == StateIdle {
		return false
	}
	s.stop.Store(true)
	return true
}

// StopRequested reports whether RequestStop was called for the running operation
func (s *ScanSession) StopRequested() bool {
	return s.stop.Load()
}

// AddValidated appends an item unless its identifier is already present
func (s *ScanSession) AddValidated(item *ValidatedItem) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[item.Identifier]; ok {
		return false
	}
	s.seen[item.Identifier] = len(s.validated)
	s.validated = append(s.validated, item)
	return true
}

// Validated returns a copy of the validated list in insertion order
func (s *ScanSession) Validated() []*ValidatedItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*ValidatedItem, len(s.validated))
	copy(out, s.validated)
	return out
}

// ValidCount returns the number of validated items
func (s *ScanSession) ValidCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.validated)
}

// Track starts tracking a download attempt, replacing any earlier attempt
// for the same identifier
func (s *ScanSession) Track(d *DownloadedItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.tracked[d.Identifier()]; ok && prev.Status == ItemCompleted {
		s.removeDownloadedLocked(prev)
	}
	s.tracked[d.Identifier()] = d
}

// Update applies fn to a tracked item under the session lock
func (s *ScanSession) Update(d *DownloadedItem, fn func(*DownloadedItem)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(d)
}

// AddDownloaded inserts a completed item at its validated position, so the
// downloaded list stays an ordered subsequence across repeated passes
func (s *ScanSession) AddDownloaded(d *DownloadedItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos := s.seen[d.Identifier()]
	i := sort.Search(len(s.downloaded), func(i int) bool {
		return s.seen[s.downloaded[i].Identifier()] > pos
	})
	s.downloaded = append(s.downloaded, nil)
	copy(s.downloaded[i+1:], s.downloaded[i:])
	s.downloaded[i] = d
}

// Downloaded returns a copy of the completed downloads in order
func (s *ScanSession) Downloaded() []*DownloadedItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*DownloadedItem, len(s.downloaded))
	copy(out, s.downloaded)
	return out
}

// DownloadedItem returns a copy of the completed download for an identifier.
// The copy keeps its payload after the session releases the original.
func (s *ScanSession) DownloadedItem(id int64) (*DownloadedItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.tracked[id]
	if !ok || d.Status != ItemCompleted || len(d.Payload) == 0 {
		return nil, fmt.Errorf("%w: vid %d has not been downloaded", ErrItemNotFound, id)
	}
	cp := *d
	return &cp, nil
}

// ItemStatus returns the download status of a validated identifier
func (s *ScanSession) ItemStatus(id int64) (ItemStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if d, ok := s.tracked[id]; ok {
		return d.Status, true
	}
	if _, ok := s.seen[id]; ok {
		return ItemPending, true
	}
	return "", false
}

// ReleasePayloads drops all downloaded items once their archive is finalized
func (s *ScanSession) ReleasePayloads() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.downloaded {
		d.Release()
		delete(s.tracked, d.Identifier())
	}
	s.downloaded = nil
}

// Clear drops every result. It is refused while an operation is running.
func (s *ScanSession) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return fmt.Errorf("%w: cannot clear while %s", ErrSessionConflict, s.state)
	}
	s.resetLocked()
	return nil
}

func (s *ScanSession) resetLocked() {
	for _, d := range s.tracked {
		d.Release()
	}
	s.validated = nil
	s.downloaded = nil
	s.seen = make(map[int64]int)
	s.tracked = make(map[int64]*DownloadedItem)
}

func (s *ScanSession) removeDownloadedLocked(d *DownloadedItem) {
	for i, cur := range s.downloaded {
		if cur == d {
			s.downloaded = append(s.downloaded[:i], s.downloaded[i+1:]...)
			return
		}
	}
}

// SessionSnapshot is a read-only view of a session for APIs
type SessionSnapshot struct {
	ID              string         `json:"id"`
	State           SessionState   `json:"state"`
	CreatedAt       time.Time      `json:"created_at"`
	Range           Range          `json:"range"`
	ValidCount      int            `json:"valid_count"`
	DownloadedCount int            `json:"downloaded_count"`
	Items           []ItemSnapshot `json:"items"`
}

// ItemSnapshot pairs a validated item with its current download status
type ItemSnapshot struct {
	ValidatedItem
	Status   ItemStatus `json:"status"`
	Filename string     `json:"filename,omitempty"`
	Size     int64      `json:"size,omitempty"`
	Error    string     `json:"error,omitempty"`
}

// Snapshot captures the session for display
func (s *ScanSession) Snapshot() SessionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := SessionSnapshot{
		ID:              s.ID,
		State:           s.state,
		CreatedAt:       s.CreatedAt,
		Range:           s.lastRange,
		ValidCount:      len(s.validated),
		DownloadedCount: len(s.downloaded),
		Items:           make([]ItemSnapshot, 0, len(s.validated)),
	}
	for _, v := range s.validated {
		is := ItemSnapshot{ValidatedItem: *v, Status: ItemPending}
		if d, ok := s.tracked[v.Identifier]; ok {
			is.Status = d.Status
			is.Filename = d.Filename
			is.Size = d.Size
			is.Error = d.ErrorMessage
		}
		snap.Items = append(snap.Items, is)
	}
	return snap
}
