package app

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/miku1hhhh/sina-dl/internal/domain"
)

// mockProbe reports the identifiers in valid as real resources
type mockProbe struct {
	valid map[int64]string
	delay time.Duration
	block chan struct{}

	mu       sync.Mutex
	calls    map[int64]int
	inFlight atomic.Int32
	peak     atomic.Int32
}

func newMockProbe(valid ...int64) *mockProbe {
	p := &mockProbe{valid: make(map[int64]string), calls: make(map[int64]int)}
	for _, id := range valid {
		p.valid[id] = ""
	}
	return p
}

func (p *mockProbe) Probe(ctx context.Context, id int64) domain.ProbeResult {
	n := p.inFlight.Add(1)
	defer p.inFlight.Add(-1)
	for {
		peak := p.peak.Load()
		if n <= peak || p.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	p.mu.Lock()
	p.calls[id]++
	p.mu.Unlock()

	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
		}
	}
	if p.delay > 0 {
		time.Sleep(p.delay)
	}

	if title, ok := p.valid[id]; ok {
		return domain.ValidProbe(id, title)
	}
	return domain.InvalidProbe(id, "not found")
}

func (p *mockProbe) callCounts() map[int64]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[int64]int, len(p.calls))
	for k, v := range p.calls {
		out[k] = v
	}
	return out
}

// mockResolver returns a fixed format per identifier, mp4 otherwise
type mockResolver map[int64]domain.Format

func (r mockResolver) Resolve(ctx context.Context, id int64) domain.Format {
	if f, ok := r[id]; ok {
		return f
	}
	return domain.DefaultFormat()
}

// mockFetcher serves payloads keyed by "<id>.<format>"
type mockFetcher struct {
	mu       sync.Mutex
	payloads map[string]string
	requests []string
}

func newMockFetcher(payloads map[string]string) *mockFetcher {
	return &mockFetcher{payloads: payloads}
}

func (f *mockFetcher) Fetch(ctx context.Context, id int64, format domain.Format) (*domain.Payload, error) {
	name := domain.EntryName(id, format)
	f.mu.Lock()
	f.requests = append(f.requests, name)
	f.mu.Unlock()

	data, ok := f.payloads[name]
	if !ok {
		return nil, &domain.FetchError{URL: name, StatusCode: 404}
	}
	return &domain.Payload{Data: []byte(data), ContentType: "video/" + string(format)}, nil
}

func (f *mockFetcher) requested() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

// recordingSink keeps every event and can run a hook on progress
type recordingSink struct {
	mu         sync.Mutex
	progress   []domain.Progress
	found      []int64
	statuses   []string
	logs       []string
	onProgress func(domain.Progress)
}

func (s *recordingSink) OnProgress(p domain.Progress) {
	s.mu.Lock()
	s.progress = append(s.progress, p)
	hook := s.onProgress
	s.mu.Unlock()
	if hook != nil {
		hook(p)
	}
}

func (s *recordingSink) OnItemFound(sessionID string, item *domain.ValidatedItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.found = append(s.found, item.Identifier)
}

func (s *recordingSink) OnItemStatusChanged(sessionID string, id int64, status domain.ItemStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, fmt.Sprintf("%d:%s", id, status))
}

func (s *recordingSink) OnLog(sessionID string, level domain.LogLevel, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, string(level)+": "+message)
}

func (s *recordingSink) progressEvents() []domain.Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Progress(nil), s.progress...)
}

// mockMirror records uploads or fails every one
type mockMirror struct {
	err      error
	uploaded []string
}

func (m *mockMirror) Upload(ctx context.Context, archive *domain.Archive) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.uploaded = append(m.uploaded, archive.Name)
	return "s3://bucket/" + archive.Name, nil
}

func identifiers(items []*domain.ValidatedItem) []int64 {
	out := make([]int64, 0, len(items))
	for _, item := range items {
		out = append(out, item.Identifier)
	}
	return out
}

func filenames(items []*domain.DownloadedItem) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.Filename)
	}
	return out
}
