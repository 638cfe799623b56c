package app

import (
	"sync"
	"time"

	"github.com/miku1hhhh/sina-dl/internal/domain"
)

// EventHub is a ProgressSink that fans events out to streaming subscribers.
// Slow subscribers lose events rather than stall the pipeline.
type EventHub struct {
	mu     sync.RWMutex
	subs   map[int]*subscription
	nextID int
}

type subscription struct {
	ch        chan domain.Event
	sessionID string
}

// NewEventHub creates an empty hub
func NewEventHub() *EventHub {
	return &EventHub{subs: make(map[int]*subscription)}
}

// Subscribe registers a subscriber. An empty sessionID receives every session.
// The returned cancel func must be called to release the subscription.
func (h *EventHub) Subscribe(sessionID string, buffer int) (<-chan domain.Event, func()) {
	if buffer < 1 {
		buffer = 64
	}
	sub := &subscription{ch: make(chan domain.Event, buffer), sessionID: sessionID}

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = sub
	h.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(sub.ch)
		})
	}
}

// Subscribers returns the number of active subscribers
func (h *EventHub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *EventHub) publish(e domain.Event) {
	e.Time = time.Now()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		if sub.sessionID != "" && sub.sessionID != e.SessionID {
			continue
		}
		select {
		case sub.ch <- e:
		default:
		}
	}
}

func (h *EventHub) OnProgress(p domain.Progress) {
	h.publish(domain.Event{Type: domain.EventProgress, SessionID: p.SessionID, Progress: &p})
}

func (h *EventHub) OnItemFound(sessionID string, item *domain.ValidatedItem) {
	h.publish(domain.Event{Type: domain.EventItemFound, SessionID: sessionID, Item: item})
}

func (h *EventHub) OnItemStatusChanged(sessionID string, id int64, status domain.ItemStatus) {
	h.publish(domain.Event{Type: domain.EventItemStatus, SessionID: sessionID, VID: id, Status: status})
}

func (h *EventHub) OnLog(sessionID string, level domain.LogLevel, message string) {
	h.publish(domain.Event{Type: domain.EventLog, SessionID: sessionID, Level: level, Message: message})
}
