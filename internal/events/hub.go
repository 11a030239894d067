package events

import (
	"context"
	"log/slog"
	"sync"
)

// Hub fans events out to live subscribers of a course. Slow subscribers drop
// events rather than block the pipeline.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[chan Event]struct{}
	buffer int
}

// NewHub creates a hub whose subscriber channels hold buffer events.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{subs: make(map[string]map[chan Event]struct{}), buffer: buffer}
}

// Subscribe returns a channel of future events for courseID and a function
// that unsubscribes and closes the channel.
func (h *Hub) Subscribe(courseID string) (<-chan Event, func()) {
	ch := make(chan Event, h.buffer)

	h.mu.Lock()
	if h.subs[courseID] == nil {
		h.subs[courseID] = make(map[chan Event]struct{})
	}
	h.subs[courseID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[courseID], ch)
			if len(h.subs[courseID]) == 0 {
				delete(h.subs, courseID)
			}
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers returns the number of live subscribers for a course.
func (h *Hub) Subscribers(courseID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[courseID])
}

func (h *Hub) LogEvent(_ context.Context, event Event) error {
	if err := event.validate(); err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[event.CourseID] {
		select {
		case ch <- event:
		default:
			slog.Warn("dropping event for slow subscriber",
				"course_id", event.CourseID,
				"type", event.Type,
			)
		}
	}
	return nil
}
