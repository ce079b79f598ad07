package events

import (
	"log/slog"
	"sync"
	"time"

	"github.com/kode4food/relay/pkg/api"
)

type (
	// Publisher accepts run events
	Publisher interface {
		Publish(typ api.EventType, data any)
	}

	// Hub fans published events out to its subscribers. Delivery to a
	// subscriber whose buffer is full is skipped rather than blocking others
	Hub struct {
		queue  *Queue
		subs   map[*Subscription]struct{}
		mu     sync.RWMutex
		closed bool
	}

	// Subscription receives the events published after it was created
	Subscription struct {
		hub    *Hub
		ch     chan *api.Event
		filter Filter
		once   sync.Once
	}

	// Filter selects the events a subscription receives
	Filter func(*api.Event) bool
)

const (
	DefaultBatchSize     = 64
	DefaultSubscriberBuf = 256
)

var _ Publisher = (*Hub)(nil)

// NewHub creates a running hub
func NewHub() *Hub {
	h := &Hub{
		subs: map[*Subscription]struct{}{},
	}
	h.queue = NewQueue(h.dispatch, DefaultBatchSize)
	h.queue.Start()
	return h
}

// Publish enqueues an event for delivery. Events published after Close are
// discarded
func (h *Hub) Publish(typ api.EventType, data any) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	h.queue.Enqueue(&api.Event{
		Type:      typ,
		Data:      data,
		Timestamp: time.Now(),
	})
}

// Subscribe registers a subscriber with the given buffer size. A nil filter
// accepts every event
func (h *Hub) Subscribe(buffer int, filter Filter) *Subscription {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuf
	}
	sub := &Subscription{
		hub:    h,
		ch:     make(chan *api.Event, buffer),
		filter: filter,
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(sub.ch)
		sub.once.Do(func() {})
		return sub
	}
	h.subs[sub] = struct{}{}
	return sub
}

// Close delivers pending events, then closes every subscription
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	h.mu.Unlock()

	h.queue.Flush()

	h.mu.Lock()
	subs := h.subs
	h.subs = map[*Subscription]struct{}{}
	h.mu.Unlock()
	for sub := range subs {
		sub.once.Do(func() { close(sub.ch) })
	}
}

func (h *Hub) dispatch(batch []*api.Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ev := range batch {
		for sub := range h.subs {
			if sub.filter != nil && !sub.filter(ev) {
				continue
			}
			select {
			case sub.ch <- ev:
			default:
				slog.Warn("Dropping event for slow subscriber",
					slog.String("event_type", string(ev.Type)))
			}
		}
	}
	return nil
}

// Events returns the channel of delivered events. It is closed when the
// subscription or its hub is closed
func (s *Subscription) Events() <-chan *api.Event {
	return s.ch
}

// Close unregisters the subscription
func (s *Subscription) Close() {
	s.hub.mu.Lock()
	delete(s.hub.subs, s)
	s.hub.mu.Unlock()
	s.once.Do(func() { close(s.ch) })
}

// FilterTypes accepts events of the given types
func FilterTypes(types ...api.EventType) Filter {
	return func(ev *api.Event) bool {
		for _, t := range types {
			if ev.Type == t {
				return true
			}
		}
		return false
	}
}
