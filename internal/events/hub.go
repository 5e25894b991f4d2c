package events

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultCapacity is the backlog size used when NewHub is given a non-positive value.
const DefaultCapacity = 256

// subscriberBuffer is how many events a subscriber may lag before it starts
// missing them.
const subscriberBuffer = 64

// Event is one published lifecycle or dispatch event.
type Event struct {
	ID   int64           `json:"id"`
	Type string          `json:"type"`
	At   time.Time       `json:"at"`
	Data json.RawMessage `json:"data"`
}

type subscriber struct {
	ch chan Event
}

// Hub fans events out to live subscribers and keeps a bounded backlog so a
// reconnecting client can resume from its Last-Event-ID.
type Hub struct {
	capacity int
	lastID   atomic.Int64
	dropped  atomic.Uint64

	mu      sync.Mutex
	backlog []Event
	subs    map[*subscriber]struct{}
}

func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Hub{
		capacity: capacity,
		backlog:  make([]Event, 0, capacity),
		subs:     make(map[*subscriber]struct{}),
	}
}

// Publish records an event and offers it to every subscriber without
// blocking. A subscriber whose buffer is full misses the event. Data that
// cannot be marshalled is published as {}. A nil Hub ignores the call.
func (h *Hub) Publish(eventType string, data any) {
	if h == nil {
		return
	}

	raw := json.RawMessage("{}")
	if data != nil {
		if b, err := json.Marshal(data); err == nil {
			raw = b
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	// IDs are assigned under the lock so the backlog stays ordered.
	ev := Event{ID: h.lastID.Add(1), Type: eventType, At: time.Now().UTC(), Data: raw}
	if len(h.backlog) == h.capacity {
		copy(h.backlog, h.backlog[1:])
		h.backlog = h.backlog[:len(h.backlog)-1]
	}
	h.backlog = append(h.backlog, ev)

	for sub := range h.subs {
		select {
		case sub.ch <- ev:
		default:
			h.dropped.Add(1)
		}
	}
}

// Subscribe returns a channel of events published from now on and a cancel
// func that closes it. cancel may be called more than once.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	sub := &subscriber{ch: make(chan Event, subscriberBuffer)}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, sub)
			h.mu.Unlock()
			close(sub.ch)
		})
	}
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Dropped counts deliveries skipped because a subscriber was full. A nil Hub
// reports 0.
func (h *Hub) Dropped() uint64 {
	if h == nil {
		return 0
	}
	return h.dropped.Load()
}

// SnapshotSince returns backlog events with ID > lastID, oldest first.
func (h *Hub) SnapshotSince(lastID int64) []Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, ev := range h.backlog {
		if ev.ID > lastID {
			return append([]Event(nil), h.backlog[i:]...)
		}
	}
	return nil
}
