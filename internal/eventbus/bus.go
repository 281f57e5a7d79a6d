// Package eventbus decouples the data-collecting plugins from the services
// that react to their results (snapshot recording, diagnostics).
package eventbus

import (
	"sync"
	"sync/atomic"
	"time"
)

// Well-known event types.
const (
	TypeFetched     = "hotsearch.fetched"      // Data: FetchedEvent
	TypeFetchFailed = "hotsearch.fetch_failed" // Data: FetchFailedEvent
)

// FeedItem is one collected entry, trimmed to what downstream consumers
// (recorder, diagnostics) need. Defined here so subscribers do not have to
// import the collecting plugin.
type FeedItem struct {
	Rank    int    `json:"rank"`
	Title   string `json:"title"`
	Summary string `json:"summary,omitempty"`
	URL     string `json:"url,omitempty"`
	Score   string `json:"score,omitempty"`
}

// FetchedEvent is published by a plugin after a successful collection run.
// Items holds the entries the plugin kept (already capped to its top-N).
type FetchedEvent struct {
	Plugin string     `json:"plugin"`
	Tab    string     `json:"tab"`
	SubTab string     `json:"sub_tab"`
	Count  int        `json:"count"`
	At     time.Time  `json:"at"`
	Items  []FeedItem `json:"items,omitempty"`
}

// FetchFailedEvent is published when a collection run errored.
type FetchFailedEvent struct {
	Plugin string `json:"plugin"`
	Tab    string `json:"tab"`
	Error  string `json:"error"`
}

// Event is a lightweight, in-memory signal.
//
// Contract:
//   - Publish MUST be non-blocking.
//   - Slow subscribers may drop events (bounded backpressure).
//
// Data should be small and JSON-serializable.
type Event struct {
	Type string
	Time time.Time
	Data any
}

type Bus interface {
	Publish(e Event)
	Subscribe(buffer int) (ch <-chan Event, unsubscribe func())
}

// New returns a simple in-memory fanout bus.
// It does not own any background goroutines.
func New() Bus {
	return &memBus{subs: map[uint64]chan Event{}}
}

type memBus struct {
	mu   sync.Mutex
	subs map[uint64]chan Event
	seq  atomic.Uint64
}

func (b *memBus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	// Hold the lock while sending so Unsubscribe can never close a channel
	// mid-send. Sends are non-blocking, so the critical section stays short.
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			// subscriber is slow; drop
		}
	}
}

func (b *memBus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan Event, buffer)
	id := b.seq.Add(1)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			close(ch)
			b.mu.Unlock()
		})
	}
	return ch, unsub
}
