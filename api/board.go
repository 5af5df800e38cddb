package api

import (
	"log/slog"
	"sync"

	"mediadl/notify"
)

const subscriberBuffer = 64

// Board is the consumer-side view of job events. It remembers the latest
// event of every job it has seen and fans events out to live subscribers.
type Board struct {
	mu     sync.Mutex
	latest map[string]notify.Event
	order  []string
	subs   map[chan notify.Event]struct{}
	limit  int
	logger *slog.Logger
}

// NewBoard keeps at most limit jobs; the oldest finished jobs are forgotten
// first.
func NewBoard(limit int) *Board {
	return &Board{
		latest: make(map[string]notify.Event),
		subs:   make(map[chan notify.Event]struct{}),
		limit:  limit,
		logger: slog.Default(),
	}
}

// Handle records ev and forwards it to every subscriber. A subscriber that
// is not keeping up misses the event.
func (b *Board) Handle(ev notify.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := ev.JobID()
	if _, seen := b.latest[id]; !seen {
		b.order = append(b.order, id)
	}
	b.latest[id] = ev
	b.trim()

	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.logger.Warn("Event subscriber is behind, dropping event", "id", id, "kind", ev.Kind())
		}
	}
}

func (b *Board) trim() {
	for i := 0; len(b.order) > b.limit && i < len(b.order); {
		id := b.order[i]
		if !b.latest[id].Kind().IsTerminal() {
			i++
			continue
		}
		delete(b.latest, id)
		b.order = append(b.order[:i], b.order[i+1:]...)
	}
}

// Latest returns the most recent event of each known job in arrival order.
func (b *Board) Latest() []notify.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]notify.Event, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.latest[id])
	}
	return out
}

// Subscribe registers a live listener. The returned function unregisters it
// and closes the channel.
func (b *Board) Subscribe() (<-chan notify.Event, func()) {
	ch := make(chan notify.Event, subscriberBuffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
}
