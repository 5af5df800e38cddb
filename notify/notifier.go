package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Handler consumes one event.
type Handler func(Event)

// Notifier is an unbounded FIFO safe for many producers and one consumer.
// Events published by one goroutine are drained in publish order.
type Notifier struct {
	mu     sync.Mutex
	queue  []Event
	logger *slog.Logger
}

func New() *Notifier {
	return &Notifier{logger: slog.Default()}
}

// Publish appends ev. It never blocks on the consumer.
func (n *Notifier) Publish(ev Event) {
	n.mu.Lock()
	n.queue = append(n.queue, ev)
	n.mu.Unlock()
}

// Drain removes and returns up to max events from the head of the queue.
func (n *Notifier) Drain(max int) []Event {
	n.mu.Lock()
	defer n.mu.Unlock()

	count := min(max, len(n.queue))
	if count <= 0 {
		return nil
	}
	out := make([]Event, count)
	copy(out, n.queue)
	clear(n.queue[:count])
	n.queue = n.queue[count:]
	if len(n.queue) == 0 {
		n.queue = nil
	}
	return out
}

// Len is the number of queued events.
func (n *Notifier) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.queue)
}

// Run is the single consumer loop: every interval it hands at most batch
// events to handle. When ctx is done the remaining events are flushed before
// Run returns.
func (n *Notifier) Run(ctx context.Context, interval time.Duration, batch int, handle Handler) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	n.logger.Info("Event consumer started", "interval", interval, "batch", batch)
	for {
		select {
		case <-ctx.Done():
			flushed := 0
			for evs := n.Drain(batch); len(evs) > 0; evs = n.Drain(batch) {
				for _, ev := range evs {
					handle(ev)
				}
				flushed += len(evs)
			}
			n.logger.Info("Event consumer stopped", "flushed", flushed)
			return
		case <-ticker.C:
			for _, ev := range n.Drain(batch) {
				handle(ev)
			}
		}
	}
}
