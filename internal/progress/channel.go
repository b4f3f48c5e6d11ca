package progress

import "sync"

// Channel is a bounded-queue notifier. When the queue is full the
// oldest pending event is dropped so the runner never blocks on a slow
// consumer.
type Channel struct {
	mu     sync.Mutex
	events chan Event
	closed bool
}

func NewChannel(capacity int) *Channel {
	if capacity <= 0 {
		capacity = 64
	}
	return &Channel{events: make(chan Event, capacity)}
}

// Events is the consumer side of the queue.
func (c *Channel) Events() <-chan Event { return c.events }

func (c *Channel) Notify(stage, message string, percent int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	ev := Event{Stage: stage, Message: message, Percent: percent}
	for {
		select {
		case c.events <- ev:
			return
		default:
		}
		// Queue full: drop the oldest and retry.
		select {
		case <-c.events:
		default:
		}
	}
}

// Close stops the queue. Pending events remain readable.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.events)
	}
}
