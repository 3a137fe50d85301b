package event

import (
	"iter"
	"sync"

	"github.com/CZERTAINLY/Paperwork/internal/job"
)

// Channel is a multi-producer, single-consumer FIFO of job events. Publish
// never blocks.
type Channel struct {
	mx      sync.Mutex
	queue   []job.Event
	limit   int
	dropped uint64
	ready   chan struct{}
}

type Option func(*Channel)

// WithLimit bounds the queue to n events. Over the limit an incoming progress
// event replaces the queued tail of the same run and type, or is dropped.
// Terminal events and events with a payload are always queued. n <= 0 keeps
// the channel unbounded.
func WithLimit(n int) Option {
	return func(c *Channel) {
		c.limit = max(n, 0)
	}
}

func NewChannel(opts ...Option) *Channel {
	c := &Channel{
		ready: make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Publish implements job.Publisher.
func (c *Channel) Publish(ev job.Event) {
	c.mx.Lock()
	defer c.mx.Unlock()

	if c.limit > 0 && len(c.queue) >= c.limit && coalescable(ev) {
		c.dropped++
		if tail := &c.queue[len(c.queue)-1]; coalescable(*tail) && tail.Run == ev.Run && tail.Type == ev.Type {
			*tail = ev
		}
		return
	}
	c.queue = append(c.queue, ev)
	c.notify()
}

// Drain yields the events queued when the iteration starts. Events published
// meanwhile are left for the next Drain. When the caller breaks early, the
// events not yet yielded go back to the head of the queue.
func (c *Channel) Drain() iter.Seq[job.Event] {
	return func(yield func(job.Event) bool) {
		c.mx.Lock()
		batch := c.queue
		c.queue = nil
		c.mx.Unlock()

		for i, ev := range batch {
			if !yield(ev) {
				c.requeue(batch[i+1:])
				return
			}
		}
	}
}

// Ready receives a value after a Publish to an empty channel.
func (c *Channel) Ready() <-chan struct{} {
	return c.ready
}

func (c *Channel) Len() int {
	c.mx.Lock()
	defer c.mx.Unlock()
	return len(c.queue)
}

// Dropped returns the number of progress events discarded or replaced
// because of the limit.
func (c *Channel) Dropped() uint64 {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.dropped
}

func (c *Channel) requeue(rest []job.Event) {
	if len(rest) == 0 {
		return
	}
	c.mx.Lock()
	defer c.mx.Unlock()
	queue := make([]job.Event, 0, len(rest)+len(c.queue))
	queue = append(queue, rest...)
	c.queue = append(queue, c.queue...)
	c.notify()
}

// notify must be called with mx held.
func (c *Channel) notify() {
	select {
	case c.ready <- struct{}{}:
	default:
	}
}

func coalescable(ev job.Event) bool {
	return ev.Progress && !ev.Terminal && ev.Payload == nil
}
