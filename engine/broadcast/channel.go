// Package broadcast fans encoded frames out from one producer to many readers.
//
// Frames live in a fixed ring. Publishing overwrites the oldest slot and never
// waits for readers; every Subscription keeps its own cursor into the ring and
// learns how many frames it lost when the producer laps it.
package broadcast

import (
	"sync"

	"github.com/google/uuid"
)

// DefaultCapacity is the number of frames retained for slow readers.
const DefaultCapacity = 16

// Channel is a single-writer, multi-reader broadcast of immutable frames.
type Channel struct {
	mu          sync.Mutex
	ring        [][]byte // frame with sequence n lives at n % len(ring)
	tail        uint64 // sequence number of the next publish
	closed      bool
	notify      chan struct{}
	subscribers int

	published  uint64
	unobserved uint64
}

// Stats is a point-in-time view of a Channel.
type Stats struct {
	Capacity    int    `json:"capacity"`
	Published   uint64 `json:"published"`
	Unobserved  uint64 `json:"unobserved"`
	Subscribers int    `json:"subscribers"`
	Closed      bool   `json:"closed"`
}

// New creates a Channel retaining up to capacity frames per reader.
func New(capacity int) *Channel {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Channel{
		ring:   make([][]byte, capacity),
		notify: make(chan struct{}),
	}
}

// Publish makes frame visible to every current subscriber. It never blocks on
// readers. Without subscribers, or after Close, the frame is discarded.
// The caller must not modify frame afterwards.
func (c *Channel) Publish(frame []byte) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.subscribers == 0 {
		c.unobserved++
		c.mu.Unlock()
		return
	}

	c.ring[c.tail%uint64(len(c.ring))] = frame
	c.tail++
	c.published++
	wake := c.notify
	c.notify = make(chan struct{})
	c.mu.Unlock()

	close(wake)
}

// Subscribe registers a reader that sees frames published from now on.
func (c *Channel) Subscribe() *Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.subscribers++
	return &Subscription{
		ID:      uuid.New(),
		channel: c,
		next:    c.tail,
	}
}

// Close ends the stream. Readers drain what is still in the ring and then get
// KindClosed. Close is idempotent.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	wake := c.notify
	c.mu.Unlock()

	close(wake)
}

// Stats returns the channel's counters and current subscriber count.
func (c *Channel) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Capacity:    len(c.ring),
		Published:   c.published,
		Unobserved:  c.unobserved,
		Subscribers: c.subscribers,
		Closed:      c.closed,
	}
}

// oldest returns the lowest sequence number still held by the ring.
// Must be called with c.mu held.
func (c *Channel) oldest() uint64 {
	if n := uint64(len(c.ring)); c.tail > n {
		return c.tail - n
	}
	return 0
}
