package broadcast

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Kind tags the variant held by a Result.
type Kind int

const (
	KindFrame Kind = iota
	KindLagged
	KindClosed
)

func (k Kind) String() string {
	switch k {
	case KindFrame:
		return "frame"
	case KindLagged:
		return "lagged"
	case KindClosed:
		return "closed"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Result is one read from a Subscription: a frame, a lag notice carrying the
// number of frames skipped, or the end of the stream.
type Result struct {
	Kind   Kind
	Frame  []byte
	Missed uint64
}

func (r Result) String() string {
	switch r.Kind {
	case KindFrame:
		return fmt.Sprintf("frame(%d bytes)", len(r.Frame))
	case KindLagged:
		return fmt.Sprintf("lagged(%d)", r.Missed)
	default:
		return r.Kind.String()
	}
}

// Subscription is one reader's cursor into a Channel. It must be used from a
// single goroutine.
type Subscription struct {
	ID uuid.UUID

	channel  *Channel
	next     uint64
	released bool

	delivered uint64
	missed    uint64
}

// Next waits for the next result. The error is non-nil only when ctx ends
// first; lag and close are reported through Result.
func (s *Subscription) Next(ctx context.Context) (Result, error) {
	c := s.channel
	for {
		c.mu.Lock()
		if s.released {
			c.mu.Unlock()
			return Result{Kind: KindClosed}, nil
		}

		if s.next < c.tail {
			if oldest := c.oldest(); s.next < oldest {
				missed := oldest - s.next
				s.next = oldest
				s.missed += missed
				c.mu.Unlock()
				return Result{Kind: KindLagged, Missed: missed}, nil
			}
			frame := c.ring[s.next%uint64(len(c.ring))]
			s.next++
			s.delivered++
			c.mu.Unlock()
			return Result{Kind: KindFrame, Frame: frame}, nil
		}

		if c.closed {
			c.mu.Unlock()
			return Result{Kind: KindClosed}, nil
		}
		wait := c.notify
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-wait:
		}
	}
}

// Close releases the subscription. Other readers and the producer are not
// affected. Close is idempotent.
func (s *Subscription) Close() {
	c := s.channel
	c.mu.Lock()
	defer c.mu.Unlock()

	if s.released {
		return
	}
	s.released = true
	c.subscribers--
}

// Delivered is the number of frames this subscription returned.
func (s *Subscription) Delivered() uint64 { return s.delivered }

// Missed is the total number of frames this subscription lost to lag.
func (s *Subscription) Missed() uint64 { return s.missed }
