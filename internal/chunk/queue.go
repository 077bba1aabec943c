package chunk

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
)

// Order is the queue's hand-out policy. Long-to-short is the default: the
// largest-processing-time heuristic minimizes tail latency.
type Order string

const (
	OrderLongToShort Order = "long-to-short"
	OrderShortToLong Order = "short-to-long"
	OrderSequential  Order = "sequential"
	OrderRandom      Order = "random"
)

// ParseOrder converts the CLI spelling into an Order.
func ParseOrder(value string) (Order, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "long-to-short":
		return OrderLongToShort, nil
	case "short-to-long":
		return OrderShortToLong, nil
	case "sequential":
		return OrderSequential, nil
	case "random":
		return OrderRandom, nil
	}
	return "", fmt.Errorf("unknown chunk order %q", value)
}

// Queue is the shared work queue. Claim is the only operation workers race
// on; the first fatal error parks the queue so no further chunks are handed
// out.
type Queue struct {
	mu     sync.Mutex
	chunks []*Chunk
	next   int
	err    error
}

// NewQueue orders the chunks by policy and returns a queue over them.
// Ordering never changes chunk indices, so concat order is unaffected.
func NewQueue(chunks []*Chunk, order Order) *Queue {
	ordered := make([]*Chunk, len(chunks))
	copy(ordered, chunks)

	switch order {
	case OrderLongToShort:
		sort.SliceStable(ordered, func(i, j int) bool {
			return ordered[i].Frames() > ordered[j].Frames()
		})
	case OrderShortToLong:
		sort.SliceStable(ordered, func(i, j int) bool {
			return ordered[i].Frames() < ordered[j].Frames()
		})
	case OrderRandom:
		rand.Shuffle(len(ordered), func(i, j int) {
			ordered[i], ordered[j] = ordered[j], ordered[i]
		})
	case OrderSequential:
		// Already in index order.
	}

	return &Queue{chunks: ordered}
}

// Claim atomically takes the next chunk. ok is false when the queue is
// drained or parked by an error.
func (q *Queue) Claim() (c *Chunk, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil || q.next >= len(q.chunks) {
		return nil, false
	}
	c = q.chunks[q.next]
	q.next++
	return c, true
}

// Fail records the first fatal error and stops further hand-outs. In-flight
// workers drain naturally.
func (q *Queue) Fail(err error) {
	if err == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err == nil {
		q.err = err
	}
}

// Err returns the queue's fatal error, if any.
func (q *Queue) Err() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.err
}

// Remaining reports how many chunks have not been claimed yet.
func (q *Queue) Remaining() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.chunks) - q.next
}
