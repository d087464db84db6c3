package reader

import (
	"sync"
	"time"
)

// Utterance is one unit of speakable text waiting to be synthesized and
// played. Immutable once created; popped exactly once and never requeued.
type Utterance struct {
	// Text is the normalized speakable content.
	Text string

	// ChannelID is the text channel the source message arrived in.
	ChannelID string

	// EnqueuedAt is when the utterance entered the queue.
	EnqueuedAt time.Time
}

// Queue is an unbounded FIFO of pending utterances for one guild. The
// ingestion path appends and the consumer loop pops; both may run
// concurrently. Pop never blocks — consumers wait on Wake for a signal that
// an item arrived.
type Queue struct {
	mu    sync.Mutex
	items []Utterance
	wake  chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{
		wake: make(chan struct{}, 1),
	}
}

// Push appends u and signals a waiting consumer. The wake signal is
// best-effort: if one is already pending, the consumer will see this item on
// its next pass anyway.
func (q *Queue) Push(u Utterance) {
	q.mu.Lock()
	q.items = append(q.items, u)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Pop removes and returns the oldest utterance. The second return value is
// false when the queue is empty.
func (q *Queue) Pop() (Utterance, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return Utterance{}, false
	}
	u := q.items[0]
	q.items = q.items[1:]
	return u, true
}

// Len returns the number of pending utterances.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Clear discards all pending utterances and returns how many were dropped.
func (q *Queue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.items)
	q.items = nil
	return n
}

// Wake returns the channel signalled on Push. A consumer polling an empty
// queue selects on this channel (plus its cancellation context) instead of
// spinning.
func (q *Queue) Wake() <-chan struct{} {
	return q.wake
}
