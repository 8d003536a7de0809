package queue

import (
	"errors"
	"fmt"
	"sync"
)

// DefaultCapacity is the queue size used when the configuration does not set one.
const DefaultCapacity = 1000

// ErrInvalidCapacity is returned by New for a capacity below 1.
var ErrInvalidCapacity = errors.New("queue: capacity must be positive")

// Bounded is a blocking FIFO holding at most Cap() items.
//
// All methods are safe for concurrent use by any number of goroutines.
type Bounded[T any] struct {
	mu       sync.Mutex
	notFull  *sync.Cond
	notEmpty *sync.Cond

	items  []T
	head   int // index of the oldest item in items
	size   int
	closed bool
}

// New returns an empty open queue with the given capacity.
func New[T any](capacity int) (*Bounded[T], error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCapacity, capacity)
	}
	q := &Bounded[T]{items: make([]T, capacity)}
	q.notFull = sync.NewCond(&q.mu)
	q.notEmpty = sync.NewCond(&q.mu)
	return q, nil
}

// Put appends item, blocking while the queue is full. It returns false,
// without enqueuing, if the queue is or becomes closed before room appears.
func (q *Bounded[T]) Put(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.size == len(q.items) && !q.closed {
		q.notFull.Wait()
	}
	if q.closed {
		return false
	}

	q.items[(q.head+q.size)%len(q.items)] = item
	q.size++
	q.notEmpty.Signal()
	return true
}

// Take removes and returns the oldest item, blocking while the queue is
// empty. ok is false only when the queue is closed and fully drained.
func (q *Bounded[T]) Take() (item T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.size == 0 && !q.closed {
		q.notEmpty.Wait()
	}
	if q.size == 0 {
		return item, false
	}

	var zero T
	item = q.items[q.head]
	q.items[q.head] = zero // drop the reference so the consumer is the sole owner
	q.head = (q.head + 1) % len(q.items)
	q.size--
	q.notFull.Signal()
	return item, true
}

// Close marks the queue closed and wakes every blocked Put and Take.
// Calling Close more than once has no further effect.
func (q *Bounded[T]) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	q.notFull.Broadcast()
	q.notEmpty.Broadcast()
}

// Len returns the number of buffered items at the time of the call.
func (q *Bounded[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Cap returns the fixed capacity.
func (q *Bounded[T]) Cap() int {
	return len(q.items)
}

// Closed reports whether Close has been called.
func (q *Bounded[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
