package push

import (
	"context"
	"sync"
	"sync/atomic"
)

// BoundedQueue is a fixed-capacity Queue. Push still never blocks: when the
// queue is full the oldest pending task is dropped to make room.
type BoundedQueue struct {
	ch      chan *Task
	mu      sync.Mutex // serializes the drop-then-send path of Push
	dropped atomic.Int64
	onDrop  func(*Task)
}

// NewBoundedQueue creates a queue holding at most capacity tasks.
// onDrop, if non-nil, is called for each evicted task.
func NewBoundedQueue(capacity int, onDrop func(*Task)) *BoundedQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &BoundedQueue{
		ch:     make(chan *Task, capacity),
		onDrop: onDrop,
	}
}

// Push enqueues task, evicting the oldest one if the queue is full.
func (q *BoundedQueue) Push(task *Task) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		select {
		case q.ch <- task:
			return
		default:
		}

		select {
		case old := <-q.ch:
			q.dropped.Add(1)
			if q.onDrop != nil {
				q.onDrop(old)
			}
		default:
			// a consumer emptied a slot in between; retry the send
		}
	}
}

// Pop waits for the oldest task or ctx cancellation.
func (q *BoundedQueue) Pop(ctx context.Context) (*Task, error) {
	select {
	case task := <-q.ch:
		return task, nil
	default:
	}

	select {
	case task := <-q.ch:
		return task, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Len returns the number of queued tasks.
func (q *BoundedQueue) Len() int {
	return len(q.ch)
}

// Dropped returns how many tasks were evicted because the queue was full.
func (q *BoundedQueue) Dropped() int64 {
	return q.dropped.Load()
}

var _ Queue = (*BoundedQueue)(nil)
