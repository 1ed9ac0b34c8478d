package push

import (
	"context"
	"sync"
)

// Queue is the task buffer shared by producers and workers. Push never
// blocks; Pop waits until a task is available or ctx is done.
type Queue interface {
	Push(task *Task)
	Pop(ctx context.Context) (*Task, error)
	Len() int
}

// UnboundedQueue is a FIFO queue with no capacity limit. Waiting consumers
// are parked on their own channel and served in arrival order, so an idle
// pool costs nothing.
type UnboundedQueue struct {
	mu      sync.Mutex
	items   []*Task
	head    int
	waiters []chan *Task
}

// NewUnboundedQueue creates an empty queue.
func NewUnboundedQueue() *UnboundedQueue {
	return &UnboundedQueue{}
}

// Push hands the task to the longest-waiting consumer or appends it.
func (q *UnboundedQueue) Push(task *Task) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.waiters) > 0 {
		w := q.waiters[0]
		q.waiters[0] = nil
		q.waiters = q.waiters[1:]
		// buffered with capacity 1 and used once
		w <- task
		return
	}

	q.items = append(q.items, task)
}

// Pop removes and returns the oldest task. It returns ctx.Err() only if ctx
// ends while no task has been handed over.
func (q *UnboundedQueue) Pop(ctx context.Context) (*Task, error) {
	q.mu.Lock()
	if task, ok := q.popLocked(); ok {
		q.mu.Unlock()
		return task, nil
	}
	if err := ctx.Err(); err != nil {
		q.mu.Unlock()
		return nil, err
	}
	w := make(chan *Task, 1)
	q.waiters = append(q.waiters, w)
	q.mu.Unlock()

	select {
	case task := <-w:
		return task, nil
	case <-ctx.Done():
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	for i, waiter := range q.waiters {
		if waiter == w {
			q.waiters = append(q.waiters[:i], q.waiters[i+1:]...)
			return nil, ctx.Err()
		}
	}

	// A producer handed us a task while ctx ended. Put it back at the head.
	task := <-w
	q.unshiftLocked(task)
	return nil, ctx.Err()
}

// Len returns the number of queued tasks.
func (q *UnboundedQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

func (q *UnboundedQueue) popLocked() (*Task, bool) {
	if q.head == len(q.items) {
		return nil, false
	}
	task := q.items[q.head]
	q.items[q.head] = nil
	q.head++

	// reclaim the consumed prefix once it dominates the slice
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	} else if q.head > 64 && q.head*2 > len(q.items) {
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
	return task, true
}

func (q *UnboundedQueue) unshiftLocked(task *Task) {
	// another waiter may be parked now; give it the task directly
	if len(q.waiters) > 0 {
		w := q.waiters[0]
		q.waiters[0] = nil
		q.waiters = q.waiters[1:]
		w <- task
		return
	}
	if q.head > 0 {
		q.head--
		q.items[q.head] = task
		return
	}
	q.items = append([]*Task{task}, q.items...)
}

var _ Queue = (*UnboundedQueue)(nil)
