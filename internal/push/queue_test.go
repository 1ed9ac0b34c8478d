package push

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnboundedQueueFIFO(t *testing.T) {
	t.Parallel()

	q := NewUnboundedQueue()
	var pushed []*Task
	for range 200 {
		task := NewTask(Token("device"), testPayload())
		pushed = append(pushed, task)
		q.Push(task)
	}
	require.Equal(t, 200, q.Len())

	ctx := context.Background()
	for i := range pushed {
		got, err := q.Pop(ctx)
		require.NoError(t, err)
		assert.Same(t, pushed[i], got, "position %d", i)
	}
	assert.Equal(t, 0, q.Len())
}

func TestUnboundedQueuePopWaitsForPush(t *testing.T) {
	t.Parallel()

	q := NewUnboundedQueue()
	result := make(chan *Task, 1)

	go func() {
		task, err := q.Pop(context.Background())
		if err == nil {
			result <- task
		}
	}()

	select {
	case <-result:
		t.Fatal("Pop returned before anything was pushed")
	case <-time.After(50 * time.Millisecond):
	}

	task := NewTask(Topic("news"), testPayload())
	q.Push(task)

	select {
	case got := <-result:
		assert.Same(t, task, got)
	case <-time.After(2 * time.Second):
		t.Fatal("Pop did not wake after Push")
	}
}

func TestUnboundedQueuePopCancelled(t *testing.T) {
	t.Parallel()

	q := NewUnboundedQueue()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := q.Pop(ctx)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Pop ignored cancellation")
	}

	// the abandoned waiter must not swallow later tasks
	task := NewTask(Token("device"), testPayload())
	q.Push(task)
	assert.Equal(t, 1, q.Len())

	got, err := q.Pop(context.Background())
	require.NoError(t, err)
	assert.Same(t, task, got)
}

func TestUnboundedQueueNoLossUnderContention(t *testing.T) {
	t.Parallel()

	const (
		producers   = 8
		perProducer = 500
		consumers   = 4
		total       = producers * perProducer
	)

	q := NewUnboundedQueue()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu   sync.Mutex
		seen = make(map[string]int, total)
		wg   sync.WaitGroup
		got  = make(chan struct{}, total)
	)

	for range consumers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				task, err := q.Pop(ctx)
				if err != nil {
					return
				}
				mu.Lock()
				seen[task.ID]++
				mu.Unlock()
				got <- struct{}{}
			}
		}()
	}

	var pwg sync.WaitGroup
	for range producers {
		pwg.Add(1)
		go func() {
			defer pwg.Done()
			for range perProducer {
				q.Push(NewTask(Token("device"), testPayload()))
			}
		}()
	}
	pwg.Wait()

	for range total {
		select {
		case <-got:
		case <-time.After(5 * time.Second):
			t.Fatal("tasks were lost")
		}
	}
	cancel()
	wg.Wait()

	assert.Len(t, seen, total)
	for id, n := range seen {
		assert.Equal(t, 1, n, "task %s delivered %d times", id, n)
	}
}

func TestBoundedQueueDropsOldest(t *testing.T) {
	t.Parallel()

	var dropped []*Task
	q := NewBoundedQueue(2, func(task *Task) { dropped = append(dropped, task) })

	first := NewTask(Token("a"), testPayload())
	second := NewTask(Token("b"), testPayload())
	third := NewTask(Token("c"), testPayload())
	q.Push(first)
	q.Push(second)
	q.Push(third)

	assert.Equal(t, 2, q.Len())
	assert.Equal(t, int64(1), q.Dropped())
	require.Len(t, dropped, 1)
	assert.Same(t, first, dropped[0])

	ctx := context.Background()
	got, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Same(t, second, got)
	got, err = q.Pop(ctx)
	require.NoError(t, err)
	assert.Same(t, third, got)
}

func TestBoundedQueuePopCancelled(t *testing.T) {
	t.Parallel()

	q := NewBoundedQueue(4, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Pop(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
