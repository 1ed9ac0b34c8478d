package push

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/tphakala/push-dispatcher/internal/logger"
)

// TaskHandler processes one task. A non-nil error is fatal: the worker stops
// and the rest of the pool is cancelled.
type TaskHandler func(ctx context.Context, task *Task) error

// Pool runs a fixed number of identical workers draining a Queue.
type Pool struct {
	queue  Queue
	handle TaskHandler
	log    logger.Logger

	mu    sync.Mutex
	group *errgroup.Group
}

// NewPool creates a pool; call Start to launch workers.
func NewPool(queue Queue, handle TaskHandler, log logger.Logger) *Pool {
	if log == nil {
		log = logger.NewDiscardLogger()
	}
	return &Pool{queue: queue, handle: handle, log: log}
}

// Start launches n workers and returns without waiting for them. Once ctx is
// cancelled a worker finishes its current task and exits, leaving anything
// still queued undelivered.
func (p *Pool) Start(ctx context.Context, n int) error {
	if n < 1 {
		return ErrInvalidPoolSize
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.group != nil {
		return ErrAlreadyStarted
	}

	g, gctx := errgroup.WithContext(ctx)
	for id := range n {
		g.Go(func() error {
			return p.work(gctx, id)
		})
	}
	p.group = g

	return nil
}

func (p *Pool) work(ctx context.Context, id int) error {
	log := p.log.With(logger.Int("worker", id))
	log.Info("spawned push notification worker")

	for {
		if err := ctx.Err(); err != nil {
			log.Debug("push notification worker stopping", logger.Error(err))
			return nil
		}

		task, err := p.queue.Pop(ctx)
		if err != nil {
			log.Debug("push notification worker stopping", logger.Error(err))
			return nil
		}

		if err := p.handle(ctx, task); err != nil {
			return err
		}
	}
}

// Wait blocks until every worker has exited and returns the first fatal
// error, if any.
func (p *Pool) Wait() error {
	p.mu.Lock()
	g := p.group
	p.mu.Unlock()

	if g == nil {
		return nil
	}
	return g.Wait()
}
