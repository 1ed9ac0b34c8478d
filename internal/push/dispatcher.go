package push

import (
	"context"
	"fmt"
	"time"

	"github.com/tphakala/push-dispatcher/internal/logger"
)

// Config sizes the dispatcher. Zero values select the defaults.
type Config struct {
	QueueCapacity int           // 0 selects the unbounded queue
	MaxAttempts   int           // default 6
	BackoffStep   time.Duration // default 1.5s
	SendTimeout   time.Duration // default 5s
}

// Dispatcher owns the queue, the delivery client and the worker pool.
// Producers call PushTo; StartWorkers begins delivery.
type Dispatcher struct {
	queue    Queue
	executor *Executor
	pool     *Pool
	metrics  Metrics
	log      logger.Logger
	fatal    func(error)
	onResult func(*Task, Result)
}

type dispatcherOptions struct {
	log         logger.Logger
	metrics     Metrics
	invalidator Invalidator
	fatal       func(error)
	onResult    func(*Task, Result)
	queue       Queue
}

// Option configures a Dispatcher
type Option func(*dispatcherOptions)

// WithLogger sets the parent logger; the dispatcher logs under "push".
func WithLogger(log logger.Logger) Option {
	return func(o *dispatcherOptions) { o.log = log }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(o *dispatcherOptions) { o.metrics = m }
}

// WithInvalidators sets the stale recipient sinks. The log sink is always
// included.
func WithInvalidators(sinks ...Invalidator) Option {
	return func(o *dispatcherOptions) { o.invalidator = Invalidators(sinks...) }
}

// WithFatalHandler receives errors that make delivery impossible, such as
// missing credentials. Without one the dispatcher panics.
func WithFatalHandler(fn func(error)) Option {
	return func(o *dispatcherOptions) { o.fatal = fn }
}

// WithResultHook observes every terminal task result.
func WithResultHook(fn func(*Task, Result)) Option {
	return func(o *dispatcherOptions) { o.onResult = fn }
}

// WithQueue replaces the queue selected by Config.
func WithQueue(q Queue) Option {
	return func(o *dispatcherOptions) { o.queue = q }
}

// NewDispatcher creates a dispatcher drawing its client from clients.
func NewDispatcher(cfg Config, clients ClientSource, opts ...Option) *Dispatcher {
	o := dispatcherOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.NewDiscardLogger()
	}
	if o.metrics == nil {
		o.metrics = noopMetrics{}
	}
	if o.fatal == nil {
		o.fatal = func(err error) {
			panic(fmt.Sprintf("push: delivery client unavailable: %v", err))
		}
	}

	log := o.log.Module("push")

	d := &Dispatcher{
		metrics:  o.metrics,
		log:      log,
		fatal:    o.fatal,
		onResult: o.onResult,
	}

	switch {
	case o.queue != nil:
		d.queue = o.queue
	case cfg.QueueCapacity > 0:
		d.queue = NewBoundedQueue(cfg.QueueCapacity, d.taskDropped)
	default:
		d.queue = NewUnboundedQueue()
	}

	var sinks Invalidator = NewLogInvalidator(log)
	if o.invalidator != nil {
		sinks = Invalidators(sinks, o.invalidator)
	}

	execOpts := []ExecutorOption{
		WithMaxAttempts(cfg.MaxAttempts),
		WithInvalidator(sinks),
		WithExecutorMetrics(o.metrics),
		WithExecutorLogger(log.Module("delivery")),
	}
	if cfg.BackoffStep > 0 {
		execOpts = append(execOpts, WithBackoff(LinearBackoff{Step: cfg.BackoffStep}))
	}
	if cfg.SendTimeout > 0 {
		execOpts = append(execOpts, WithSendTimeout(cfg.SendTimeout))
	}
	d.executor = NewExecutor(clients, execOpts...)

	d.pool = NewPool(d.queue, d.handle, log.Module("worker"))

	return d
}

// PushTo enqueues a notification for recipient and returns at once with the
// task id. It never blocks and never fails; delivery happens in the background.
func (d *Dispatcher) PushTo(recipient Recipient, payload *Notification) string {
	task := NewTask(recipient, payload)
	d.queue.Push(task)

	depth := d.queue.Len()
	d.metrics.TaskEnqueued(depth)
	d.log.Debug("notification queued",
		logger.String("task_id", task.ID),
		logger.String("recipient", recipient.String()),
		logger.Int("queue_depth", depth))

	return task.ID
}

// StartWorkers launches n workers and returns once they are spawned.
// Cancelling ctx stops idle workers; in-flight tasks finish first.
func (d *Dispatcher) StartWorkers(ctx context.Context, n int) error {
	if err := d.pool.Start(ctx, n); err != nil {
		return err
	}
	d.log.Info("push workers started", logger.Int("workers", n))
	return nil
}

// Wait blocks until all workers have exited.
func (d *Dispatcher) Wait() error {
	return d.pool.Wait()
}

// QueueDepth returns the number of tasks waiting for a worker.
func (d *Dispatcher) QueueDepth() int {
	return d.queue.Len()
}

func (d *Dispatcher) handle(ctx context.Context, task *Task) error {
	d.metrics.QueueDepth(d.queue.Len())

	msg := BuildMessage(task)
	result, err := d.executor.Execute(ctx, task, msg)
	if err != nil {
		d.log.Error("delivery client unavailable, stopping worker",
			logger.String("task_id", task.ID),
			logger.Error(err))
		d.fatal(err)
		return err
	}

	if d.onResult != nil {
		d.onResult(task, result)
	}
	return nil
}

func (d *Dispatcher) taskDropped(task *Task) {
	d.metrics.TaskDropped()
	d.log.Warn("queue full, dropped oldest notification",
		logger.String("task_id", task.ID),
		logger.String("recipient", task.Recipient.String()))
}
