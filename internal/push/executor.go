package push

import (
	"context"
	"time"

	"github.com/tphakala/push-dispatcher/internal/errors"
	"github.com/tphakala/push-dispatcher/internal/logger"
)

// Result is the terminal outcome of one task.
type Result struct {
	State          TaskState
	Attempts       int
	Classification Classification
	LastErr        error
}

// Executor runs the bounded retry loop for a single task.
type Executor struct {
	clients     ClientSource
	maxAttempts int
	backoff     Backoff
	sendTimeout time.Duration
	invalidator Invalidator
	metrics     Metrics
	log         logger.Logger
	wait        func(ctx context.Context, d time.Duration)
}

// ExecutorOption configures an Executor
type ExecutorOption func(*Executor)

// WithMaxAttempts sets the attempt cap, including the first attempt.
func WithMaxAttempts(n int) ExecutorOption {
	return func(e *Executor) {
		if n > 0 {
			e.maxAttempts = n
		}
	}
}

// WithBackoff sets the delay schedule between attempts.
func WithBackoff(b Backoff) ExecutorOption {
	return func(e *Executor) {
		if b != nil {
			e.backoff = b
		}
	}
}

// WithSendTimeout bounds each individual send. Zero disables the bound.
func WithSendTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.sendTimeout = d }
}

// WithInvalidator sets where stale recipients are reported.
func WithInvalidator(inv Invalidator) ExecutorOption {
	return func(e *Executor) {
		if inv != nil {
			e.invalidator = inv
		}
	}
}

// WithExecutorMetrics sets the metrics sink.
func WithExecutorMetrics(m Metrics) ExecutorOption {
	return func(e *Executor) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithExecutorLogger sets the logger.
func WithExecutorLogger(log logger.Logger) ExecutorOption {
	return func(e *Executor) {
		if log != nil {
			e.log = log
		}
	}
}

// NewExecutor creates an executor with six attempts, 1.5s linear backoff and
// a 5s send timeout unless overridden.
func NewExecutor(clients ClientSource, opts ...ExecutorOption) *Executor {
	e := &Executor{
		clients:     clients,
		maxAttempts: 6,
		backoff:     LinearBackoff{Step: 1500 * time.Millisecond},
		sendTimeout: 5 * time.Second,
		metrics:     noopMetrics{},
		log:         logger.NewDiscardLogger(),
		wait:        sleepContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.invalidator == nil {
		e.invalidator = NewLogInvalidator(e.log)
	}
	return e
}

// Execute delivers msg for task. The returned error is non-nil only when the
// delivery client cannot be built, which callers must treat as fatal.
//
// The loop ignores cancellation of ctx: once started, a task always reaches
// a terminal state.
func (e *Executor) Execute(ctx context.Context, task *Task, msg *Message) (Result, error) {
	ctx = context.WithoutCancel(ctx)

	client, err := e.clients.Get(ctx)
	if err != nil {
		return Result{State: StatePending, Classification: ClassUnclassified, LastErr: err}, err
	}

	kind := task.Recipient.Kind
	log := e.log.With(
		logger.String("task_id", task.ID),
		logger.String("recipient", task.Recipient.String()))

	var (
		lastErr error
		class   Classification
	)

	for attempt := 0; attempt < e.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := e.backoff.Delay(attempt)
			e.metrics.RetryScheduled(kind, delay)
			e.wait(ctx, delay)
		}

		start := time.Now()
		err := e.send(ctx, client, msg)
		elapsed := time.Since(start)

		class = Classify(err)
		e.metrics.AttemptCompleted(kind, class, elapsed)

		switch class {
		case ClassSuccess:
			log.Debug("notification delivered",
				logger.Int("attempt", attempt+1),
				logger.Duration("elapsed", elapsed))
			return e.finish(Result{State: StateDelivered, Attempts: attempt + 1, Classification: class}), nil

		case ClassStaleRecipient:
			e.invalidate(ctx, task, err, log)
			return e.finish(Result{State: StateInvalidating, Attempts: attempt + 1, Classification: class, LastErr: err}), nil

		case ClassTransientServer, ClassTransientTimeout:
			lastErr = err
			log.Warn("transient delivery failure",
				logger.Int("attempt", attempt+1),
				logger.Int("max_attempts", e.maxAttempts),
				logger.String("class", class.String()),
				logger.Error(err))

		case ClassPermanentClient:
			status, body := statusAndBody(err)
			log.Error("notification rejected by provider",
				logger.Int("status_code", status),
				logger.String("body", truncate(body, 512)))
			e.report(err, class, task)
			return e.finish(Result{State: StatePermanentlyFailed, Attempts: attempt + 1, Classification: class, LastErr: err}), nil

		default:
			log.Error("unexpected delivery error", logger.Error(err))
			e.report(err, class, task)
			return e.finish(Result{State: StatePermanentlyFailed, Attempts: attempt + 1, Classification: class, LastErr: err}), nil
		}
	}

	// Exhaustion is silent beyond the per-attempt warnings.
	return e.finish(Result{State: StateExhausted, Attempts: e.maxAttempts, Classification: class, LastErr: lastErr}), nil
}

func (e *Executor) send(ctx context.Context, client DeliveryClient, msg *Message) error {
	if e.sendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.sendTimeout)
		defer cancel()
	}
	return client.Send(ctx, msg)
}

func (e *Executor) invalidate(ctx context.Context, task *Task, err error, log logger.Logger) {
	status, body := statusAndBody(err)
	e.metrics.RecipientInvalidated(task.Recipient.Kind)

	inv := Invalidation{
		TaskID:     task.ID,
		Recipient:  task.Recipient,
		StatusCode: status,
		Body:       body,
		At:         time.Now(),
	}
	if ierr := e.invalidator.Invalidate(ctx, inv); ierr != nil {
		log.Error("failed to record invalid recipient", logger.Error(ierr))
	}
}

// report sends terminal failures to telemetry.
func (e *Executor) report(err error, class Classification, task *Task) {
	status, _ := statusAndBody(err)
	errors.New(err).
		Component("push").
		Category(errors.CategoryIntegration).
		Context("operation", "deliver_notification").
		Context("classification", class.String()).
		Context("status_code", status).
		Context("recipient_kind", task.Recipient.Kind.String()).
		Build()
}

func (e *Executor) finish(r Result) Result {
	e.metrics.TaskFinished(r.State, r.Attempts)
	return r
}

func statusAndBody(err error) (int, string) {
	var de *DeliveryError
	if errors.As(err, &de) && de.Kind == ErrorKindStatus {
		return de.StatusCode, de.Body
	}
	return 0, ""
}
