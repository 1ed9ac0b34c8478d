package push

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/tphakala/push-dispatcher/internal/errors"
)

// DeliveryClient sends one message to the provider. Failures should be
// *DeliveryError so they can be classified.
type DeliveryClient interface {
	Send(ctx context.Context, msg *Message) error
}

// ClientSource hands out the shared DeliveryClient.
type ClientSource interface {
	Get(ctx context.Context) (DeliveryClient, error)
}

// ClientFactory builds a DeliveryClient. It is called at most once per
// ClientProvider.
type ClientFactory func(ctx context.Context) (DeliveryClient, error)

// ClientProvider lazily builds the delivery client on first use. Concurrent
// first callers wait for the same construction and the result, success or
// failure, is memoized.
type ClientProvider struct {
	factory       ClientFactory
	once          sync.Once
	client        DeliveryClient
	err           error
	constructions atomic.Int32
	onBuilt       func(err error, elapsed time.Duration)
}

// NewClientProvider wraps factory. onBuilt, if non-nil, observes the single
// construction (for metrics).
func NewClientProvider(factory ClientFactory, onBuilt func(err error, elapsed time.Duration)) *ClientProvider {
	return &ClientProvider{factory: factory, onBuilt: onBuilt}
}

// Get returns the shared client, building it on the first call.
// Cancellation of ctx does not abort a construction other callers depend on.
func (p *ClientProvider) Get(ctx context.Context) (DeliveryClient, error) {
	p.once.Do(func() {
		p.constructions.Add(1)
		start := time.Now()

		client, err := p.factory(context.WithoutCancel(ctx))
		if err == nil && client == nil {
			err = errors.NewStd("client factory returned no client")
		}
		if err != nil {
			p.err = errors.New(err).
				Component("push").
				Category(errors.CategoryConfiguration).
				Priority(errors.PriorityCritical).
				Context("operation", "build_delivery_client").
				Build()
		} else {
			p.client = client
		}

		if p.onBuilt != nil {
			p.onBuilt(err, time.Since(start))
		}
	})
	return p.client, p.err
}

// Constructions reports how many times the factory ran (0 or 1).
func (p *ClientProvider) Constructions() int {
	return int(p.constructions.Load())
}

// RateLimitedClient throttles sends with a token bucket.
type RateLimitedClient struct {
	next    DeliveryClient
	limiter *rate.Limiter
}

// NewRateLimitedClient allows rps sends per second with the given burst.
func NewRateLimitedClient(next DeliveryClient, rps float64, burst int) *RateLimitedClient {
	return &RateLimitedClient{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Send waits for a token and forwards the message. A wait cut short by the
// attempt deadline counts as a timeout.
func (c *RateLimitedClient) Send(ctx context.Context, msg *Message) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &DeliveryError{Kind: ErrorKindTimeout, Err: err}
	}
	return c.next.Send(ctx, msg)
}

// WithRateLimit wraps a factory so the client it builds is rate limited.
func WithRateLimit(factory ClientFactory, rps float64, burst int) ClientFactory {
	return func(ctx context.Context) (DeliveryClient, error) {
		client, err := factory(ctx)
		if err != nil {
			return nil, err
		}
		return NewRateLimitedClient(client, rps, burst), nil
	}
}
