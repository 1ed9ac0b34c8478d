package push

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/tphakala/push-dispatcher/internal/errors"
)

func TestClientProviderBuildsOnceUnderContention(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	release := make(chan struct{})
	client := newScriptedClient()

	provider := NewClientProvider(func(context.Context) (DeliveryClient, error) {
		calls.Add(1)
		<-release
		return client, nil
	}, nil)

	const callers = 64
	var wg sync.WaitGroup
	results := make([]DeliveryClient, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := provider.Get(context.Background())
			assert.NoError(t, err)
			results[i] = got
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1, provider.Constructions())
	for _, got := range results {
		assert.Same(t, client, got)
	}

	// later calls use the memoized client
	got, err := provider.Get(context.Background())
	require.NoError(t, err)
	assert.Same(t, client, got)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClientProviderMemoizesFailure(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	var observed error
	provider := NewClientProvider(func(context.Context) (DeliveryClient, error) {
		calls.Add(1)
		return nil, ErrNoCredentials
	}, func(err error, _ time.Duration) { observed = err })

	_, err := provider.Get(context.Background())
	require.ErrorIs(t, err, ErrNoCredentials)
	assert.True(t, perrors.IsCategory(err, perrors.CategoryConfiguration))
	require.ErrorIs(t, observed, ErrNoCredentials)

	_, err = provider.Get(context.Background())
	require.ErrorIs(t, err, ErrNoCredentials)
	assert.Equal(t, int32(1), calls.Load(), "a failed construction is not retried")
}

func TestClientProviderRejectsNilClient(t *testing.T) {
	t.Parallel()

	provider := NewClientProvider(func(context.Context) (DeliveryClient, error) {
		return nil, nil
	}, nil)

	_, err := provider.Get(context.Background())
	require.Error(t, err)
}

func TestClientProviderIgnoresCallerCancellation(t *testing.T) {
	t.Parallel()

	provider := NewClientProvider(func(ctx context.Context) (DeliveryClient, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return newScriptedClient(), nil
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := provider.Get(ctx)
	require.NoError(t, err)
}

func TestRateLimitedClient(t *testing.T) {
	t.Parallel()

	inner := newScriptedClient()
	factory := WithRateLimit(func(context.Context) (DeliveryClient, error) { return inner, nil }, 1, 1)
	client, err := factory(context.Background())
	require.NoError(t, err)

	require.NoError(t, client.Send(context.Background(), &Message{}))

	// the bucket is empty and the next token is a second away
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = client.Send(ctx, &Message{})
	require.Error(t, err)
	assert.Equal(t, ClassTransientTimeout, Classify(err))
	assert.Equal(t, 1, inner.Calls())

	failing := WithRateLimit(func(context.Context) (DeliveryClient, error) {
		return nil, errors.New("boom")
	}, 1, 1)
	_, err = failing(context.Background())
	require.Error(t, err)
}
