package tokenstore

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/push-dispatcher/internal/push"
)

type countingRecorder struct {
	mu     sync.Mutex
	ops    map[string]int
	errs   int
	hits   int
	stored int64
}

func (r *countingRecorder) RecordOperation(op string, err error, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ops == nil {
		r.ops = make(map[string]int)
	}
	r.ops[op]++
	if err != nil {
		r.errs++
	}
}

func (r *countingRecorder) RecordCacheHit() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hits++
}

func (r *countingRecorder) SetStoredRecipients(n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stored = n
}

func openTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()

	s, err := Open(Config{
		Type: TypeSQLite,
		Path: filepath.Join(t.TempDir(), "data", "invalid.db"),
	}, nil, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func invalidation(r push.Recipient, status int, at time.Time) push.Invalidation {
	return push.Invalidation{
		TaskID:     "task-" + r.Value,
		Recipient:  r,
		StatusCode: status,
		Body:       `{"error":{"status":"NOT_FOUND"}}`,
		At:         at,
	}
}

func TestStoreRecordsInvalidRecipient(t *testing.T) {
	t.Parallel()

	rec := &countingRecorder{}
	s := openTestStore(t, WithRecorder(rec))
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Invalidate(ctx, invalidation(push.Token("stale-token"), 404, at)))

	ok, err := s.IsInvalid(ctx, push.Token("stale-token"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.IsInvalid(ctx, push.Topic("stale-token"))
	require.NoError(t, err)
	assert.False(t, ok, "kind is part of the identity")

	rows, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "token", rows[0].Kind)
	assert.Equal(t, "stale-token", rows[0].Value)
	assert.Equal(t, 404, rows[0].StatusCode)
	assert.Equal(t, "task-stale-token", rows[0].LastTaskID)
	assert.Contains(t, rows[0].Reason, "NOT_FOUND")
	assert.Equal(t, 1, rows[0].Hits)
	assert.Equal(t, int64(1), rec.stored)
}

func TestStoreDedupesRepeatedReports(t *testing.T) {
	t.Parallel()

	rec := &countingRecorder{}
	s := openTestStore(t, WithRecorder(rec))
	ctx := context.Background()
	r := push.Token("device")

	require.NoError(t, s.Invalidate(ctx, invalidation(r, 404, time.Now())))
	require.NoError(t, s.Invalidate(ctx, invalidation(r, 404, time.Now())))

	assert.Equal(t, 1, rec.hits)
	assert.Equal(t, 1, rec.ops["save"])
}

func TestStoreUpsertsAfterDedupeWindow(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()
	r := push.Topic("news")
	first := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	second := first.Add(time.Hour)

	require.NoError(t, s.Invalidate(ctx, invalidation(r, 404, first)))
	s.seen.Flush()
	require.NoError(t, s.Invalidate(ctx, invalidation(r, 400, second)))

	rows, err := s.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 2, rows[0].Hits)
	assert.Equal(t, 400, rows[0].StatusCode)
	assert.True(t, rows[0].FirstSeen.Equal(first))
	assert.True(t, rows[0].LastSeen.Equal(second))
}

func TestStoreListOrderAndLimit(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, v := range []string{"a", "b", "c"} {
		require.NoError(t, s.Invalidate(ctx, invalidation(push.Token(v), 404, base.Add(time.Duration(i)*time.Minute))))
	}

	rows, err := s.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "c", rows[0].Value)
	assert.Equal(t, "b", rows[1].Value)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestStoreForgetAndPurge(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()
	old := time.Now().Add(-48 * time.Hour)

	require.NoError(t, s.Invalidate(ctx, invalidation(push.Token("old"), 404, old)))
	require.NoError(t, s.Invalidate(ctx, invalidation(push.Token("fresh"), 404, time.Now())))
	require.NoError(t, s.Invalidate(ctx, invalidation(push.Topic("gone"), 400, time.Now())))

	removed, err := s.Forget(ctx, push.Topic("gone"))
	require.NoError(t, err)
	assert.True(t, removed)
	ok, err := s.IsInvalid(ctx, push.Topic("gone"))
	require.NoError(t, err)
	assert.False(t, ok)

	removed, err = s.Forget(ctx, push.Topic("never-seen"))
	require.NoError(t, err)
	assert.False(t, removed)

	purged, err := s.Purge(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	rows, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "fresh", rows[0].Value)
}

func TestStoreWorksAsDispatcherInvalidator(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	var logged int
	inv := push.Invalidators(
		push.InvalidatorFunc(func(context.Context, push.Invalidation) error { logged++; return nil }),
		s,
	)

	require.NoError(t, inv.Invalidate(context.Background(), invalidation(push.Token("x"), 404, time.Now())))
	assert.Equal(t, 1, logged)

	ok, err := s.IsInvalid(context.Background(), push.Token("x"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestOpenRejectsBadConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  Config
	}{
		{"sqlite without path", Config{Type: TypeSQLite}},
		{"mysql without dsn", Config{Type: TypeMySQL}},
		{"unknown type", Config{Type: "postgres", DSN: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Open(tt.cfg, nil)
			require.Error(t, err)
		})
	}
}

func TestStoreSaveErrorIsReturned(t *testing.T) {
	t.Parallel()

	rec := &countingRecorder{}
	s := openTestStore(t, WithRecorder(rec))
	require.NoError(t, s.Close())

	err := s.Invalidate(context.Background(), invalidation(push.Token("x"), 404, time.Now()))
	require.Error(t, err)
	assert.Equal(t, 1, rec.errs)

	// the failed write is not remembered by the dedupe cache
	err = s.Invalidate(context.Background(), invalidation(push.Token("x"), 404, time.Now()))
	require.Error(t, err)
	assert.False(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 0, rec.hits)
}
