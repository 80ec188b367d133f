package docstore

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/arfaar/swapfinity/internal/logging"
)

// flakyStore fails the first n calls of every operation with err.
type flakyStore struct {
	*MemoryStore
	failures map[string]int
	calls    map[string]int
	err      error
}

func newFlakyStore(n int, err error) *flakyStore {
	return &flakyStore{
		MemoryStore: NewMemoryStore(),
		failures:    map[string]int{"get": n, "create": n, "create_with_id": n, "update_if": n, "array_add": n},
		calls:       map[string]int{},
		err:         err,
	}
}

func (f *flakyStore) fail(op string) error {
	f.calls[op]++
	if f.calls[op] <= f.failures[op] {
		return f.err
	}
	return nil
}

func (f *flakyStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	if err := f.fail("get"); err != nil {
		return nil, err
	}
	return f.MemoryStore.Get(ctx, collection, id)
}

func (f *flakyStore) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	if err := f.fail("create"); err != nil {
		return "", err
	}
	return f.MemoryStore.Create(ctx, collection, fields)
}

func (f *flakyStore) CreateWithID(ctx context.Context, collection, id string, fields map[string]any) error {
	if err := f.fail("create_with_id"); err != nil {
		return err
	}
	return f.MemoryStore.CreateWithID(ctx, collection, id, fields)
}

func (f *flakyStore) UpdateIf(ctx context.Context, collection, id string, cond Condition, fields map[string]any) error {
	if err := f.fail("update_if"); err != nil {
		return err
	}
	return f.MemoryStore.UpdateIf(ctx, collection, id, cond, fields)
}

func (f *flakyStore) ArrayAdd(ctx context.Context, collection, id, field string, value any) error {
	if err := f.fail("array_add"); err != nil {
		return err
	}
	return f.MemoryStore.ArrayAdd(ctx, collection, id, field, value)
}

func testRetryConfig() RetryConfig {
	return RetryConfig{Timeout: time.Second, MaxRetries: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"unavailable", status.Error(codes.Unavailable, "down"), true},
		{"aborted", status.Error(codes.Aborted, "contention"), true},
		{"deadline", context.DeadlineExceeded, true},
		{"wrapped deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), true},
		{"canceled", context.Canceled, false},
		{"not found", ErrNotFound, false},
		{"precondition", ErrPreconditionFailed, false},
		{"already exists", ErrAlreadyExists, false},
		{"invalid argument", status.Error(codes.InvalidArgument, "bad"), false},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestRetryingStore_RetriesReads(t *testing.T) {
	ctx := context.Background()
	inner := newFlakyStore(2, status.Error(codes.Unavailable, "down"))
	require.NoError(t, inner.MemoryStore.SetMerge(ctx, "items", "i1", map[string]any{"title": "Lamp"}))
	s := WithRetry(inner, testRetryConfig(), logging.Discard())

	doc, err := s.Get(ctx, "items", "i1")
	require.NoError(t, err)
	assert.Equal(t, "Lamp", doc.String("title"))
	assert.Equal(t, 3, inner.calls["get"])
}

func TestRetryingStore_GivesUpAfterMaxRetries(t *testing.T) {
	inner := newFlakyStore(10, status.Error(codes.Unavailable, "down"))
	s := WithRetry(inner, testRetryConfig(), logging.Discard())

	_, err := s.Get(context.Background(), "items", "i1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransient)
	assert.Equal(t, 4, inner.calls["get"])
}

func TestRetryingStore_DoesNotRetryPermanentErrors(t *testing.T) {
	inner := newFlakyStore(0, nil)
	s := WithRetry(inner, testRetryConfig(), logging.Discard())

	_, err := s.Get(context.Background(), "items", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, inner.calls["get"])
}

func TestRetryingStore_NeverRetriesCreate(t *testing.T) {
	inner := newFlakyStore(1, status.Error(codes.Unavailable, "down"))
	s := WithRetry(inner, testRetryConfig(), logging.Discard())

	_, err := s.Create(context.Background(), "notifications", map[string]any{"swapStatus": "pending"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransient)
	assert.Equal(t, 1, inner.calls["create"])
}

func TestRetryingStore_NeverRetriesCreateWithID(t *testing.T) {
	inner := newFlakyStore(1, status.Error(codes.Unavailable, "down"))
	s := WithRetry(inner, testRetryConfig(), logging.Discard())

	err := s.CreateWithID(context.Background(), "swapRequests", "u1_i1", map[string]any{"senderID": "u1"})
	assert.ErrorIs(t, err, ErrTransient)
	assert.Equal(t, 1, inner.calls["create_with_id"])

	require.NoError(t, s.CreateWithID(context.Background(), "swapRequests", "u1_i1", map[string]any{"senderID": "u1"}))
	err = s.CreateWithID(context.Background(), "swapRequests", "u1_i1", map[string]any{"senderID": "u1"})
	assert.ErrorIs(t, err, ErrAlreadyExists)
	assert.NotErrorIs(t, err, ErrTransient)
}

func TestRetryingStore_NeverRetriesUpdateIf(t *testing.T) {
	inner := newFlakyStore(1, status.Error(codes.Aborted, "contention"))
	s := WithRetry(inner, testRetryConfig(), logging.Discard())

	err := s.UpdateIf(context.Background(), "notifications", "n1", Condition{Field: "swapStatus", Equals: "pending"}, map[string]any{"swapStatus": "approved"})
	assert.ErrorIs(t, err, ErrTransient)
	assert.Equal(t, 1, inner.calls["update_if"])
}

func TestRetryingStore_RetriesArrayAdd(t *testing.T) {
	ctx := context.Background()
	inner := newFlakyStore(1, status.Error(codes.Unavailable, "down"))
	require.NoError(t, inner.MemoryStore.SetMerge(ctx, "users", "u1", map[string]any{"favorites": []string{}}))
	s := WithRetry(inner, testRetryConfig(), logging.Discard())

	require.NoError(t, s.ArrayAdd(ctx, "users", "u1", "favorites", "i1"))
	assert.Equal(t, 2, inner.calls["array_add"])
}

type slowStore struct {
	*MemoryStore
}

func (s slowStore) Get(ctx context.Context, _, _ string) (*Document, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRetryingStore_TimeoutIsTransient(t *testing.T) {
	cfg := testRetryConfig()
	cfg.Timeout = 5 * time.Millisecond
	cfg.MaxRetries = 1
	s := WithRetry(slowStore{NewMemoryStore()}, cfg, logging.Discard())

	_, err := s.Get(context.Background(), "items", "i1")
	assert.ErrorIs(t, err, ErrTransient)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
