package docstore

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// IsTransient reports whether err is a network or service failure worth
// retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransient) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, driver.ErrBadConn) {
		return true
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrPreconditionFailed) || errors.Is(err, ErrAlreadyExists) || errors.Is(err, context.Canceled) {
		return false
	}
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

type RetryConfig struct {
	// Timeout bounds every single call.
	Timeout time.Duration
	// MaxRetries bounds the retries of idempotent calls.
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// RetryingStore bounds every call with a timeout and retries idempotent
// operations on transient failures. Create, CreateWithID, Increment and
// UpdateIf are never retried: a lost acknowledgement would otherwise repeat
// their effect or report a conflict with itself.
type RetryingStore struct {
	next Store
	cfg  RetryConfig
	log  *slog.Logger
}

func WithRetry(next Store, cfg RetryConfig, log *slog.Logger) *RetryingStore {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 100 * time.Millisecond
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = 2 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &RetryingStore{next: next, cfg: cfg, log: log.With("component", "docstore")}
}

func (s *RetryingStore) once(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	return classify(op, fn(ctx))
}

func (s *RetryingStore) retry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.InitialInterval
	b.MaxInterval = s.cfg.MaxInterval
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, s.cfg.MaxRetries), ctx)

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		err := s.once(ctx, op, fn)
		if err == nil {
			return nil
		}
		if !IsTransient(err) || ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		s.log.Warn("transient store failure", "op", op, "attempt", attempt, "error", err)
		return err
	}, policy)
	return err
}

// classify tags transient failures with ErrTransient so callers can test for
// a single sentinel.
func classify(op string, err error) error {
	if err == nil || errors.Is(err, ErrTransient) {
		return err
	}
	if IsTransient(err) {
		return fmt.Errorf("%s: %w: %w", op, ErrTransient, err)
	}
	return err
}

func (s *RetryingStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	var doc *Document
	err := s.retry(ctx, "get", func(ctx context.Context) error {
		var err error
		doc, err = s.next.Get(ctx, collection, id)
		return err
	})
	return doc, err
}

func (s *RetryingStore) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	var docs []Document
	err := s.retry(ctx, "query", func(ctx context.Context) error {
		var err error
		docs, err = s.next.Query(ctx, collection, q)
		return err
	})
	return docs, err
}

func (s *RetryingStore) Subscribe(ctx context.Context, collection string, q Query) (<-chan Snapshot, error) {
	return s.next.Subscribe(ctx, collection, q)
}

func (s *RetryingStore) SubscribeDoc(ctx context.Context, collection, id string) (<-chan DocSnapshot, error) {
	return s.next.SubscribeDoc(ctx, collection, id)
}

func (s *RetryingStore) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	var id string
	err := s.once(ctx, "create", func(ctx context.Context) error {
		var err error
		id, err = s.next.Create(ctx, collection, fields)
		return err
	})
	return id, err
}

func (s *RetryingStore) CreateWithID(ctx context.Context, collection, id string, fields map[string]any) error {
	return s.once(ctx, "create_with_id", func(ctx context.Context) error {
		return s.next.CreateWithID(ctx, collection, id, fields)
	})
}

func (s *RetryingStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	return s.retry(ctx, "update", func(ctx context.Context) error {
		return s.next.Update(ctx, collection, id, fields)
	})
}

func (s *RetryingStore) UpdateIf(ctx context.Context, collection, id string, cond Condition, fields map[string]any) error {
	return s.once(ctx, "update_if", func(ctx context.Context) error {
		return s.next.UpdateIf(ctx, collection, id, cond, fields)
	})
}

func (s *RetryingStore) SetMerge(ctx context.Context, collection, id string, fields map[string]any) error {
	return s.retry(ctx, "set_merge", func(ctx context.Context) error {
		return s.next.SetMerge(ctx, collection, id, fields)
	})
}

func (s *RetryingStore) Delete(ctx context.Context, collection, id string) error {
	return s.retry(ctx, "delete", func(ctx context.Context) error {
		return s.next.Delete(ctx, collection, id)
	})
}

func (s *RetryingStore) ArrayAdd(ctx context.Context, collection, id, field string, value any) error {
	return s.retry(ctx, "array_add", func(ctx context.Context) error {
		return s.next.ArrayAdd(ctx, collection, id, field, value)
	})
}

func (s *RetryingStore) ArrayRemove(ctx context.Context, collection, id, field string, value any) error {
	return s.retry(ctx, "array_remove", func(ctx context.Context) error {
		return s.next.ArrayRemove(ctx, collection, id, field, value)
	})
}

func (s *RetryingStore) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	return s.once(ctx, "increment", func(ctx context.Context) error {
		return s.next.Increment(ctx, collection, id, field, delta)
	})
}

func (s *RetryingStore) Close() error {
	return s.next.Close()
}
