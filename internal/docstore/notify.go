package docstore

import (
	"context"
	"errors"
	"sync"
)

// Notifier carries "collection changed" signals between writers and live
// subscriptions. Signals coalesce; a subscriber that is busy re-reading sees
// at most one pending wake-up.
type Notifier interface {
	Publish(ctx context.Context, collection string) error
	Listen(ctx context.Context, collection string) (<-chan struct{}, error)
	Close() error
}

// LocalNotifier delivers signals within one process.
type LocalNotifier struct {
	mu   sync.Mutex
	subs map[string]map[chan struct{}]struct{}
}

func NewLocalNotifier() *LocalNotifier {
	return &LocalNotifier{subs: make(map[string]map[chan struct{}]struct{})}
}

func (n *LocalNotifier) Publish(_ context.Context, collection string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for ch := range n.subs[collection] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return nil
}

func (n *LocalNotifier) Listen(ctx context.Context, collection string) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)
	n.mu.Lock()
	if n.subs[collection] == nil {
		n.subs[collection] = make(map[chan struct{}]struct{})
	}
	n.subs[collection][ch] = struct{}{}
	n.mu.Unlock()

	go func() {
		<-ctx.Done()
		n.mu.Lock()
		delete(n.subs[collection], ch)
		if len(n.subs[collection]) == 0 {
			delete(n.subs, collection)
		}
		n.mu.Unlock()
	}()
	return ch, nil
}

func (n *LocalNotifier) Close() error { return nil }

func (n *LocalNotifier) listeners(collection string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs[collection])
}

// watch runs load once, then again after every signal on changes, pushing
// each result to the returned channel until ctx ends or a result fails.
func watch[T any](ctx context.Context, changes <-chan struct{}, load func(context.Context) T, failed func(T) bool) <-chan T {
	out := make(chan T, 1)
	go func() {
		defer close(out)
		for {
			res := load(ctx)
			if ctx.Err() != nil {
				return
			}
			select {
			case out <- res:
			case <-ctx.Done():
				return
			}
			if failed(res) {
				return
			}
			select {
			case <-changes:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func watchQuery(ctx context.Context, changes <-chan struct{}, run func(context.Context) ([]Document, error)) <-chan Snapshot {
	return watch(ctx, changes, func(ctx context.Context) Snapshot {
		docs, err := run(ctx)
		return Snapshot{Docs: docs, Err: err}
	}, func(s Snapshot) bool { return s.Err != nil })
}

func watchDoc(ctx context.Context, changes <-chan struct{}, get func(context.Context) (*Document, error)) <-chan DocSnapshot {
	return watch(ctx, changes, func(ctx context.Context) DocSnapshot {
		doc, err := get(ctx)
		if errors.Is(err, ErrNotFound) {
			return DocSnapshot{}
		}
		return DocSnapshot{Doc: doc, Err: err}
	}, func(s DocSnapshot) bool { return s.Err != nil })
}
