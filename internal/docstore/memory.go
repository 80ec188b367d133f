package docstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memDoc struct {
	fields map[string]any
	seq    uint64
}

// MemoryStore keeps every collection in process memory. It backs tests and
// STORE_BACKEND=memory runs.
type MemoryStore struct {
	mu       sync.RWMutex
	colls    map[string]map[string]*memDoc
	seq      uint64
	now      func() time.Time
	notifier *LocalNotifier
}

type MemoryOption func(*MemoryStore)

// WithClock overrides the clock used for ServerTimestamp values.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		colls:    make(map[string]map[string]*memDoc),
		now:      nowUTC,
		notifier: NewLocalNotifier(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.colls[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return &Document{ID: id, Fields: cloneFields(d.fields)}, nil
}

func (s *MemoryStore) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	type entry struct {
		doc Document
		seq uint64
	}
	entries := make([]entry, 0, len(s.colls[collection]))
	for id, d := range s.colls[collection] {
		entries = append(entries, entry{doc: Document{ID: id, Fields: cloneFields(d.fields)}, seq: d.seq})
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	docs := make([]Document, len(entries))
	for i, e := range entries {
		docs[i] = e.doc
	}
	return applyQuery(docs, q), nil
}

func (s *MemoryStore) Subscribe(ctx context.Context, collection string, q Query) (<-chan Snapshot, error) {
	changes, err := s.notifier.Listen(ctx, collection)
	if err != nil {
		return nil, err
	}
	return watchQuery(ctx, changes, func(ctx context.Context) ([]Document, error) {
		return s.Query(ctx, collection, q)
	}), nil
}

func (s *MemoryStore) SubscribeDoc(ctx context.Context, collection, id string) (<-chan DocSnapshot, error) {
	changes, err := s.notifier.Listen(ctx, collection)
	if err != nil {
		return nil, err
	}
	return watchDoc(ctx, changes, func(ctx context.Context) (*Document, error) {
		return s.Get(ctx, collection, id)
	}), nil
}

func (s *MemoryStore) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := uuid.NewString()
	s.mu.Lock()
	s.put(collection, id, normalizeFields(fields, s.now()))
	s.mu.Unlock()
	s.publish(ctx, collection)
	return id, nil
}

func (s *MemoryStore) CreateWithID(ctx context.Context, collection, id string, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	if _, ok := s.colls[collection][id]; ok {
		s.mu.Unlock()
		return ErrAlreadyExists
	}
	s.put(collection, id, normalizeFields(fields, s.now()))
	s.mu.Unlock()
	s.publish(ctx, collection)
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	return s.mutate(ctx, collection, id, false, func(cur map[string]any, now time.Time) error {
		for k, v := range fields {
			cur[k] = normalize(v, now)
		}
		return nil
	})
}

func (s *MemoryStore) UpdateIf(ctx context.Context, collection, id string, cond Condition, fields map[string]any) error {
	return s.mutate(ctx, collection, id, false, func(cur map[string]any, now time.Time) error {
		if !equalValues(cur[cond.Field], normalize(cond.Equals, now)) {
			return ErrPreconditionFailed
		}
		for k, v := range fields {
			cur[k] = normalize(v, now)
		}
		return nil
	})
}

func (s *MemoryStore) SetMerge(ctx context.Context, collection, id string, fields map[string]any) error {
	return s.mutate(ctx, collection, id, true, func(cur map[string]any, now time.Time) error {
		for k, v := range fields {
			cur[k] = normalize(v, now)
		}
		return nil
	})
}

func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.colls[collection], id)
	s.mu.Unlock()
	s.publish(ctx, collection)
	return nil
}

func (s *MemoryStore) ArrayAdd(ctx context.Context, collection, id, field string, value any) error {
	return s.mutate(ctx, collection, id, false, func(cur map[string]any, now time.Time) error {
		cur[field] = arrayUnion(cur[field], normalize(value, now))
		return nil
	})
}

func (s *MemoryStore) ArrayRemove(ctx context.Context, collection, id, field string, value any) error {
	return s.mutate(ctx, collection, id, false, func(cur map[string]any, now time.Time) error {
		cur[field] = arrayRemove(cur[field], normalize(value, now))
		return nil
	})
}

func (s *MemoryStore) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	return s.mutate(ctx, collection, id, false, func(cur map[string]any, _ time.Time) error {
		n, _ := toInt64(cur[field])
		cur[field] = n + delta
		return nil
	})
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) mutate(ctx context.Context, collection, id string, upsert bool, fn func(map[string]any, time.Time) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	d, ok := s.colls[collection][id]
	if !ok && !upsert {
		s.mu.Unlock()
		return ErrNotFound
	}
	var cur map[string]any
	if ok {
		cur = cloneFields(d.fields)
	} else {
		cur = make(map[string]any)
	}
	if err := fn(cur, s.now()); err != nil {
		s.mu.Unlock()
		return err
	}
	if ok {
		d.fields = cur
	} else {
		s.put(collection, id, cur)
	}
	s.mu.Unlock()
	s.publish(ctx, collection)
	return nil
}

// put must be called with mu held.
func (s *MemoryStore) put(collection, id string, fields map[string]any) {
	if s.colls[collection] == nil {
		s.colls[collection] = make(map[string]*memDoc)
	}
	s.seq++
	s.colls[collection][id] = &memDoc{fields: fields, seq: s.seq}
}

func (s *MemoryStore) publish(ctx context.Context, collection string) {
	_ = s.notifier.Publish(context.WithoutCancel(ctx), collection)
}
