package docstore

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore maps the Store contract one-to-one onto Cloud Firestore.
type FirestoreStore struct {
	client *firestore.Client
}

func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

func (s *FirestoreStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	snap, err := s.client.Collection(collection).Doc(id).Get(ctx)
	if err != nil {
		return nil, mapFirestoreErr(err)
	}
	return &Document{ID: snap.Ref.ID, Fields: snap.Data()}, nil
}

func (s *FirestoreStore) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	snaps, err := s.query(collection, q).Documents(ctx).GetAll()
	if err != nil {
		return nil, mapFirestoreErr(err)
	}
	return toDocuments(snaps), nil
}

func (s *FirestoreStore) Subscribe(ctx context.Context, collection string, q Query) (<-chan Snapshot, error) {
	it := s.query(collection, q).Snapshots(ctx)
	out := make(chan Snapshot, 1)
	go func() {
		defer close(out)
		defer it.Stop()
		for {
			qs, err := it.Next()
			if ctx.Err() != nil {
				return
			}
			var snap Snapshot
			if err != nil {
				snap.Err = mapFirestoreErr(err)
			} else {
				docs, derr := qs.Documents.GetAll()
				snap = Snapshot{Docs: toDocuments(docs), Err: mapFirestoreErr(derr)}
			}
			select {
			case out <- snap:
			case <-ctx.Done():
				return
			}
			if snap.Err != nil {
				return
			}
		}
	}()
	return out, nil
}

func (s *FirestoreStore) SubscribeDoc(ctx context.Context, collection, id string) (<-chan DocSnapshot, error) {
	it := s.client.Collection(collection).Doc(id).Snapshots(ctx)
	out := make(chan DocSnapshot, 1)
	go func() {
		defer close(out)
		defer it.Stop()
		for {
			ds, err := it.Next()
			if ctx.Err() != nil {
				return
			}
			var snap DocSnapshot
			switch {
			case err != nil:
				snap.Err = mapFirestoreErr(err)
			case ds.Exists():
				snap.Doc = &Document{ID: ds.Ref.ID, Fields: ds.Data()}
			}
			select {
			case out <- snap:
			case <-ctx.Done():
				return
			}
			if snap.Err != nil {
				return
			}
		}
	}()
	return out, nil
}

func (s *FirestoreStore) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	ref, _, err := s.client.Collection(collection).Add(ctx, toFirestoreFields(fields))
	if err != nil {
		return "", mapFirestoreErr(err)
	}
	return ref.ID, nil
}

func (s *FirestoreStore) CreateWithID(ctx context.Context, collection, id string, fields map[string]any) error {
	_, err := s.client.Collection(collection).Doc(id).Create(ctx, toFirestoreFields(fields))
	return mapFirestoreErr(err)
}

func (s *FirestoreStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	_, err := s.client.Collection(collection).Doc(id).Update(ctx, toUpdates(fields))
	return mapFirestoreErr(err)
}

func (s *FirestoreStore) UpdateIf(ctx context.Context, collection, id string, cond Condition, fields map[string]any) error {
	ref := s.client.Collection(collection).Doc(id)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		if !equalValues(snap.Data()[cond.Field], normalize(cond.Equals, nowUTC())) {
			return ErrPreconditionFailed
		}
		return tx.Update(ref, toUpdates(fields))
	})
	return mapFirestoreErr(err)
}

func (s *FirestoreStore) SetMerge(ctx context.Context, collection, id string, fields map[string]any) error {
	_, err := s.client.Collection(collection).Doc(id).Set(ctx, toFirestoreFields(fields), firestore.MergeAll)
	return mapFirestoreErr(err)
}

func (s *FirestoreStore) Delete(ctx context.Context, collection, id string) error {
	_, err := s.client.Collection(collection).Doc(id).Delete(ctx)
	return mapFirestoreErr(err)
}

func (s *FirestoreStore) ArrayAdd(ctx context.Context, collection, id, field string, value any) error {
	_, err := s.client.Collection(collection).Doc(id).Update(ctx, []firestore.Update{
		{Path: field, Value: firestore.ArrayUnion(toFirestoreValue(value))},
	})
	return mapFirestoreErr(err)
}

func (s *FirestoreStore) ArrayRemove(ctx context.Context, collection, id, field string, value any) error {
	_, err := s.client.Collection(collection).Doc(id).Update(ctx, []firestore.Update{
		{Path: field, Value: firestore.ArrayRemove(toFirestoreValue(value))},
	})
	return mapFirestoreErr(err)
}

func (s *FirestoreStore) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	_, err := s.client.Collection(collection).Doc(id).Update(ctx, []firestore.Update{
		{Path: field, Value: firestore.Increment(delta)},
	})
	return mapFirestoreErr(err)
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

func (s *FirestoreStore) query(collection string, q Query) firestore.Query {
	fq := s.client.Collection(collection).Query
	for _, f := range q.Filters {
		fq = fq.Where(f.Field, string(f.Op), toFirestoreValue(f.Value))
	}
	if q.OrderBy != "" {
		dir := firestore.Asc
		if q.Desc {
			dir = firestore.Desc
		}
		fq = fq.OrderBy(q.OrderBy, dir)
	}
	if q.Limit > 0 {
		fq = fq.Limit(q.Limit)
	}
	return fq
}

func toDocuments(snaps []*firestore.DocumentSnapshot) []Document {
	docs := make([]Document, 0, len(snaps))
	for _, snap := range snaps {
		docs = append(docs, Document{ID: snap.Ref.ID, Fields: snap.Data()})
	}
	return docs
}

func toUpdates(fields map[string]any) []firestore.Update {
	updates := make([]firestore.Update, 0, len(fields))
	for k, v := range fields {
		updates = append(updates, firestore.Update{Path: k, Value: toFirestoreValue(v)})
	}
	return updates
}

func toFirestoreFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = toFirestoreValue(v)
	}
	return out
}

func toFirestoreValue(v any) any {
	switch x := v.(type) {
	case serverTimestamp:
		return firestore.ServerTimestamp
	case map[string]any:
		return toFirestoreFields(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = toFirestoreValue(e)
		}
		return out
	}
	return v
}

func mapFirestoreErr(err error) error {
	if err == nil || errors.Is(err, ErrPreconditionFailed) {
		return err
	}
	switch status.Code(err) {
	case codes.NotFound:
		return ErrNotFound
	case codes.AlreadyExists:
		return ErrAlreadyExists
	}
	return err
}
