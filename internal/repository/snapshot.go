package repository

import (
	"context"

	"github.com/arfaar/swapfinity/internal/docstore"
)

// Snapshot is one push of a live list. A snapshot with Err ends the stream.
type Snapshot[T any] struct {
	Items []T
	Err   error
}

// DocSnapshot is one push of a live single record. Value is nil while the
// record does not exist.
type DocSnapshot[T any] struct {
	Value *T
	Err   error
}

func mapSnapshots[T any](ctx context.Context, in <-chan docstore.Snapshot, conv func(docstore.Document) T) <-chan Snapshot[T] {
	out := make(chan Snapshot[T], 1)
	go func() {
		defer close(out)
		for snap := range in {
			next := Snapshot[T]{Err: snap.Err}
			if snap.Err == nil {
				next.Items = make([]T, 0, len(snap.Docs))
				for _, d := range snap.Docs {
					next.Items = append(next.Items, conv(d))
				}
			}
			select {
			case out <- next:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func mapDocSnapshots[T any](ctx context.Context, in <-chan docstore.DocSnapshot, conv func(docstore.Document) T) <-chan DocSnapshot[T] {
	out := make(chan DocSnapshot[T], 1)
	go func() {
		defer close(out)
		for snap := range in {
			next := DocSnapshot[T]{Err: snap.Err}
			if snap.Doc != nil {
				v := conv(*snap.Doc)
				next.Value = &v
			}
			select {
			case out <- next:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func convertAll[T any](docs []docstore.Document, conv func(docstore.Document) T) []T {
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		out = append(out, conv(d))
	}
	return out
}
