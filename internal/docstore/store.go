// Package docstore is the schema-less document database the application is
// written against. Collections hold documents addressed by id; nested
// collections use slash paths such as "chats/{id}/messages".
//
// Backends: Firestore (primary), a gorm-backed SQL table (mysql or postgres)
// and an in-memory store for tests and local runs.
package docstore

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound           = errors.New("document not found")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrAlreadyExists      = errors.New("document already exists")
	ErrTransient          = errors.New("document store temporarily unavailable")
)

// Op is a filter comparison operator. Values follow Firestore spelling.
type Op string

const (
	OpEqual         Op = "=="
	OpNotEqual      Op = "!="
	OpLess          Op = "<"
	OpLessEqual     Op = "<="
	OpGreater       Op = ">"
	OpGreaterEqual  Op = ">="
	OpArrayContains Op = "array-contains"
)

type Filter struct {
	Field string
	Op    Op
	Value any
}

func Where(field string, op Op, value any) Filter {
	return Filter{Field: field, Op: op, Value: value}
}

type Query struct {
	Filters []Filter
	OrderBy string
	Desc    bool
	Limit   int
}

// Condition guards UpdateIf: the stored Field must equal Equals.
type Condition struct {
	Field  string
	Equals any
}

// Snapshot is one push from a live subscription. Docs is the full result set.
// A snapshot carrying Err is the last one on its channel.
type Snapshot struct {
	Docs []Document
	Err  error
}

// DocSnapshot is one push from a single-document subscription. Doc is nil
// while the document does not exist.
type DocSnapshot struct {
	Doc *Document
	Err error
}

type serverTimestamp struct{}

// ServerTimestamp, used as a field value, is replaced by the store's clock at
// write time.
var ServerTimestamp any = serverTimestamp{}

type Store interface {
	Get(ctx context.Context, collection, id string) (*Document, error)
	Query(ctx context.Context, collection string, q Query) ([]Document, error)
	// Subscribe pushes the full result set once immediately and again after
	// every change to the collection. The channel closes when ctx is done.
	Subscribe(ctx context.Context, collection string, q Query) (<-chan Snapshot, error)
	SubscribeDoc(ctx context.Context, collection, id string) (<-chan DocSnapshot, error)

	Create(ctx context.Context, collection string, fields map[string]any) (string, error)
	// CreateWithID writes a new document under id; ErrAlreadyExists if one is
	// already there, in which case nothing is written.
	CreateWithID(ctx context.Context, collection, id string, fields map[string]any) error
	// Update merges fields into an existing document; ErrNotFound if absent.
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	// UpdateIf applies fields only when cond holds; ErrPreconditionFailed otherwise.
	UpdateIf(ctx context.Context, collection, id string, cond Condition, fields map[string]any) error
	// SetMerge creates the document or shallow-merges fields into it.
	SetMerge(ctx context.Context, collection, id string, fields map[string]any) error
	Delete(ctx context.Context, collection, id string) error

	ArrayAdd(ctx context.Context, collection, id, field string, value any) error
	ArrayRemove(ctx context.Context, collection, id, field string, value any) error
	Increment(ctx context.Context, collection, id, field string, delta int64) error

	Close() error
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
