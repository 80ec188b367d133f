package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type documentRow struct {
	Collection string    `gorm:"primaryKey;size:191"`
	ID         string    `gorm:"primaryKey;size:128"`
	Data       string    `gorm:"type:text;not null"`
	Version    int64     `gorm:"not null;default:1"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime"`
}

func (documentRow) TableName() string {
	return "documents"
}

var errVersionConflict = errors.New("document version changed")

const maxMutateAttempts = 3

// SQLStore keeps documents as JSON rows in one table. Filters and ordering
// run in Go after loading a collection, so it suits small deployments and
// local development against mysql or postgres.
type SQLStore struct {
	db       *gorm.DB
	notifier Notifier
	log      *slog.Logger
}

// NewSQLStore wraps db. A nil notifier limits live subscriptions to writes
// made through this process.
func NewSQLStore(db *gorm.DB, notifier Notifier, log *slog.Logger) *SQLStore {
	if notifier == nil {
		notifier = NewLocalNotifier()
	}
	if log == nil {
		log = slog.Default()
	}
	return &SQLStore{db: db, notifier: notifier, log: log.With("component", "sqlstore")}
}

func (s *SQLStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&documentRow{})
}

func (s *SQLStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	var row documentRow
	err := s.db.WithContext(ctx).
		Where("collection = ? AND id = ?", collection, id).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	fields, err := decodeFields(row.Data)
	if err != nil {
		return nil, err
	}
	return &Document{ID: row.ID, Fields: fields}, nil
}

func (s *SQLStore) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	var rows []documentRow
	if err := s.db.WithContext(ctx).
		Where("collection = ?", collection).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	docs := make([]Document, 0, len(rows))
	for _, row := range rows {
		fields, err := decodeFields(row.Data)
		if err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", collection, row.ID, err)
		}
		docs = append(docs, Document{ID: row.ID, Fields: fields})
	}
	return applyQuery(docs, q), nil
}

func (s *SQLStore) Subscribe(ctx context.Context, collection string, q Query) (<-chan Snapshot, error) {
	changes, err := s.notifier.Listen(ctx, collection)
	if err != nil {
		return nil, err
	}
	return watchQuery(ctx, changes, func(ctx context.Context) ([]Document, error) {
		return s.Query(ctx, collection, q)
	}), nil
}

func (s *SQLStore) SubscribeDoc(ctx context.Context, collection, id string) (<-chan DocSnapshot, error) {
	changes, err := s.notifier.Listen(ctx, collection)
	if err != nil {
		return nil, err
	}
	return watchDoc(ctx, changes, func(ctx context.Context) (*Document, error) {
		return s.Get(ctx, collection, id)
	}), nil
}

func (s *SQLStore) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	data, err := encodeFields(normalizeFields(fields, nowUTC()))
	if err != nil {
		return "", err
	}
	row := documentRow{Collection: collection, ID: uuid.NewString(), Data: data, Version: 1}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return "", err
	}
	s.publish(ctx, collection)
	return row.ID, nil
}

func (s *SQLStore) CreateWithID(ctx context.Context, collection, id string, fields map[string]any) error {
	data, err := encodeFields(normalizeFields(fields, nowUTC()))
	if err != nil {
		return err
	}
	row := documentRow{Collection: collection, ID: id, Data: data, Version: 1}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrAlreadyExists
		}
		return err
	}
	s.publish(ctx, collection)
	return nil
}

func (s *SQLStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	return s.mutate(ctx, collection, id, false, mergeInto(fields))
}

func (s *SQLStore) UpdateIf(ctx context.Context, collection, id string, cond Condition, fields map[string]any) error {
	merge := mergeInto(fields)
	return s.mutate(ctx, collection, id, false, func(cur map[string]any, now time.Time) error {
		if !equalValues(cur[cond.Field], normalize(cond.Equals, now)) {
			return ErrPreconditionFailed
		}
		return merge(cur, now)
	})
}

func (s *SQLStore) SetMerge(ctx context.Context, collection, id string, fields map[string]any) error {
	return s.mutate(ctx, collection, id, true, mergeInto(fields))
}

func (s *SQLStore) Delete(ctx context.Context, collection, id string) error {
	if err := s.db.WithContext(ctx).
		Where("collection = ? AND id = ?", collection, id).
		Delete(&documentRow{}).Error; err != nil {
		return err
	}
	s.publish(ctx, collection)
	return nil
}

func (s *SQLStore) ArrayAdd(ctx context.Context, collection, id, field string, value any) error {
	return s.mutate(ctx, collection, id, false, func(cur map[string]any, now time.Time) error {
		cur[field] = arrayUnion(cur[field], normalize(value, now))
		return nil
	})
}

func (s *SQLStore) ArrayRemove(ctx context.Context, collection, id, field string, value any) error {
	return s.mutate(ctx, collection, id, false, func(cur map[string]any, now time.Time) error {
		cur[field] = arrayRemove(cur[field], normalize(value, now))
		return nil
	})
}

func (s *SQLStore) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	return s.mutate(ctx, collection, id, false, func(cur map[string]any, _ time.Time) error {
		n, _ := toInt64(cur[field])
		cur[field] = n + delta
		return nil
	})
}

func (s *SQLStore) Close() error {
	if err := s.notifier.Close(); err != nil {
		s.log.Warn("notifier close failed", "error", err)
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// mutate loads the row under a row lock, applies fn and writes it back
// guarded by the row version.
func (s *SQLStore) mutate(ctx context.Context, collection, id string, upsert bool, fn func(map[string]any, time.Time) error) error {
	var err error
	for attempt := 0; attempt < maxMutateAttempts; attempt++ {
		err = s.mutateOnce(ctx, collection, id, upsert, fn)
		if errors.Is(err, errVersionConflict) || (upsert && errors.Is(err, gorm.ErrDuplicatedKey)) {
			s.log.Debug("retrying document write", "collection", collection, "id", id, "attempt", attempt+1)
			continue
		}
		break
	}
	if err != nil {
		return err
	}
	s.publish(ctx, collection)
	return nil
}

func (s *SQLStore) mutateOnce(ctx context.Context, collection, id string, upsert bool, fn func(map[string]any, time.Time) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := nowUTC()
		var row documentRow
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("collection = ? AND id = ?", collection, id).
			Take(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if !upsert {
				return ErrNotFound
			}
			cur := make(map[string]any)
			if err := fn(cur, now); err != nil {
				return err
			}
			data, err := encodeFields(cur)
			if err != nil {
				return err
			}
			return tx.Create(&documentRow{Collection: collection, ID: id, Data: data, Version: 1}).Error
		}
		if err != nil {
			return err
		}

		cur, err := decodeFields(row.Data)
		if err != nil {
			return err
		}
		if err := fn(cur, now); err != nil {
			return err
		}
		data, err := encodeFields(cur)
		if err != nil {
			return err
		}
		res := tx.Model(&documentRow{}).
			Where("collection = ? AND id = ? AND version = ?", collection, id, row.Version).
			Updates(map[string]interface{}{
				"data":       data,
				"version":    row.Version + 1,
				"updated_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errVersionConflict
		}
		return nil
	})
}

func (s *SQLStore) publish(ctx context.Context, collection string) {
	if err := s.notifier.Publish(context.WithoutCancel(ctx), collection); err != nil {
		s.log.Warn("change notification failed", "collection", collection, "error", err)
	}
}

func mergeInto(fields map[string]any) func(map[string]any, time.Time) error {
	return func(cur map[string]any, now time.Time) error {
		for k, v := range fields {
			cur[k] = normalize(v, now)
		}
		return nil
	}
}

func encodeFields(fields map[string]any) (string, error) {
	b, err := json.Marshal(encodeValue(fields))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func encodeValue(v any) any {
	switch x := v.(type) {
	case time.Time:
		return x.UTC().Format(TimeLayout)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = encodeValue(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = encodeValue(e)
		}
		return out
	}
	return v
}

func decodeFields(data string) (map[string]any, error) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(data), &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = make(map[string]any)
	}
	for k, v := range fields {
		fields[k] = decodeValue(v)
	}
	return fields, nil
}

// decodeValue restores whole JSON numbers to int64 so SQL documents carry
// the same shapes as the other backends.
func decodeValue(v any) any {
	switch x := v.(type) {
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return int64(x)
		}
		return x
	case []any:
		for i, e := range x {
			x[i] = decodeValue(e)
		}
		return x
	case map[string]any:
		for k, e := range x {
			x[k] = decodeValue(e)
		}
		return x
	}
	return v
}
