package repository

import (
	"context"

	"github.com/arfaar/swapfinity/internal/docstore"
	"github.com/arfaar/swapfinity/internal/model"
)

type NotificationRepository interface {
	// Create stores n. When n.ID is set the write is create-only and fails
	// with docstore.ErrAlreadyExists if that id is taken.
	Create(ctx context.Context, n *model.SwapNotification) error
	FindByID(ctx context.Context, id string) (*model.SwapNotification, error)
	ListByReceiver(ctx context.Context, uid string) ([]model.SwapNotification, error)
	// Resolve moves a pending notification to status and marks it read.
	// It fails with docstore.ErrPreconditionFailed when the notification is
	// no longer pending.
	Resolve(ctx context.Context, id string, status model.SwapStatus) error
	MarkRead(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	Watch(ctx context.Context, uid string) (<-chan Snapshot[model.SwapNotification], error)
}

type notificationRepository struct {
	store docstore.Store
}

func NewNotificationRepository(store docstore.Store) NotificationRepository {
	return &notificationRepository{store: store}
}

func (r *notificationRepository) Create(ctx context.Context, n *model.SwapNotification) error {
	fields := map[string]any{
		model.NotificationSenderID:      n.SenderID,
		model.NotificationSenderName:    n.SenderName,
		model.NotificationReceiverID:    n.ReceiverID,
		model.NotificationReceiverName:  n.ReceiverName,
		model.NotificationPostID:        n.PostID,
		model.NotificationMessage:       n.Message,
		model.NotificationMessageStatus: string(n.MessageStatus),
		model.NotificationSwapStatus:    string(n.SwapStatus),
		model.NotificationTimestamp:     docstore.ServerTimestamp,
	}
	if n.ItemTitle != "" {
		fields[model.NotificationItemTitle] = n.ItemTitle
	}
	id := n.ID
	if id != "" {
		if err := r.store.CreateWithID(ctx, model.CollectionNotifications, id, fields); err != nil {
			return err
		}
	} else {
		var err error
		if id, err = r.store.Create(ctx, model.CollectionNotifications, fields); err != nil {
			return err
		}
	}
	created, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	*n = *created
	return nil
}

func (r *notificationRepository) FindByID(ctx context.Context, id string) (*model.SwapNotification, error) {
	doc, err := r.store.Get(ctx, model.CollectionNotifications, id)
	if err != nil {
		return nil, err
	}
	n := notificationFromDoc(*doc)
	return &n, nil
}

func (r *notificationRepository) ListByReceiver(ctx context.Context, uid string) ([]model.SwapNotification, error) {
	docs, err := r.store.Query(ctx, model.CollectionNotifications, receiverQuery(uid))
	if err != nil {
		return nil, err
	}
	return convertAll(docs, notificationFromDoc), nil
}

func (r *notificationRepository) Resolve(ctx context.Context, id string, status model.SwapStatus) error {
	return r.store.UpdateIf(ctx, model.CollectionNotifications, id,
		docstore.Condition{Field: model.NotificationSwapStatus, Equals: string(model.SwapPending)},
		map[string]any{
			model.NotificationSwapStatus:    string(status),
			model.NotificationMessageStatus: string(model.MessageRead),
		})
}

func (r *notificationRepository) MarkRead(ctx context.Context, id string) error {
	return r.store.Update(ctx, model.CollectionNotifications, id, map[string]any{
		model.NotificationMessageStatus: string(model.MessageRead),
	})
}

func (r *notificationRepository) Delete(ctx context.Context, id string) error {
	return r.store.Delete(ctx, model.CollectionNotifications, id)
}

func (r *notificationRepository) Watch(ctx context.Context, uid string) (<-chan Snapshot[model.SwapNotification], error) {
	in, err := r.store.Subscribe(ctx, model.CollectionNotifications, receiverQuery(uid))
	if err != nil {
		return nil, err
	}
	return mapSnapshots(ctx, in, notificationFromDoc), nil
}

func receiverQuery(uid string) docstore.Query {
	return docstore.Query{
		Filters: []docstore.Filter{docstore.Where(model.NotificationReceiverID, docstore.OpEqual, uid)},
		OrderBy: model.NotificationTimestamp,
		Desc:    true,
	}
}

func notificationFromDoc(d docstore.Document) model.SwapNotification {
	return model.SwapNotification{
		ID:            d.ID,
		SenderID:      d.String(model.NotificationSenderID),
		SenderName:    d.String(model.NotificationSenderName),
		ReceiverID:    d.String(model.NotificationReceiverID),
		ReceiverName:  d.String(model.NotificationReceiverName),
		PostID:        d.String(model.NotificationPostID),
		ItemTitle:     d.String(model.NotificationItemTitle),
		Message:       d.String(model.NotificationMessage),
		MessageStatus: model.MessageStatus(d.String(model.NotificationMessageStatus)),
		SwapStatus:    model.SwapStatus(d.String(model.NotificationSwapStatus)),
		Timestamp:     d.Time(model.NotificationTimestamp),
	}
}
