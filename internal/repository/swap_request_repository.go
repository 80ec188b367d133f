package repository

import (
	"context"

	"github.com/arfaar/swapfinity/internal/docstore"
	"github.com/arfaar/swapfinity/internal/model"
)

// SwapRequestRepository manages the markers that keep a requester to one
// open request per item.
type SwapRequestRepository interface {
	// Reserve claims the marker for requester and item, pointing it at
	// notificationID. It fails with docstore.ErrAlreadyExists when a marker
	// is already present.
	Reserve(ctx context.Context, requesterID, itemID, notificationID string) error
	Find(ctx context.Context, requesterID, itemID string) (*model.SwapRequestMarker, error)
	// Takeover re-points a marker that still references previousID. It fails
	// with docstore.ErrPreconditionFailed when someone else moved it first.
	Takeover(ctx context.Context, requesterID, itemID, previousID, notificationID string) error
	Release(ctx context.Context, requesterID, itemID string) error
}

type swapRequestRepository struct {
	store docstore.Store
}

func NewSwapRequestRepository(store docstore.Store) SwapRequestRepository {
	return &swapRequestRepository{store: store}
}

func (r *swapRequestRepository) Reserve(ctx context.Context, requesterID, itemID, notificationID string) error {
	return r.store.CreateWithID(ctx, model.CollectionSwapRequests, model.SwapRequestID(requesterID, itemID), map[string]any{
		model.SwapRequestSenderID:       requesterID,
		model.SwapRequestPostID:         itemID,
		model.SwapRequestNotificationID: notificationID,
		model.SwapRequestCreatedAt:      docstore.ServerTimestamp,
	})
}

func (r *swapRequestRepository) Find(ctx context.Context, requesterID, itemID string) (*model.SwapRequestMarker, error) {
	doc, err := r.store.Get(ctx, model.CollectionSwapRequests, model.SwapRequestID(requesterID, itemID))
	if err != nil {
		return nil, err
	}
	return &model.SwapRequestMarker{
		ID:             doc.ID,
		SenderID:       doc.String(model.SwapRequestSenderID),
		PostID:         doc.String(model.SwapRequestPostID),
		NotificationID: doc.String(model.SwapRequestNotificationID),
		CreatedAt:      doc.Time(model.SwapRequestCreatedAt),
	}, nil
}

func (r *swapRequestRepository) Takeover(ctx context.Context, requesterID, itemID, previousID, notificationID string) error {
	return r.store.UpdateIf(ctx, model.CollectionSwapRequests, model.SwapRequestID(requesterID, itemID),
		docstore.Condition{Field: model.SwapRequestNotificationID, Equals: previousID},
		map[string]any{
			model.SwapRequestNotificationID: notificationID,
			model.SwapRequestCreatedAt:      docstore.ServerTimestamp,
		})
}

func (r *swapRequestRepository) Release(ctx context.Context, requesterID, itemID string) error {
	return r.store.Delete(ctx, model.CollectionSwapRequests, model.SwapRequestID(requesterID, itemID))
}
