package service

import (
	"context"
	"log/slog"

	"github.com/arfaar/swapfinity/internal/model"
	"github.com/arfaar/swapfinity/internal/repository"
)

// NotificationView annotates a notification with whether its item still exists.
type NotificationView struct {
	model.SwapNotification
	ItemAvailable bool
}

type NotificationFeed struct {
	Items       []NotificationView
	UnreadCount int
}

type NotificationService interface {
	List(ctx context.Context, uid string) (*NotificationFeed, error)
	MarkRead(ctx context.Context, uid, id string) error
	// Dismiss deletes a notification from the receiver's feed.
	Dismiss(ctx context.Context, uid, id string) error
	// Watch streams the receiver's feed annotated like List.
	Watch(ctx context.Context, uid string) (<-chan repository.Snapshot[NotificationView], error)
}

type notificationService struct {
	repo     repository.NotificationRepository
	requests repository.SwapRequestRepository
	lookups  lookups
	log      *slog.Logger
}

func NewNotificationService(repo repository.NotificationRepository, requests repository.SwapRequestRepository, items repository.ItemRepository, fanout int, log *slog.Logger) NotificationService {
	log = log.With("service", "notification")
	return &notificationService{
		repo:     repo,
		requests: requests,
		lookups:  lookups{items: items, limit: fanout, log: log},
		log:      log,
	}
}

func (s *notificationService) List(ctx context.Context, uid string) (*NotificationFeed, error) {
	if uid == "" {
		return nil, errLoginRequired
	}
	list, err := s.repo.ListByReceiver(ctx, uid)
	if err != nil {
		return nil, err
	}
	feed := &NotificationFeed{Items: s.annotate(ctx, list)}
	for _, v := range feed.Items {
		if v.MessageStatus == model.MessageUnread {
			feed.UnreadCount++
		}
	}
	return feed, nil
}

func (s *notificationService) annotate(ctx context.Context, list []model.SwapNotification) []NotificationView {
	ids := make([]string, 0, len(list))
	for _, n := range list {
		ids = append(ids, n.PostID)
	}
	avail := s.lookups.availability(ctx, ids)
	views := make([]NotificationView, 0, len(list))
	for _, n := range list {
		views = append(views, NotificationView{SwapNotification: n, ItemAvailable: avail[n.PostID]})
	}
	return views
}

func (s *notificationService) MarkRead(ctx context.Context, uid, id string) error {
	n, err := s.received(ctx, uid, id)
	if err != nil {
		return err
	}
	if n.MessageStatus == model.MessageRead {
		return nil
	}
	return notFound(s.repo.MarkRead(ctx, id), "notification not found")
}

func (s *notificationService) Dismiss(ctx context.Context, uid, id string) error {
	n, err := s.received(ctx, uid, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if n.SwapStatus == model.SwapPending {
		s.release(ctx, n)
	}
	return nil
}

// release drops the requester's open-request marker when it still guards n,
// so a dismissed request can be sent again.
func (s *notificationService) release(ctx context.Context, n *model.SwapNotification) {
	marker, err := s.requests.Find(ctx, n.SenderID, n.PostID)
	if err != nil || marker.NotificationID != n.ID {
		return
	}
	if err := s.requests.Release(ctx, n.SenderID, n.PostID); err != nil {
		s.log.Warn("release swap request marker failed", "notification_id", n.ID, "error", err)
	}
}

func (s *notificationService) Watch(ctx context.Context, uid string) (<-chan repository.Snapshot[NotificationView], error) {
	if uid == "" {
		return nil, errLoginRequired
	}
	in, err := s.repo.Watch(ctx, uid)
	if err != nil {
		return nil, err
	}
	out := make(chan repository.Snapshot[NotificationView], 1)
	go func() {
		defer close(out)
		for snap := range in {
			next := repository.Snapshot[NotificationView]{Err: snap.Err}
			if snap.Err == nil {
				next.Items = s.annotate(ctx, snap.Items)
			}
			select {
			case out <- next:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (s *notificationService) received(ctx context.Context, uid, id string) (*model.SwapNotification, error) {
	if uid == "" {
		return nil, errLoginRequired
	}
	n, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "notification not found")
	}
	if n.ReceiverID != uid {
		return nil, newError(ErrForbidden, "notification belongs to another user")
	}
	return n, nil
}
