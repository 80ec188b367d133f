package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/arfaar/swapfinity/internal/docstore"
	"github.com/arfaar/swapfinity/internal/model"
	"github.com/arfaar/swapfinity/internal/repository"
)

// SwapResult is the outcome of answering a swap request.
type SwapResult struct {
	Original  *model.SwapNotification
	Companion *model.SwapNotification
	// ChatID is set when the request was approved.
	ChatID string
}

type SwapService interface {
	RequestSwap(ctx context.Context, requesterID, itemID string) (*model.SwapNotification, error)
	// Respond resolves a pending request addressed to uid. A request can be
	// resolved once; later calls fail with ErrAlreadyResolved. A later call
	// repeating the stored decision first completes any answer an earlier
	// call failed to write.
	Respond(ctx context.Context, uid, notificationID string, decision model.SwapStatus) (*SwapResult, error)
}

// abandonedAfter is how long a request marker may point at a notification
// that was never written before another request may take it over.
const abandonedAfter = 2 * time.Minute

type swapService struct {
	items         repository.ItemRepository
	users         repository.UserRepository
	notifications repository.NotificationRepository
	requests      repository.SwapRequestRepository
	chats         ChatService
	now           func() time.Time
	log           *slog.Logger
}

func NewSwapService(items repository.ItemRepository, users repository.UserRepository, notifications repository.NotificationRepository, requests repository.SwapRequestRepository, chats ChatService, log *slog.Logger) SwapService {
	return &swapService{
		items:         items,
		users:         users,
		notifications: notifications,
		requests:      requests,
		chats:         chats,
		now:           time.Now,
		log:           log.With("service", "swap"),
	}
}

func (s *swapService) RequestSwap(ctx context.Context, requesterID, itemID string) (*model.SwapNotification, error) {
	if requesterID == "" {
		return nil, errLoginRequired
	}
	item, err := s.items.FindByID(ctx, itemID)
	if err != nil {
		return nil, notFound(err, "post not found")
	}
	if item.UserID == requesterID {
		return nil, NewValidationError("postID", "cannot request a swap on your own item")
	}
	owner, err := s.users.FindByID(ctx, item.UserID)
	if err != nil {
		return nil, notFound(err, "receiver not found")
	}
	requester, err := s.users.FindByID(ctx, requesterID)
	if err != nil {
		return nil, notFound(err, "requester not found")
	}

	n := &model.SwapNotification{
		ID:            uuid.NewString(),
		SenderID:      requesterID,
		SenderName:    requester.Name,
		ReceiverID:    owner.ID,
		ReceiverName:  owner.Name,
		PostID:        item.ID,
		ItemTitle:     item.Title,
		Message:       fmt.Sprintf("%s requests to swap an item", requester.Name),
		MessageStatus: model.MessageUnread,
		SwapStatus:    model.SwapPending,
	}
	if err := s.reserve(ctx, requesterID, item.ID, n.ID); err != nil {
		return nil, err
	}
	if err := s.notifications.Create(ctx, n); err != nil {
		if rerr := s.requests.Release(context.WithoutCancel(ctx), requesterID, item.ID); rerr != nil {
			s.log.Warn("release swap request marker failed", "item_id", item.ID, "requester", requesterID, "error", rerr)
		}
		return nil, err
	}
	if err := s.items.MarkSwapRequested(ctx, item.ID); err != nil {
		s.log.Warn("mark swap requested failed", "item_id", item.ID, "error", err)
	}
	s.log.Info("swap requested", "notification_id", n.ID, "item_id", item.ID, "requester", requesterID, "owner", owner.ID)
	return n, nil
}

// reserve claims the requester's marker on item for notificationID. A marker
// left behind by a resolved, deleted or abandoned request is taken over;
// any other marker means a request is still open.
func (s *swapService) reserve(ctx context.Context, requesterID, itemID, notificationID string) error {
	err := s.requests.Reserve(ctx, requesterID, itemID, notificationID)
	if !errors.Is(err, docstore.ErrAlreadyExists) {
		return err
	}
	marker, err := s.requests.Find(ctx, requesterID, itemID)
	if errors.Is(err, docstore.ErrNotFound) {
		err = s.requests.Reserve(ctx, requesterID, itemID, notificationID)
		if errors.Is(err, docstore.ErrAlreadyExists) {
			return errDuplicateRequest
		}
		return err
	}
	if err != nil {
		return err
	}
	open, err := s.stillOpen(ctx, marker)
	if err != nil {
		return err
	}
	if open {
		return errDuplicateRequest
	}
	err = s.requests.Takeover(ctx, requesterID, itemID, marker.NotificationID, notificationID)
	if errors.Is(err, docstore.ErrPreconditionFailed) || errors.Is(err, docstore.ErrNotFound) {
		return errDuplicateRequest
	}
	return err
}

func (s *swapService) stillOpen(ctx context.Context, marker *model.SwapRequestMarker) (bool, error) {
	n, err := s.notifications.FindByID(ctx, marker.NotificationID)
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		// Either the request is still being written or its writer gave up.
		return s.now().Sub(marker.CreatedAt) < abandonedAfter, nil
	case err != nil:
		return false, err
	}
	return n.SwapStatus == model.SwapPending, nil
}

func (s *swapService) Respond(ctx context.Context, uid, notificationID string, decision model.SwapStatus) (*SwapResult, error) {
	if uid == "" {
		return nil, errLoginRequired
	}
	if !decision.Terminal() {
		return nil, NewValidationError("decision", "must be approved or rejected")
	}
	n, err := s.notifications.FindByID(ctx, notificationID)
	if err != nil {
		return nil, notFound(err, "notification not found")
	}
	if n.ReceiverID != uid {
		return nil, newError(ErrForbidden, "only the item owner can respond to this request")
	}
	if n.SwapStatus != model.SwapPending {
		return nil, s.alreadyResolved(ctx, n, decision)
	}

	title, err := s.itemTitle(ctx, n)
	if err != nil {
		return nil, err
	}
	if err := s.notifications.Resolve(ctx, n.ID, decision); err != nil {
		if !errors.Is(err, docstore.ErrPreconditionFailed) {
			return nil, notFound(err, "notification not found")
		}
		if cur, ferr := s.notifications.FindByID(ctx, n.ID); ferr == nil {
			return nil, s.alreadyResolved(ctx, cur, decision)
		}
		return nil, errAlreadyResolved
	}
	n.SwapStatus = decision
	n.MessageStatus = model.MessageRead
	s.log.Info("swap resolved", "notification_id", n.ID, "decision", decision)

	res := &SwapResult{Original: n}
	if decision == model.SwapApproved {
		for _, party := range []string{n.SenderID, n.ReceiverID} {
			if err := s.users.IncrementSwapped(ctx, party); err != nil {
				s.log.Warn("swap counter update failed", "uid", party, "error", err)
			}
		}
		res.ChatID = s.openChat(ctx, n)
	}
	companion, err := s.ensureCompanion(ctx, n, title, decision)
	if err != nil {
		s.log.Error("companion notification failed", "notification_id", n.ID, "error", err)
		return nil, err
	}
	res.Companion = companion
	return res, nil
}

// alreadyResolved finishes the follow-up writes of an earlier call that
// reached the same decision, then reports the request as resolved.
func (s *swapService) alreadyResolved(ctx context.Context, n *model.SwapNotification, decision model.SwapStatus) error {
	if n.SwapStatus != decision {
		return errAlreadyResolved
	}
	title, err := s.itemTitle(ctx, n)
	if err != nil {
		s.log.Warn("companion repair skipped", "notification_id", n.ID, "error", err)
		return errAlreadyResolved
	}
	if _, err := s.ensureCompanion(ctx, n, title, decision); err != nil {
		s.log.Warn("companion repair failed", "notification_id", n.ID, "error", err)
	}
	if decision == model.SwapApproved {
		s.openChat(ctx, n)
	}
	return errAlreadyResolved
}

// ensureCompanion writes the answer to request n under its fixed id, or
// returns the one already written.
func (s *swapService) ensureCompanion(ctx context.Context, n *model.SwapNotification, title string, decision model.SwapStatus) (*model.SwapNotification, error) {
	id := model.ResponseID(n.ID)
	existing, err := s.notifications.FindByID(ctx, id)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, docstore.ErrNotFound) {
		return nil, err
	}
	companion := &model.SwapNotification{
		ID:            id,
		SenderID:      n.ReceiverID,
		SenderName:    n.ReceiverName,
		ReceiverID:    n.SenderID,
		ReceiverName:  n.SenderName,
		PostID:        n.PostID,
		ItemTitle:     title,
		Message:       outcomeMessage(n.ReceiverName, title, decision),
		MessageStatus: model.MessageUnread,
		SwapStatus:    decision,
	}
	err = s.notifications.Create(ctx, companion)
	if errors.Is(err, docstore.ErrAlreadyExists) {
		return s.notifications.FindByID(ctx, id)
	}
	if err != nil {
		return nil, err
	}
	return companion, nil
}

// itemTitle prefers the live item title and falls back to the one captured
// on the request when the item is gone.
func (s *swapService) itemTitle(ctx context.Context, n *model.SwapNotification) (string, error) {
	item, err := s.items.FindByID(ctx, n.PostID)
	switch {
	case err == nil:
		return item.Title, nil
	case errors.Is(err, docstore.ErrNotFound):
		return n.ItemTitle, nil
	}
	return "", err
}

func (s *swapService) openChat(ctx context.Context, n *model.SwapNotification) string {
	chat, err := s.chats.OpenOrCreate(ctx, n.ReceiverID, n.SenderID)
	if err != nil {
		s.log.Warn("open chat failed", "notification_id", n.ID, "error", err)
		return ""
	}
	return chat.ID
}

func outcomeMessage(responder, title string, decision model.SwapStatus) string {
	if decision == model.SwapApproved {
		return fmt.Sprintf("%s accepted your swap request for %q. Open the chat for details.", responder, title)
	}
	return fmt.Sprintf("%s rejected your swap request for %q.", responder, title)
}
