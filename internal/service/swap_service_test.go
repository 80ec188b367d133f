package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arfaar/swapfinity/internal/docstore"
	"github.com/arfaar/swapfinity/internal/model"
	"github.com/arfaar/swapfinity/internal/repository"
)

var errStoreDown = errors.New("store unavailable")

// failingCreates fails the next create-with-id calls on armed collections.
type failingCreates struct {
	docstore.Store
	mu       sync.Mutex
	failures map[string]int
}

func (s *failingCreates) failNext(collection string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures == nil {
		s.failures = map[string]int{}
	}
	s.failures[collection] = n
}

func (s *failingCreates) CreateWithID(ctx context.Context, collection, id string, fields map[string]any) error {
	s.mu.Lock()
	if s.failures[collection] > 0 {
		s.failures[collection]--
		s.mu.Unlock()
		return errStoreDown
	}
	s.mu.Unlock()
	return s.Store.CreateWithID(ctx, collection, id, fields)
}

func newFailingFixture(t *testing.T) (*fixture, *failingCreates) {
	var fc *failingCreates
	f := newFixtureWith(t, func(s docstore.Store) docstore.Store {
		fc = &failingCreates{Store: s}
		return fc
	})
	return f, fc
}

func TestRequestSwap_CreatesPendingNotification(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.user(t, "userX", "Xavier")
	f.user(t, "userY", "Yuki")
	lamp := f.item(t, "userX", "Lamp")

	n, err := f.swapSvc.RequestSwap(ctx, "userY", lamp.ID)
	require.NoError(t, err)
	assert.Equal(t, "userY", n.SenderID)
	assert.Equal(t, "Yuki", n.SenderName)
	assert.Equal(t, "userX", n.ReceiverID)
	assert.Equal(t, "Xavier", n.ReceiverName)
	assert.Equal(t, lamp.ID, n.PostID)
	assert.Equal(t, model.SwapPending, n.SwapStatus)
	assert.Equal(t, model.MessageUnread, n.MessageStatus)
	assert.Equal(t, "Yuki requests to swap an item", n.Message)

	item, err := f.items.FindByID(ctx, lamp.ID)
	require.NoError(t, err)
	assert.True(t, item.SwapRequested)
}

func TestRequestSwap_Failures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.user(t, "userX", "Xavier")
	f.user(t, "userY", "Yuki")
	lamp := f.item(t, "userX", "Lamp")

	orphan := &model.Item{Title: "Orphan", UserID: "ghost", Category: model.CategoryToys}
	require.NoError(t, f.items.Create(ctx, orphan))

	tests := []struct {
		name      string
		requester string
		itemID    string
		kind      error
		msg       string
	}{
		{"anonymous", "", lamp.ID, ErrAuthRequired, "must be logged in"},
		{"missing item", "userY", "nope", ErrNotFound, "post not found"},
		{"missing owner", "userY", orphan.ID, ErrNotFound, "receiver not found"},
		{"own item", "userX", lamp.ID, ErrValidation, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.swapSvc.RequestSwap(ctx, tt.requester, tt.itemID)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.kind)
			if tt.msg != "" {
				assert.EqualError(t, err, tt.msg)
			}
		})
	}
	assert.Equal(t, 0, f.count(t, model.CollectionNotifications))
}

func TestRequestSwap_RejectsDuplicatePending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.user(t, "userX", "Xavier")
	f.user(t, "userY", "Yuki")
	lamp := f.item(t, "userX", "Lamp")

	first, err := f.swapSvc.RequestSwap(ctx, "userY", lamp.ID)
	require.NoError(t, err)
	_, err = f.swapSvc.RequestSwap(ctx, "userY", lamp.ID)
	assert.ErrorIs(t, err, ErrDuplicateRequest)
	assert.Equal(t, 1, f.count(t, model.CollectionNotifications))

	_, err = f.swapSvc.Respond(ctx, "userX", first.ID, model.SwapRejected)
	require.NoError(t, err)
	_, err = f.swapSvc.RequestSwap(ctx, "userY", lamp.ID)
	assert.NoError(t, err)
}

func TestRequestSwap_ConcurrentCallsCreateOnePending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.user(t, "userX", "Xavier")
	f.user(t, "userY", "Yuki")
	lamp := f.item(t, "userX", "Lamp")

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok        int
		duplicate int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.swapSvc.RequestSwap(ctx, "userY", lamp.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case assert.ErrorIs(t, err, ErrDuplicateRequest):
				duplicate++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, 7, duplicate)
	assert.Equal(t, 1, f.count(t, model.CollectionNotifications))
}

func TestRequestSwap_FailedWriteDoesNotBlockRetry(t *testing.T) {
	ctx := context.Background()
	f, fc := newFailingFixture(t)
	f.user(t, "userX", "Xavier")
	f.user(t, "userY", "Yuki")
	lamp := f.item(t, "userX", "Lamp")

	fc.failNext(model.CollectionNotifications, 1)
	_, err := f.swapSvc.RequestSwap(ctx, "userY", lamp.ID)
	assert.ErrorIs(t, err, errStoreDown)
	assert.Equal(t, 0, f.count(t, model.CollectionNotifications))
	assert.Equal(t, 0, f.count(t, model.CollectionSwapRequests))

	_, err = f.swapSvc.RequestSwap(ctx, "userY", lamp.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.count(t, model.CollectionNotifications))
}

func TestRequestSwap_AbandonedMarkerIsTakenOver(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.user(t, "userX", "Xavier")
	f.user(t, "userY", "Yuki")
	lamp := f.item(t, "userX", "Lamp")
	requests := repository.NewSwapRequestRepository(f.store)
	require.NoError(t, requests.Reserve(ctx, "userY", lamp.ID, "never-written"))

	_, err := f.swapSvc.RequestSwap(ctx, "userY", lamp.ID)
	assert.ErrorIs(t, err, ErrDuplicateRequest)

	f.swapSvc.(*swapService).now = func() time.Time { return f.clock().Add(time.Hour) }
	n, err := f.swapSvc.RequestSwap(ctx, "userY", lamp.ID)
	require.NoError(t, err)

	marker, err := requests.Find(ctx, "userY", lamp.ID)
	require.NoError(t, err)
	assert.Equal(t, n.ID, marker.NotificationID)
}

func TestRequestSwap_DismissedRequestCanBeSentAgain(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.user(t, "userX", "Xavier")
	f.user(t, "userY", "Yuki")
	lamp := f.item(t, "userX", "Lamp")

	first, err := f.swapSvc.RequestSwap(ctx, "userY", lamp.ID)
	require.NoError(t, err)
	require.NoError(t, f.notifSvc.Dismiss(ctx, "userX", first.ID))

	second, err := f.swapSvc.RequestSwap(ctx, "userY", lamp.ID)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestRespond_ApproveCreatesCompanionAndChat(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.user(t, "userX", "Xavier")
	f.user(t, "userY", "Yuki")
	lamp := f.item(t, "userX", "Lamp")

	req, err := f.swapSvc.RequestSwap(ctx, "userY", lamp.ID)
	require.NoError(t, err)

	res, err := f.swapSvc.Respond(ctx, "userX", req.ID, model.SwapApproved)
	require.NoError(t, err)

	orig, err := f.notifications.FindByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SwapApproved, orig.SwapStatus)
	assert.Equal(t, model.MessageRead, orig.MessageStatus)

	c := res.Companion
	assert.Equal(t, model.ResponseID(req.ID), c.ID)
	assert.Equal(t, "userX", c.SenderID)
	assert.Equal(t, "userY", c.ReceiverID)
	assert.Equal(t, model.SwapApproved, c.SwapStatus)
	assert.Equal(t, model.MessageUnread, c.MessageStatus)
	assert.Equal(t, "Lamp", c.ItemTitle)
	assert.Contains(t, c.Message, "accepted")
	assert.Contains(t, c.Message, "chat for details")

	assert.Equal(t, model.ChatID("userX", "userY"), res.ChatID)
	chat, err := f.chatRepo.FindByID(ctx, res.ChatID)
	require.NoError(t, err)
	assert.Equal(t, model.ChatPlaceholder, chat.LastMessage)

	for _, uid := range []string{"userX", "userY"} {
		u, err := f.users.FindByID(ctx, uid)
		require.NoError(t, err)
		assert.Equal(t, int64(1), u.SwappedItems, uid)
	}
}

func TestRespond_Reject(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.user(t, "userX", "Xavier")
	f.user(t, "userY", "Yuki")
	lamp := f.item(t, "userX", "Lamp")
	req, err := f.swapSvc.RequestSwap(ctx, "userY", lamp.ID)
	require.NoError(t, err)

	res, err := f.swapSvc.Respond(ctx, "userX", req.ID, model.SwapRejected)
	require.NoError(t, err)
	assert.Equal(t, model.SwapRejected, res.Companion.SwapStatus)
	assert.Contains(t, res.Companion.Message, "rejected")
	assert.Empty(t, res.ChatID)
	assert.Equal(t, 0, f.count(t, model.CollectionChats))
}

func TestRespond_SecondCallIsAlreadyResolved(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.user(t, "userX", "Xavier")
	f.user(t, "userY", "Yuki")
	lamp := f.item(t, "userX", "Lamp")
	req, err := f.swapSvc.RequestSwap(ctx, "userY", lamp.ID)
	require.NoError(t, err)

	_, err = f.swapSvc.Respond(ctx, "userX", req.ID, model.SwapApproved)
	require.NoError(t, err)
	_, err = f.swapSvc.Respond(ctx, "userX", req.ID, model.SwapRejected)
	assert.ErrorIs(t, err, ErrAlreadyResolved)

	assert.Equal(t, 2, f.count(t, model.CollectionNotifications))
	orig, err := f.notifications.FindByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SwapApproved, orig.SwapStatus)
}

func TestRespond_ConcurrentCallsCreateOneCompanion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.user(t, "userX", "Xavier")
	f.user(t, "userY", "Yuki")
	lamp := f.item(t, "userX", "Lamp")
	req, err := f.swapSvc.RequestSwap(ctx, "userY", lamp.ID)
	require.NoError(t, err)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok       int
		resolved int
	)
	for i := 0; i < 8; i++ {
		decision := model.SwapApproved
		if i%2 == 1 {
			decision = model.SwapRejected
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.swapSvc.Respond(ctx, "userX", req.ID, decision)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case assert.ErrorIs(t, err, ErrAlreadyResolved):
				resolved++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, 7, resolved)
	assert.Equal(t, 2, f.count(t, model.CollectionNotifications))
}

func TestRespond_RetryRepairsMissingCompanion(t *testing.T) {
	ctx := context.Background()
	f, fc := newFailingFixture(t)
	f.user(t, "userX", "Xavier")
	f.user(t, "userY", "Yuki")
	lamp := f.item(t, "userX", "Lamp")
	req, err := f.swapSvc.RequestSwap(ctx, "userY", lamp.ID)
	require.NoError(t, err)

	fc.failNext(model.CollectionNotifications, 1)
	_, err = f.swapSvc.Respond(ctx, "userX", req.ID, model.SwapApproved)
	require.ErrorIs(t, err, errStoreDown)
	assert.Equal(t, 1, f.count(t, model.CollectionNotifications))
	orig, err := f.notifications.FindByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SwapApproved, orig.SwapStatus)

	_, err = f.swapSvc.Respond(ctx, "userX", req.ID, model.SwapRejected)
	assert.ErrorIs(t, err, ErrAlreadyResolved)
	assert.Equal(t, 1, f.count(t, model.CollectionNotifications))

	_, err = f.swapSvc.Respond(ctx, "userX", req.ID, model.SwapApproved)
	assert.ErrorIs(t, err, ErrAlreadyResolved)
	assert.Equal(t, 2, f.count(t, model.CollectionNotifications))

	companion, err := f.notifications.FindByID(ctx, model.ResponseID(req.ID))
	require.NoError(t, err)
	assert.Equal(t, "userY", companion.ReceiverID)
	assert.Equal(t, model.SwapApproved, companion.SwapStatus)
	assert.Contains(t, companion.Message, "accepted")

	_, err = f.chatRepo.FindByID(ctx, model.ChatID("userX", "userY"))
	assert.NoError(t, err)
	for _, uid := range []string{"userX", "userY"} {
		u, err := f.users.FindByID(ctx, uid)
		require.NoError(t, err)
		assert.Equal(t, int64(1), u.SwappedItems, uid)
	}
}

func TestRespond_Guards(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.user(t, "userX", "Xavier")
	f.user(t, "userY", "Yuki")
	lamp := f.item(t, "userX", "Lamp")
	req, err := f.swapSvc.RequestSwap(ctx, "userY", lamp.ID)
	require.NoError(t, err)

	_, err = f.swapSvc.Respond(ctx, "", req.ID, model.SwapApproved)
	assert.ErrorIs(t, err, ErrAuthRequired)
	_, err = f.swapSvc.Respond(ctx, "userY", req.ID, model.SwapApproved)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.swapSvc.Respond(ctx, "userX", req.ID, model.SwapPending)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.swapSvc.Respond(ctx, "userX", "missing", model.SwapApproved)
	assert.ErrorIs(t, err, ErrNotFound)

	n, err := f.notifications.FindByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SwapPending, n.SwapStatus)
}

func TestRespond_DeletedItemKeepsStoredTitle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.user(t, "userX", "Xavier")
	f.user(t, "userY", "Yuki")
	lamp := f.item(t, "userX", "Lamp")
	req, err := f.swapSvc.RequestSwap(ctx, "userY", lamp.ID)
	require.NoError(t, err)
	require.NoError(t, f.itemSvc.Delete(ctx, "userX", lamp.ID))

	res, err := f.swapSvc.Respond(ctx, "userX", req.ID, model.SwapRejected)
	require.NoError(t, err)
	assert.Equal(t, "Lamp", res.Companion.ItemTitle)
}

func TestOutcomeMessage(t *testing.T) {
	assert.Equal(t, `Xavier accepted your swap request for "Lamp". Open the chat for details.`,
		outcomeMessage("Xavier", "Lamp", model.SwapApproved))
	assert.Equal(t, `Xavier rejected your swap request for "Lamp".`,
		outcomeMessage("Xavier", "Lamp", model.SwapRejected))
}
