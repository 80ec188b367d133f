package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/arfaar/swapfinity/internal/docstore"
	"github.com/arfaar/swapfinity/internal/identity"
	"github.com/arfaar/swapfinity/internal/logging"
	"github.com/arfaar/swapfinity/internal/model"
	"github.com/arfaar/swapfinity/internal/repository"
)

type fixture struct {
	store         *docstore.MemoryStore
	clock         func() time.Time
	items         repository.ItemRepository
	users         repository.UserRepository
	notifications repository.NotificationRepository
	chatRepo      repository.ChatRepository

	itemSvc  ItemService
	favSvc   FavoriteService
	swapSvc  SwapService
	notifSvc NotificationService
	chatSvc  ChatService
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWith(t, func(s docstore.Store) docstore.Store { return s })
}

// newFixtureWith builds the services over wrap(store) so tests can inject
// store failures while still inspecting the underlying documents.
func newFixtureWith(t *testing.T, wrap func(docstore.Store) docstore.Store) *fixture {
	t.Helper()
	var mu sync.Mutex
	cur := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		cur = cur.Add(time.Second)
		return cur
	}
	mem := docstore.NewMemoryStore(docstore.WithClock(clock))
	store := wrap(mem)
	log := logging.Discard()

	f := &fixture{
		store:         mem,
		clock:         clock,
		items:         repository.NewItemRepository(store),
		users:         repository.NewUserRepository(store),
		notifications: repository.NewNotificationRepository(store),
		chatRepo:      repository.NewChatRepository(store),
	}
	f.itemSvc = NewItemService(f.items, f.users, 4, log)
	f.favSvc = NewFavoriteService(f.users, f.items, 4, log)
	f.chatSvc = NewChatService(f.chatRepo, f.users, 4, log)
	requests := repository.NewSwapRequestRepository(store)
	swap := NewSwapService(f.items, f.users, f.notifications, requests, f.chatSvc, log).(*swapService)
	swap.now = clock
	f.swapSvc = swap
	f.notifSvc = NewNotificationService(f.notifications, requests, f.items, 4, log)
	return f
}

func (f *fixture) user(t *testing.T, id, name string) {
	t.Helper()
	require.NoError(t, f.users.Create(context.Background(), &model.UserProfile{ID: id, Name: name, Email: id + "@example.com"}))
}

func (f *fixture) item(t *testing.T, owner, title string) *model.Item {
	t.Helper()
	item, err := f.itemSvc.Post(context.Background(), owner, ItemInput{
		Title:       title,
		Description: "Barely used",
		LookingFor:  "Anything useful",
		Image:       "https://img.example.com/" + title,
		Category:    "Others",
	})
	require.NoError(t, err)
	return item
}

func (f *fixture) count(t *testing.T, coll string) int {
	t.Helper()
	docs, err := f.store.Query(context.Background(), coll, docstore.Query{})
	require.NoError(t, err)
	return len(docs)
}

type mockProvider struct {
	mock.Mock
}

var _ identity.Provider = (*mockProvider)(nil)

func (m *mockProvider) VerifyToken(ctx context.Context, token string) (*identity.Identity, error) {
	args := m.Called(ctx, token)
	id, _ := args.Get(0).(*identity.Identity)
	return id, args.Error(1)
}

func (m *mockProvider) Register(ctx context.Context, email, password, displayName string) (*identity.Identity, error) {
	args := m.Called(ctx, email, password, displayName)
	id, _ := args.Get(0).(*identity.Identity)
	return id, args.Error(1)
}

func (m *mockProvider) SignIn(ctx context.Context, email, password string) (*identity.Session, error) {
	args := m.Called(ctx, email, password)
	sess, _ := args.Get(0).(*identity.Session)
	return sess, args.Error(1)
}

func (m *mockProvider) SignOut(ctx context.Context, uid string) error {
	return m.Called(ctx, uid).Error(0)
}

func (m *mockProvider) Lookup(ctx context.Context, uid string) (*identity.Identity, error) {
	args := m.Called(ctx, uid)
	id, _ := args.Get(0).(*identity.Identity)
	return id, args.Error(1)
}

func (m *mockProvider) ChangePassword(ctx context.Context, uid, newPassword string) error {
	return m.Called(ctx, uid, newPassword).Error(0)
}

func (m *mockProvider) DeleteUser(ctx context.Context, uid string) error {
	return m.Called(ctx, uid).Error(0)
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	var zero T
	return zero
}
