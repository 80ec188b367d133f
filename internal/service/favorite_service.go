package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/arfaar/swapfinity/internal/docstore"
	"github.com/arfaar/swapfinity/internal/model"
	"github.com/arfaar/swapfinity/internal/repository"
)

type FavoriteService interface {
	// Toggle removes itemID from uid's favorites when present and adds it
	// otherwise. It reports whether the item is a favorite afterwards.
	Toggle(ctx context.Context, uid, itemID string) (bool, error)
	Add(ctx context.Context, uid, itemID string) error
	Remove(ctx context.Context, uid, itemID string) error
	// List returns the favorited items that still exist.
	List(ctx context.Context, uid string) ([]model.Item, error)
}

type favoriteService struct {
	users   repository.UserRepository
	items   repository.ItemRepository
	lookups lookups
	log     *slog.Logger
}

func NewFavoriteService(users repository.UserRepository, items repository.ItemRepository, fanout int, log *slog.Logger) FavoriteService {
	log = log.With("service", "favorite")
	return &favoriteService{
		users:   users,
		items:   items,
		lookups: lookups{users: users, items: items, limit: fanout, log: log},
		log:     log,
	}
}

func (s *favoriteService) Toggle(ctx context.Context, uid, itemID string) (bool, error) {
	if uid == "" {
		return false, errLoginRequired
	}
	u, err := s.users.FindByID(ctx, uid)
	if err != nil {
		return false, notFound(err, "user profile not found")
	}
	if u.HasFavorite(itemID) {
		return false, s.remove(ctx, uid, itemID)
	}
	return true, s.add(ctx, uid, itemID)
}

func (s *favoriteService) Add(ctx context.Context, uid, itemID string) error {
	if uid == "" {
		return errLoginRequired
	}
	return s.add(ctx, uid, itemID)
}

func (s *favoriteService) Remove(ctx context.Context, uid, itemID string) error {
	if uid == "" {
		return errLoginRequired
	}
	return s.remove(ctx, uid, itemID)
}

func (s *favoriteService) add(ctx context.Context, uid, itemID string) error {
	if _, err := s.items.FindByID(ctx, itemID); err != nil {
		return notFound(err, "post not found")
	}
	return notFound(s.users.AddFavorite(ctx, uid, itemID), "user profile not found")
}

func (s *favoriteService) remove(ctx context.Context, uid, itemID string) error {
	return notFound(s.users.RemoveFavorite(ctx, uid, itemID), "user profile not found")
}

func (s *favoriteService) List(ctx context.Context, uid string) ([]model.Item, error) {
	if uid == "" {
		return nil, errLoginRequired
	}
	u, err := s.users.FindByID(ctx, uid)
	if err != nil {
		return nil, notFound(err, "user profile not found")
	}
	found := make([]*model.Item, len(u.Favorites))
	s.lookups.batch(len(u.Favorites), func(i int) {
		item, err := s.items.FindByID(ctx, u.Favorites[i])
		switch {
		case errors.Is(err, docstore.ErrNotFound):
		case err != nil:
			s.log.Warn("favorite lookup failed", "item_id", u.Favorites[i], "error", err)
		default:
			found[i] = item
		}
	})
	out := make([]model.Item, 0, len(found))
	for _, it := range found {
		if it != nil {
			out = append(out, *it)
		}
	}
	return out, nil
}
