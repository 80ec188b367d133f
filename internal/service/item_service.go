package service

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/arfaar/swapfinity/internal/model"
	"github.com/arfaar/swapfinity/internal/repository"
)

const maxTitleLen = 120

// ItemInput carries the owner-editable fields of an item.
type ItemInput struct {
	Title       string
	Description string
	LookingFor  string
	Image       string
	Category    string
}

// FeedItem is an item annotated for the viewing user.
type FeedItem struct {
	model.Item
	IsFavorited bool
}

type ItemService interface {
	Post(ctx context.Context, uid string, in ItemInput) (*model.Item, error)
	Get(ctx context.Context, uid, id string) (*FeedItem, error)
	Feed(ctx context.Context, uid, category string) ([]FeedItem, error)
	Search(ctx context.Context, uid, query string) ([]FeedItem, error)
	ListMine(ctx context.Context, uid string) ([]model.Item, error)
	Update(ctx context.Context, uid, id string, in ItemInput) (*model.Item, error)
	// Delete removes an item owned by uid and drops it from every favorites set.
	Delete(ctx context.Context, uid, id string) error
	Watch(ctx context.Context, category string) (<-chan repository.Snapshot[model.Item], error)
}

type itemService struct {
	items   repository.ItemRepository
	users   repository.UserRepository
	lookups lookups
	log     *slog.Logger
}

func NewItemService(items repository.ItemRepository, users repository.UserRepository, fanout int, log *slog.Logger) ItemService {
	log = log.With("service", "item")
	return &itemService{
		items:   items,
		users:   users,
		lookups: lookups{users: users, items: items, limit: fanout, log: log},
		log:     log,
	}
}

func (in ItemInput) normalize() (ItemInput, model.Category, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.LookingFor = strings.TrimSpace(in.LookingFor)
	in.Image = strings.TrimSpace(in.Image)
	category, ok := model.ParseCategory(in.Category)

	var v validator
	v.check(in.Title != "", "title", "is required")
	v.check(utf8.RuneCountInString(in.Title) <= maxTitleLen, "title", "must be at most 120 characters")
	v.check(in.Description != "", "description", "is required")
	v.check(in.LookingFor != "", "whatTheyAreLookingFor", "is required")
	v.check(in.Image != "", "image", "is required")
	v.check(!strings.HasPrefix(in.Image, "data:"), "image", "must be a URL, not a data URI")
	v.check(ok, "category", "must be one of Books, Small Appliances, Toys, Accessories, Others")
	return in, category, v.err()
}

func (s *itemService) Post(ctx context.Context, uid string, in ItemInput) (*model.Item, error) {
	if uid == "" {
		return nil, errLoginRequired
	}
	in, category, err := in.normalize()
	if err != nil {
		return nil, err
	}
	owner, err := s.users.FindByID(ctx, uid)
	if err != nil {
		return nil, notFound(err, "user profile not found")
	}
	item := &model.Item{
		Title:          in.Title,
		Description:    in.Description,
		LookingFor:     in.LookingFor,
		Image:          in.Image,
		Category:       category,
		UserID:         uid,
		UserName:       owner.Name,
		UserProfilePic: owner.ProfilePicture,
	}
	if err := s.items.Create(ctx, item); err != nil {
		return nil, err
	}
	s.log.Info("item posted", "item_id", item.ID, "uid", uid)
	return item, nil
}

func (s *itemService) Get(ctx context.Context, uid, id string) (*FeedItem, error) {
	item, err := s.items.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "post not found")
	}
	out := s.annotate(ctx, uid, []model.Item{*item})
	return &out[0], nil
}

func (s *itemService) Feed(ctx context.Context, uid, category string) ([]FeedItem, error) {
	var cat model.Category
	if strings.TrimSpace(category) != "" {
		c, ok := model.ParseCategory(category)
		if !ok {
			return nil, NewValidationError("category", "unknown category")
		}
		cat = c
	}
	items, err := s.items.List(ctx, cat)
	if err != nil {
		return nil, err
	}
	return s.annotate(ctx, uid, items), nil
}

// Search matches titles case-insensitively. An empty query matches nothing.
func (s *itemService) Search(ctx context.Context, uid, query string) ([]FeedItem, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return []FeedItem{}, nil
	}
	items, err := s.items.List(ctx, "")
	if err != nil {
		return nil, err
	}
	matched := make([]model.Item, 0, len(items))
	for _, it := range items {
		if strings.Contains(strings.ToLower(it.Title), query) {
			matched = append(matched, it)
		}
	}
	return s.annotate(ctx, uid, matched), nil
}

func (s *itemService) ListMine(ctx context.Context, uid string) ([]model.Item, error) {
	if uid == "" {
		return nil, errLoginRequired
	}
	return s.items.ListByUser(ctx, uid)
}

func (s *itemService) Update(ctx context.Context, uid, id string, in ItemInput) (*model.Item, error) {
	if uid == "" {
		return nil, errLoginRequired
	}
	item, err := s.owned(ctx, uid, id)
	if err != nil {
		return nil, err
	}
	in, category, err := in.normalize()
	if err != nil {
		return nil, err
	}
	item.Title = in.Title
	item.Description = in.Description
	item.LookingFor = in.LookingFor
	item.Image = in.Image
	item.Category = category
	if err := s.items.UpdateDetails(ctx, item); err != nil {
		return nil, notFound(err, "post not found")
	}
	return item, nil
}

func (s *itemService) Delete(ctx context.Context, uid, id string) error {
	if uid == "" {
		return errLoginRequired
	}
	if _, err := s.owned(ctx, uid, id); err != nil {
		return err
	}
	if err := s.items.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("item deleted", "item_id", id, "uid", uid)
	s.dropFromFavorites(ctx, id)
	return nil
}

func (s *itemService) Watch(ctx context.Context, category string) (<-chan repository.Snapshot[model.Item], error) {
	var cat model.Category
	if strings.TrimSpace(category) != "" {
		c, ok := model.ParseCategory(category)
		if !ok {
			return nil, NewValidationError("category", "unknown category")
		}
		cat = c
	}
	return s.items.Watch(ctx, cat)
}

func (s *itemService) owned(ctx context.Context, uid, id string) (*model.Item, error) {
	item, err := s.items.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "post not found")
	}
	if item.UserID != uid {
		return nil, newError(ErrForbidden, "only the owner can change this post")
	}
	return item, nil
}

// dropFromFavorites is best effort; stale ids left behind are skipped on read.
func (s *itemService) dropFromFavorites(ctx context.Context, itemID string) {
	fans, err := s.users.ListByFavorite(ctx, itemID)
	if err != nil {
		s.log.Warn("favorites cleanup: query failed", "item_id", itemID, "error", err)
		return
	}
	s.lookups.batch(len(fans), func(i int) {
		if err := s.users.RemoveFavorite(ctx, fans[i].ID, itemID); err != nil {
			s.log.Warn("favorites cleanup failed", "item_id", itemID, "uid", fans[i].ID, "error", err)
		}
	})
}

func (s *itemService) annotate(ctx context.Context, uid string, items []model.Item) []FeedItem {
	var viewer *model.UserProfile
	if uid != "" {
		u, err := s.users.FindByID(ctx, uid)
		if err != nil {
			s.log.Warn("viewer lookup failed", "uid", uid, "error", err)
		} else {
			viewer = u
		}
	}
	out := make([]FeedItem, 0, len(items))
	for _, it := range items {
		out = append(out, FeedItem{Item: it, IsFavorited: viewer != nil && viewer.HasFavorite(it.ID)})
	}
	return out
}
