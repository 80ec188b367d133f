package repository

import (
	"context"

	"github.com/arfaar/swapfinity/internal/docstore"
	"github.com/arfaar/swapfinity/internal/model"
)

type UserRepository interface {
	Create(ctx context.Context, u *model.UserProfile) error
	FindByID(ctx context.Context, uid string) (*model.UserProfile, error)
	UpdateName(ctx context.Context, uid, name string) error
	SetProfilePicture(ctx context.Context, uid string, url *string) error
	AddFavorite(ctx context.Context, uid, itemID string) error
	RemoveFavorite(ctx context.Context, uid, itemID string) error
	IncrementSwapped(ctx context.Context, uid string) error
	ListByFavorite(ctx context.Context, itemID string) ([]model.UserProfile, error)
	Watch(ctx context.Context, uid string) (<-chan DocSnapshot[model.UserProfile], error)
}

type userRepository struct {
	store docstore.Store
}

func NewUserRepository(store docstore.Store) UserRepository {
	return &userRepository{store: store}
}

func (r *userRepository) Create(ctx context.Context, u *model.UserProfile) error {
	favorites := u.Favorites
	if favorites == nil {
		favorites = []string{}
	}
	return r.store.SetMerge(ctx, model.CollectionUsers, u.ID, map[string]any{
		model.UserName:           u.Name,
		model.UserEmail:          u.Email,
		model.UserFavorites:      favorites,
		model.UserSwappedItems:   u.SwappedItems,
		model.UserProfilePicture: u.ProfilePicture,
	})
}

func (r *userRepository) FindByID(ctx context.Context, uid string) (*model.UserProfile, error) {
	doc, err := r.store.Get(ctx, model.CollectionUsers, uid)
	if err != nil {
		return nil, err
	}
	u := userFromDoc(*doc)
	return &u, nil
}

func (r *userRepository) UpdateName(ctx context.Context, uid, name string) error {
	return r.store.Update(ctx, model.CollectionUsers, uid, map[string]any{model.UserName: name})
}

// SetProfilePicture stores url, or clears the picture when url is nil.
func (r *userRepository) SetProfilePicture(ctx context.Context, uid string, url *string) error {
	return r.store.Update(ctx, model.CollectionUsers, uid, map[string]any{model.UserProfilePicture: url})
}

func (r *userRepository) AddFavorite(ctx context.Context, uid, itemID string) error {
	return r.store.ArrayAdd(ctx, model.CollectionUsers, uid, model.UserFavorites, itemID)
}

func (r *userRepository) RemoveFavorite(ctx context.Context, uid, itemID string) error {
	return r.store.ArrayRemove(ctx, model.CollectionUsers, uid, model.UserFavorites, itemID)
}

func (r *userRepository) IncrementSwapped(ctx context.Context, uid string) error {
	return r.store.Increment(ctx, model.CollectionUsers, uid, model.UserSwappedItems, 1)
}

func (r *userRepository) ListByFavorite(ctx context.Context, itemID string) ([]model.UserProfile, error) {
	docs, err := r.store.Query(ctx, model.CollectionUsers, docstore.Query{
		Filters: []docstore.Filter{docstore.Where(model.UserFavorites, docstore.OpArrayContains, itemID)},
	})
	if err != nil {
		return nil, err
	}
	return convertAll(docs, userFromDoc), nil
}

func (r *userRepository) Watch(ctx context.Context, uid string) (<-chan DocSnapshot[model.UserProfile], error) {
	in, err := r.store.SubscribeDoc(ctx, model.CollectionUsers, uid)
	if err != nil {
		return nil, err
	}
	return mapDocSnapshots(ctx, in, userFromDoc), nil
}

func userFromDoc(d docstore.Document) model.UserProfile {
	return model.UserProfile{
		ID:             d.ID,
		Name:           d.String(model.UserName),
		Email:          d.String(model.UserEmail),
		Favorites:      d.Strings(model.UserFavorites),
		SwappedItems:   d.Int(model.UserSwappedItems),
		ProfilePicture: d.StringPtr(model.UserProfilePicture),
	}
}
