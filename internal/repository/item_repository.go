package repository

import (
	"context"

	"github.com/arfaar/swapfinity/internal/docstore"
	"github.com/arfaar/swapfinity/internal/model"
)

type ItemRepository interface {
	Create(ctx context.Context, item *model.Item) error
	FindByID(ctx context.Context, id string) (*model.Item, error)
	List(ctx context.Context, category model.Category) ([]model.Item, error)
	ListByUser(ctx context.Context, uid string) ([]model.Item, error)
	UpdateDetails(ctx context.Context, item *model.Item) error
	MarkSwapRequested(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	Watch(ctx context.Context, category model.Category) (<-chan Snapshot[model.Item], error)
}

type itemRepository struct {
	store docstore.Store
}

func NewItemRepository(store docstore.Store) ItemRepository {
	return &itemRepository{store: store}
}

func (r *itemRepository) Create(ctx context.Context, item *model.Item) error {
	id, err := r.store.Create(ctx, model.CollectionItems, map[string]any{
		model.ItemTitle:          item.Title,
		model.ItemDescription:    item.Description,
		model.ItemLookingFor:     item.LookingFor,
		model.ItemImage:          item.Image,
		model.ItemCategory:       string(item.Category),
		model.ItemUserID:         item.UserID,
		model.ItemUserName:       item.UserName,
		model.ItemUserProfilePic: item.UserProfilePic,
		model.ItemPostedAt:       docstore.ServerTimestamp,
		model.ItemSwapRequested:  false,
	})
	if err != nil {
		return err
	}
	created, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	*item = *created
	return nil
}

func (r *itemRepository) FindByID(ctx context.Context, id string) (*model.Item, error) {
	doc, err := r.store.Get(ctx, model.CollectionItems, id)
	if err != nil {
		return nil, err
	}
	item := itemFromDoc(*doc)
	return &item, nil
}

func (r *itemRepository) List(ctx context.Context, category model.Category) ([]model.Item, error) {
	docs, err := r.store.Query(ctx, model.CollectionItems, itemQuery(category))
	if err != nil {
		return nil, err
	}
	return convertAll(docs, itemFromDoc), nil
}

func (r *itemRepository) ListByUser(ctx context.Context, uid string) ([]model.Item, error) {
	docs, err := r.store.Query(ctx, model.CollectionItems, docstore.Query{
		Filters: []docstore.Filter{docstore.Where(model.ItemUserID, docstore.OpEqual, uid)},
		OrderBy: model.ItemPostedAt,
		Desc:    true,
	})
	if err != nil {
		return nil, err
	}
	return convertAll(docs, itemFromDoc), nil
}

// UpdateDetails writes the owner-editable fields. The owner id is never written.
func (r *itemRepository) UpdateDetails(ctx context.Context, item *model.Item) error {
	return r.store.Update(ctx, model.CollectionItems, item.ID, map[string]any{
		model.ItemTitle:       item.Title,
		model.ItemDescription: item.Description,
		model.ItemLookingFor:  item.LookingFor,
		model.ItemImage:       item.Image,
		model.ItemCategory:    string(item.Category),
	})
}

func (r *itemRepository) MarkSwapRequested(ctx context.Context, id string) error {
	return r.store.Update(ctx, model.CollectionItems, id, map[string]any{
		model.ItemSwapRequested: true,
	})
}

func (r *itemRepository) Delete(ctx context.Context, id string) error {
	return r.store.Delete(ctx, model.CollectionItems, id)
}

func (r *itemRepository) Watch(ctx context.Context, category model.Category) (<-chan Snapshot[model.Item], error) {
	in, err := r.store.Subscribe(ctx, model.CollectionItems, itemQuery(category))
	if err != nil {
		return nil, err
	}
	return mapSnapshots(ctx, in, itemFromDoc), nil
}

func itemQuery(category model.Category) docstore.Query {
	q := docstore.Query{OrderBy: model.ItemPostedAt, Desc: true}
	if category != "" {
		q.Filters = append(q.Filters, docstore.Where(model.ItemCategory, docstore.OpEqual, string(category)))
	}
	return q
}

func itemFromDoc(d docstore.Document) model.Item {
	return model.Item{
		ID:             d.ID,
		Title:          d.String(model.ItemTitle),
		Description:    d.String(model.ItemDescription),
		LookingFor:     d.String(model.ItemLookingFor),
		Image:          d.String(model.ItemImage),
		Category:       model.Category(d.String(model.ItemCategory)),
		UserID:         d.String(model.ItemUserID),
		UserName:       d.String(model.ItemUserName),
		UserProfilePic: d.StringPtr(model.ItemUserProfilePic),
		PostedAt:       d.Time(model.ItemPostedAt),
		SwapRequested:  d.Bool(model.ItemSwapRequested),
	}
}
