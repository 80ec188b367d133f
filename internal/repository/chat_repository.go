package repository

import (
	"context"
	"errors"

	"github.com/arfaar/swapfinity/internal/docstore"
	"github.com/arfaar/swapfinity/internal/model"
)

type ChatRepository interface {
	FindByID(ctx context.Context, id string) (*model.ChatChannel, error)
	// FindOrCreate creates the channel for its participants unless it
	// exists. An existing channel is returned untouched.
	FindOrCreate(ctx context.Context, a, b string) (*model.ChatChannel, error)
	ListByParticipant(ctx context.Context, uid string) ([]model.ChatChannel, error)
	CreateMessage(ctx context.Context, chatID string, msg *model.ChatMessage) error
	ListMessages(ctx context.Context, chatID string) ([]model.ChatMessage, error)
	WatchMessages(ctx context.Context, chatID string) (<-chan Snapshot[model.ChatMessage], error)
}

type chatRepository struct {
	store docstore.Store
}

func NewChatRepository(store docstore.Store) ChatRepository {
	return &chatRepository{store: store}
}

func (r *chatRepository) FindByID(ctx context.Context, id string) (*model.ChatChannel, error) {
	doc, err := r.store.Get(ctx, model.CollectionChats, id)
	if err != nil {
		return nil, err
	}
	c := chatFromDoc(*doc)
	return &c, nil
}

func (r *chatRepository) FindOrCreate(ctx context.Context, a, b string) (*model.ChatChannel, error) {
	id := model.ChatID(a, b)
	err := r.store.CreateWithID(ctx, model.CollectionChats, id, map[string]any{
		model.ChatParticipants:    model.SortedPair(a, b),
		model.ChatLastMessage:     model.ChatPlaceholder,
		model.ChatLastMessageTime: docstore.ServerTimestamp,
	})
	if err != nil && !errors.Is(err, docstore.ErrAlreadyExists) {
		return nil, err
	}
	return r.FindByID(ctx, id)
}

func (r *chatRepository) ListByParticipant(ctx context.Context, uid string) ([]model.ChatChannel, error) {
	docs, err := r.store.Query(ctx, model.CollectionChats, docstore.Query{
		Filters: []docstore.Filter{docstore.Where(model.ChatParticipants, docstore.OpArrayContains, uid)},
		OrderBy: model.ChatLastMessageTime,
		Desc:    true,
	})
	if err != nil {
		return nil, err
	}
	return convertAll(docs, chatFromDoc), nil
}

// CreateMessage appends msg with a server timestamp and refreshes the
// channel preview.
func (r *chatRepository) CreateMessage(ctx context.Context, chatID string, msg *model.ChatMessage) error {
	coll := model.MessagesCollection(chatID)
	id, err := r.store.Create(ctx, coll, map[string]any{
		model.MessageSenderID: msg.SenderID,
		model.MessageBody:     msg.Body,
		model.MessageTime:     docstore.ServerTimestamp,
	})
	if err != nil {
		return err
	}
	doc, err := r.store.Get(ctx, coll, id)
	if err != nil {
		return err
	}
	*msg = messageFromDoc(*doc)
	return r.store.Update(ctx, model.CollectionChats, chatID, map[string]any{
		model.ChatLastMessage:     msg.Body,
		model.ChatLastMessageTime: msg.Time,
	})
}

func (r *chatRepository) ListMessages(ctx context.Context, chatID string) ([]model.ChatMessage, error) {
	docs, err := r.store.Query(ctx, model.MessagesCollection(chatID), messageQuery())
	if err != nil {
		return nil, err
	}
	return convertAll(docs, messageFromDoc), nil
}

func (r *chatRepository) WatchMessages(ctx context.Context, chatID string) (<-chan Snapshot[model.ChatMessage], error) {
	in, err := r.store.Subscribe(ctx, model.MessagesCollection(chatID), messageQuery())
	if err != nil {
		return nil, err
	}
	return mapSnapshots(ctx, in, messageFromDoc), nil
}

func messageQuery() docstore.Query {
	return docstore.Query{OrderBy: model.MessageTime}
}

func chatFromDoc(d docstore.Document) model.ChatChannel {
	return model.ChatChannel{
		ID:              d.ID,
		Participants:    d.Strings(model.ChatParticipants),
		LastMessage:     d.String(model.ChatLastMessage),
		LastMessageTime: d.Time(model.ChatLastMessageTime),
	}
}

func messageFromDoc(d docstore.Document) model.ChatMessage {
	return model.ChatMessage{
		ID:       d.ID,
		SenderID: d.String(model.MessageSenderID),
		Body:     d.String(model.MessageBody),
		Time:     d.Time(model.MessageTime),
	}
}
