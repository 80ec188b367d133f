package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/arfaar/swapfinity/internal/model"
	"github.com/arfaar/swapfinity/internal/repository"
)

type ChatSummary struct {
	model.ChatChannel
	PeerID   string
	PeerName string
}

type MessageView struct {
	model.ChatMessage
	SenderName string
}

type ChatService interface {
	// OpenOrCreate returns the channel of a and b, creating it on first use.
	// Argument order does not matter.
	OpenOrCreate(ctx context.Context, a, b string) (*model.ChatChannel, error)
	// Send appends body to the channel. A blank body is ignored and yields
	// a nil message.
	Send(ctx context.Context, chatID, senderID, body string) (*model.ChatMessage, error)
	List(ctx context.Context, uid string) ([]ChatSummary, error)
	Messages(ctx context.Context, uid, chatID string) ([]MessageView, error)
	Watch(ctx context.Context, uid, chatID string) (<-chan repository.Snapshot[MessageView], error)
}

type chatService struct {
	chats   repository.ChatRepository
	users   repository.UserRepository
	lookups lookups
	log     *slog.Logger
}

func NewChatService(chats repository.ChatRepository, users repository.UserRepository, fanout int, log *slog.Logger) ChatService {
	log = log.With("service", "chat")
	return &chatService{
		chats:   chats,
		users:   users,
		lookups: lookups{users: users, limit: fanout, log: log},
		log:     log,
	}
}

func (s *chatService) OpenOrCreate(ctx context.Context, a, b string) (*model.ChatChannel, error) {
	if a == "" {
		return nil, errLoginRequired
	}
	if b == "" || a == b {
		return nil, NewValidationError("userID", "must name another user")
	}
	if _, err := s.users.FindByID(ctx, b); err != nil {
		return nil, notFound(err, "user not found")
	}
	return s.chats.FindOrCreate(ctx, a, b)
}

func (s *chatService) Send(ctx context.Context, chatID, senderID, body string) (*model.ChatMessage, error) {
	if senderID == "" {
		return nil, errLoginRequired
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, nil
	}
	if _, err := s.member(ctx, senderID, chatID); err != nil {
		return nil, err
	}
	msg := &model.ChatMessage{SenderID: senderID, Body: body}
	if err := s.chats.CreateMessage(ctx, chatID, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *chatService) List(ctx context.Context, uid string) ([]ChatSummary, error) {
	if uid == "" {
		return nil, errLoginRequired
	}
	chats, err := s.chats.ListByParticipant(ctx, uid)
	if err != nil {
		return nil, err
	}
	peers := make([]string, 0, len(chats))
	for _, c := range chats {
		peers = append(peers, c.Peer(uid))
	}
	names := s.lookups.names(ctx, peers)
	out := make([]ChatSummary, 0, len(chats))
	for i, c := range chats {
		out = append(out, ChatSummary{ChatChannel: c, PeerID: peers[i], PeerName: names[peers[i]]})
	}
	return out, nil
}

func (s *chatService) Messages(ctx context.Context, uid, chatID string) ([]MessageView, error) {
	if _, err := s.member(ctx, uid, chatID); err != nil {
		return nil, err
	}
	msgs, err := s.chats.ListMessages(ctx, chatID)
	if err != nil {
		return nil, err
	}
	return s.withNames(ctx, msgs), nil
}

func (s *chatService) Watch(ctx context.Context, uid, chatID string) (<-chan repository.Snapshot[MessageView], error) {
	if _, err := s.member(ctx, uid, chatID); err != nil {
		return nil, err
	}
	in, err := s.chats.WatchMessages(ctx, chatID)
	if err != nil {
		return nil, err
	}
	out := make(chan repository.Snapshot[MessageView], 1)
	go func() {
		defer close(out)
		for snap := range in {
			next := repository.Snapshot[MessageView]{Err: snap.Err}
			if snap.Err == nil {
				next.Items = s.withNames(ctx, snap.Items)
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

func (s *chatService) member(ctx context.Context, uid, chatID string) (*model.ChatChannel, error) {
	if uid == "" {
		return nil, errLoginRequired
	}
	chat, err := s.chats.FindByID(ctx, chatID)
	if err != nil {
		return nil, notFound(err, "chat not found")
	}
	if !chat.HasParticipant(uid) {
		return nil, newError(ErrForbidden, "not a participant of this chat")
	}
	return chat, nil
}

func (s *chatService) withNames(ctx context.Context, msgs []model.ChatMessage) []MessageView {
	senders := make([]string, 0, len(msgs))
	for _, m := range msgs {
		senders = append(senders, m.SenderID)
	}
	names := s.lookups.names(ctx, senders)
	out := make([]MessageView, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, MessageView{ChatMessage: m, SenderName: names[m.SenderID]})
	}
	return out
}
