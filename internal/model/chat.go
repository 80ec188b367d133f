package model

import (
	"sort"
	"strings"
	"time"
)

const CollectionChats = "chats"

const (
	ChatParticipants    = "participants"
	ChatLastMessage     = "lastMessage"
	ChatLastMessageTime = "lastMessageTime"

	MessageSenderID = "senderID"
	MessageBody     = "message"
	MessageTime     = "time"
)

// ChatPlaceholder is the last-message preview of a channel nobody wrote in yet.
const ChatPlaceholder = "Say hi and discuss the swap!"

const chatIDSeparator = "_"

type ChatChannel struct {
	ID              string
	Participants    []string
	LastMessage     string
	LastMessageTime time.Time
}

func (c *ChatChannel) HasParticipant(uid string) bool {
	for _, p := range c.Participants {
		if p == uid {
			return true
		}
	}
	return false
}

// Peer returns the participant that is not uid.
func (c *ChatChannel) Peer(uid string) string {
	for _, p := range c.Participants {
		if p != uid {
			return p
		}
	}
	return ""
}

type ChatMessage struct {
	ID       string
	SenderID string
	Body     string
	Time     time.Time
}

// ChatID is the channel id for a pair of users, independent of argument order.
func ChatID(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, chatIDSeparator)
}

// SortedPair returns a and b in the order ChatID joins them.
func SortedPair(a, b string) []string {
	if b < a {
		return []string{b, a}
	}
	return []string{a, b}
}

func MessagesCollection(chatID string) string {
	return CollectionChats + "/" + chatID + "/messages"
}
