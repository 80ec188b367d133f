package model

import "time"

const (
	CollectionNotifications = "notifications"
	// CollectionSwapRequests holds one marker per requester and item while a
	// request is open.
	CollectionSwapRequests = "swapRequests"
)

const (
	NotificationSenderID      = "senderID"
	NotificationSenderName    = "senderName"
	NotificationReceiverID    = "receiverID"
	NotificationReceiverName  = "receiverName"
	NotificationPostID        = "postID"
	NotificationItemTitle     = "itemTitle"
	NotificationMessage       = "message"
	NotificationMessageStatus = "messageStatus"
	NotificationSwapStatus    = "swapStatus"
	NotificationTimestamp     = "timestamp"
)

const (
	SwapRequestSenderID       = "senderID"
	SwapRequestPostID         = "postID"
	SwapRequestNotificationID = "notificationID"
	SwapRequestCreatedAt      = "createdAt"
)

type SwapStatus string

const (
	SwapPending  SwapStatus = "pending"
	SwapApproved SwapStatus = "approved"
	SwapRejected SwapStatus = "rejected"
)

// Terminal reports whether no further transition is allowed.
func (s SwapStatus) Terminal() bool {
	return s == SwapApproved || s == SwapRejected
}

type MessageStatus string

const (
	MessageUnread MessageStatus = "unread"
	MessageRead   MessageStatus = "read"
)

// SwapNotification records a swap proposal (sender = requester, receiver =
// item owner) or, role-reversed, the owner's answer to one. Names and the
// item title are captured when the record is written.
type SwapNotification struct {
	ID            string
	SenderID      string
	SenderName    string
	ReceiverID    string
	ReceiverName  string
	PostID        string
	ItemTitle     string
	Message       string
	MessageStatus MessageStatus
	SwapStatus    SwapStatus
	Timestamp     time.Time
}

// ResponseID is the id of the owner's answer to the request notification id.
// There is at most one answer per request.
func ResponseID(requestID string) string {
	return requestID + "-response"
}

// SwapRequestID keys the open-request marker of requester on item.
func SwapRequestID(requesterID, itemID string) string {
	return requesterID + "_" + itemID
}

// SwapRequestMarker claims the right to have one pending request per
// requester and item. NotificationID points at the request it guards.
type SwapRequestMarker struct {
	ID             string
	SenderID       string
	PostID         string
	NotificationID string
	CreatedAt      time.Time
}
