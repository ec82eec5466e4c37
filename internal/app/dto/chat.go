package dto

import "time"

// Message is the wire form of one chat message.
type Message struct {
	ID              string    `json:"id"`
	ConversationKey string    `json:"conversation_key"`
	SenderID        string    `json:"sender_id"`
	SenderName      string    `json:"sender_name,omitempty"`
	ReceiverID      string    `json:"receiver_id"`
	ItemID          string    `json:"item_id,omitempty"`
	Text            string    `json:"text"`
	IsRead          bool      `json:"is_read"`
	CreatedAt       time.Time `json:"created_at"`
}

// MessageList is an ordered thread.
type MessageList struct {
	Items []Message `json:"items"`
}

// Conversation is one inbox entry: the latest message of a thread seen from
// the requesting user's side.
type Conversation struct {
	ConversationKey string    `json:"conversation_key"`
	PeerID          string    `json:"peer_id"`
	PeerName        string    `json:"peer_name,omitempty"`
	ItemID          string    `json:"item_id,omitempty"`
	LastMessageID   string    `json:"last_message_id"`
	LastMessageText string    `json:"last_message_text"`
	LastSenderID    string    `json:"last_sender_id"`
	LastMessageAt   time.Time `json:"last_message_at"`
	HasUnread       bool      `json:"has_unread"`
}

// ConversationList is the deduplicated inbox, newest first.
type ConversationList struct {
	Items []Conversation `json:"items"`
}

// UnreadCount is the badge value for a user.
type UnreadCount struct {
	Count int64 `json:"count"`
}

// MarkReadResult acknowledges a read transition.
type MarkReadResult struct {
	PeerID string `json:"peer_id"`
}
