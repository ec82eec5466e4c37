package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInvalidParticipant rejects empty identifiers and self-messaging.
	ErrInvalidParticipant = errors.New("chat: invalid participant")
	// ErrEmptyText rejects messages that are empty after trimming.
	ErrEmptyText = errors.New("chat: text must not be empty")
)

// StorageError wraps a durable-store failure. Operations either complete with
// their invariants intact or fail with one of these and no side effect, so
// callers may retry.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("chat: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// MessageID is assigned by the store at insertion time. IDs are
// lexicographically insertion-ordered, which makes them the tie-break for
// same-timestamp messages.
type MessageID string

// Message is the sole persisted entity. It is immutable once stored except for
// the read flag, which only ever transitions false -> true.
type Message struct {
	ID         MessageID
	SenderID   string
	SenderName string
	ReceiverID string
	ItemID     string
	Key        ConversationKey
	Text       string
	IsRead     bool
	CreatedAt  time.Time
}

// NewMessage validates the participants and text, derives the conversation key
// and returns an unread message ready for appending. ID and CreatedAt are left
// for the store to assign.
func NewMessage(senderID, senderName, receiverID, itemID, text string) (*Message, error) {
	key, err := DeriveKey(senderID, receiverID, itemID)
	if err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	return &Message{
		SenderID:   strings.TrimSpace(senderID),
		SenderName: strings.TrimSpace(senderName),
		ReceiverID: strings.TrimSpace(receiverID),
		ItemID:     strings.TrimSpace(itemID),
		Key:        key,
		Text:       text,
		IsRead:     false,
	}, nil
}

// Before reports whether m sorts ahead of other in thread order:
// ascending CreatedAt, ties broken by ID.
func (m *Message) Before(other *Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.Before(other.CreatedAt)
	}
	return m.ID < other.ID
}

// ThreadHead is the latest message of one conversation plus the number of
// messages in that conversation still unread by the queried user.
type ThreadHead struct {
	Last   Message
	Unread int64
}

// Repository is the append-only message log. Append assigns ID and CreatedAt;
// everything else is a view over what was appended.
type Repository interface {
	Append(ctx context.Context, m *Message) error
	ListByKey(ctx context.Context, key ConversationKey) ([]Message, error)
	ThreadHeads(ctx context.Context, userID string) ([]ThreadHead, error)
	CountUnread(ctx context.Context, receiverID string) (int64, error)
	MarkRead(ctx context.Context, receiverID, senderID string) (int64, error)
}
