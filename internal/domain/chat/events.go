package chat

import (
	"time"

	"ecoexchange/internal/domain/shared/events"
)

type MessageSent struct {
	MessageID  MessageID
	Key        ConversationKey
	SenderID   string
	ReceiverID string
	ItemID     string
	At         time.Time
}

func (e MessageSent) EventName() string     { return "chat.message_sent" }
func (e MessageSent) AggregateID() string   { return string(e.Key) }
func (e MessageSent) OccurredAt() time.Time { return e.At }

type ThreadRead struct {
	ReaderID string
	PeerID   string
	Marked   int64
	At       time.Time
}

func (e ThreadRead) EventName() string     { return "chat.thread_read" }
func (e ThreadRead) AggregateID() string   { return e.ReaderID }
func (e ThreadRead) OccurredAt() time.Time { return e.At }

var (
	_ events.DomainEvent = MessageSent{}
	_ events.DomainEvent = ThreadRead{}
)
