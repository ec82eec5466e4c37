package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	domainchat "ecoexchange/internal/domain/chat"
	"ecoexchange/internal/domain/shared/events"
)

// EventPublisher fans a domain event out to collaborators (notifications,
// analytics). Publishing is best effort: a broker failure never fails the
// operation that produced the event.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error
}

const (
	defaultMessageSentTopic = "chat.message.sent"
	threadReadTopic         = "chat.thread.read"
)

// Service implements the messaging core: send, thread, inbox, unread count and
// the read transition. Every view is computed from the append-only message
// log; the service holds no state of its own.
type Service struct {
	Messages  domainchat.Repository
	Publisher EventPublisher
	// Topic overrides the message-sent event topic; empty means the default.
	Topic  string
	Logger *slog.Logger
}

type SendParams struct {
	SenderID   string
	SenderName string
	ReceiverID string
	ItemID     string
	Text       string
}

// Send validates the message, derives its conversation key, appends exactly
// one record and returns it as stored. Concurrent sends to the same
// conversation do not block each other; ordering is settled by the
// (CreatedAt, ID) sort key the store assigns.
func (s *Service) Send(ctx context.Context, params SendParams) (*domainchat.Message, error) {
	if s.Messages == nil {
		return nil, errors.New("chat: message repository not configured")
	}
	message, err := domainchat.NewMessage(params.SenderID, params.SenderName, params.ReceiverID, params.ItemID, params.Text)
	if err != nil {
		return nil, err
	}
	if err := s.Messages.Append(ctx, message); err != nil {
		return nil, &domainchat.StorageError{Op: "append message", Err: err}
	}
	s.publishSent(ctx, message)
	return message, nil
}

// GetThread returns the full ordered history for one conversation key. An
// unknown key is an empty thread, not an error.
func (s *Service) GetThread(ctx context.Context, key domainchat.ConversationKey) ([]domainchat.Message, error) {
	messages, err := s.Messages.ListByKey(ctx, key)
	if err != nil {
		return nil, &domainchat.StorageError{Op: "list thread", Err: err}
	}
	return messages, nil
}

// GetThreadWith derives the key from the caller's perspective and reads the
// thread with that peer under the given item scope.
func (s *Service) GetThreadWith(ctx context.Context, userID, peerID, itemID string) ([]domainchat.Message, error) {
	key, err := domainchat.DeriveKey(userID, peerID, itemID)
	if err != nil {
		return nil, err
	}
	return s.GetThread(ctx, key)
}

// ListConversations returns one summary per conversation the user
// participates in, newest first. Each summary is the single latest message of
// its key, mapped to the other participant.
func (s *Service) ListConversations(ctx context.Context, userID string) ([]domainchat.ConversationSummary, error) {
	heads, err := s.Messages.ThreadHeads(ctx, userID)
	if err != nil {
		return nil, &domainchat.StorageError{Op: "list conversations", Err: err}
	}
	summaries := make([]domainchat.ConversationSummary, 0, len(heads))
	for _, head := range heads {
		summaries = append(summaries, summarize(head, userID))
	}
	return summaries, nil
}

// UnreadCount returns the number of messages addressed to the user that have
// not been marked read. It is a point-in-time snapshot; a concurrent send may
// make it stale by the time it renders.
func (s *Service) UnreadCount(ctx context.Context, userID string) (int64, error) {
	count, err := s.Messages.CountUnread(ctx, userID)
	if err != nil {
		return 0, &domainchat.StorageError{Op: "count unread", Err: err}
	}
	return count, nil
}

// MarkThreadRead flips every unread message from peerID to userID to read.
// Idempotent: a second call transitions zero rows. An unknown peer has no
// unread messages and is likewise a successful no-op.
func (s *Service) MarkThreadRead(ctx context.Context, userID, peerID string) error {
	marked, err := s.Messages.MarkRead(ctx, userID, peerID)
	if err != nil {
		return &domainchat.StorageError{Op: "mark thread read", Err: err}
	}
	if marked > 0 {
		if s.Logger != nil {
			s.Logger.Debug("thread marked read", "user_id", userID, "peer_id", peerID, "marked", marked)
		}
		s.publishEvent(ctx, threadReadTopic, userID, domainchat.ThreadRead{
			ReaderID: userID,
			PeerID:   peerID,
			Marked:   marked,
			At:       time.Now().UTC(),
		})
	}
	return nil
}

// summarize maps a thread head to the requesting user's perspective. Only the
// sender's display name is denormalized onto a message, so PeerName is filled
// when the peer sent the head message and left empty otherwise; callers
// resolve current names through the identity collaborator.
func summarize(head domainchat.ThreadHead, userID string) domainchat.ConversationSummary {
	last := head.Last
	peerID := last.ReceiverID
	peerName := ""
	if last.SenderID != userID {
		peerID = last.SenderID
		peerName = last.SenderName
	}
	return domainchat.ConversationSummary{
		Key:             last.Key,
		PeerID:          peerID,
		PeerName:        peerName,
		ItemID:          last.ItemID,
		LastMessageID:   last.ID,
		LastMessageText: last.Text,
		LastSenderID:    last.SenderID,
		LastMessageAt:   last.CreatedAt,
		HasUnread:       head.Unread > 0,
	}
}

func (s *Service) publishSent(ctx context.Context, message *domainchat.Message) {
	topic := s.Topic
	if topic == "" {
		topic = defaultMessageSentTopic
	}
	s.publishEvent(ctx, topic, string(message.Key), domainchat.MessageSent{
		MessageID:  message.ID,
		Key:        message.Key,
		SenderID:   message.SenderID,
		ReceiverID: message.ReceiverID,
		ItemID:     message.ItemID,
		At:         message.CreatedAt,
	})
}

func (s *Service) publishEvent(ctx context.Context, topic, key string, event events.DomainEvent) {
	if s.Publisher == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		if s.Logger != nil {
			s.Logger.Warn("encode chat event failed", "error", err, "event", event.EventName())
		}
		return
	}
	headers := map[string]string{"event": event.EventName()}
	if err := s.Publisher.Publish(ctx, topic, key, payload, headers); err != nil && s.Logger != nil {
		s.Logger.Warn("publish chat event failed", "error", err, "event", event.EventName(), "topic", topic)
	}
}
