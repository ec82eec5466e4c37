package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	domainchat "ecoexchange/internal/domain/chat"
)

// MessageRepository keeps the message log in memory. Not suitable for
// production; it backs local development and the test suite.
type MessageRepository struct {
	mu       sync.RWMutex
	messages []*domainchat.Message
	seq      uint64
}

func NewMessageRepository() *MessageRepository {
	return &MessageRepository{messages: make([]*domainchat.Message, 0)}
}

// Append assigns a zero-padded hex sequence id, so ids sort lexicographically
// in insertion order just like the durable store's.
func (r *MessageRepository) Append(ctx context.Context, m *domainchat.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	m.ID = domainchat.MessageID(fmt.Sprintf("%016x", r.seq))
	m.CreatedAt = time.Now().UTC()
	m.IsRead = false
	stored := *m
	r.messages = append(r.messages, &stored)
	return nil
}

func (r *MessageRepository) ListByKey(ctx context.Context, key domainchat.ConversationKey) ([]domainchat.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	thread := make([]domainchat.Message, 0)
	for _, m := range r.messages {
		if m.Key == key {
			thread = append(thread, *m)
		}
	}
	sort.Slice(thread, func(i, j int) bool {
		return thread[i].Before(&thread[j])
	})
	return thread, nil
}

func (r *MessageRepository) ThreadHeads(ctx context.Context, userID string) ([]domainchat.ThreadHead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	latest := make(map[domainchat.ConversationKey]*domainchat.Message)
	unread := make(map[domainchat.ConversationKey]int64)
	for _, m := range r.messages {
		if m.SenderID != userID && m.ReceiverID != userID {
			continue
		}
		if current, ok := latest[m.Key]; !ok || current.Before(m) {
			latest[m.Key] = m
		}
		if m.ReceiverID == userID && !m.IsRead {
			unread[m.Key]++
		}
	}
	heads := make([]domainchat.ThreadHead, 0, len(latest))
	for key, m := range latest {
		heads = append(heads, domainchat.ThreadHead{Last: *m, Unread: unread[key]})
	}
	sort.Slice(heads, func(i, j int) bool {
		return heads[j].Last.Before(&heads[i].Last)
	})
	return heads, nil
}

func (r *MessageRepository) CountUnread(ctx context.Context, receiverID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var count int64
	for _, m := range r.messages {
		if m.ReceiverID == receiverID && !m.IsRead {
			count++
		}
	}
	return count, nil
}

func (r *MessageRepository) MarkRead(ctx context.Context, receiverID, senderID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var marked int64
	for _, m := range r.messages {
		if m.ReceiverID == receiverID && m.SenderID == senderID && !m.IsRead {
			m.IsRead = true
			marked++
		}
	}
	return marked, nil
}

var _ domainchat.Repository = (*MessageRepository)(nil)
