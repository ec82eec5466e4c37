package chat

import (
	"sort"
	"strings"
	"time"
)

// GeneralScope is the item slot used when a thread is not tied to a catalog item.
const GeneralScope = "general"

const keySeparator = ":"

// ConversationKey is the durable identity of a thread: the same for both
// directions of a participant pair, distinct per item scope.
type ConversationKey string

// DeriveKey canonicalizes the unordered participant pair and the optional item
// scope into a conversation key. It is pure: equal inputs always produce equal
// keys, and DeriveKey(a, b, i) == DeriveKey(b, a, i).
func DeriveKey(userA, userB, itemID string) (ConversationKey, error) {
	userA = strings.TrimSpace(userA)
	userB = strings.TrimSpace(userB)
	if userA == "" || userB == "" {
		return "", ErrInvalidParticipant
	}
	if userA == userB {
		return "", ErrInvalidParticipant
	}
	pair := []string{userA, userB}
	sort.Strings(pair)
	scope := strings.TrimSpace(itemID)
	if scope == "" {
		scope = GeneralScope
	}
	return ConversationKey(pair[0] + keySeparator + pair[1] + keySeparator + scope), nil
}

// HasParticipant reports whether userID is one of the two participants the key
// was derived from. Malformed keys have no participants.
func (k ConversationKey) HasParticipant(userID string) bool {
	if userID == "" {
		return false
	}
	parts := strings.SplitN(string(k), keySeparator, 3)
	if len(parts) != 3 {
		return false
	}
	return parts[0] == userID || parts[1] == userID
}

// ConversationSummary is the inbox view of one thread: the latest message per
// conversation key, mapped to the requesting user's perspective.
type ConversationSummary struct {
	Key    ConversationKey
	PeerID string
	// PeerName is the display name denormalized on the latest message when the
	// peer sent it; empty when the requesting user spoke last.
	PeerName string
	ItemID          string
	LastMessageID   MessageID
	LastMessageText string
	LastSenderID    string
	LastMessageAt   time.Time
	HasUnread       bool
}
