package chat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveKey_Symmetric(t *testing.T) {
	req := require.New(t)

	forward, err := DeriveKey("u1", "u2", "item-9")
	req.NoError(err)
	backward, err := DeriveKey("u2", "u1", "item-9")
	req.NoError(err)

	req.Equal(forward, backward)
}

func TestDeriveKey_Deterministic(t *testing.T) {
	req := require.New(t)

	first, err := DeriveKey("alice", "bob", "")
	req.NoError(err)
	second, err := DeriveKey("alice", "bob", "")
	req.NoError(err)

	req.Equal(first, second)
}

func TestDeriveKey_GeneralScopeWhenItemAbsent(t *testing.T) {
	req := require.New(t)

	key, err := DeriveKey("u1", "u2", "")
	req.NoError(err)
	req.Equal(ConversationKey("u1:u2:general"), key)
}

func TestDeriveKey_ItemScopeSplitsThreads(t *testing.T) {
	req := require.New(t)

	general, err := DeriveKey("u1", "u2", "")
	req.NoError(err)
	itemA, err := DeriveKey("u1", "u2", "item-a")
	req.NoError(err)
	itemB, err := DeriveKey("u1", "u2", "item-b")
	req.NoError(err)

	req.NotEqual(general, itemA)
	req.NotEqual(general, itemB)
	req.NotEqual(itemA, itemB)
}

func TestDeriveKey_RejectsInvalidParticipants(t *testing.T) {
	req := require.New(t)

	_, err := DeriveKey("", "u2", "")
	req.ErrorIs(err, ErrInvalidParticipant)

	_, err = DeriveKey("u1", "  ", "")
	req.ErrorIs(err, ErrInvalidParticipant)

	_, err = DeriveKey("u1", "u1", "item-1")
	req.ErrorIs(err, ErrInvalidParticipant)
}

func TestConversationKey_HasParticipant(t *testing.T) {
	req := require.New(t)

	key, err := DeriveKey("u1", "u10", "item-4")
	req.NoError(err)

	req.True(key.HasParticipant("u1"))
	req.True(key.HasParticipant("u10"))

	// Exact segment match only: no prefix confusion, no scope match.
	req.False(key.HasParticipant("u"))
	req.False(key.HasParticipant("u100"))
	req.False(key.HasParticipant("item-4"))
	req.False(key.HasParticipant(""))

	req.False(ConversationKey("malformed").HasParticipant("malformed"))
}

func TestNewMessage_DerivesKeyAndStartsUnread(t *testing.T) {
	req := require.New(t)

	message, err := NewMessage("u2", "Bea", "u1", "item-3", "  Is this available?  ")
	req.NoError(err)

	req.Equal(ConversationKey("u1:u2:item-3"), message.Key)
	req.Equal("Is this available?", message.Text)
	req.False(message.IsRead)
	req.Empty(message.ID)
	req.True(message.CreatedAt.IsZero())
}

func TestNewMessage_RejectsEmptyText(t *testing.T) {
	req := require.New(t)

	_, err := NewMessage("u1", "Ann", "u2", "", "   ")
	req.ErrorIs(err, ErrEmptyText)
}

func TestNewMessage_RejectsSelfMessage(t *testing.T) {
	req := require.New(t)

	_, err := NewMessage("u1", "Ann", "u1", "", "hello me")
	req.ErrorIs(err, ErrInvalidParticipant)
}

func TestMessage_Before_TiesBrokenByID(t *testing.T) {
	req := require.New(t)

	earlier := Message{ID: "0000000000000001"}
	later := Message{ID: "0000000000000002"}

	req.True(earlier.Before(&later))
	req.False(later.Before(&earlier))
}
