package ginserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"ecoexchange/internal/app/dto"
	chatservice "ecoexchange/internal/app/services/chat"
	"ecoexchange/internal/infra/config"
	"ecoexchange/internal/infra/obs"
	"ecoexchange/internal/infra/storage/memory"
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	svc := &chatservice.Service{Messages: memory.NewMessageRepository()}
	server := NewServer(
		config.Config{Env: "test", HTTPAddr: ":0"},
		obs.Middleware{},
		obs.HealthHandlers{},
		Handlers{
			Chat:            ChatHandler{Chat: svc},
			IdentityHandler: IdentityMiddleware{}.Handle,
		},
	)
	return server.Handler
}

func doJSON(t *testing.T, handler http.Handler, method, path, userID, userName string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	if userName != "" {
		req.Header.Set("X-User-Name", userName)
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	return recorder
}

func sendMessage(t *testing.T, handler http.Handler, sender, senderName, receiver, itemID, text string) dto.Message {
	t.Helper()
	res := doJSON(t, handler, http.MethodPost, "/api/v1/messages", sender, senderName, jsonBody{
		"receiver_id": receiver,
		"item_id":     itemID,
		"text":        text,
	})
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	var message dto.Message
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &message))
	return message
}

type jsonBody = map[string]any

func TestChatHandler_Send_RequiresIdentity(t *testing.T) {
	req := require.New(t)
	handler := newTestHandler(t)

	res := doJSON(t, handler, http.MethodPost, "/api/v1/messages", "", "", jsonBody{"receiver_id": "u2", "text": "hi"})
	req.Equal(http.StatusUnauthorized, res.Code)
}

func TestChatHandler_Send_CreatesMessage(t *testing.T) {
	req := require.New(t)
	handler := newTestHandler(t)

	message := sendMessage(t, handler, "u1", "Ann", "u2", "bike-1", "Is this available?")

	req.NotEmpty(message.ID)
	req.Equal("u1", message.SenderID)
	req.Equal("Ann", message.SenderName)
	req.Equal("u2", message.ReceiverID)
	req.Equal("u1:u2:bike-1", message.ConversationKey)
	req.False(message.IsRead)
}

func TestChatHandler_Send_RejectsEmptyTextAndSelfMessage(t *testing.T) {
	req := require.New(t)
	handler := newTestHandler(t)

	res := doJSON(t, handler, http.MethodPost, "/api/v1/messages", "u1", "", jsonBody{"receiver_id": "u2", "text": "   "})
	req.Equal(http.StatusBadRequest, res.Code)

	res = doJSON(t, handler, http.MethodPost, "/api/v1/messages", "u1", "", jsonBody{"receiver_id": "u1", "text": "hi"})
	req.Equal(http.StatusBadRequest, res.Code)
}

func TestChatHandler_Thread_OrderedBothDirections(t *testing.T) {
	req := require.New(t)
	handler := newTestHandler(t)

	sendMessage(t, handler, "u1", "Ann", "u2", "", "Is this available?")
	sendMessage(t, handler, "u2", "Bea", "u1", "", "Yes!")

	res := doJSON(t, handler, http.MethodGet, "/api/v1/messages/thread?peer_id=u2", "u1", "", nil)
	req.Equal(http.StatusOK, res.Code)

	var thread dto.MessageList
	req.NoError(json.Unmarshal(res.Body.Bytes(), &thread))
	req.Len(thread.Items, 2)
	req.Equal("Is this available?", thread.Items[0].Text)
	req.Equal("Yes!", thread.Items[1].Text)

	// Same thread from the peer's side, via the derived key.
	res = doJSON(t, handler, http.MethodGet, "/api/v1/messages/thread?key="+thread.Items[0].ConversationKey, "u2", "", nil)
	req.Equal(http.StatusOK, res.Code)
	var mirrored dto.MessageList
	req.NoError(json.Unmarshal(res.Body.Bytes(), &mirrored))
	req.Equal(thread.Items, mirrored.Items)
}

func TestChatHandler_Thread_RawKeyLimitedToParticipants(t *testing.T) {
	req := require.New(t)
	handler := newTestHandler(t)

	message := sendMessage(t, handler, "u1", "Ann", "u2", "", "between us")

	res := doJSON(t, handler, http.MethodGet, "/api/v1/messages/thread?key="+message.ConversationKey, "u3", "", nil)
	req.Equal(http.StatusForbidden, res.Code)

	res = doJSON(t, handler, http.MethodGet, "/api/v1/messages/thread?key="+message.ConversationKey, "u2", "", nil)
	req.Equal(http.StatusOK, res.Code)
}

func TestChatHandler_Thread_RequiresPeerOrKey(t *testing.T) {
	req := require.New(t)
	handler := newTestHandler(t)

	res := doJSON(t, handler, http.MethodGet, "/api/v1/messages/thread", "u1", "", nil)
	req.Equal(http.StatusBadRequest, res.Code)
}

func TestChatHandler_Conversations_DedupedNewestFirst(t *testing.T) {
	req := require.New(t)
	handler := newTestHandler(t)

	sendMessage(t, handler, "u2", "Bea", "u1", "bike-1", "about the bike")
	sendMessage(t, handler, "u1", "Ann", "u2", "bike-1", "still interested")
	sendMessage(t, handler, "u3", "Cal", "u1", "", "hello")

	res := doJSON(t, handler, http.MethodGet, "/api/v1/messages/conversations", "u1", "", nil)
	req.Equal(http.StatusOK, res.Code)

	var inbox dto.ConversationList
	req.NoError(json.Unmarshal(res.Body.Bytes(), &inbox))
	req.Len(inbox.Items, 2)
	req.Equal("u3", inbox.Items[0].PeerID)
	req.Equal("Cal", inbox.Items[0].PeerName)
	req.True(inbox.Items[0].HasUnread)
	req.Equal("u2", inbox.Items[1].PeerID)
	req.Equal("still interested", inbox.Items[1].LastMessageText)
	req.True(inbox.Items[1].HasUnread)
}

func TestChatHandler_UnreadFlow(t *testing.T) {
	req := require.New(t)
	handler := newTestHandler(t)

	sendMessage(t, handler, "u2", "Bea", "u1", "", "one")
	sendMessage(t, handler, "u2", "Bea", "u1", "", "two")

	res := doJSON(t, handler, http.MethodGet, "/api/v1/messages/unread-count", "u1", "", nil)
	req.Equal(http.StatusOK, res.Code)
	var count dto.UnreadCount
	req.NoError(json.Unmarshal(res.Body.Bytes(), &count))
	req.EqualValues(2, count.Count)

	res = doJSON(t, handler, http.MethodPost, "/api/v1/messages/read", "u1", "", jsonBody{"peer_id": "u2"})
	req.Equal(http.StatusOK, res.Code)

	res = doJSON(t, handler, http.MethodGet, "/api/v1/messages/unread-count", "u1", "", nil)
	req.Equal(http.StatusOK, res.Code)
	req.NoError(json.Unmarshal(res.Body.Bytes(), &count))
	req.Zero(count.Count)
}

func TestChatHandler_MarkRead_RequiresPeer(t *testing.T) {
	req := require.New(t)
	handler := newTestHandler(t)

	res := doJSON(t, handler, http.MethodPost, "/api/v1/messages/read", "u1", "", jsonBody{"peer_id": "  "})
	req.Equal(http.StatusBadRequest, res.Code)
}

func TestChatHandler_MarkRead_UnknownPeerSucceeds(t *testing.T) {
	req := require.New(t)
	handler := newTestHandler(t)

	res := doJSON(t, handler, http.MethodPost, "/api/v1/messages/read", "u1", "", jsonBody{"peer_id": "stranger"})
	req.Equal(http.StatusOK, res.Code)
}
