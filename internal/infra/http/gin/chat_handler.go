package ginserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"ecoexchange/internal/app/dto"
	chatservice "ecoexchange/internal/app/services/chat"
	domainchat "ecoexchange/internal/domain/chat"
)

// ChatHTTP exposes the messaging endpoints.
type ChatHTTP interface {
	Send(c *gin.Context)
	Thread(c *gin.Context)
	Conversations(c *gin.Context)
	UnreadCount(c *gin.Context)
	MarkRead(c *gin.Context)
}

// ChatHandler bridges HTTP with the chat service.
type ChatHandler struct {
	Chat   *chatservice.Service
	Logger *slog.Logger
}

// Send posts a message from the current user to a receiver, optionally scoped
// to a catalog item.
func (h ChatHandler) Send(c *gin.Context) {
	caller, ok := requirePrincipal(c)
	if !ok {
		return
	}
	var req struct {
		ReceiverID string `json:"receiver_id"`
		ItemID     string `json:"item_id"`
		Text       string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	message, err := h.Chat.Send(c.Request.Context(), chatservice.SendParams{
		SenderID:   caller.ID,
		SenderName: caller.Name,
		ReceiverID: strings.TrimSpace(req.ReceiverID),
		ItemID:     strings.TrimSpace(req.ItemID),
		Text:       req.Text,
	})
	if err != nil {
		h.respondChatError(c, err, "send message", "user_id", caller.ID, "receiver_id", req.ReceiverID)
		return
	}
	c.JSON(http.StatusCreated, toMessageDTO(*message))
}

// Thread returns the ordered history with a peer. The conversation key may be
// passed directly or derived from peer_id and item_id. Reading a thread does
// not touch read state; clients call MarkRead explicitly.
func (h ChatHandler) Thread(c *gin.Context) {
	caller, ok := requirePrincipal(c)
	if !ok {
		return
	}
	var (
		key domainchat.ConversationKey
		err error
	)
	if raw := strings.TrimSpace(c.Query("key")); raw != "" {
		key = domainchat.ConversationKey(raw)
		if !key.HasParticipant(caller.ID) {
			c.JSON(http.StatusForbidden, gin.H{"error": "not a conversation participant"})
			return
		}
	} else {
		peerID := strings.TrimSpace(c.Query("peer_id"))
		if peerID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "peer_id or key is required"})
			return
		}
		key, err = domainchat.DeriveKey(caller.ID, peerID, strings.TrimSpace(c.Query("item_id")))
		if err != nil {
			h.respondChatError(c, err, "derive key", "user_id", caller.ID, "peer_id", peerID)
			return
		}
	}
	messages, err := h.Chat.GetThread(c.Request.Context(), key)
	if err != nil {
		h.respondChatError(c, err, "list thread", "user_id", caller.ID, "conversation_key", string(key))
		return
	}
	collection := dto.MessageList{Items: make([]dto.Message, 0, len(messages))}
	for _, msg := range messages {
		collection.Items = append(collection.Items, toMessageDTO(msg))
	}
	c.JSON(http.StatusOK, collection)
}

// Conversations returns the caller's inbox: one entry per thread, newest first.
func (h ChatHandler) Conversations(c *gin.Context) {
	caller, ok := requirePrincipal(c)
	if !ok {
		return
	}
	summaries, err := h.Chat.ListConversations(c.Request.Context(), caller.ID)
	if err != nil {
		h.respondChatError(c, err, "list conversations", "user_id", caller.ID)
		return
	}
	collection := dto.ConversationList{Items: make([]dto.Conversation, 0, len(summaries))}
	for _, s := range summaries {
		collection.Items = append(collection.Items, dto.Conversation{
			ConversationKey: string(s.Key),
			PeerID:          s.PeerID,
			PeerName:        s.PeerName,
			ItemID:          s.ItemID,
			LastMessageID:   string(s.LastMessageID),
			LastMessageText: s.LastMessageText,
			LastSenderID:    s.LastSenderID,
			LastMessageAt:   s.LastMessageAt,
			HasUnread:       s.HasUnread,
		})
	}
	c.JSON(http.StatusOK, collection)
}

// UnreadCount returns the caller's unread badge value.
func (h ChatHandler) UnreadCount(c *gin.Context) {
	caller, ok := requirePrincipal(c)
	if !ok {
		return
	}
	count, err := h.Chat.UnreadCount(c.Request.Context(), caller.ID)
	if err != nil {
		h.respondChatError(c, err, "count unread", "user_id", caller.ID)
		return
	}
	c.JSON(http.StatusOK, dto.UnreadCount{Count: count})
}

// MarkRead flips every unread message from the given peer to read. Unknown
// peers transition zero rows and still succeed.
func (h ChatHandler) MarkRead(c *gin.Context) {
	caller, ok := requirePrincipal(c)
	if !ok {
		return
	}
	var req struct {
		PeerID string `json:"peer_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	req.PeerID = strings.TrimSpace(req.PeerID)
	if req.PeerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "peer_id is required"})
		return
	}
	if err := h.Chat.MarkThreadRead(c.Request.Context(), caller.ID, req.PeerID); err != nil {
		h.respondChatError(c, err, "mark read", "user_id", caller.ID, "peer_id", req.PeerID)
		return
	}
	c.JSON(http.StatusOK, dto.MarkReadResult{PeerID: req.PeerID})
}

func (h ChatHandler) respondChatError(c *gin.Context, err error, action string, attrs ...any) {
	if h.Logger != nil {
		h.Logger.Error("chat call failed", append([]any{"action", action, "error", err}, attrs...)...)
	}
	var storageErr *domainchat.StorageError
	switch {
	case errors.Is(err, domainchat.ErrInvalidParticipant):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid participant"})
	case errors.Is(err, domainchat.ErrEmptyText):
		c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
	case errors.As(err, &storageErr):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "message store unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func requirePrincipal(c *gin.Context) (principal, bool) {
	p, ok := currentPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return principal{}, false
	}
	return p, true
}

func toMessageDTO(m domainchat.Message) dto.Message {
	return dto.Message{
		ID:              string(m.ID),
		ConversationKey: string(m.Key),
		SenderID:        m.SenderID,
		SenderName:      m.SenderName,
		ReceiverID:      m.ReceiverID,
		ItemID:          m.ItemID,
		Text:            m.Text,
		IsRead:          m.IsRead,
		CreatedAt:       m.CreatedAt,
	}
}

var _ ChatHTTP = (*ChatHandler)(nil)
