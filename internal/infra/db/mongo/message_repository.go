package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainchat "ecoexchange/internal/domain/chat"
)

// MessageRepository is the durable append-only message log backed by a single
// messages collection. Documents are written once; the only update ever issued
// is the is_read false->true transition.
type MessageRepository struct {
	col *mongo.Collection
}

func NewMessageRepository(db *mongo.Database) *MessageRepository {
	return &MessageRepository{col: db.Collection("messages")}
}

// EnsureIndexes creates the indexes the thread scan, inbox reduction and
// unread queries rely on. Safe to call on every startup.
func (r *MessageRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "conversation_key", Value: 1}, {Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}},
		{Keys: bson.D{{Key: "receiver_id", Value: 1}, {Key: "is_read", Value: 1}}},
		{Keys: bson.D{{Key: "sender_id", Value: 1}}},
	})
	return err
}

// Append persists exactly one new record, assigning its id and insertion
// timestamp. The ObjectID's embedded timestamp keeps ids lexicographically
// insertion-ordered, which is the tie-break the thread ordering contract uses.
func (r *MessageRepository) Append(ctx context.Context, m *domainchat.Message) error {
	id := primitive.NewObjectID()
	now := time.Now().UTC().Truncate(time.Millisecond)
	doc := messageDocument{
		ID:              id,
		SenderID:        m.SenderID,
		SenderName:      m.SenderName,
		ReceiverID:      m.ReceiverID,
		ItemID:          m.ItemID,
		ConversationKey: string(m.Key),
		Text:            m.Text,
		IsRead:          false,
		CreatedAt:       now,
	}
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return err
	}
	m.ID = domainchat.MessageID(id.Hex())
	m.CreatedAt = now
	m.IsRead = false
	return nil
}

// ListByKey returns the full thread for a key in ascending (created_at, _id)
// order. Unknown keys yield an empty slice.
func (r *MessageRepository) ListByKey(ctx context.Context, key domainchat.ConversationKey) ([]domainchat.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.col.Find(ctx, bson.M{"conversation_key": string(key)}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	messages := make([]domainchat.Message, 0)
	for cursor.Next(ctx) {
		var doc messageDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		messages = append(messages, doc.toMessage())
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return messages, nil
}

// ThreadHeads reduces the user's messages to the single latest record per
// conversation key, newest first, with the per-key count of messages still
// unread by the user. The reduction runs server-side over the
// (conversation_key, created_at, _id) index instead of scanning the log.
func (r *MessageRepository) ThreadHeads(ctx context.Context, userID string) ([]domainchat.ThreadHead, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"$or": bson.A{
			bson.M{"sender_id": userID},
			bson.M{"receiver_id": userID},
		}}}},
		{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}}},
		{{Key: "$group", Value: bson.M{
			"_id":  "$conversation_key",
			"last": bson.M{"$first": "$$ROOT"},
			"unread": bson.M{"$sum": bson.M{"$cond": bson.A{
				bson.M{"$and": bson.A{
					bson.M{"$eq": bson.A{"$receiver_id", userID}},
					bson.M{"$eq": bson.A{"$is_read", false}},
				}},
				1,
				0,
			}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "last.created_at", Value: -1}, {Key: "last._id", Value: -1}}}},
	}
	cursor, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	heads := make([]domainchat.ThreadHead, 0)
	for cursor.Next(ctx) {
		var row struct {
			Last   messageDocument `bson:"last"`
			Unread int64           `bson:"unread"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, err
		}
		heads = append(heads, domainchat.ThreadHead{Last: row.Last.toMessage(), Unread: row.Unread})
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return heads, nil
}

// CountUnread counts messages addressed to the receiver that are still unread.
func (r *MessageRepository) CountUnread(ctx context.Context, receiverID string) (int64, error) {
	return r.col.CountDocuments(ctx, bson.M{"receiver_id": receiverID, "is_read": false})
}

// MarkRead transitions every unread message from senderID to receiverID to
// read and reports how many rows changed. The filter only matches unread rows,
// so the transition is monotonic and a repeated call matches nothing.
func (r *MessageRepository) MarkRead(ctx context.Context, receiverID, senderID string) (int64, error) {
	res, err := r.col.UpdateMany(ctx,
		bson.M{"receiver_id": receiverID, "sender_id": senderID, "is_read": false},
		bson.M{"$set": bson.M{"is_read": true}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

type messageDocument struct {
	ID              primitive.ObjectID `bson:"_id"`
	SenderID        string             `bson:"sender_id"`
	SenderName      string             `bson:"sender_name,omitempty"`
	ReceiverID      string             `bson:"receiver_id"`
	ItemID          string             `bson:"item_id,omitempty"`
	ConversationKey string             `bson:"conversation_key"`
	Text            string             `bson:"text"`
	IsRead          bool               `bson:"is_read"`
	CreatedAt       time.Time          `bson:"created_at"`
}

func (d messageDocument) toMessage() domainchat.Message {
	return domainchat.Message{
		ID:         domainchat.MessageID(d.ID.Hex()),
		SenderID:   d.SenderID,
		SenderName: d.SenderName,
		ReceiverID: d.ReceiverID,
		ItemID:     d.ItemID,
		Key:        domainchat.ConversationKey(d.ConversationKey),
		Text:       d.Text,
		IsRead:     d.IsRead,
		CreatedAt:  d.CreatedAt.UTC(),
	}
}

var _ domainchat.Repository = (*MessageRepository)(nil)
