package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/askhat-b/MentorLink/internal/models"
	"github.com/askhat-b/MentorLink/pkg/logger"
	"github.com/containerd/errdefs"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MessageRepository handles database operations for messages.
type MessageRepository struct {
	collection *mongo.Collection
}

func NewMessageRepository(db *mongo.Database) *MessageRepository {
	return &MessageRepository{
		collection: db.Collection("messages"),
	}
}

// Insert persists a new message. Messages are immutable after this point
// except for the one-shot read receipt.
func (r *MessageRepository) Insert(ctx context.Context, msg *models.Message) (*models.Message, error) {
	msg.CreatedAt = time.Now()

	result, err := r.collection.InsertOne(ctx, msg)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to insert message")
		return nil, fmt.Errorf("insert message: %w", errdefs.ErrUnavailable)
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return nil, fmt.Errorf("cast inserted message ID: %w", errdefs.ErrUnavailable)
	}
	msg.ID = insertedID
	return msg, nil
}

// GetByID fetches a message by its ID.
func (r *MessageRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Message, error) {
	var msg models.Message
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&msg)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("message %s: %w", id.Hex(), errdefs.ErrNotFound)
		}
		logger.Log.WithError(err).WithField("message_id", id.Hex()).Error("Failed to find message")
		return nil, fmt.Errorf("find message: %w", errdefs.ErrUnavailable)
	}
	return &msg, nil
}

// MarkRead sets read_at once. Returns the message after the attempt; a message
// already read is left untouched (read receipts never revert).
func (r *MessageRepository) MarkRead(ctx context.Context, id primitive.ObjectID, at time.Time) (*models.Message, error) {
	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id, "read_at": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{"read_at": at}},
	)
	if err != nil {
		logger.Log.WithError(err).WithField("message_id", id.Hex()).Error("Failed to mark message read")
		return nil, fmt.Errorf("mark message read: %w", errdefs.ErrUnavailable)
	}

	// Matched 0 either because the message is absent or already read; the
	// re-read distinguishes the two.
	return r.GetByID(ctx, id)
}

// ListLatest returns the most recent limit messages of a conversation in
// ascending (created_at, _id) order: fetched newest-first, then reversed.
func (r *MessageRepository) ListLatest(ctx context.Context, conversationID primitive.ObjectID, limit int64) ([]models.Message, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(limit)

	cursor, err := r.collection.Find(ctx, bson.M{"conversation_id": conversationID}, opts)
	if err != nil {
		logger.Log.WithError(err).WithField("conversation_id", conversationID.Hex()).Error("Failed to list messages")
		return nil, fmt.Errorf("list messages: %w", errdefs.ErrUnavailable)
	}
	defer cursor.Close(ctx)

	var messages []models.Message
	for cursor.Next(ctx) {
		var msg models.Message
		if err := cursor.Decode(&msg); err != nil {
			return nil, fmt.Errorf("decode message: %w", errdefs.ErrUnavailable)
		}
		messages = append(messages, msg)
	}

	// Reverse into chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// Latest returns the newest message of a conversation, or nil when empty.
func (r *MessageRepository) Latest(ctx context.Context, conversationID primitive.ObjectID) (*models.Message, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})

	var msg models.Message
	err := r.collection.FindOne(ctx, bson.M{"conversation_id": conversationID}, opts).Decode(&msg)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		logger.Log.WithError(err).WithField("conversation_id", conversationID.Hex()).Error("Failed to fetch latest message")
		return nil, fmt.Errorf("latest message: %w", errdefs.ErrUnavailable)
	}
	return &msg, nil
}

// CountUnread counts messages in the conversation sent by others that the
// identity has not read yet.
func (r *MessageRepository) CountUnread(ctx context.Context, conversationID, identityID primitive.ObjectID) (int64, error) {
	filter := bson.M{
		"conversation_id": conversationID,
		"sender_id":       bson.M{"$ne": identityID},
		"read_at":         bson.M{"$exists": false},
	}
	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		logger.Log.WithError(err).WithField("conversation_id", conversationID.Hex()).Error("Failed to count unread messages")
		return 0, fmt.Errorf("count unread: %w", errdefs.ErrUnavailable)
	}
	return count, nil
}
