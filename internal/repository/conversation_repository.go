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

// ConversationRepository handles database operations for conversation threads.
type ConversationRepository struct {
	collection *mongo.Collection
}

func NewConversationRepository(db *mongo.Database) *ConversationRepository {
	return &ConversationRepository{
		collection: db.Collection("conversations"),
	}
}

// Create inserts a new conversation thread.
func (r *ConversationRepository) Create(ctx context.Context, conv *models.Conversation) (*models.Conversation, error) {
	conv.CreatedAt = time.Now()
	conv.UpdatedAt = conv.CreatedAt
	conv.LastMessageAt = conv.CreatedAt

	result, err := r.collection.InsertOne(ctx, conv)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to insert conversation")
		return nil, fmt.Errorf("insert conversation: %w", errdefs.ErrUnavailable)
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return nil, fmt.Errorf("cast inserted conversation ID: %w", errdefs.ErrUnavailable)
	}
	conv.ID = insertedID

	logger.Log.WithField("conversation_id", conv.ID.Hex()).Info("Conversation created")
	return conv, nil
}

// GetByID fetches a conversation by its ID.
func (r *ConversationRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Conversation, error) {
	var conv models.Conversation
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&conv)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("conversation %s: %w", id.Hex(), errdefs.ErrNotFound)
		}
		logger.Log.WithError(err).WithField("conversation_id", id.Hex()).Error("Failed to find conversation")
		return nil, fmt.Errorf("find conversation: %w", errdefs.ErrUnavailable)
	}
	return &conv, nil
}

// ListByRelationships returns all conversations owned by the given
// relationships, most recently active first.
func (r *ConversationRepository) ListByRelationships(ctx context.Context, relationshipIDs []primitive.ObjectID) ([]models.Conversation, error) {
	if len(relationshipIDs) == 0 {
		return nil, nil
	}

	filter := bson.M{"relationship_id": bson.M{"$in": relationshipIDs}}
	opts := options.Find().SetSort(bson.D{{Key: "last_message_at", Value: -1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to list conversations")
		return nil, fmt.Errorf("list conversations: %w", errdefs.ErrUnavailable)
	}
	defer cursor.Close(ctx)

	var conversations []models.Conversation
	for cursor.Next(ctx) {
		var conv models.Conversation
		if err := cursor.Decode(&conv); err != nil {
			return nil, fmt.Errorf("decode conversation: %w", errdefs.ErrUnavailable)
		}
		conversations = append(conversations, conv)
	}
	return conversations, nil
}

// TouchLastMessage bumps last_message_at after a message send.
func (r *ConversationRepository) TouchLastMessage(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"last_message_at": at, "updated_at": at}},
	)
	if err != nil {
		logger.Log.WithError(err).WithField("conversation_id", id.Hex()).Error("Failed to touch conversation")
		return fmt.Errorf("touch conversation: %w", errdefs.ErrUnavailable)
	}
	return nil
}
