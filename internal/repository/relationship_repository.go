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

// RelationshipRepository handles database operations for mentoring relationships.
type RelationshipRepository struct {
	collection *mongo.Collection
}

func NewRelationshipRepository(db *mongo.Database) *RelationshipRepository {
	return &RelationshipRepository{
		collection: db.Collection("relationships"),
	}
}

// Create inserts a new relationship. The partial unique index on
// (professional_id, client_id, status in pending/active) turns a concurrent
// duplicate into a storage-level conflict instead of a read-then-write race.
func (r *RelationshipRepository) Create(ctx context.Context, rel *models.Relationship) (*models.Relationship, error) {
	rel.CreatedAt = time.Now()
	rel.UpdatedAt = rel.CreatedAt

	result, err := r.collection.InsertOne(ctx, rel)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("relationship for this pair already pending or active: %w", errdefs.ErrConflict)
		}
		logger.Log.WithError(err).Error("Failed to insert relationship")
		return nil, fmt.Errorf("insert relationship: %w", errdefs.ErrUnavailable)
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return nil, fmt.Errorf("cast inserted relationship ID: %w", errdefs.ErrUnavailable)
	}
	rel.ID = insertedID

	logger.Log.WithField("relationship_id", rel.ID.Hex()).Info("Relationship created")
	return rel, nil
}

// GetByID fetches a relationship by its ID.
func (r *RelationshipRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Relationship, error) {
	var rel models.Relationship
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&rel)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("relationship %s: %w", id.Hex(), errdefs.ErrNotFound)
		}
		logger.Log.WithError(err).WithField("relationship_id", id.Hex()).Error("Failed to find relationship")
		return nil, fmt.Errorf("find relationship: %w", errdefs.ErrUnavailable)
	}
	return &rel, nil
}

// UpdateStatus performs a compare-and-set of the status field: the update only
// applies while the stored status still equals fromStatus. Returns the updated
// document, or ErrNotFound when the CAS did not match (caller distinguishes
// missing vs stale by re-reading).
func (r *RelationshipRepository) UpdateStatus(ctx context.Context, id primitive.ObjectID, fromStatus string, set bson.M) (*models.Relationship, error) {
	set["updated_at"] = time.Now()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.Relationship
	err := r.collection.FindOneAndUpdate(
		ctx,
		bson.M{"_id": id, "status": fromStatus},
		bson.M{"$set": set},
		opts,
	).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("relationship %s with status %s: %w", id.Hex(), fromStatus, errdefs.ErrNotFound)
		}
		logger.Log.WithError(err).WithField("relationship_id", id.Hex()).Error("Failed to update relationship status")
		return nil, fmt.Errorf("update relationship: %w", errdefs.ErrUnavailable)
	}

	logger.Log.WithFields(map[string]interface{}{
		"relationship_id": id.Hex(),
		"status":          updated.Status,
	}).Info("Relationship status updated")
	return &updated, nil
}

// UpdateNotes patches the notes field without touching the lifecycle.
func (r *RelationshipRepository) UpdateNotes(ctx context.Context, id primitive.ObjectID, notes string) (*models.Relationship, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.Relationship
	err := r.collection.FindOneAndUpdate(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"notes": notes, "updated_at": time.Now()}},
		opts,
	).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("relationship %s: %w", id.Hex(), errdefs.ErrNotFound)
		}
		logger.Log.WithError(err).WithField("relationship_id", id.Hex()).Error("Failed to update relationship notes")
		return nil, fmt.Errorf("update relationship notes: %w", errdefs.ErrUnavailable)
	}
	return &updated, nil
}

// ListByIdentity returns relationships where the identity is either party,
// newest first.
func (r *RelationshipRepository) ListByIdentity(ctx context.Context, identityID primitive.ObjectID) ([]models.Relationship, error) {
	filter := bson.M{
		"$or": []bson.M{
			{"professional_id": identityID},
			{"client_id": identityID},
		},
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		logger.Log.WithError(err).WithField("identity_id", identityID.Hex()).Error("Failed to list relationships")
		return nil, fmt.Errorf("list relationships: %w", errdefs.ErrUnavailable)
	}
	defer cursor.Close(ctx)

	var relationships []models.Relationship
	for cursor.Next(ctx) {
		var rel models.Relationship
		if err := cursor.Decode(&rel); err != nil {
			return nil, fmt.Errorf("decode relationship: %w", errdefs.ErrUnavailable)
		}
		relationships = append(relationships, rel)
	}
	return relationships, nil
}

// ListStalePending returns pending relationships created before the cutoff.
func (r *RelationshipRepository) ListStalePending(ctx context.Context, cutoff time.Time) ([]models.Relationship, error) {
	filter := bson.M{
		"status":     models.RelationshipPending,
		"created_at": bson.M{"$lt": cutoff},
	}
	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to list stale pending relationships")
		return nil, fmt.Errorf("list stale relationships: %w", errdefs.ErrUnavailable)
	}
	defer cursor.Close(ctx)

	var relationships []models.Relationship
	for cursor.Next(ctx) {
		var rel models.Relationship
		if err := cursor.Decode(&rel); err != nil {
			return nil, fmt.Errorf("decode relationship: %w", errdefs.ErrUnavailable)
		}
		relationships = append(relationships, rel)
	}
	return relationships, nil
}
