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

// GoalRepository handles database operations for goals and their append-only
// progress log.
type GoalRepository struct {
	goals    *mongo.Collection
	progress *mongo.Collection
}

func NewGoalRepository(db *mongo.Database) *GoalRepository {
	return &GoalRepository{
		goals:    db.Collection("goals"),
		progress: db.Collection("goal_progress"),
	}
}

// CreateGoal inserts a new goal.
func (r *GoalRepository) CreateGoal(ctx context.Context, goal *models.Goal) (*models.Goal, error) {
	goal.CreatedAt = time.Now()
	goal.UpdatedAt = goal.CreatedAt

	result, err := r.goals.InsertOne(ctx, goal)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to insert goal")
		return nil, fmt.Errorf("insert goal: %w", errdefs.ErrUnavailable)
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return nil, fmt.Errorf("cast inserted goal ID: %w", errdefs.ErrUnavailable)
	}
	goal.ID = insertedID

	logger.Log.WithField("goal_id", goal.ID.Hex()).Info("Goal created")
	return goal, nil
}

// GetGoalByID fetches a goal by its ID.
func (r *GoalRepository) GetGoalByID(ctx context.Context, id primitive.ObjectID) (*models.Goal, error) {
	var goal models.Goal
	err := r.goals.FindOne(ctx, bson.M{"_id": id}).Decode(&goal)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("goal %s: %w", id.Hex(), errdefs.ErrNotFound)
		}
		logger.Log.WithError(err).WithField("goal_id", id.Hex()).Error("Failed to find goal")
		return nil, fmt.Errorf("find goal: %w", errdefs.ErrUnavailable)
	}
	return &goal, nil
}

// UpdateGoal applies a field patch and returns the updated document.
func (r *GoalRepository) UpdateGoal(ctx context.Context, id primitive.ObjectID, set bson.M) (*models.Goal, error) {
	set["updated_at"] = time.Now()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.Goal
	err := r.goals.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("goal %s: %w", id.Hex(), errdefs.ErrNotFound)
		}
		logger.Log.WithError(err).WithField("goal_id", id.Hex()).Error("Failed to update goal")
		return nil, fmt.Errorf("update goal: %w", errdefs.ErrUnavailable)
	}

	logger.Log.WithField("goal_id", id.Hex()).Info("Goal updated")
	return &updated, nil
}

// ListGoals returns goals for a client, optionally narrowed to one professional,
// newest first.
func (r *GoalRepository) ListGoals(ctx context.Context, clientID primitive.ObjectID, professionalID *primitive.ObjectID) ([]models.Goal, error) {
	filter := bson.M{"client_id": clientID}
	if professionalID != nil {
		filter["professional_id"] = *professionalID
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := r.goals.Find(ctx, filter, opts)
	if err != nil {
		logger.Log.WithError(err).WithField("client_id", clientID.Hex()).Error("Failed to list goals")
		return nil, fmt.Errorf("list goals: %w", errdefs.ErrUnavailable)
	}
	defer cursor.Close(ctx)

	var goals []models.Goal
	for cursor.Next(ctx) {
		var goal models.Goal
		if err := cursor.Decode(&goal); err != nil {
			return nil, fmt.Errorf("decode goal: %w", errdefs.ErrUnavailable)
		}
		goals = append(goals, goal)
	}
	return goals, nil
}

// ListGoalsDueBefore returns active goals whose target date falls inside
// (now, cutoff]. Used by the reminder job.
func (r *GoalRepository) ListGoalsDueBefore(ctx context.Context, cutoff time.Time) ([]models.Goal, error) {
	filter := bson.M{
		"status":      models.GoalActive,
		"target_date": bson.M{"$gt": time.Now(), "$lte": cutoff},
	}
	cursor, err := r.goals.Find(ctx, filter)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to list goals due soon")
		return nil, fmt.Errorf("list goals due soon: %w", errdefs.ErrUnavailable)
	}
	defer cursor.Close(ctx)

	var goals []models.Goal
	for cursor.Next(ctx) {
		var goal models.Goal
		if err := cursor.Decode(&goal); err != nil {
			return nil, fmt.Errorf("decode goal: %w", errdefs.ErrUnavailable)
		}
		goals = append(goals, goal)
	}
	return goals, nil
}

// InsertProgress appends one progress entry. The log is append-only: entries
// are never updated or deleted, so concurrent records cannot conflict.
func (r *GoalRepository) InsertProgress(ctx context.Context, entry *models.GoalProgress) (*models.GoalProgress, error) {
	entry.CreatedAt = time.Now()
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = entry.CreatedAt
	}

	result, err := r.progress.InsertOne(ctx, entry)
	if err != nil {
		logger.Log.WithError(err).WithField("goal_id", entry.GoalID.Hex()).Error("Failed to insert goal progress")
		return nil, fmt.Errorf("insert goal progress: %w", errdefs.ErrUnavailable)
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return nil, fmt.Errorf("cast inserted progress ID: %w", errdefs.ErrUnavailable)
	}
	entry.ID = insertedID
	return entry, nil
}

// RecentProgress returns the newest limit progress entries for a goal, ordered
// by (recorded_at, _id) descending. Insertion order breaks ties, so the head
// of the result is the entry that defines the goal's current value.
func (r *GoalRepository) RecentProgress(ctx context.Context, goalID primitive.ObjectID, limit int64) ([]models.GoalProgress, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "recorded_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(limit)

	cursor, err := r.progress.Find(ctx, bson.M{"goal_id": goalID}, opts)
	if err != nil {
		logger.Log.WithError(err).WithField("goal_id", goalID.Hex()).Error("Failed to list goal progress")
		return nil, fmt.Errorf("list goal progress: %w", errdefs.ErrUnavailable)
	}
	defer cursor.Close(ctx)

	var entries []models.GoalProgress
	for cursor.Next(ctx) {
		var entry models.GoalProgress
		if err := cursor.Decode(&entry); err != nil {
			return nil, fmt.Errorf("decode goal progress: %w", errdefs.ErrUnavailable)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
