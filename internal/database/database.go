package database

import (
	"context"
	"fmt"
	"time"

	"github.com/askhat-b/MentorLink/internal/config"
	"github.com/askhat-b/MentorLink/pkg/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ConnectDB establishes the MongoDB connection and bootstraps indexes.
// The returned handle is injected into every repository at startup; there is
// no lazily-initialized global client.
func ConnectDB(cfg *config.Config) (*mongo.Database, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %v", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %v", err)
	}

	db := client.Database(cfg.DBName)
	if err := EnsureIndexes(ctx, db); err != nil {
		return nil, err
	}

	logger.Log.WithField("db", cfg.DBName).Info("Connected to MongoDB")
	return db, nil
}

// EnsureIndexes creates the indexes the core invariants depend on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	// At most one pending/active relationship per (professional, client) pair.
	// A partial unique index makes concurrent creates race on the index,
	// not on a read-then-write check.
	_, err := db.Collection("relationships").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "professional_id", Value: 1},
			{Key: "client_id", Value: 1},
		},
		Options: options.Index().
			SetUnique(true).
			SetPartialFilterExpression(bson.M{
				"status": bson.M{"$in": []string{"pending", "active"}},
			}),
	})
	if err != nil {
		return fmt.Errorf("failed to create relationship pair index: %v", err)
	}

	_, err = db.Collection("messages").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "conversation_id", Value: 1},
			{Key: "created_at", Value: 1},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create message index: %v", err)
	}

	_, err = db.Collection("goal_progress").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "goal_id", Value: 1},
			{Key: "recorded_at", Value: -1},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create goal progress index: %v", err)
	}

	return nil
}
