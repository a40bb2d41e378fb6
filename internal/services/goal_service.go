package services

import (
	"context"
	"fmt"
	"time"

	"github.com/askhat-b/MentorLink/internal/models"
	"github.com/askhat-b/MentorLink/pkg/logger"
	"github.com/containerd/errdefs"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// recentProgressLimit is how many history entries a listed goal carries.
const recentProgressLimit = 10

// GoalStore is implemented by repository.GoalRepository.
type GoalStore interface {
	CreateGoal(ctx context.Context, goal *models.Goal) (*models.Goal, error)
	GetGoalByID(ctx context.Context, id primitive.ObjectID) (*models.Goal, error)
	UpdateGoal(ctx context.Context, id primitive.ObjectID, set bson.M) (*models.Goal, error)
	ListGoals(ctx context.Context, clientID primitive.ObjectID, professionalID *primitive.ObjectID) ([]models.Goal, error)
	InsertProgress(ctx context.Context, entry *models.GoalProgress) (*models.GoalProgress, error)
	RecentProgress(ctx context.Context, goalID primitive.ObjectID, limit int64) ([]models.GoalProgress, error)
}

// GoalService owns goal definitions and their append-only progress log.
// Completion metrics are never stored: they are folded from the log at read
// time, latest entry wins.
type GoalService struct {
	repo GoalStore
}

func NewGoalService(repo GoalStore) *GoalService {
	return &GoalService{repo: repo}
}

// CreateGoal stores a new goal. The current value always starts at zero
// regardless of input, because it only ever comes from progress entries.
func (s *GoalService) CreateGoal(ctx context.Context, goal *models.Goal) (*models.GoalWithProgress, error) {
	if goal.Title == "" {
		return nil, fmt.Errorf("goal title is required: %w", errdefs.ErrInvalidArgument)
	}
	if goal.ClientID.IsZero() {
		return nil, fmt.Errorf("goal client is required: %w", errdefs.ErrInvalidArgument)
	}
	if goal.Status == "" {
		goal.Status = models.GoalActive
	}
	if !models.AllowedGoalStatuses[goal.Status] {
		return nil, fmt.Errorf("unknown goal status %q: %w", goal.Status, errdefs.ErrInvalidArgument)
	}
	if goal.Priority == "" {
		goal.Priority = models.PriorityMedium
	}
	if !models.AllowedPriorities[goal.Priority] {
		return nil, fmt.Errorf("unknown goal priority %q: %w", goal.Priority, errdefs.ErrInvalidArgument)
	}

	created, err := s.repo.CreateGoal(ctx, goal)
	if err != nil {
		return nil, err
	}
	return &models.GoalWithProgress{
		Goal:           *created,
		RecentProgress: []models.GoalProgress{},
	}, nil
}

// UpdateGoal applies a patch. Goal status moves are unrestricted: any status
// may follow any other, including leaving "completed".
func (s *GoalService) UpdateGoal(ctx context.Context, id primitive.ObjectID, patch models.GoalPatch) (*models.GoalWithProgress, error) {
	set := bson.M{}
	if patch.Status != "" {
		if !models.AllowedGoalStatuses[patch.Status] {
			return nil, fmt.Errorf("unknown goal status %q: %w", patch.Status, errdefs.ErrInvalidArgument)
		}
		set["status"] = patch.Status
	}
	if patch.Title != "" {
		set["title"] = patch.Title
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	if patch.TargetValue != nil {
		set["target_value"] = *patch.TargetValue
	}
	if patch.Unit != nil {
		set["unit"] = *patch.Unit
	}
	if patch.TargetDate != nil {
		set["target_date"] = *patch.TargetDate
	}
	if patch.Priority != "" {
		if !models.AllowedPriorities[patch.Priority] {
			return nil, fmt.Errorf("unknown goal priority %q: %w", patch.Priority, errdefs.ErrInvalidArgument)
		}
		set["priority"] = patch.Priority
	}
	if len(set) == 0 {
		return nil, fmt.Errorf("empty goal patch: %w", errdefs.ErrInvalidArgument)
	}

	updated, err := s.repo.UpdateGoal(ctx, id, set)
	if err != nil {
		return nil, err
	}
	return s.enrich(ctx, updated)
}

// RecordProgress appends one entry to the goal's log. The goal row itself is
// untouched; readers derive the current value from the latest entry.
func (s *GoalService) RecordProgress(ctx context.Context, goalID, recordedBy primitive.ObjectID, value float64, notes string, recordedAt time.Time) (*models.GoalProgress, error) {
	if _, err := s.repo.GetGoalByID(ctx, goalID); err != nil {
		return nil, err
	}

	entry := &models.GoalProgress{
		GoalID:     goalID,
		RecordedBy: recordedBy,
		Value:      value,
		Notes:      notes,
		RecordedAt: recordedAt,
	}
	created, err := s.repo.InsertProgress(ctx, entry)
	if err != nil {
		return nil, err
	}

	logger.Log.WithFields(map[string]interface{}{
		"goal_id": goalID.Hex(),
		"value":   value,
	}).Info("Goal progress recorded")
	return created, nil
}

// GetGoal returns a single goal with derived completion metrics.
func (s *GoalService) GetGoal(ctx context.Context, id primitive.ObjectID) (*models.GoalWithProgress, error) {
	goal, err := s.repo.GetGoalByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.enrich(ctx, goal)
}

// ListGoals returns the client's goals, each enriched with the derived current
// value, clamped completion percentage, and recent history newest first.
func (s *GoalService) ListGoals(ctx context.Context, clientID primitive.ObjectID, professionalID *primitive.ObjectID) ([]models.GoalWithProgress, error) {
	goals, err := s.repo.ListGoals(ctx, clientID, professionalID)
	if err != nil {
		return nil, err
	}

	enriched := make([]models.GoalWithProgress, 0, len(goals))
	for i := range goals {
		g, err := s.enrich(ctx, &goals[i])
		if err != nil {
			return nil, err
		}
		enriched = append(enriched, *g)
	}
	return enriched, nil
}

func (s *GoalService) enrich(ctx context.Context, goal *models.Goal) (*models.GoalWithProgress, error) {
	entries, err := s.repo.RecentProgress(ctx, goal.ID, recentProgressLimit)
	if err != nil {
		return nil, err
	}

	result := &models.GoalWithProgress{
		Goal:           *goal,
		RecentProgress: entries,
	}
	if result.RecentProgress == nil {
		result.RecentProgress = []models.GoalProgress{}
	}
	if len(entries) > 0 {
		result.CurrentValue = entries[0].Value
	}
	result.ProgressPercentage = models.ProgressPercentage(result.CurrentValue, goal.TargetValue)
	return result, nil
}
