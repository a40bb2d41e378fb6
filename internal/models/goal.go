package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	GoalActive    = "active"
	GoalCompleted = "completed"
	GoalPaused    = "paused"
	GoalCancelled = "cancelled"
)

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// AllowedGoalStatuses is the full status set. Unlike relationships, goal
// status moves are unrestricted: any status may follow any other.
var AllowedGoalStatuses = map[string]bool{
	GoalActive:    true,
	GoalCompleted: true,
	GoalPaused:    true,
	GoalCancelled: true,
}

var AllowedPriorities = map[string]bool{
	PriorityLow:    true,
	PriorityMedium: true,
	PriorityHigh:   true,
}

// Goal is a client-owned numeric target. CurrentValue is never stored; it is
// derived from the latest progress entry at read time.
type Goal struct {
	ID             primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	ClientID       primitive.ObjectID  `bson:"client_id" json:"client_id"`
	ProfessionalID *primitive.ObjectID `bson:"professional_id,omitempty" json:"professional_id,omitempty"`
	GoalType       string              `bson:"goal_type" json:"goal_type"`
	Title          string              `bson:"title" json:"title"`
	Description    string              `bson:"description,omitempty" json:"description,omitempty"`
	TargetValue    float64             `bson:"target_value,omitempty" json:"target_value,omitempty"`
	Unit           string              `bson:"unit,omitempty" json:"unit,omitempty"`
	TargetDate     *time.Time          `bson:"target_date,omitempty" json:"target_date,omitempty"`
	Status         string              `bson:"status" json:"status"`
	Priority       string              `bson:"priority" json:"priority"`
	CreatedAt      time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time           `bson:"updated_at" json:"updated_at"`
}

// GoalProgress is one entry of a goal's append-only progress log.
// Entries are never updated or deleted.
type GoalProgress struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	GoalID     primitive.ObjectID `bson:"goal_id" json:"goal_id"`
	RecordedBy primitive.ObjectID `bson:"recorded_by" json:"recorded_by"`
	Value      float64            `bson:"value" json:"value"`
	Notes      string             `bson:"notes,omitempty" json:"notes,omitempty"`
	RecordedAt time.Time          `bson:"recorded_at" json:"recorded_at"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
}

// GoalWithProgress is a goal enriched with its derived completion metrics and
// recent history (newest first).
type GoalWithProgress struct {
	Goal
	CurrentValue       float64        `json:"current_value"`
	ProgressPercentage float64        `json:"progress_percentage"`
	RecentProgress     []GoalProgress `json:"recent_progress"`
}

// GoalPatch is the mutable subset accepted by update.
type GoalPatch struct {
	Status      string     `json:"status,omitempty"`
	Title       string     `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	TargetValue *float64   `json:"target_value,omitempty"`
	Unit        *string    `json:"unit,omitempty"`
	TargetDate  *time.Time `json:"target_date,omitempty"`
	Priority    string     `json:"priority,omitempty"`
}

// ProgressPercentage folds the latest progress value against a target,
// clamped to [0,100]. A missing or zero target yields 0.
func ProgressPercentage(current, target float64) float64 {
	if target <= 0 {
		return 0
	}
	pct := 100 * current / target
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
