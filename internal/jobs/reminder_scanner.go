package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/askhat-b/MentorLink/internal/models"
	"github.com/askhat-b/MentorLink/internal/repository"
	"github.com/askhat-b/MentorLink/internal/services"
	"github.com/sirupsen/logrus"
)

// ReminderScanner runs the periodic scans and publishes reminder events to the
// affected identities' topics. Nothing is stored: connected clients see the
// event, disconnected ones reconcile from the list endpoints.
type ReminderScanner struct {
	GoalRepo         *repository.GoalRepository
	RelationshipRepo *repository.RelationshipRepository
	Publisher        services.Publisher
	StalePending     time.Duration
}

func NewReminderScanner(goalRepo *repository.GoalRepository, relationshipRepo *repository.RelationshipRepository, publisher services.Publisher, stalePending time.Duration) *ReminderScanner {
	return &ReminderScanner{
		GoalRepo:         goalRepo,
		RelationshipRepo: relationshipRepo,
		Publisher:        publisher,
		StalePending:     stalePending,
	}
}

// ScanGoalsDueSoon notifies owners of active goals whose target date falls in
// the next 24 hours.
func (s *ReminderScanner) ScanGoalsDueSoon(ctx context.Context) error {
	goals, err := s.GoalRepo.ListGoalsDueBefore(ctx, time.Now().Add(24*time.Hour))
	if err != nil {
		return fmt.Errorf("failed to fetch goals due soon: %w", err)
	}

	for i := range goals {
		goal := &goals[i]
		s.Publisher.Publish(models.IdentityTopic(goal.ClientID), models.Event{
			Type:    models.EventGoalDueSoon,
			Payload: goal,
		})
		if goal.ProfessionalID != nil {
			s.Publisher.Publish(models.IdentityTopic(*goal.ProfessionalID), models.Event{
				Type:    models.EventGoalDueSoon,
				Payload: goal,
			})
		}
	}

	logrus.WithField("count", len(goals)).Info("Goal due-soon scan finished")
	return nil
}

// ScanStaleRelationships nudges professionals about pending relationships that
// nobody acted on.
func (s *ReminderScanner) ScanStaleRelationships(ctx context.Context) error {
	stale, err := s.RelationshipRepo.ListStalePending(ctx, time.Now().Add(-s.StalePending))
	if err != nil {
		return fmt.Errorf("failed to fetch stale relationships: %w", err)
	}

	for i := range stale {
		rel := &stale[i]
		s.Publisher.Publish(models.IdentityTopic(rel.ProfessionalID), models.Event{
			Type:    models.EventRelationshipStale,
			Payload: rel,
		})
	}

	logrus.WithField("count", len(stale)).Info("Stale relationship scan finished")
	return nil
}
