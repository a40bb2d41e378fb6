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

// RelationshipStore is the persistence surface the service needs.
// Implemented by repository.RelationshipRepository.
type RelationshipStore interface {
	Create(ctx context.Context, rel *models.Relationship) (*models.Relationship, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Relationship, error)
	UpdateStatus(ctx context.Context, id primitive.ObjectID, fromStatus string, set bson.M) (*models.Relationship, error)
	UpdateNotes(ctx context.Context, id primitive.ObjectID, notes string) (*models.Relationship, error)
	ListByIdentity(ctx context.Context, identityID primitive.ObjectID) ([]models.Relationship, error)
}

// Publisher is the realtime fan-out surface. Implemented by dispatcher.Dispatcher.
type Publisher interface {
	Publish(topic string, event models.Event)
}

// relationshipTransitions is the strict lifecycle table. "ended" is terminal.
var relationshipTransitions = map[string]map[string]bool{
	models.RelationshipPending: {models.RelationshipActive: true, models.RelationshipEnded: true},
	models.RelationshipActive:  {models.RelationshipPaused: true, models.RelationshipEnded: true},
	models.RelationshipPaused:  {models.RelationshipActive: true, models.RelationshipEnded: true},
	models.RelationshipEnded:   {},
}

// CanTransition reports whether the relationship lifecycle permits from→to.
func CanTransition(from, to string) bool {
	return relationshipTransitions[from][to]
}

// RelationshipService owns the mentoring relationship lifecycle.
type RelationshipService struct {
	repo      RelationshipStore
	publisher Publisher
}

func NewRelationshipService(repo RelationshipStore, publisher Publisher) *RelationshipService {
	return &RelationshipService{
		repo:      repo,
		publisher: publisher,
	}
}

// CreateRelationship establishes a new pending relationship between a
// professional and a client. The store enforces that at most one pending or
// active relationship exists per pair.
func (s *RelationshipService) CreateRelationship(ctx context.Context, professionalID, clientID primitive.ObjectID, notes string) (*models.Relationship, error) {
	if professionalID == clientID {
		return nil, fmt.Errorf("professional and client must differ: %w", errdefs.ErrInvalidArgument)
	}

	rel := &models.Relationship{
		ProfessionalID: professionalID,
		ClientID:       clientID,
		Status:         models.RelationshipPending,
		Notes:          notes,
	}

	created, err := s.repo.Create(ctx, rel)
	if err != nil {
		return nil, err
	}

	s.notifyParties(created)
	return created, nil
}

// UpdateRelationship applies a patch. Status changes are validated against the
// transition table and applied with a compare-and-set against the status that
// was read: an interleaving writer makes the CAS miss, which surfaces as a
// Conflict carrying the actual current status so the caller can reconcile.
func (s *RelationshipService) UpdateRelationship(ctx context.Context, id primitive.ObjectID, patch models.RelationshipPatch) (*models.Relationship, error) {
	if patch.Status == "" {
		if patch.Notes == nil {
			return nil, fmt.Errorf("empty relationship patch: %w", errdefs.ErrInvalidArgument)
		}
		return s.repo.UpdateNotes(ctx, id, *patch.Notes)
	}

	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !CanTransition(current.Status, patch.Status) {
		return nil, fmt.Errorf("relationship %s cannot move from %s to %s: %w",
			id.Hex(), current.Status, patch.Status, errdefs.ErrFailedPrecondition)
	}

	now := time.Now()
	set := bson.M{"status": patch.Status}
	if patch.Status == models.RelationshipActive && current.StartedAt == nil {
		set["started_at"] = now
	}
	if patch.Status == models.RelationshipEnded {
		endedAt := now
		if patch.EndedAt != nil {
			endedAt = *patch.EndedAt
		}
		if current.EndedAt == nil {
			set["ended_at"] = endedAt
		}
	}
	if patch.Notes != nil {
		set["notes"] = *patch.Notes
	}

	updated, err := s.repo.UpdateStatus(ctx, id, current.Status, set)
	if err != nil {
		if errdefs.IsNotFound(err) {
			// The CAS missed: either the document vanished or another writer
			// changed the status since our read.
			actual, readErr := s.repo.GetByID(ctx, id)
			if readErr != nil {
				return nil, readErr
			}
			return nil, fmt.Errorf("relationship %s status changed concurrently, now %s: %w",
				id.Hex(), actual.Status, errdefs.ErrConflict)
		}
		return nil, err
	}

	s.notifyParties(updated)
	return updated, nil
}

// ActivateOnFirstMessage moves a pending relationship to active, stamping
// started_at. A CAS miss means someone else already transitioned it, which is
// not an error for this path.
func (s *RelationshipService) ActivateOnFirstMessage(ctx context.Context, id primitive.ObjectID) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil || current.Status != models.RelationshipPending {
		return
	}

	set := bson.M{"status": models.RelationshipActive}
	if current.StartedAt == nil {
		set["started_at"] = time.Now()
	}
	updated, err := s.repo.UpdateStatus(ctx, id, models.RelationshipPending, set)
	if err != nil {
		if !errdefs.IsNotFound(err) {
			logger.Log.WithError(err).WithField("relationship_id", id.Hex()).Warn("Failed to activate relationship on first message")
		}
		return
	}
	s.notifyParties(updated)
}

// GetRelationship fetches one relationship.
func (s *RelationshipService) GetRelationship(ctx context.Context, id primitive.ObjectID) (*models.Relationship, error) {
	return s.repo.GetByID(ctx, id)
}

// ListRelationships returns the identity's relationships, newest first.
func (s *RelationshipService) ListRelationships(ctx context.Context, identityID primitive.ObjectID) ([]models.Relationship, error) {
	return s.repo.ListByIdentity(ctx, identityID)
}

func (s *RelationshipService) notifyParties(rel *models.Relationship) {
	event := models.Event{Type: models.EventRelationshipUpdated, Payload: rel}
	s.publisher.Publish(models.IdentityTopic(rel.ProfessionalID), event)
	s.publisher.Publish(models.IdentityTopic(rel.ClientID), event)
}
