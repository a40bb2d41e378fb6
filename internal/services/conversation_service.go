package services

import (
	"context"
	"time"

	"github.com/askhat-b/MentorLink/internal/models"
	"github.com/askhat-b/MentorLink/pkg/logger"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ConversationStore is implemented by repository.ConversationRepository.
type ConversationStore interface {
	Create(ctx context.Context, conv *models.Conversation) (*models.Conversation, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Conversation, error)
	ListByRelationships(ctx context.Context, relationshipIDs []primitive.ObjectID) ([]models.Conversation, error)
	TouchLastMessage(ctx context.Context, id primitive.ObjectID, at time.Time) error
}

// MessageStore is implemented by repository.MessageRepository.
type MessageStore interface {
	Insert(ctx context.Context, msg *models.Message) (*models.Message, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Message, error)
	MarkRead(ctx context.Context, id primitive.ObjectID, at time.Time) (*models.Message, error)
	ListLatest(ctx context.Context, conversationID primitive.ObjectID, limit int64) ([]models.Message, error)
	Latest(ctx context.Context, conversationID primitive.ObjectID) (*models.Message, error)
	CountUnread(ctx context.Context, conversationID, identityID primitive.ObjectID) (int64, error)
}

// ConversationService maps relationships to their conversation threads.
type ConversationService struct {
	convRepo  ConversationStore
	relRepo   RelationshipStore
	msgRepo   MessageStore
	publisher Publisher
}

func NewConversationService(convRepo ConversationStore, relRepo RelationshipStore, msgRepo MessageStore, publisher Publisher) *ConversationService {
	return &ConversationService{
		convRepo:  convRepo,
		relRepo:   relRepo,
		msgRepo:   msgRepo,
		publisher: publisher,
	}
}

// CreateConversation opens a new thread under an existing relationship.
// Allowed in any relationship status: ended relationships keep their history
// accessible and can still grow threads.
func (s *ConversationService) CreateConversation(ctx context.Context, relationshipID primitive.ObjectID, title string) (*models.Conversation, error) {
	rel, err := s.relRepo.GetByID(ctx, relationshipID)
	if err != nil {
		return nil, err
	}

	conv := &models.Conversation{
		RelationshipID: relationshipID,
		Title:          title,
	}
	created, err := s.convRepo.Create(ctx, conv)
	if err != nil {
		return nil, err
	}

	event := models.Event{Type: models.EventConversationCreated, Payload: created}
	s.publisher.Publish(models.IdentityTopic(rel.ProfessionalID), event)
	s.publisher.Publish(models.IdentityTopic(rel.ClientID), event)

	return created, nil
}

// GetConversation fetches one thread.
func (s *ConversationService) GetConversation(ctx context.Context, id primitive.ObjectID) (*models.Conversation, error) {
	return s.convRepo.GetByID(ctx, id)
}

// ListConversations joins through the identity's relationships and enriches
// each thread with its latest message and the identity's unread count.
func (s *ConversationService) ListConversations(ctx context.Context, identityID primitive.ObjectID) ([]models.ConversationSummary, error) {
	relationships, err := s.relRepo.ListByIdentity(ctx, identityID)
	if err != nil {
		return nil, err
	}

	relIDs := make([]primitive.ObjectID, 0, len(relationships))
	for _, rel := range relationships {
		relIDs = append(relIDs, rel.ID)
	}

	conversations, err := s.convRepo.ListByRelationships(ctx, relIDs)
	if err != nil {
		return nil, err
	}

	summaries := make([]models.ConversationSummary, 0, len(conversations))
	for _, conv := range conversations {
		summary := models.ConversationSummary{Conversation: conv}

		last, err := s.msgRepo.Latest(ctx, conv.ID)
		if err != nil {
			return nil, err
		}
		summary.LastMessage = last

		unread, err := s.msgRepo.CountUnread(ctx, conv.ID, identityID)
		if err != nil {
			return nil, err
		}
		summary.UnreadCount = unread

		summaries = append(summaries, summary)
	}

	logger.Log.WithFields(map[string]interface{}{
		"identity_id": identityID.Hex(),
		"count":       len(summaries),
	}).Debug("Conversations listed")
	return summaries, nil
}
