package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/askhat-b/MentorLink/internal/models"
	"github.com/askhat-b/MentorLink/pkg/logger"
	"github.com/containerd/errdefs"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultMessageLimit is the page size for listMessages when none is given.
const DefaultMessageLimit = 50

// MessageService appends messages to conversations, persists them, and fans
// them out to live subscribers.
type MessageService struct {
	msgRepo   MessageStore
	convRepo  ConversationStore
	relRepo   RelationshipStore
	rels      *RelationshipService
	publisher Publisher
}

func NewMessageService(msgRepo MessageStore, convRepo ConversationStore, relRepo RelationshipStore, rels *RelationshipService, publisher Publisher) *MessageService {
	return &MessageService{
		msgRepo:   msgRepo,
		convRepo:  convRepo,
		relRepo:   relRepo,
		rels:      rels,
		publisher: publisher,
	}
}

// SendMessage persists a message, bumps the parent conversation, activates a
// pending relationship on its first message, and publishes the created event.
// Persistence failures surface to the caller unretried; the caller still holds
// the content and owns resubmission.
func (s *MessageService) SendMessage(ctx context.Context, conversationID, senderID primitive.ObjectID, content, msgType string) (*models.Message, error) {
	if msgType == "" {
		msgType = models.MessageTypeText
	}
	if !models.ValidMessageType(msgType) {
		return nil, fmt.Errorf("unknown message type %q: %w", msgType, errdefs.ErrInvalidArgument)
	}
	if msgType == models.MessageTypeText && strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("text message content is empty: %w", errdefs.ErrInvalidArgument)
	}

	conv, err := s.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	msg := &models.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		Type:           msgType,
	}
	created, err := s.msgRepo.Insert(ctx, msg)
	if err != nil {
		return nil, err
	}

	// The message is durable from here on; bookkeeping failures must not
	// fail the send.
	if err := s.convRepo.TouchLastMessage(ctx, conversationID, created.CreatedAt); err != nil {
		logger.Log.WithError(err).WithField("conversation_id", conversationID.Hex()).Warn("Failed to bump conversation last_message_at")
	}

	// First message on a pending relationship activates it.
	s.rels.ActivateOnFirstMessage(ctx, conv.RelationshipID)

	s.publisher.Publish(models.ConversationTopic(conversationID), models.Event{
		Type:    models.EventMessageCreated,
		Payload: created,
	})
	s.notifyParticipants(ctx, conv)

	logger.Log.WithFields(map[string]interface{}{
		"message_id":      created.ID.Hex(),
		"conversation_id": conversationID.Hex(),
	}).Info("Message sent")
	return created, nil
}

// MarkRead sets the read receipt once. Marking an already-read message is a
// no-op, not an error; the receipt never reverts.
func (s *MessageService) MarkRead(ctx context.Context, messageID, readerID primitive.ObjectID) (*models.Message, error) {
	msg, err := s.msgRepo.MarkRead(ctx, messageID, time.Now())
	if err != nil {
		return nil, err
	}

	logger.Log.WithFields(map[string]interface{}{
		"message_id": messageID.Hex(),
		"reader_id":  readerID.Hex(),
	}).Debug("Message marked read")
	return msg, nil
}

// GetMessage fetches one message.
func (s *MessageService) GetMessage(ctx context.Context, id primitive.ObjectID) (*models.Message, error) {
	return s.msgRepo.GetByID(ctx, id)
}

// ListMessages returns the most recent limit messages in ascending
// (created_at, id) order.
func (s *MessageService) ListMessages(ctx context.Context, conversationID primitive.ObjectID, limit int64) ([]models.Message, error) {
	if limit <= 0 {
		limit = DefaultMessageLimit
	}

	if _, err := s.convRepo.GetByID(ctx, conversationID); err != nil {
		return nil, err
	}
	return s.msgRepo.ListLatest(ctx, conversationID, limit)
}

func (s *MessageService) notifyParticipants(ctx context.Context, conv *models.Conversation) {
	rel, err := s.relRepo.GetByID(ctx, conv.RelationshipID)
	if err != nil {
		logger.Log.WithError(err).WithField("relationship_id", conv.RelationshipID.Hex()).Warn("Failed to resolve relationship for conversation update")
		return
	}
	event := models.Event{Type: models.EventConversationUpdated, Payload: conv}
	s.publisher.Publish(models.IdentityTopic(rel.ProfessionalID), event)
	s.publisher.Publish(models.IdentityTopic(rel.ClientID), event)
}
