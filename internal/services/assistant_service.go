package services

import (
	"context"

	"github.com/askhat-b/MentorLink/internal/models"
	"github.com/askhat-b/MentorLink/pkg/logger"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// historyWindow is how many recent messages are replayed to the generator.
const historyWindow = 20

// Generator is the external text-generation collaborator.
type Generator interface {
	Generate(ctx context.Context, prompt string, history []models.Message, assistantID primitive.ObjectID) (string, error)
}

// AssistantService produces AI-authored replies and sends them through the
// normal message pipeline under the assistant identity.
type AssistantService struct {
	gen         Generator
	messages    *MessageService
	assistantID primitive.ObjectID
}

func NewAssistantService(gen Generator, messages *MessageService, assistantID primitive.ObjectID) *AssistantService {
	return &AssistantService{
		gen:         gen,
		messages:    messages,
		assistantID: assistantID,
	}
}

// Reply generates a response from the conversation's recent history and sends
// it as a regular text message, so it persists and fans out like any other.
func (s *AssistantService) Reply(ctx context.Context, conversationID primitive.ObjectID, prompt string) (*models.Message, error) {
	history, err := s.messages.ListMessages(ctx, conversationID, historyWindow)
	if err != nil {
		return nil, err
	}

	text, err := s.gen.Generate(ctx, prompt, history, s.assistantID)
	if err != nil {
		logger.Log.WithError(err).WithField("conversation_id", conversationID.Hex()).Error("Assistant generation failed")
		return nil, err
	}

	return s.messages.SendMessage(ctx, conversationID, s.assistantID, text, models.MessageTypeText)
}
