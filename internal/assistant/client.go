// Package assistant wraps the external text-generation collaborator. To the
// rest of the system its output is just another sender producing text messages.
package assistant

import (
	"context"
	"errors"
	"fmt"

	"github.com/askhat-b/MentorLink/internal/models"
	"github.com/sashabaranov/go-openai"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Client implements text generation using OpenAI chat completions.
type Client struct {
	client *openai.Client
	model  string
}

// NewClient creates an OpenAI-backed generator.
func NewClient(apiKey, model string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &Client{
		client: openai.NewClient(apiKey),
		model:  model,
	}, nil
}

// Generate produces a reply to prompt given the conversation history.
// Messages previously sent by assistantID are replayed in the assistant role,
// everything else as the user.
func (c *Client) Generate(ctx context.Context, prompt string, history []models.Message, assistantID primitive.ObjectID) (string, error) {
	messages := []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: "You are a supportive mentoring assistant inside a professional/client mentoring platform. Keep replies short and practical.",
		},
	}
	for _, msg := range history {
		if msg.Type != models.MessageTypeText {
			continue
		}
		role := openai.ChatMessageRoleUser
		if msg.SenderID == assistantID {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: msg.Content})
	}
	if prompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("creating chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no completion choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}
