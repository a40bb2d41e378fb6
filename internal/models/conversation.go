package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Conversation is a message thread scoped to one relationship. Ending the
// relationship keeps the thread readable; nothing here is ever hard-deleted.
type Conversation struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	RelationshipID primitive.ObjectID `bson:"relationship_id" json:"relationship_id"`
	Title          string             `bson:"title,omitempty" json:"title,omitempty"`
	LastMessageAt  time.Time          `bson:"last_message_at" json:"last_message_at"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time          `bson:"updated_at" json:"updated_at"`
}

// ConversationSummary is a conversation enriched for list views.
type ConversationSummary struct {
	Conversation
	LastMessage *Message `json:"last_message,omitempty"`
	UnreadCount int64    `json:"unread_count"`
}
