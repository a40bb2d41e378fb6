package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Event types carried over the realtime dispatcher.
const (
	EventMessageCreated      = "message.created"
	EventConversationCreated = "conversation.created"
	EventConversationUpdated = "conversation.updated"
	EventRelationshipUpdated = "relationship.updated"
	EventGoalDueSoon         = "goal.due_soon"
	EventRelationshipStale   = "relationship.stale"
)

// Event is the envelope published to dispatcher topics and streamed to
// websocket clients.
type Event struct {
	Type    string      `json:"event_type"`
	Payload interface{} `json:"payload"`
}

// ConversationTopic is the topic carrying message events for one conversation.
func ConversationTopic(id primitive.ObjectID) string {
	return "conversation:" + id.Hex()
}

// IdentityTopic is the topic carrying relationship/conversation changes for
// one identity.
func IdentityTopic(id primitive.ObjectID) string {
	return "identity:" + id.Hex()
}
