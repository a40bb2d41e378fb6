package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Relationship status lifecycle. Transitions are enforced in the service layer;
// "ended" is terminal.
const (
	RelationshipPending = "pending"
	RelationshipActive  = "active"
	RelationshipPaused  = "paused"
	RelationshipEnded   = "ended"
)

// Relationship is the mentoring pairing between a professional and a client.
type Relationship struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ProfessionalID primitive.ObjectID `bson:"professional_id" json:"professional_id"`
	ClientID       primitive.ObjectID `bson:"client_id" json:"client_id"`
	Status         string             `bson:"status" json:"status"`
	Notes          string             `bson:"notes,omitempty" json:"notes,omitempty"`
	StartedAt      *time.Time         `bson:"started_at,omitempty" json:"started_at,omitempty"`
	EndedAt        *time.Time         `bson:"ended_at,omitempty" json:"ended_at,omitempty"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time          `bson:"updated_at" json:"updated_at"`
}

// RelationshipPatch is the mutable subset accepted by update.
type RelationshipPatch struct {
	Status  string     `json:"status,omitempty"`
	Notes   *string    `json:"notes,omitempty"`
	EndedAt *time.Time `json:"ended_at,omitempty"`
}

// Participates reports whether the identity is one of the two parties.
func (r *Relationship) Participates(identityID primitive.ObjectID) bool {
	return r.ProfessionalID == identityID || r.ClientID == identityID
}
