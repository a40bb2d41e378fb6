package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/askhat-b/MentorLink/internal/models"
	"github.com/askhat-b/MentorLink/internal/services"
	"github.com/askhat-b/MentorLink/pkg/middleware"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RelationshipHandler handles HTTP requests for the mentoring relationship lifecycle.
type RelationshipHandler struct {
	Service *services.RelationshipService
}

func NewRelationshipHandler(service *services.RelationshipService) *RelationshipHandler {
	return &RelationshipHandler{Service: service}
}

// CreateRelationshipHandler establishes a pending relationship. The caller is
// the professional; the client comes from the request body.
func (h *RelationshipHandler) CreateRelationshipHandler(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		ClientID string `json:"client_id"`
		Notes    string `json:"notes,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logrus.WithError(err).Warn("Invalid relationship create payload")
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	professionalID, err := primitive.ObjectIDFromHex(claims.IdentityID)
	if err != nil {
		http.Error(w, "Invalid identity ID", http.StatusInternalServerError)
		return
	}
	clientID, err := primitive.ObjectIDFromHex(req.ClientID)
	if err != nil {
		http.Error(w, "Invalid client ID", http.StatusBadRequest)
		return
	}

	rel, err := h.Service.CreateRelationship(r.Context(), professionalID, clientID, req.Notes)
	if err != nil {
		logrus.WithError(err).Warn("Failed to create relationship")
		respondError(w, err)
		return
	}

	logrus.WithFields(logrus.Fields{
		"relationship_id": rel.ID.Hex(),
		"professional_id": claims.IdentityID,
	}).Info("Relationship created")
	respondJSON(w, http.StatusCreated, rel)
}

// UpdateRelationshipHandler patches status and/or notes. Either party may
// drive the lifecycle; a rejected transition reports the current status.
func (h *RelationshipHandler) UpdateRelationshipHandler(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	id, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid relationship ID", http.StatusBadRequest)
		return
	}

	identityID, err := primitive.ObjectIDFromHex(claims.IdentityID)
	if err != nil {
		http.Error(w, "Invalid identity ID", http.StatusInternalServerError)
		return
	}

	existing, err := h.Service.GetRelationship(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	if !existing.Participates(identityID) {
		http.Error(w, "Forbidden: not a party of this relationship", http.StatusForbidden)
		return
	}

	var patch models.RelationshipPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	updated, err := h.Service.UpdateRelationship(r.Context(), id, patch)
	if err != nil {
		logrus.WithError(err).WithField("relationship_id", id.Hex()).Warn("Relationship update rejected")
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, updated)
}

// ListRelationshipsHandler returns the caller's relationships, newest first.
func (h *RelationshipHandler) ListRelationshipsHandler(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	identityID, err := primitive.ObjectIDFromHex(claims.IdentityID)
	if err != nil {
		http.Error(w, "Invalid identity ID", http.StatusInternalServerError)
		return
	}

	relationships, err := h.Service.ListRelationships(r.Context(), identityID)
	if err != nil {
		respondError(w, err)
		return
	}
	if relationships == nil {
		relationships = []models.Relationship{}
	}

	respondJSON(w, http.StatusOK, relationships)
}
