package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/askhat-b/MentorLink/internal/models"
	"github.com/askhat-b/MentorLink/internal/services"
	"github.com/askhat-b/MentorLink/pkg/middleware"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ConversationHandler handles HTTP requests for conversation threads.
type ConversationHandler struct {
	Service             *services.ConversationService
	RelationshipService *services.RelationshipService
}

func NewConversationHandler(service *services.ConversationService, relationshipService *services.RelationshipService) *ConversationHandler {
	return &ConversationHandler{
		Service:             service,
		RelationshipService: relationshipService,
	}
}

// CreateConversationHandler opens a thread under one of the caller's
// relationships. Works in any relationship status so history stays reachable
// after the relationship ends.
func (h *ConversationHandler) CreateConversationHandler(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		RelationshipID string `json:"relationship_id"`
		Title          string `json:"title,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	relationshipID, err := primitive.ObjectIDFromHex(req.RelationshipID)
	if err != nil {
		http.Error(w, "Invalid relationship ID", http.StatusBadRequest)
		return
	}
	identityID, err := primitive.ObjectIDFromHex(claims.IdentityID)
	if err != nil {
		http.Error(w, "Invalid identity ID", http.StatusInternalServerError)
		return
	}

	rel, err := h.RelationshipService.GetRelationship(r.Context(), relationshipID)
	if err != nil {
		respondError(w, err)
		return
	}
	if !rel.Participates(identityID) {
		http.Error(w, "Forbidden: not a party of this relationship", http.StatusForbidden)
		return
	}

	conv, err := h.Service.CreateConversation(r.Context(), relationshipID, req.Title)
	if err != nil {
		logrus.WithError(err).Warn("Failed to create conversation")
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, conv)
}

// ListConversationsHandler returns the caller's conversation summaries with
// last message and unread count.
func (h *ConversationHandler) ListConversationsHandler(w http.ResponseWriter, r *http.Request) {
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

	summaries, err := h.Service.ListConversations(r.Context(), identityID)
	if err != nil {
		respondError(w, err)
		return
	}
	if summaries == nil {
		summaries = []models.ConversationSummary{}
	}

	respondJSON(w, http.StatusOK, summaries)
}
