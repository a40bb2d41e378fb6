package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/askhat-b/MentorLink/internal/models"
	"github.com/askhat-b/MentorLink/internal/services"
	"github.com/askhat-b/MentorLink/pkg/middleware"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MessageHandler handles HTTP requests for the message pipeline.
type MessageHandler struct {
	Service             *services.MessageService
	ConversationService *services.ConversationService
	RelationshipService *services.RelationshipService
	AssistantService    *services.AssistantService
}

func NewMessageHandler(service *services.MessageService, conversationService *services.ConversationService, relationshipService *services.RelationshipService, assistantService *services.AssistantService) *MessageHandler {
	return &MessageHandler{
		Service:             service,
		ConversationService: conversationService,
		RelationshipService: relationshipService,
		AssistantService:    assistantService,
	}
}

// SendMessageHandler appends a message to a conversation. On failure the
// submitted content is echoed back so the client can resubmit without loss.
func (h *MessageHandler) SendMessageHandler(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conversationID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid conversation ID", http.StatusBadRequest)
		return
	}

	var req struct {
		Content string `json:"content"`
		Type    string `json:"type,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	senderID, err := primitive.ObjectIDFromHex(claims.IdentityID)
	if err != nil {
		http.Error(w, "Invalid identity ID", http.StatusInternalServerError)
		return
	}

	if ok := h.authorizeParticipant(w, r, conversationID, senderID); !ok {
		return
	}

	msg, err := h.Service.SendMessage(r.Context(), conversationID, senderID, req.Content, req.Type)
	if err != nil {
		logrus.WithError(err).WithField("conversation_id", conversationID.Hex()).Warn("Failed to send message")
		// The composed content must survive a failed send.
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(errorStatus(err))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error":   err.Error(),
			"content": req.Content,
			"type":    req.Type,
		})
		return
	}

	respondJSON(w, http.StatusCreated, msg)
}

// MarkReadHandler sets a message's read receipt. Repeating the call is a no-op.
func (h *MessageHandler) MarkReadHandler(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	messageID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid message ID", http.StatusBadRequest)
		return
	}
	readerID, err := primitive.ObjectIDFromHex(claims.IdentityID)
	if err != nil {
		http.Error(w, "Invalid identity ID", http.StatusInternalServerError)
		return
	}

	existing, err := h.Service.GetMessage(r.Context(), messageID)
	if err != nil {
		respondError(w, err)
		return
	}
	if ok := h.authorizeParticipant(w, r, existing.ConversationID, readerID); !ok {
		return
	}

	msg, err := h.Service.MarkRead(r.Context(), messageID, readerID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, msg)
}

// ListMessagesHandler returns the latest messages in chronological order.
func (h *MessageHandler) ListMessagesHandler(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conversationID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid conversation ID", http.StatusBadRequest)
		return
	}
	identityID, err := primitive.ObjectIDFromHex(claims.IdentityID)
	if err != nil {
		http.Error(w, "Invalid identity ID", http.StatusInternalServerError)
		return
	}

	if ok := h.authorizeParticipant(w, r, conversationID, identityID); !ok {
		return
	}

	var limit int64
	if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
		parsed, err := strconv.ParseInt(limitParam, 10, 64)
		if err != nil {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	messages, err := h.Service.ListMessages(r.Context(), conversationID, limit)
	if err != nil {
		respondError(w, err)
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}

	respondJSON(w, http.StatusOK, messages)
}

// AssistantReplyHandler asks the text-generation collaborator for a reply in
// this conversation; the result is sent as a normal message.
func (h *MessageHandler) AssistantReplyHandler(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if h.AssistantService == nil {
		http.Error(w, "Assistant is not configured", http.StatusNotImplemented)
		return
	}

	conversationID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid conversation ID", http.StatusBadRequest)
		return
	}
	identityID, err := primitive.ObjectIDFromHex(claims.IdentityID)
	if err != nil {
		http.Error(w, "Invalid identity ID", http.StatusInternalServerError)
		return
	}

	if ok := h.authorizeParticipant(w, r, conversationID, identityID); !ok {
		return
	}

	var req struct {
		Prompt string `json:"prompt,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	msg, err := h.AssistantService.Reply(r.Context(), conversationID, req.Prompt)
	if err != nil {
		logrus.WithError(err).WithField("conversation_id", conversationID.Hex()).Error("Assistant reply failed")
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, msg)
}

// authorizeParticipant resolves the conversation's relationship and rejects
// callers that are not one of its two parties. Writes the response on failure.
func (h *MessageHandler) authorizeParticipant(w http.ResponseWriter, r *http.Request, conversationID, identityID primitive.ObjectID) bool {
	conv, err := h.ConversationService.GetConversation(r.Context(), conversationID)
	if err != nil {
		respondError(w, err)
		return false
	}
	rel, err := h.RelationshipService.GetRelationship(r.Context(), conv.RelationshipID)
	if err != nil {
		respondError(w, err)
		return false
	}
	if !rel.Participates(identityID) {
		http.Error(w, "Forbidden: not a party of this conversation", http.StatusForbidden)
		return false
	}
	return true
}
