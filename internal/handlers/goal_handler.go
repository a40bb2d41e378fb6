package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/askhat-b/MentorLink/internal/models"
	"github.com/askhat-b/MentorLink/internal/services"
	"github.com/askhat-b/MentorLink/pkg/middleware"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GoalHandler handles HTTP requests related to goals and their progress log.
type GoalHandler struct {
	Service *services.GoalService
}

func NewGoalHandler(service *services.GoalService) *GoalHandler {
	return &GoalHandler{Service: service}
}

// CreateGoalHandler creates a goal. A client creates it for themselves; a
// professional creates it for a client named in the body and is recorded on it.
func (h *GoalHandler) CreateGoalHandler(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		ClientID    string     `json:"client_id,omitempty"`
		GoalType    string     `json:"goal_type"`
		Title       string     `json:"title"`
		Description string     `json:"description,omitempty"`
		TargetValue float64    `json:"target_value,omitempty"`
		Unit        string     `json:"unit,omitempty"`
		TargetDate  *time.Time `json:"target_date,omitempty"`
		Priority    string     `json:"priority,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logrus.WithError(err).Warn("Invalid goal create payload")
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	identityID, err := primitive.ObjectIDFromHex(claims.IdentityID)
	if err != nil {
		http.Error(w, "Invalid identity ID", http.StatusInternalServerError)
		return
	}

	goal := &models.Goal{
		GoalType:    req.GoalType,
		Title:       req.Title,
		Description: req.Description,
		TargetValue: req.TargetValue,
		Unit:        req.Unit,
		TargetDate:  req.TargetDate,
		Priority:    req.Priority,
	}

	if claims.Role == "professional" {
		clientID, err := primitive.ObjectIDFromHex(req.ClientID)
		if err != nil {
			http.Error(w, "Invalid client ID", http.StatusBadRequest)
			return
		}
		goal.ClientID = clientID
		goal.ProfessionalID = &identityID
	} else {
		goal.ClientID = identityID
	}

	created, err := h.Service.CreateGoal(r.Context(), goal)
	if err != nil {
		logrus.WithError(err).Warn("Failed to create goal")
		respondError(w, err)
		return
	}

	logrus.WithFields(logrus.Fields{
		"goal_id":   created.ID.Hex(),
		"client_id": created.ClientID.Hex(),
	}).Info("Goal created")
	respondJSON(w, http.StatusCreated, created)
}

// UpdateGoalHandler patches a goal. Only the owning client or the goal's
// professional may update it.
func (h *GoalHandler) UpdateGoalHandler(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	goalID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid goal ID", http.StatusBadRequest)
		return
	}
	identityID, err := primitive.ObjectIDFromHex(claims.IdentityID)
	if err != nil {
		http.Error(w, "Invalid identity ID", http.StatusInternalServerError)
		return
	}

	existing, err := h.Service.GetGoal(r.Context(), goalID)
	if err != nil {
		respondError(w, err)
		return
	}
	if !goalAccessible(&existing.Goal, identityID) {
		http.Error(w, "Forbidden: not your goal", http.StatusForbidden)
		return
	}

	var patch models.GoalPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	updated, err := h.Service.UpdateGoal(r.Context(), goalID, patch)
	if err != nil {
		logrus.WithError(err).WithField("goal_id", goalID.Hex()).Warn("Failed to update goal")
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, updated)
}

// RecordProgressHandler appends one entry to the goal's progress log.
func (h *GoalHandler) RecordProgressHandler(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	goalID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid goal ID", http.StatusBadRequest)
		return
	}
	identityID, err := primitive.ObjectIDFromHex(claims.IdentityID)
	if err != nil {
		http.Error(w, "Invalid identity ID", http.StatusInternalServerError)
		return
	}

	existing, err := h.Service.GetGoal(r.Context(), goalID)
	if err != nil {
		respondError(w, err)
		return
	}
	if !goalAccessible(&existing.Goal, identityID) {
		http.Error(w, "Forbidden: not your goal", http.StatusForbidden)
		return
	}

	var req struct {
		Value      float64    `json:"value"`
		Notes      string     `json:"notes,omitempty"`
		RecordedAt *time.Time `json:"recorded_at,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	recordedAt := time.Time{}
	if req.RecordedAt != nil {
		recordedAt = *req.RecordedAt
	}

	entry, err := h.Service.RecordProgress(r.Context(), goalID, identityID, req.Value, req.Notes, recordedAt)
	if err != nil {
		logrus.WithError(err).WithField("goal_id", goalID.Hex()).Warn("Failed to record progress")
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, entry)
}

// GetGoalHandler returns one goal with derived completion metrics.
func (h *GoalHandler) GetGoalHandler(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	goalID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid goal ID", http.StatusBadRequest)
		return
	}
	identityID, err := primitive.ObjectIDFromHex(claims.IdentityID)
	if err != nil {
		http.Error(w, "Invalid identity ID", http.StatusInternalServerError)
		return
	}

	goal, err := h.Service.GetGoal(r.Context(), goalID)
	if err != nil {
		respondError(w, err)
		return
	}
	if !goalAccessible(&goal.Goal, identityID) {
		http.Error(w, "Forbidden: not your goal", http.StatusForbidden)
		return
	}

	respondJSON(w, http.StatusOK, goal)
}

// ListGoalsHandler returns enriched goals for a client. Clients list their
// own; professionals pass ?client= and may narrow with ?professional=.
func (h *GoalHandler) ListGoalsHandler(w http.ResponseWriter, r *http.Request) {
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

	clientID := identityID
	if clientParam := r.URL.Query().Get("client"); clientParam != "" {
		parsed, err := primitive.ObjectIDFromHex(clientParam)
		if err != nil {
			http.Error(w, "Invalid client ID", http.StatusBadRequest)
			return
		}
		clientID = parsed
	}

	var professionalID *primitive.ObjectID
	if profParam := r.URL.Query().Get("professional"); profParam != "" {
		parsed, err := primitive.ObjectIDFromHex(profParam)
		if err != nil {
			http.Error(w, "Invalid professional ID", http.StatusBadRequest)
			return
		}
		professionalID = &parsed
	}

	// Clients only list their own goals. A professional viewing another
	// client is pinned to the goals they are attached to; the ?professional=
	// filter cannot widen that.
	if claims.Role != "professional" && clientID != identityID {
		http.Error(w, "Forbidden: not your goals", http.StatusForbidden)
		return
	}
	if claims.Role == "professional" && clientID != identityID {
		professionalID = &identityID
	}

	goals, err := h.Service.ListGoals(r.Context(), clientID, professionalID)
	if err != nil {
		respondError(w, err)
		return
	}
	if goals == nil {
		goals = []models.GoalWithProgress{}
	}

	respondJSON(w, http.StatusOK, goals)
}

func goalAccessible(goal *models.Goal, identityID primitive.ObjectID) bool {
	if goal.ClientID == identityID {
		return true
	}
	return goal.ProfessionalID != nil && *goal.ProfessionalID == identityID
}
