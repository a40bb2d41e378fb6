package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/askhat-b/MentorLink/internal/models"
	jwtutil "github.com/askhat-b/MentorLink/pkg/jwt"
	"github.com/askhat-b/MentorLink/pkg/logger"
	"github.com/askhat-b/MentorLink/pkg/middleware"
	"github.com/containerd/errdefs"
	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func init() {
	if logger.Log == nil {
		logger.InitLogger()
	}
}

// Minimal in-memory stores behind the service interfaces, enough to drive the
// handlers without MongoDB.

type stubRelStore struct {
	mu   sync.Mutex
	rels []*models.Relationship
}

func (s *stubRelStore) Create(_ context.Context, rel *models.Relationship) (*models.Relationship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rel
	cp.ID = primitive.NewObjectID()
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	s.rels = append(s.rels, &cp)
	out := cp
	return &out, nil
}

func (s *stubRelStore) GetByID(_ context.Context, id primitive.ObjectID) (*models.Relationship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rel := range s.rels {
		if rel.ID == id {
			out := *rel
			return &out, nil
		}
	}
	return nil, fmt.Errorf("relationship %s: %w", id.Hex(), errdefs.ErrNotFound)
}

func (s *stubRelStore) UpdateStatus(_ context.Context, id primitive.ObjectID, fromStatus string, set bson.M) (*models.Relationship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rel := range s.rels {
		if rel.ID == id && rel.Status == fromStatus {
			if status, ok := set["status"].(string); ok {
				rel.Status = status
			}
			out := *rel
			return &out, nil
		}
	}
	return nil, fmt.Errorf("relationship %s with status %s: %w", id.Hex(), fromStatus, errdefs.ErrNotFound)
}

func (s *stubRelStore) UpdateNotes(_ context.Context, id primitive.ObjectID, notes string) (*models.Relationship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rel := range s.rels {
		if rel.ID == id {
			rel.Notes = notes
			out := *rel
			return &out, nil
		}
	}
	return nil, fmt.Errorf("relationship %s: %w", id.Hex(), errdefs.ErrNotFound)
}

func (s *stubRelStore) ListByIdentity(_ context.Context, identityID primitive.ObjectID) ([]models.Relationship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []models.Relationship
	for i := len(s.rels) - 1; i >= 0; i-- {
		if s.rels[i].Participates(identityID) {
			result = append(result, *s.rels[i])
		}
	}
	return result, nil
}

type stubConvStore struct {
	mu    sync.Mutex
	convs []*models.Conversation
}

func (s *stubConvStore) Create(_ context.Context, conv *models.Conversation) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *conv
	cp.ID = primitive.NewObjectID()
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	cp.LastMessageAt = cp.CreatedAt
	s.convs = append(s.convs, &cp)
	out := cp
	return &out, nil
}

func (s *stubConvStore) GetByID(_ context.Context, id primitive.ObjectID) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conv := range s.convs {
		if conv.ID == id {
			out := *conv
			return &out, nil
		}
	}
	return nil, fmt.Errorf("conversation %s: %w", id.Hex(), errdefs.ErrNotFound)
}

func (s *stubConvStore) ListByRelationships(_ context.Context, relationshipIDs []primitive.ObjectID) ([]models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wanted := make(map[primitive.ObjectID]bool, len(relationshipIDs))
	for _, id := range relationshipIDs {
		wanted[id] = true
	}
	var result []models.Conversation
	for _, conv := range s.convs {
		if wanted[conv.RelationshipID] {
			result = append(result, *conv)
		}
	}
	return result, nil
}

func (s *stubConvStore) TouchLastMessage(_ context.Context, id primitive.ObjectID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conv := range s.convs {
		if conv.ID == id {
			conv.LastMessageAt = at
			conv.UpdatedAt = at
			return nil
		}
	}
	return fmt.Errorf("conversation %s: %w", id.Hex(), errdefs.ErrNotFound)
}

type stubMsgStore struct {
	mu   sync.Mutex
	msgs []*models.Message
}

func (s *stubMsgStore) Insert(_ context.Context, msg *models.Message) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *msg
	cp.ID = primitive.NewObjectID()
	cp.CreatedAt = time.Now()
	s.msgs = append(s.msgs, &cp)
	out := cp
	return &out, nil
}

func (s *stubMsgStore) GetByID(_ context.Context, id primitive.ObjectID) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, msg := range s.msgs {
		if msg.ID == id {
			out := *msg
			return &out, nil
		}
	}
	return nil, fmt.Errorf("message %s: %w", id.Hex(), errdefs.ErrNotFound)
}

func (s *stubMsgStore) MarkRead(_ context.Context, id primitive.ObjectID, at time.Time) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, msg := range s.msgs {
		if msg.ID == id {
			if msg.ReadAt == nil {
				msg.ReadAt = &at
			}
			out := *msg
			return &out, nil
		}
	}
	return nil, fmt.Errorf("message %s: %w", id.Hex(), errdefs.ErrNotFound)
}

func (s *stubMsgStore) ListLatest(_ context.Context, conversationID primitive.ObjectID, limit int64) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []models.Message
	for _, msg := range s.msgs {
		if msg.ConversationID == conversationID {
			result = append(result, *msg)
		}
	}
	if int64(len(result)) > limit {
		result = result[int64(len(result))-limit:]
	}
	return result, nil
}

func (s *stubMsgStore) Latest(_ context.Context, conversationID primitive.ObjectID) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *models.Message
	for _, msg := range s.msgs {
		if msg.ConversationID == conversationID {
			latest = msg
		}
	}
	if latest == nil {
		return nil, nil
	}
	out := *latest
	return &out, nil
}

func (s *stubMsgStore) CountUnread(_ context.Context, conversationID, identityID primitive.ObjectID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, msg := range s.msgs {
		if msg.ConversationID == conversationID && msg.SenderID != identityID && msg.ReadAt == nil {
			count++
		}
	}
	return count, nil
}

type stubGoalStore struct {
	mu      sync.Mutex
	goals   []*models.Goal
	entries []*models.GoalProgress
}

func (s *stubGoalStore) CreateGoal(_ context.Context, goal *models.Goal) (*models.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *goal
	cp.ID = primitive.NewObjectID()
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	s.goals = append(s.goals, &cp)
	out := cp
	return &out, nil
}

func (s *stubGoalStore) GetGoalByID(_ context.Context, id primitive.ObjectID) (*models.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, goal := range s.goals {
		if goal.ID == id {
			out := *goal
			return &out, nil
		}
	}
	return nil, fmt.Errorf("goal %s: %w", id.Hex(), errdefs.ErrNotFound)
}

func (s *stubGoalStore) UpdateGoal(_ context.Context, id primitive.ObjectID, set bson.M) (*models.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, goal := range s.goals {
		if goal.ID == id {
			if status, ok := set["status"].(string); ok {
				goal.Status = status
			}
			if title, ok := set["title"].(string); ok {
				goal.Title = title
			}
			out := *goal
			return &out, nil
		}
	}
	return nil, fmt.Errorf("goal %s: %w", id.Hex(), errdefs.ErrNotFound)
}

func (s *stubGoalStore) ListGoals(_ context.Context, clientID primitive.ObjectID, professionalID *primitive.ObjectID) ([]models.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []models.Goal
	for _, goal := range s.goals {
		if goal.ClientID != clientID {
			continue
		}
		if professionalID != nil && (goal.ProfessionalID == nil || *goal.ProfessionalID != *professionalID) {
			continue
		}
		result = append(result, *goal)
	}
	return result, nil
}

func (s *stubGoalStore) InsertProgress(_ context.Context, entry *models.GoalProgress) (*models.GoalProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *entry
	cp.ID = primitive.NewObjectID()
	cp.CreatedAt = time.Now()
	if cp.RecordedAt.IsZero() {
		cp.RecordedAt = cp.CreatedAt
	}
	s.entries = append(s.entries, &cp)
	out := cp
	return &out, nil
}

func (s *stubGoalStore) RecentProgress(_ context.Context, goalID primitive.ObjectID, limit int64) ([]models.GoalProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []models.GoalProgress
	for i := len(s.entries) - 1; i >= 0 && int64(len(result)) < limit; i-- {
		if s.entries[i].GoalID == goalID {
			result = append(result, *s.entries[i])
		}
	}
	return result, nil
}

// nullPublisher discards events; handler tests assert on HTTP behavior only.
type nullPublisher struct{}

func (nullPublisher) Publish(string, models.Event) {}

// authedRequest builds a request carrying validated claims and mux path vars,
// the way the auth middleware and router would.
func authedRequest(method, target, payload string, claims *jwtutil.Claims, vars map[string]string) *http.Request {
	var body io.Reader
	if payload != "" {
		body = strings.NewReader(payload)
	}
	r := httptest.NewRequest(method, target, body)
	ctx := context.WithValue(r.Context(), middleware.UserContextKey, claims)
	r = r.WithContext(ctx)
	if vars != nil {
		r = mux.SetURLVars(r, vars)
	}
	return r
}
