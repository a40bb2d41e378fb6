package services

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/askhat-b/MentorLink/internal/models"
	"github.com/askhat-b/MentorLink/pkg/logger"
	"github.com/containerd/errdefs"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func initTestLogger() {
	if logger.Log == nil {
		logger.InitLogger()
	}
}

// In-memory stores mirroring the repository contracts, so service logic is
// exercised without a running MongoDB.

type memRelStore struct {
	mu    sync.Mutex
	rels  []*models.Relationship
	onGet func(rel *models.Relationship) // test hook, runs inside GetByID
}

func (s *memRelStore) Create(_ context.Context, rel *models.Relationship) (*models.Relationship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.rels {
		if existing.ProfessionalID == rel.ProfessionalID && existing.ClientID == rel.ClientID &&
			(existing.Status == models.RelationshipPending || existing.Status == models.RelationshipActive) {
			return nil, fmt.Errorf("relationship for this pair already pending or active: %w", errdefs.ErrConflict)
		}
	}
	cp := *rel
	cp.ID = primitive.NewObjectID()
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	s.rels = append(s.rels, &cp)
	out := cp
	return &out, nil
}

func (s *memRelStore) find(id primitive.ObjectID) *models.Relationship {
	for _, rel := range s.rels {
		if rel.ID == id {
			return rel
		}
	}
	return nil
}

func (s *memRelStore) GetByID(_ context.Context, id primitive.ObjectID) (*models.Relationship, error) {
	s.mu.Lock()
	rel := s.find(id)
	s.mu.Unlock()
	if rel == nil {
		return nil, fmt.Errorf("relationship %s: %w", id.Hex(), errdefs.ErrNotFound)
	}
	out := *rel
	// The hook mutates the stored document after the caller's snapshot was
	// taken, simulating a concurrent writer.
	if s.onGet != nil {
		s.onGet(rel)
	}
	return &out, nil
}

func applyRelSet(rel *models.Relationship, set bson.M) {
	for key, value := range set {
		switch key {
		case "status":
			rel.Status = value.(string)
		case "notes":
			rel.Notes = value.(string)
		case "started_at":
			t := value.(time.Time)
			rel.StartedAt = &t
		case "ended_at":
			t := value.(time.Time)
			rel.EndedAt = &t
		case "updated_at":
			rel.UpdatedAt = value.(time.Time)
		}
	}
}

func (s *memRelStore) UpdateStatus(_ context.Context, id primitive.ObjectID, fromStatus string, set bson.M) (*models.Relationship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rel := s.find(id)
	if rel == nil || rel.Status != fromStatus {
		return nil, fmt.Errorf("relationship %s with status %s: %w", id.Hex(), fromStatus, errdefs.ErrNotFound)
	}
	applyRelSet(rel, set)
	out := *rel
	return &out, nil
}

func (s *memRelStore) UpdateNotes(_ context.Context, id primitive.ObjectID, notes string) (*models.Relationship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rel := s.find(id)
	if rel == nil {
		return nil, fmt.Errorf("relationship %s: %w", id.Hex(), errdefs.ErrNotFound)
	}
	rel.Notes = notes
	out := *rel
	return &out, nil
}

func (s *memRelStore) ListByIdentity(_ context.Context, identityID primitive.ObjectID) ([]models.Relationship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []models.Relationship
	for i := len(s.rels) - 1; i >= 0; i-- { // newest first
		if s.rels[i].Participates(identityID) {
			result = append(result, *s.rels[i])
		}
	}
	return result, nil
}

type memConvStore struct {
	mu    sync.Mutex
	convs []*models.Conversation
}

func (s *memConvStore) Create(_ context.Context, conv *models.Conversation) (*models.Conversation, error) {
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

func (s *memConvStore) GetByID(_ context.Context, id primitive.ObjectID) (*models.Conversation, error) {
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

func (s *memConvStore) ListByRelationships(_ context.Context, relationshipIDs []primitive.ObjectID) ([]models.Conversation, error) {
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

func (s *memConvStore) TouchLastMessage(_ context.Context, id primitive.ObjectID, at time.Time) error {
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

type memMsgStore struct {
	mu   sync.Mutex
	msgs []*models.Message
}

func (s *memMsgStore) Insert(_ context.Context, msg *models.Message) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *msg
	cp.ID = primitive.NewObjectID()
	cp.CreatedAt = time.Now()
	s.msgs = append(s.msgs, &cp)
	out := cp
	return &out, nil
}

func (s *memMsgStore) GetByID(_ context.Context, id primitive.ObjectID) (*models.Message, error) {
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

func (s *memMsgStore) MarkRead(_ context.Context, id primitive.ObjectID, at time.Time) (*models.Message, error) {
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

func chronoLess(a, b *models.Message) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return bytes.Compare(a.ID[:], b.ID[:]) < 0
}

func (s *memMsgStore) inConversation(conversationID primitive.ObjectID) []*models.Message {
	var result []*models.Message
	for _, msg := range s.msgs {
		if msg.ConversationID == conversationID {
			result = append(result, msg)
		}
	}
	sort.Slice(result, func(i, j int) bool { return chronoLess(result[i], result[j]) })
	return result
}

func (s *memMsgStore) ListLatest(_ context.Context, conversationID primitive.ObjectID, limit int64) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.inConversation(conversationID)
	if int64(len(all)) > limit {
		all = all[int64(len(all))-limit:]
	}
	result := make([]models.Message, 0, len(all))
	for _, msg := range all {
		result = append(result, *msg)
	}
	return result, nil
}

func (s *memMsgStore) Latest(_ context.Context, conversationID primitive.ObjectID) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.inConversation(conversationID)
	if len(all) == 0 {
		return nil, nil
	}
	out := *all[len(all)-1]
	return &out, nil
}

func (s *memMsgStore) CountUnread(_ context.Context, conversationID, identityID primitive.ObjectID) (int64, error) {
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

type memGoalStore struct {
	mu      sync.Mutex
	goals   []*models.Goal
	entries []*models.GoalProgress
}

func (s *memGoalStore) CreateGoal(_ context.Context, goal *models.Goal) (*models.Goal, error) {
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

func (s *memGoalStore) GetGoalByID(_ context.Context, id primitive.ObjectID) (*models.Goal, error) {
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

func (s *memGoalStore) UpdateGoal(_ context.Context, id primitive.ObjectID, set bson.M) (*models.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, goal := range s.goals {
		if goal.ID == id {
			for key, value := range set {
				switch key {
				case "status":
					goal.Status = value.(string)
				case "title":
					goal.Title = value.(string)
				case "description":
					goal.Description = value.(string)
				case "target_value":
					goal.TargetValue = value.(float64)
				case "unit":
					goal.Unit = value.(string)
				case "target_date":
					t := value.(time.Time)
					goal.TargetDate = &t
				case "priority":
					goal.Priority = value.(string)
				case "updated_at":
					goal.UpdatedAt = value.(time.Time)
				}
			}
			out := *goal
			return &out, nil
		}
	}
	return nil, fmt.Errorf("goal %s: %w", id.Hex(), errdefs.ErrNotFound)
}

func (s *memGoalStore) ListGoals(_ context.Context, clientID primitive.ObjectID, professionalID *primitive.ObjectID) ([]models.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []models.Goal
	for i := len(s.goals) - 1; i >= 0; i-- { // newest first
		goal := s.goals[i]
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

func (s *memGoalStore) InsertProgress(_ context.Context, entry *models.GoalProgress) (*models.GoalProgress, error) {
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

func (s *memGoalStore) RecentProgress(_ context.Context, goalID primitive.ObjectID, limit int64) ([]models.GoalProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []*models.GoalProgress
	for _, entry := range s.entries {
		if entry.GoalID == goalID {
			all = append(all, entry)
		}
	}
	// Newest first: (recorded_at, id) descending, insertion order as tiebreak.
	sort.SliceStable(all, func(i, j int) bool {
		if !all[i].RecordedAt.Equal(all[j].RecordedAt) {
			return all[i].RecordedAt.After(all[j].RecordedAt)
		}
		return bytes.Compare(all[i].ID[:], all[j].ID[:]) > 0
	})
	if int64(len(all)) > limit {
		all = all[:limit]
	}
	result := make([]models.GoalProgress, 0, len(all))
	for _, entry := range all {
		result = append(result, *entry)
	}
	return result, nil
}

// recordingPublisher captures published events per topic.
type recordingPublisher struct {
	mu     sync.Mutex
	events map[string][]models.Event
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{events: make(map[string][]models.Event)}
}

func (p *recordingPublisher) Publish(topic string, event models.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events[topic] = append(p.events[topic], event)
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = make(map[string][]models.Event)
}

func (p *recordingPublisher) byTopic(topic string) []models.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.Event(nil), p.events[topic]...)
}
