package repo

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vcfgather/server/internal/model"
)

// ChangePublisher receives row changes made through a MemoryStore
type ChangePublisher interface {
	Publish(e model.ChangeEvent)
}

// MemoryStore is an in-process implementation of SessionRepo and ParticipantRepo.
// It enforces the same uniqueness and ownership rules as the PostgreSQL schema and
// publishes every row change, so it can stand in for the database in dev mode.
type MemoryStore struct {
	mu           sync.RWMutex
	sessions     map[uuid.UUID]model.Session
	participants []model.Participant
	publisher    ChangePublisher
	now          func() time.Time
}

// NewMemoryStore creates an empty store. publisher may be nil.
func NewMemoryStore(publisher ChangePublisher, now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		sessions:  make(map[uuid.UUID]model.Session),
		publisher: publisher,
		now:       now,
	}
}

func (m *MemoryStore) publish(table string, op model.ChangeOp, row any) {
	if m.publisher == nil {
		return
	}
	m.publisher.Publish(model.ChangeEvent{Table: table, Op: op, Record: model.RecordOf(row)})
}

// Create inserts a new session
func (m *MemoryStore) Create(_ context.Context, s model.Session) (model.Session, error) {
	m.mu.Lock()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = m.now().UTC()
	}
	s.ParticipantCount = 0
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.publish(model.TableSessions, model.OpInsert, s)
	return s, nil
}

// GetByID retrieves a session by ID
func (m *MemoryStore) GetByID(_ context.Context, id uuid.UUID) (model.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return model.Session{}, fmt.Errorf("session %s: %w", id, model.ErrNotFound)
	}
	return s, nil
}

// ListByCreator returns the creator's sessions, newest first
func (m *MemoryStore) ListByCreator(_ context.Context, creatorID uuid.UUID) ([]model.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Session
	for _, s := range m.sessions {
		if s.CreatorID == creatorID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// IncrementParticipantCount bumps participant_count and returns the new value
func (m *MemoryStore) IncrementParticipantCount(_ context.Context, id uuid.UUID) (int, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return 0, fmt.Errorf("session %s: %w", id, model.ErrNotFound)
	}
	s.ParticipantCount++
	m.sessions[id] = s
	m.mu.Unlock()

	m.publish(model.TableSessions, model.OpUpdate, s)
	return s.ParticipantCount, nil
}

// Insert adds a participant; a (session_id, phone) collision yields model.ErrDuplicateContact
func (m *MemoryStore) Insert(_ context.Context, p model.Participant) (model.Participant, error) {
	m.mu.Lock()
	if _, ok := m.sessions[p.SessionID]; !ok {
		m.mu.Unlock()
		return model.Participant{}, fmt.Errorf("session %s: %w", p.SessionID, model.ErrNotFound)
	}
	if m.phoneTaken(p.SessionID, p.Phone, uuid.Nil) {
		m.mu.Unlock()
		return model.Participant{}, model.ErrDuplicateContact
	}
	p.ID = uuid.New()
	p.CreatedAt = m.now().UTC()
	m.participants = append(m.participants, p)
	m.mu.Unlock()

	m.publish(model.TableParticipants, model.OpInsert, p)
	return p, nil
}

// ListBySession returns every participant of the session in insertion order
func (m *MemoryStore) ListBySession(_ context.Context, sessionID uuid.UUID) ([]model.Participant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Participant
	for _, p := range m.participants {
		if p.SessionID == sessionID {
			out = append(out, p)
		}
	}
	return out, nil
}

// CountBySession counts the live participant rows of a session
func (m *MemoryStore) CountBySession(ctx context.Context, sessionID uuid.UUID) (int, error) {
	list, err := m.ListBySession(ctx, sessionID)
	return len(list), err
}

// Update changes name and phone of a participant owned by creatorID
func (m *MemoryStore) Update(_ context.Context, creatorID, sessionID, participantID uuid.UUID, name, phone string) ([]model.Participant, error) {
	m.mu.Lock()
	idx := m.ownedIndex(creatorID, sessionID, participantID)
	if idx < 0 {
		m.mu.Unlock()
		return nil, nil
	}
	if m.phoneTaken(sessionID, phone, participantID) {
		m.mu.Unlock()
		return nil, model.ErrDuplicateContact
	}
	m.participants[idx].Name = name
	m.participants[idx].Phone = phone
	p := m.participants[idx]
	m.mu.Unlock()

	m.publish(model.TableParticipants, model.OpUpdate, p)
	return []model.Participant{p}, nil
}

// Delete removes a participant owned by creatorID and returns the number of rows deleted
func (m *MemoryStore) Delete(_ context.Context, creatorID, sessionID, participantID uuid.UUID) (int64, error) {
	m.mu.Lock()
	idx := m.ownedIndex(creatorID, sessionID, participantID)
	if idx < 0 {
		m.mu.Unlock()
		return 0, nil
	}
	p := m.participants[idx]
	m.participants = append(m.participants[:idx], m.participants[idx+1:]...)
	m.mu.Unlock()

	m.publish(model.TableParticipants, model.OpDelete, p)
	return 1, nil
}

// must hold m.mu
func (m *MemoryStore) phoneTaken(sessionID uuid.UUID, phone string, except uuid.UUID) bool {
	for _, p := range m.participants {
		if p.SessionID == sessionID && p.Phone == phone && p.ID != except {
			return true
		}
	}
	return false
}

// must hold m.mu
func (m *MemoryStore) ownedIndex(creatorID, sessionID, participantID uuid.UUID) int {
	s, ok := m.sessions[sessionID]
	if !ok || s.CreatorID != creatorID {
		return -1
	}
	for i, p := range m.participants {
		if p.ID == participantID && p.SessionID == sessionID {
			return i
		}
	}
	return -1
}
