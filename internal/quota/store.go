package quota

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/vcfgather/server/internal/model"
)

// Store persists device records on the device that made the submissions
type Store interface {
	Load(ctx context.Context, deviceID, sessionID uuid.UUID) (model.DeviceRecord, error)
	Save(ctx context.Context, deviceID, sessionID uuid.UUID, rec model.DeviceRecord) error
}

type recordKey struct {
	device  uuid.UUID
	session uuid.UUID
}

// MemoryStore keeps device records in process memory
type MemoryStore struct {
	mu      sync.RWMutex
	records map[recordKey]model.DeviceRecord
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[recordKey]model.DeviceRecord)}
}

// Load returns the record for (deviceID, sessionID); unknown pairs yield an empty record
func (s *MemoryStore) Load(_ context.Context, deviceID, sessionID uuid.UUID) (model.DeviceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records[recordKey{deviceID, sessionID}].Clone(), nil
}

// Save replaces the record for (deviceID, sessionID)
func (s *MemoryStore) Save(_ context.Context, deviceID, sessionID uuid.UUID, rec model.DeviceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[recordKey{deviceID, sessionID}] = rec.Clone()
	return nil
}
