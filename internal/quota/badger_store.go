package quota

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/vcfgather/server/internal/model"
)

const deviceIDKey = "device:id"

// BadgerStore keeps device records in a local BadgerDB directory on the device
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens (or creates) the device store under dir
func OpenBadgerStore(dir string) (*BadgerStore, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR))
	if err != nil {
		return nil, fmt.Errorf("open device store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// NewBadgerStore wraps an already opened database
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// Close releases the underlying database
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func submissionsKey(sessionID uuid.UUID) []byte {
	// device scoping is implicit: one store per device
	return []byte("submissions:" + sessionID.String())
}

// Load returns the record for sessionID. deviceID must be this store's device.
func (s *BadgerStore) Load(_ context.Context, deviceID, sessionID uuid.UUID) (model.DeviceRecord, error) {
	if err := s.checkDevice(deviceID); err != nil {
		return nil, err
	}

	var rec model.DeviceRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(submissionsKey(sessionID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load device record: %w", err)
	}
	return rec, nil
}

// Save replaces the record for sessionID
func (s *BadgerStore) Save(_ context.Context, deviceID, sessionID uuid.UUID, rec model.DeviceRecord) error {
	if err := s.checkDevice(deviceID); err != nil {
		return err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal device record: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(submissionsKey(sessionID), data)
	})
	if err != nil {
		return fmt.Errorf("save device record: %w", err)
	}
	return nil
}

// DeviceID returns the identity of this device, generating it on first use
func (s *BadgerStore) DeviceID() (uuid.UUID, error) {
	var id uuid.UUID
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(deviceIDKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			id = uuid.New()
			return txn.Set([]byte(deviceIDKey), []byte(id.String()))
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			parsed, err := uuid.ParseBytes(val)
			if err != nil {
				return err
			}
			id = parsed
			return nil
		})
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("device id: %w", err)
	}
	return id, nil
}

func (s *BadgerStore) checkDevice(deviceID uuid.UUID) error {
	own, err := s.DeviceID()
	if err != nil {
		return err
	}
	if deviceID != own {
		return fmt.Errorf("device store belongs to %s, not %s", own, deviceID)
	}
	return nil
}
