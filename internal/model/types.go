package model

import (
	"time"

	"github.com/google/uuid"
)

// Session represents a time-bounded contact collection campaign owned by a creator
type Session struct {
	ID               uuid.UUID `json:"id"`
	Name             string    `json:"name"`
	CreatorID        uuid.UUID `json:"creator_id"`
	CreatedAt        time.Time `json:"created_at"`
	DurationMinutes  int       `json:"duration_minutes"`
	DestinationLink  string    `json:"destination_link"`
	ParticipantCount int       `json:"participant_count"`
}

// ExpiresAt returns the instant after which the session is expired
func (s Session) ExpiresAt() time.Time {
	return s.CreatedAt.Add(time.Duration(s.DurationMinutes) * time.Minute)
}

// IsExpired reports whether now is strictly past the expiry instant
func (s Session) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt())
}

// Participant represents one submitted contact of a session.
// Phone holds the dial code and subscriber number concatenated.
type Participant struct {
	ID        uuid.UUID `json:"id"`
	SessionID uuid.UUID `json:"session_id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}

// SubmissionEntry is one accepted submission remembered by a device
type SubmissionEntry struct {
	Name      string    `json:"name"`
	Timestamp time.Time `json:"timestamp"`
}

// DeviceRecord is the ordered list of submissions a device made for one session.
// It lives on the device only and is advisory.
type DeviceRecord []SubmissionEntry

// Clone returns a copy that does not share the backing array
func (r DeviceRecord) Clone() DeviceRecord {
	if r == nil {
		return nil
	}
	out := make(DeviceRecord, len(r))
	copy(out, r)
	return out
}
