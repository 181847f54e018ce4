// Package quota throttles repeated submissions from one device to one session.
//
// The limit is advisory: the record is kept on the submitting device and a new
// device or cleared storage starts over. The registry never consults it.
package quota

import (
	"time"

	"github.com/vcfgather/server/internal/model"
)

// SubmissionLimit is the number of contacts a non-creator device may submit per session
const SubmissionLimit = 3

// Limiter decides whether a device may submit again and records accepted submissions
type Limiter struct {
	now func() time.Time
}

// NewLimiter creates a Limiter. A nil clock means time.Now.
func NewLimiter(now func() time.Time) *Limiter {
	if now == nil {
		now = time.Now
	}
	return &Limiter{now: now}
}

// CanSubmit reports whether another submission is allowed. Creators are never limited.
func (l *Limiter) CanSubmit(rec model.DeviceRecord, isCreator bool) bool {
	if isCreator {
		return true
	}
	return len(rec) < SubmissionLimit
}

// Record appends an accepted submission and reports whether the device has now reached the limit.
// A record that is already full is returned unchanged.
func (l *Limiter) Record(rec model.DeviceRecord, name string) (model.DeviceRecord, bool) {
	if len(rec) >= SubmissionLimit {
		return rec.Clone(), true
	}
	out := append(rec.Clone(), model.SubmissionEntry{Name: name, Timestamp: l.now().UTC()})
	return out, len(out) >= SubmissionLimit
}

// LimitReached reports whether rec is full
func LimitReached(rec model.DeviceRecord) bool {
	return len(rec) >= SubmissionLimit
}
