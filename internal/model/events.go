package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Table names as delivered by change streams
const (
	TableSessions     = "sessions"
	TableParticipants = "participants"
)

// ChangeOp is the kind of row change carried by a ChangeEvent
type ChangeOp string

const (
	OpInsert ChangeOp = "INSERT"
	OpUpdate ChangeOp = "UPDATE"
	OpDelete ChangeOp = "DELETE"
)

// ChangeEvent is a single row change delivered by a change stream.
// Record maps column names to JSON-decoded values.
type ChangeEvent struct {
	Table  string         `json:"table"`
	Op     ChangeOp       `json:"op"`
	Record map[string]any `json:"record"`
}

// ChangeFilter selects events of one table whose Column equals Value
type ChangeFilter struct {
	Table  string
	Column string
	Value  string
}

// Matches reports whether the event passes the filter
func (f ChangeFilter) Matches(e ChangeEvent) bool {
	if e.Table != f.Table {
		return false
	}
	if f.Column == "" {
		return true
	}
	v, ok := e.Record[f.Column]
	if !ok {
		return false
	}
	return fmt.Sprint(v) == f.Value
}

// RecordOf converts a row struct to the column map used in change events
func RecordOf(v any) map[string]any {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil
	}
	return out
}

// Merge applies the changed columns of a session row onto s (shallow, last write wins per field).
// Unknown columns and values of an unexpected type are ignored.
func (s *Session) Merge(fields map[string]any) {
	for key, raw := range fields {
		switch key {
		case "name":
			if v, ok := raw.(string); ok {
				s.Name = v
			}
		case "destination_link":
			if v, ok := raw.(string); ok {
				s.DestinationLink = v
			}
		case "duration_minutes":
			if v, ok := toInt(raw); ok {
				s.DurationMinutes = v
			}
		case "participant_count":
			if v, ok := toInt(raw); ok {
				s.ParticipantCount = v
			}
		case "creator_id":
			if v, ok := raw.(string); ok {
				if id, err := uuid.Parse(v); err == nil {
					s.CreatorID = id
				}
			}
		case "created_at":
			if v, ok := raw.(string); ok {
				if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
					s.CreatedAt = t
				}
			}
		}
	}
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	}
	return 0, false
}
