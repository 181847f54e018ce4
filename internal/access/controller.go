// Package access derives what a caller may do with a session from its timestamps and the caller identity.
package access

import (
	"time"

	"github.com/google/uuid"
	"github.com/vcfgather/server/internal/model"
)

// Role is the caller's relation to a session
type Role string

const (
	RoleCreator     Role = "creator"
	RoleParticipant Role = "participant"
	RolePublic      Role = "public"
)

// Phase is the session lifecycle phase
type Phase string

const (
	PhaseActive  Phase = "active"
	PhaseExpired Phase = "expired"
)

// View is the effective view of a session for one caller at one instant
type View struct {
	Role  Role  `json:"role"`
	Phase Phase `json:"phase"`
}

// Evaluate computes the view for callerID at now. uuid.Nil is an anonymous caller.
// It holds no state and must be called again whenever now moves.
func Evaluate(s model.Session, callerID uuid.UUID, now time.Time) View {
	phase := PhaseActive
	if s.IsExpired(now) {
		phase = PhaseExpired
	}

	switch {
	case callerID != uuid.Nil && callerID == s.CreatorID:
		return View{Role: RoleCreator, Phase: phase}
	case phase == PhaseExpired:
		return View{Role: RolePublic, Phase: phase}
	default:
		return View{Role: RoleParticipant, Phase: phase}
	}
}

// IsCreator reports whether the caller owns the session
func (v View) IsCreator() bool { return v.Role == RoleCreator }

// IsExpired reports whether the session is past its expiry
func (v View) IsExpired() bool { return v.Phase == PhaseExpired }

// CanAdd reports whether a contact may be submitted
func (v View) CanAdd() bool { return v.IsCreator() || !v.IsExpired() }

// CanViewList reports whether the participant list may be read
func (v View) CanViewList() bool { return v.IsCreator() || v.IsExpired() }

// CanEdit reports whether participants may be edited
func (v View) CanEdit() bool { return v.IsCreator() }

// CanDelete reports whether participants may be deleted
func (v View) CanDelete() bool { return v.IsCreator() }

// CanImport reports whether bulk import is allowed
func (v View) CanImport() bool { return v.IsCreator() }

// CanDownload reports whether the contact file may be compiled
func (v View) CanDownload() bool { return v.CanViewList() }

// RequiresQuota reports whether submissions count against the device limit
func (v View) RequiresQuota() bool { return !v.IsCreator() }
