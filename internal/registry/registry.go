// Package registry stores and mutates the participants of a session on behalf of a caller.
//
// Every operation is gated on the caller's access.View before the store is touched.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/vcfgather/server/internal/access"
	"github.com/vcfgather/server/internal/logger"
	"github.com/vcfgather/server/internal/metrics"
	"github.com/vcfgather/server/internal/model"
	"github.com/vcfgather/server/internal/repo"
)

// Counter maintains the cached participant count of a session
type Counter interface {
	IncrementParticipantCount(ctx context.Context, sessionID uuid.UUID) (int, error)
}

// Registry is the contact registry of all sessions
type Registry struct {
	participants repo.ParticipantRepo
	counter      Counter
	log          *slog.Logger
	metrics      metrics.Recorder
}

// New creates a Registry. log and rec may be nil.
func New(participants repo.ParticipantRepo, counter Counter, log *slog.Logger, rec metrics.Recorder) *Registry {
	if log == nil {
		log = slog.Default()
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Registry{
		participants: participants,
		counter:      counter,
		log:          log,
		metrics:      rec,
	}
}

func (r *Registry) deny(op string, sessionID uuid.UUID, view access.View) error {
	r.log.Info("operation denied", "op", op, "session_id", sessionID, "role", view.Role, "phase", view.Phase)
	r.metrics.SubmissionRejected("permission")
	return fmt.Errorf("%s: %w", op, model.ErrPermissionDenied)
}

// Add validates and stores a contact, then bumps the session's participant count.
// A failed count update is logged and does not fail the add.
func (r *Registry) Add(ctx context.Context, view access.View, sessionID uuid.UUID, in ContactInput) (model.Participant, error) {
	if !view.CanAdd() {
		return model.Participant{}, r.deny("add", sessionID, view)
	}

	in, err := ValidateContact(in)
	if err != nil {
		r.metrics.SubmissionRejected("validation")
		return model.Participant{}, err
	}

	p, err := r.participants.Insert(ctx, model.Participant{
		SessionID: sessionID,
		Name:      in.Name,
		Phone:     in.Phone(),
	})
	if err != nil {
		if errors.Is(err, model.ErrDuplicateContact) {
			r.metrics.SubmissionRejected("duplicate")
			r.log.Info("duplicate contact", "session_id", sessionID, "phone", logger.MaskPhone(in.Phone()))
		}
		return model.Participant{}, err
	}

	r.bumpCount(ctx, sessionID)
	r.metrics.ParticipantAdded()
	r.log.Info("participant added",
		"session_id", sessionID,
		"participant_id", p.ID,
		"phone", logger.MaskPhone(p.Phone),
		"role", view.Role,
	)
	return p, nil
}

func (r *Registry) bumpCount(ctx context.Context, sessionID uuid.UUID) {
	if _, err := r.counter.IncrementParticipantCount(ctx, sessionID); err != nil {
		r.log.Error("failed to increment participant count", "session_id", sessionID, "error", err)
	}
}

// Edit replaces name and phone of a participant. Only rows of sessions owned by
// callerID are touched; when none is, the edit is refused.
func (r *Registry) Edit(ctx context.Context, view access.View, callerID, sessionID, participantID uuid.UUID, in ContactInput) (model.Participant, error) {
	if !view.CanEdit() {
		return model.Participant{}, r.deny("edit", sessionID, view)
	}

	in, err := ValidateContact(in)
	if err != nil {
		return model.Participant{}, err
	}

	updated, err := r.participants.Update(ctx, callerID, sessionID, participantID, in.Name, in.Phone())
	if err != nil {
		return model.Participant{}, err
	}
	if len(updated) == 0 {
		r.log.Warn("edit affected no rows", "session_id", sessionID, "participant_id", participantID)
		return model.Participant{}, fmt.Errorf("update failed, you may not have permission to edit this contact: %w", model.ErrPermissionDenied)
	}

	r.log.Info("participant edited", "session_id", sessionID, "participant_id", participantID)
	return updated[0], nil
}

// Delete removes a participant. The cached participant count is left as is.
func (r *Registry) Delete(ctx context.Context, view access.View, callerID, sessionID, participantID uuid.UUID) error {
	if !view.CanDelete() {
		return r.deny("delete", sessionID, view)
	}

	n, err := r.participants.Delete(ctx, callerID, sessionID, participantID)
	if err != nil {
		return err
	}
	if n == 0 {
		r.log.Warn("delete affected no rows", "session_id", sessionID, "participant_id", participantID)
		return fmt.Errorf("could not delete contact: %w", model.ErrPermissionDenied)
	}

	r.log.Info("participant deleted", "session_id", sessionID, "participant_id", participantID)
	return nil
}

// BulkImport stores every valid row and returns how many were stored.
// Invalid and duplicate rows are skipped; if nothing was stored the import fails.
func (r *Registry) BulkImport(ctx context.Context, view access.View, sessionID uuid.UUID, rows []ImportRow) (int, error) {
	if !view.CanImport() {
		return 0, r.deny("import", sessionID, view)
	}

	imported := 0
	for _, row := range rows {
		row.Name = sanitizeName(row.Name)
		row.Phone = strings.TrimSpace(row.Phone)
		if !row.valid() {
			continue
		}

		_, err := r.participants.Insert(ctx, model.Participant{SessionID: sessionID, Name: row.Name, Phone: row.Phone})
		if err != nil {
			if ctx.Err() != nil {
				return imported, ctx.Err()
			}
			r.log.Debug("import row skipped", "session_id", sessionID, "phone", logger.MaskPhone(row.Phone), "error", err)
			continue
		}
		r.bumpCount(ctx, sessionID)
		imported++
	}

	r.metrics.ParticipantsImported(imported, len(rows)-imported)
	r.log.Info("bulk import finished", "session_id", sessionID, "imported", imported, "rows", len(rows))

	if imported == 0 {
		return 0, model.ImportFailed()
	}
	return imported, nil
}

// List returns the current participant set if the view permits it
func (r *Registry) List(ctx context.Context, view access.View, sessionID uuid.UUID) ([]model.Participant, error) {
	if !view.CanViewList() {
		return nil, r.deny("list", sessionID, view)
	}

	list, err := r.participants.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, model.FetchFailure("list participants", err)
	}
	return list, nil
}

// Search filters participants by case-insensitive name match or phone substring
func Search(participants []model.Participant, query string) []model.Participant {
	query = strings.TrimSpace(query)
	if query == "" {
		return participants
	}
	lower := strings.ToLower(query)
	return lo.Filter(participants, func(p model.Participant, _ int) bool {
		return strings.Contains(strings.ToLower(p.Name), lower) || strings.Contains(p.Phone, query)
	})
}
