package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/vcfgather/server/internal/model"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation
const uniqueViolation = "23505"

// ParticipantRepo defines the interface for participant repository operations.
// Update and Delete are scoped to rows of sessions owned by creatorID; rows of
// other creators are silently left untouched, like a row-level security policy.
type ParticipantRepo interface {
	Insert(ctx context.Context, p model.Participant) (model.Participant, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.Participant, error)
	CountBySession(ctx context.Context, sessionID uuid.UUID) (int, error)
	Update(ctx context.Context, creatorID, sessionID, participantID uuid.UUID, name, phone string) ([]model.Participant, error)
	Delete(ctx context.Context, creatorID, sessionID, participantID uuid.UUID) (int64, error)
}

type participantRepo struct {
	db *sql.DB
}

// NewParticipantRepo creates a new ParticipantRepo instance
func NewParticipantRepo(db *sql.DB) ParticipantRepo {
	return &participantRepo{db: db}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// Insert adds a participant; a (session_id, phone) collision yields model.ErrDuplicateContact
func (r *participantRepo) Insert(ctx context.Context, p model.Participant) (model.Participant, error) {
	query := `
		INSERT INTO participants (session_id, name, phone)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query, p.SessionID, p.Name, p.Phone).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Participant{}, model.ErrDuplicateContact
		}
		return model.Participant{}, fmt.Errorf("failed to insert participant: %w", err)
	}
	return p, nil
}

// ListBySession returns every participant of the session in insertion order
func (r *participantRepo) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.Participant, error) {
	query := `
		SELECT id, session_id, name, phone, created_at
		FROM participants
		WHERE session_id = $1
		ORDER BY created_at, id
	`
	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	defer rows.Close()

	var participants []model.Participant
	for rows.Next() {
		var p model.Participant
		if err := rows.Scan(&p.ID, &p.SessionID, &p.Name, &p.Phone, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate participants: %w", err)
	}
	return participants, nil
}

// CountBySession counts the live participant rows of a session
func (r *participantRepo) CountBySession(ctx context.Context, sessionID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM participants WHERE session_id = $1`, sessionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count participants: %w", err)
	}
	return count, nil
}

// Update changes name and phone and returns the rows actually updated
func (r *participantRepo) Update(ctx context.Context, creatorID, sessionID, participantID uuid.UUID, name, phone string) ([]model.Participant, error) {
	query := `
		UPDATE participants p
		SET name = $1, phone = $2
		FROM sessions s
		WHERE p.id = $3
		  AND p.session_id = $4
		  AND s.id = p.session_id
		  AND s.creator_id = $5
		RETURNING p.id, p.session_id, p.name, p.phone, p.created_at
	`
	rows, err := r.db.QueryContext(ctx, query, name, phone, participantID, sessionID, creatorID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, model.ErrDuplicateContact
		}
		return nil, fmt.Errorf("failed to update participant: %w", err)
	}
	defer rows.Close()

	var updated []model.Participant
	for rows.Next() {
		var p model.Participant
		if err := rows.Scan(&p.ID, &p.SessionID, &p.Name, &p.Phone, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		updated = append(updated, p)
	}
	if err := rows.Err(); err != nil {
		if isUniqueViolation(err) {
			return nil, model.ErrDuplicateContact
		}
		return nil, fmt.Errorf("failed to update participant: %w", err)
	}
	return updated, nil
}

// Delete removes the participant and returns the number of rows deleted
func (r *participantRepo) Delete(ctx context.Context, creatorID, sessionID, participantID uuid.UUID) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM participants p
		USING sessions s
		WHERE p.id = $1
		  AND p.session_id = $2
		  AND s.id = p.session_id
		  AND s.creator_id = $3
	`, participantID, sessionID, creatorID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete participant: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
