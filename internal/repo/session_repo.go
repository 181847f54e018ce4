package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/vcfgather/server/internal/model"
)

// SessionRepo defines the interface for session repository operations
type SessionRepo interface {
	Create(ctx context.Context, s model.Session) (model.Session, error)
	GetByID(ctx context.Context, id uuid.UUID) (model.Session, error)
	ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]model.Session, error)
	IncrementParticipantCount(ctx context.Context, id uuid.UUID) (int, error)
}

type sessionRepo struct {
	db *sql.DB
}

// NewSessionRepo creates a new SessionRepo instance
func NewSessionRepo(db *sql.DB) SessionRepo {
	return &sessionRepo{db: db}
}

const sessionColumns = `id, name, creator_id, created_at, duration_minutes, destination_link, participant_count`

func scanSession(row interface{ Scan(...any) error }) (model.Session, error) {
	var s model.Session
	err := row.Scan(
		&s.ID,
		&s.Name,
		&s.CreatorID,
		&s.CreatedAt,
		&s.DurationMinutes,
		&s.DestinationLink,
		&s.ParticipantCount,
	)
	return s, err
}

// Create inserts a new session; id, created_at and participant_count are assigned by the database
func (r *sessionRepo) Create(ctx context.Context, s model.Session) (model.Session, error) {
	query := `
		INSERT INTO sessions (name, creator_id, duration_minutes, destination_link)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + sessionColumns

	created, err := scanSession(r.db.QueryRowContext(ctx, query, s.Name, s.CreatorID, s.DurationMinutes, s.DestinationLink))
	if err != nil {
		return model.Session{}, fmt.Errorf("failed to create session: %w", err)
	}
	return created, nil
}

// GetByID retrieves a session by ID
func (r *sessionRepo) GetByID(ctx context.Context, id uuid.UUID) (model.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`

	s, err := scanSession(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Session{}, fmt.Errorf("session %s: %w", id, model.ErrNotFound)
		}
		return model.Session{}, fmt.Errorf("failed to query session: %w", err)
	}
	return s, nil
}

// ListByCreator returns the creator's sessions, newest first
func (r *sessionRepo) ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]model.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE creator_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, creatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []model.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}
	return sessions, nil
}

// IncrementParticipantCount atomically bumps participant_count and returns the new value
func (r *sessionRepo) IncrementParticipantCount(ctx context.Context, id uuid.UUID) (int, error) {
	var count sql.NullInt64
	err := r.db.QueryRowContext(ctx, `SELECT increment_participant_count($1)`, id).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("increment participant count: %w", err)
	}
	if !count.Valid {
		return 0, fmt.Errorf("session %s: %w", id, model.ErrNotFound)
	}
	return int(count.Int64), nil
}
