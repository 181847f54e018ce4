// Package session creates sessions and runs contact operations on behalf of one caller.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/vcfgather/server/internal/access"
	"github.com/vcfgather/server/internal/model"
	"github.com/vcfgather/server/internal/repo"
)

const (
	DefaultDurationMinutes = 30
	MaxDurationMinutes     = 43200
)

// DurationOptions are the durations offered to creators, in minutes
var DurationOptions = []int{5, 30, 1440, 10080, 20160, 43200}

var validate = validator.New()

// CreateInput describes a new session
type CreateInput struct {
	Name            string `json:"name" validate:"required,max=200"`
	DestinationLink string `json:"destination_link" validate:"required,http_url"`
	DurationMinutes int    `json:"duration_minutes" validate:"min=1,max=43200"`
}

var createMessages = map[string]string{
	"Name":            "session name is required",
	"DestinationLink": "destination link must be an http(s) URL",
	"DurationMinutes": fmt.Sprintf("duration must be between 1 and %d minutes", MaxDurationMinutes),
}

var createFields = map[string]string{
	"Name":            "name",
	"DestinationLink": "destination_link",
	"DurationMinutes": "duration_minutes",
}

// Dashboard summarizes a creator's sessions
type Dashboard struct {
	Sessions          []model.Session `json:"sessions"`
	ActiveSessions    int             `json:"active_sessions"`
	TotalParticipants int             `json:"total_participants"`
}

// Service manages sessions
type Service struct {
	sessions repo.SessionRepo
	now      func() time.Time
	log      *slog.Logger
}

// NewService creates a Service. now and log may be nil.
func NewService(sessions repo.SessionRepo, now func() time.Time, log *slog.Logger) *Service {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{sessions: sessions, now: now, log: log}
}

// Create validates in and stores a new session owned by creatorID
func (s *Service) Create(ctx context.Context, creatorID uuid.UUID, in CreateInput) (model.Session, error) {
	if creatorID == uuid.Nil {
		return model.Session{}, fmt.Errorf("create session: %w", model.ErrPermissionDenied)
	}

	in.Name = strings.TrimSpace(in.Name)
	in.DestinationLink = strings.TrimSpace(in.DestinationLink)
	if in.DurationMinutes == 0 {
		in.DurationMinutes = DefaultDurationMinutes
	}

	if err := validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			f := verrs[0].StructField()
			return model.Session{}, model.NewValidationError(createFields[f], createMessages[f])
		}
		return model.Session{}, err
	}

	created, err := s.sessions.Create(ctx, model.Session{
		Name:            in.Name,
		CreatorID:       creatorID,
		CreatedAt:       s.now().UTC(),
		DurationMinutes: in.DurationMinutes,
		DestinationLink: in.DestinationLink,
	})
	if err != nil {
		return model.Session{}, err
	}

	s.log.Info("session created",
		"session_id", created.ID,
		"creator_id", creatorID,
		"duration_minutes", created.DurationMinutes,
	)
	return created, nil
}

// Get returns a session; unknown ids yield model.ErrNotFound
func (s *Service) Get(ctx context.Context, id uuid.UUID) (model.Session, error) {
	sess, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Session{}, err
		}
		return model.Session{}, model.FetchFailure("get session", err)
	}
	return sess, nil
}

// Dashboard lists the creator's sessions newest first with totals
func (s *Service) Dashboard(ctx context.Context, creatorID uuid.UUID) (Dashboard, error) {
	list, err := s.sessions.ListByCreator(ctx, creatorID)
	if err != nil {
		return Dashboard{}, model.FetchFailure("list sessions", err)
	}
	if list == nil {
		list = []model.Session{}
	}

	now := s.now()
	return Dashboard{
		Sessions: list,
		ActiveSessions: lo.CountBy(list, func(x model.Session) bool {
			return !access.Evaluate(x, creatorID, now).IsExpired()
		}),
		TotalParticipants: lo.SumBy(list, func(x model.Session) int {
			return x.ParticipantCount
		}),
	}, nil
}
