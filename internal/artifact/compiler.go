// Package artifact compiles the participants of a session into a vCard contact file.
package artifact

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vcfgather/server/internal/metrics"
	"github.com/vcfgather/server/internal/model"
)

// ReadinessDelay is the countdown shown before a download starts. It paces the
// user interface only; the compiler always refetches regardless.
const ReadinessDelay = 3 * time.Second

// ContactFile is a compiled contact file
type ContactFile struct {
	Filename string
	Content  string
	Count    int
}

// SessionFetcher reads the session row
type SessionFetcher interface {
	GetByID(ctx context.Context, id uuid.UUID) (model.Session, error)
}

// ParticipantFetcher reads the participant set
type ParticipantFetcher interface {
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.Participant, error)
}

// Compiler builds contact files from the authoritative store
type Compiler struct {
	sessions     SessionFetcher
	participants ParticipantFetcher
	log          *slog.Logger
	metrics      metrics.Recorder
}

// NewCompiler creates a Compiler. log and rec may be nil.
func NewCompiler(sessions SessionFetcher, participants ParticipantFetcher, log *slog.Logger, rec metrics.Recorder) *Compiler {
	if log == nil {
		log = slog.Default()
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Compiler{sessions: sessions, participants: participants, log: log, metrics: rec}
}

// Compile re-reads the session and its participants and serializes them.
// It never uses a cached list.
func (c *Compiler) Compile(ctx context.Context, sessionID uuid.UUID) (ContactFile, error) {
	s, err := c.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return ContactFile{}, err
		}
		c.metrics.CompileFailed("fetch")
		return ContactFile{}, model.FetchFailure("get session", err)
	}

	participants, err := c.participants.ListBySession(ctx, sessionID)
	if err != nil {
		c.metrics.CompileFailed("fetch")
		return ContactFile{}, model.FetchFailure("list participants", err)
	}
	if len(participants) == 0 {
		c.metrics.CompileFailed("empty")
		return ContactFile{}, model.ErrEmptySet
	}

	f := ContactFile{
		Filename: Filename(s.Name),
		Content:  Encode(participants),
		Count:    len(participants),
	}

	c.metrics.ArtifactCompiled(f.Count)
	c.log.Info("contact file compiled", "session_id", sessionID, "contacts", f.Count, "filename", f.Filename)
	return f, nil
}

// Export compiles the file and hands it to sink
func (c *Compiler) Export(ctx context.Context, sessionID uuid.UUID, sink Sink) (ContactFile, error) {
	f, err := c.Compile(ctx, sessionID)
	if err != nil {
		return ContactFile{}, err
	}
	if err := sink.Deliver(ctx, f.Filename, []byte(f.Content)); err != nil {
		return ContactFile{}, err
	}
	return f, nil
}
