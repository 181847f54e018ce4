package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vcfgather/server/internal/access"
	"github.com/vcfgather/server/internal/artifact"
	"github.com/vcfgather/server/internal/metrics"
	"github.com/vcfgather/server/internal/model"
	"github.com/vcfgather/server/internal/quota"
	"github.com/vcfgather/server/internal/realtime"
	"github.com/vcfgather/server/internal/registry"
	"github.com/vcfgather/server/internal/repo"
)

// Deps are the shared components an Engine composes
type Deps struct {
	Sessions     repo.SessionRepo
	Participants repo.ParticipantRepo
	Stream       realtime.Stream
	Records      quota.Store

	MinReconnect time.Duration
	MaxReconnect time.Duration

	Now     func() time.Time
	Logger  *slog.Logger
	Metrics metrics.Recorder
}

// Engine hands out per-caller clients over shared components
type Engine struct {
	deps     Deps
	registry *registry.Registry
	compiler *artifact.Compiler
	limiter  *quota.Limiter
}

// NewEngine wires the registry, compiler and limiter over deps
func NewEngine(deps Deps) *Engine {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Nop{}
	}
	if deps.Records == nil {
		deps.Records = quota.NewMemoryStore()
	}
	return &Engine{
		deps:     deps,
		registry: registry.New(deps.Participants, deps.Sessions, deps.Logger, deps.Metrics),
		compiler: artifact.NewCompiler(deps.Sessions, deps.Participants, deps.Logger, deps.Metrics),
		limiter:  quota.NewLimiter(deps.Now),
	}
}

// Compiler returns the shared artifact compiler
func (e *Engine) Compiler() *artifact.Compiler {
	return e.compiler
}

// Caller identifies who is acting. ID is uuid.Nil for anonymous callers.
// Records overrides the engine's device record store for this caller.
type Caller struct {
	ID       uuid.UUID
	DeviceID uuid.UUID
	Records  quota.Store
}

// For returns a client acting as caller
func (e *Engine) For(caller Caller) *Client {
	if caller.Records == nil {
		caller.Records = e.deps.Records
	}
	return &Client{engine: e, caller: caller}
}

// Client runs operations for a single caller. Every method re-evaluates the
// caller's view of the session passed in.
type Client struct {
	engine *Engine
	caller Caller

	mu        sync.Mutex
	projector *realtime.Projector
}

// SubmitResult reports an accepted submission
type SubmitResult struct {
	Participant  model.Participant `json:"participant"`
	LimitReached bool              `json:"limit_reached"`
	Remaining    int               `json:"remaining"`
	RedirectTo   string            `json:"redirect_to,omitempty"`
}

// View returns the caller's current view of s
func (c *Client) View(s model.Session) access.View {
	return access.Evaluate(s, c.caller.ID, c.engine.deps.Now())
}

// Load fetches a session together with the caller's view of it. Unknown ids
// yield model.ErrNotFound; other read errors are fetch failures.
func (c *Client) Load(ctx context.Context, sessionID uuid.UUID) (model.Session, access.View, error) {
	s, err := c.engine.deps.Sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Session{}, access.View{}, err
		}
		return model.Session{}, access.View{}, model.FetchFailure("get session", err)
	}
	return s, c.View(s), nil
}

// Remaining returns how many submissions the caller's device has left, or -1 when unlimited
func (c *Client) Remaining(ctx context.Context, s model.Session) (int, error) {
	if !c.View(s).RequiresQuota() {
		return -1, nil
	}
	rec, err := c.caller.Records.Load(ctx, c.caller.DeviceID, s.ID)
	if err != nil {
		return 0, err
	}
	return max(quota.SubmissionLimit-len(rec), 0), nil
}

// Submit adds a contact. The device quota is checked before the registry is called
// and updated only after the registry accepted the contact.
func (c *Client) Submit(ctx context.Context, s model.Session, in registry.ContactInput) (SubmitResult, error) {
	view := c.View(s)
	if !view.CanAdd() {
		return SubmitResult{}, fmt.Errorf("add: %w", model.ErrPermissionDenied)
	}

	var rec model.DeviceRecord
	if view.RequiresQuota() {
		var err error
		rec, err = c.caller.Records.Load(ctx, c.caller.DeviceID, s.ID)
		if err != nil {
			return SubmitResult{}, fmt.Errorf("load device record: %w", err)
		}
		if !c.engine.limiter.CanSubmit(rec, false) {
			c.engine.deps.Metrics.SubmissionRejected("quota")
			return SubmitResult{}, model.ErrQuotaExceeded
		}
	}

	p, err := c.engine.registry.Add(ctx, view, s.ID, in)
	if err != nil {
		return SubmitResult{}, err
	}

	res := SubmitResult{Participant: p, Remaining: -1}
	if view.RequiresQuota() {
		updated, reached := c.engine.limiter.Record(rec, p.Name)
		if err := c.caller.Records.Save(ctx, c.caller.DeviceID, s.ID, updated); err != nil {
			c.engine.deps.Logger.Warn("failed to save device record", "session_id", s.ID, "error", err)
		}
		res.LimitReached = reached
		res.Remaining = max(quota.SubmissionLimit-len(updated), 0)
	}
	if !view.IsCreator() && !view.IsExpired() {
		res.RedirectTo = s.DestinationLink
	}
	return res, nil
}

// List returns the participants if the caller may see them
func (c *Client) List(ctx context.Context, s model.Session) ([]model.Participant, error) {
	return c.engine.registry.List(ctx, c.View(s), s.ID)
}

// Search lists the participants and filters them by query
func (c *Client) Search(ctx context.Context, s model.Session, query string) ([]model.Participant, error) {
	list, err := c.List(ctx, s)
	if err != nil {
		return nil, err
	}
	return registry.Search(list, query), nil
}

// Edit changes a participant of a session the caller owns
func (c *Client) Edit(ctx context.Context, s model.Session, participantID uuid.UUID, in registry.ContactInput) (model.Participant, error) {
	return c.engine.registry.Edit(ctx, c.View(s), c.caller.ID, s.ID, participantID, in)
}

// Delete removes a participant and drops it from a running Watch immediately
func (c *Client) Delete(ctx context.Context, s model.Session, participantID uuid.UUID) error {
	if err := c.engine.registry.Delete(ctx, c.View(s), c.caller.ID, s.ID, participantID); err != nil {
		return err
	}

	c.mu.Lock()
	p := c.projector
	c.mu.Unlock()
	if p != nil {
		p.Remove(participantID)
	}
	return nil
}

// Import parses "name,phone" lines from r and bulk imports them
func (c *Client) Import(ctx context.Context, s model.Session, r io.Reader) (int, error) {
	view := c.View(s)
	if !view.CanImport() {
		return 0, fmt.Errorf("import: %w", model.ErrPermissionDenied)
	}
	rows, err := registry.ParseImport(r)
	if err != nil {
		return 0, fmt.Errorf("read import: %w", err)
	}
	return c.engine.registry.BulkImport(ctx, view, s.ID, rows)
}

// Download compiles a fresh contact file and delivers it to sink
func (c *Client) Download(ctx context.Context, s model.Session, sink artifact.Sink) (artifact.ContactFile, error) {
	if !c.View(s).CanDownload() {
		return artifact.ContactFile{}, fmt.Errorf("download: %w", model.ErrPermissionDenied)
	}
	return c.engine.compiler.Export(ctx, s.ID, sink)
}

// Watch follows a session live until ctx is done, calling onChange with every new snapshot
func (c *Client) Watch(ctx context.Context, sessionID uuid.UUID, onChange func(realtime.Snapshot)) error {
	p := realtime.NewProjector(realtime.Config{
		SessionID:    sessionID,
		CallerID:     c.caller.ID,
		Stream:       c.engine.deps.Stream,
		Sessions:     c.engine.deps.Sessions,
		Participants: c.engine.deps.Participants,
		MinReconnect: c.engine.deps.MinReconnect,
		MaxReconnect: c.engine.deps.MaxReconnect,
		Now:          c.engine.deps.Now,
		Logger:       c.engine.deps.Logger,
		Metrics:      c.engine.deps.Metrics,
		OnChange:     onChange,
	})

	c.mu.Lock()
	c.projector = p
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		if c.projector == p {
			c.projector = nil
		}
		c.mu.Unlock()
	}()

	return p.Run(ctx)
}
