package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/vcfgather/server/internal/access"
	"github.com/vcfgather/server/internal/metrics"
	"github.com/vcfgather/server/internal/model"
)

// SessionFetcher reads the authoritative session row
type SessionFetcher interface {
	GetByID(ctx context.Context, id uuid.UUID) (model.Session, error)
}

// ParticipantFetcher reads the authoritative participant set
type ParticipantFetcher interface {
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.Participant, error)
}

// Snapshot is a point-in-time copy of a projection
type Snapshot struct {
	Session      model.Session       `json:"session"`
	View         access.View         `json:"view"`
	Participants []model.Participant `json:"participants"`
	Synced       bool                `json:"synced"`
}

// Config configures a Projector
type Config struct {
	SessionID    uuid.UUID
	CallerID     uuid.UUID
	Stream       Stream
	Sessions     SessionFetcher
	Participants ParticipantFetcher

	MinReconnect time.Duration
	MaxReconnect time.Duration

	Now      func() time.Time
	Logger   *slog.Logger
	Metrics  metrics.Recorder
	OnChange func(Snapshot)
}

// Projector maintains a live local copy of one session and, when the caller may
// see it, of its participant list.
type Projector struct {
	cfg Config

	mu           sync.Mutex
	session      model.Session
	participants []model.Participant
	synced       bool
}

// NewProjector creates a Projector; call Run to start following changes
func NewProjector(cfg Config) *Projector {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Nop{}
	}
	if cfg.MinReconnect <= 0 {
		cfg.MinReconnect = time.Second
	}
	if cfg.MaxReconnect < cfg.MinReconnect {
		cfg.MaxReconnect = cfg.MinReconnect
	}
	cfg.Logger = cfg.Logger.With("session_id", cfg.SessionID)
	return &Projector{cfg: cfg}
}

// Run subscribes to session and participant changes and applies them until ctx
// is done. After every (re)subscription the projection is resynced from the store.
// A session that no longer exists ends the run with model.ErrNotFound.
func (p *Projector) Run(ctx context.Context) error {
	for {
		subCtx, cancel := context.WithCancel(ctx)
		sessCh, partCh, err := p.subscribe(subCtx)
		if err != nil {
			cancel()
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if err := p.resync(subCtx); err != nil {
			cancel()
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		dropped := p.consume(subCtx, sessCh, partCh)
		cancel()

		if ctx.Err() != nil {
			return nil
		}

		p.cfg.Logger.Info("change stream dropped, resubscribing", "table", dropped)
		p.cfg.Metrics.StreamResubscribed(dropped)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(p.cfg.MinReconnect):
		}
	}
}

func (p *Projector) newBackoff() retry.Backoff {
	b := retry.NewExponential(p.cfg.MinReconnect)
	if jitter := p.cfg.MinReconnect / 4; jitter > 0 {
		b = retry.WithJitter(jitter, b)
	}
	return retry.WithCappedDuration(p.cfg.MaxReconnect, b)
}

// resync retries Resync with the reconnect backoff until it succeeds, the
// session turns out to be gone, or ctx is done
func (p *Projector) resync(ctx context.Context) error {
	return retry.Do(ctx, p.newBackoff(), func(ctx context.Context) error {
		err := p.Resync(ctx)
		if err == nil || errors.Is(err, model.ErrNotFound) || ctx.Err() != nil {
			return err
		}
		p.cfg.Logger.Warn("projection resync failed", "error", err)
		return retry.RetryableError(err)
	})
}

func (p *Projector) subscribe(ctx context.Context) (<-chan model.ChangeEvent, <-chan model.ChangeEvent, error) {
	var sessCh, partCh <-chan model.ChangeEvent

	err := retry.Do(ctx, p.newBackoff(), func(ctx context.Context) error {
		var err error
		sessCh, err = p.cfg.Stream.Subscribe(ctx, model.ChangeFilter{
			Table:  model.TableSessions,
			Column: "id",
			Value:  p.cfg.SessionID.String(),
		})
		if err != nil {
			p.cfg.Logger.Warn("subscribe to session changes failed", "error", err)
			return retry.RetryableError(err)
		}

		partCh, err = p.cfg.Stream.Subscribe(ctx, model.ChangeFilter{
			Table:  model.TableParticipants,
			Column: "session_id",
			Value:  p.cfg.SessionID.String(),
		})
		if err != nil {
			p.cfg.Logger.Warn("subscribe to participant changes failed", "error", err)
			drain(sessCh)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("subscribe: %w", err)
	}
	return sessCh, partCh, nil
}

// drain discards events until the abandoned subscription is closed
func drain(ch <-chan model.ChangeEvent) {
	go func() {
		for range ch {
		}
	}()
}

// consume applies events until ctx is done or a subscription closes, and
// returns the table whose subscription closed
func (p *Projector) consume(ctx context.Context, sessCh, partCh <-chan model.ChangeEvent) string {
	expiry := time.NewTimer(p.untilExpiry())
	defer expiry.Stop()

	for {
		select {
		case <-ctx.Done():
			return ""
		case e, ok := <-sessCh:
			if !ok {
				drain(partCh)
				return model.TableSessions
			}
			p.applySession(ctx, e)
		case _, ok := <-partCh:
			if !ok {
				drain(sessCh)
				return model.TableParticipants
			}
			p.refreshParticipants(ctx)
		case <-expiry.C:
			// crossing expiry changes who may see the list
			p.refreshParticipants(ctx)
		}
		expiry.Reset(p.untilExpiry())
	}
}

func (p *Projector) untilExpiry() time.Duration {
	p.mu.Lock()
	s, synced := p.session, p.synced
	p.mu.Unlock()

	if !synced {
		return time.Hour
	}
	d := s.ExpiresAt().Sub(p.cfg.Now())
	if d < 0 {
		return time.Hour
	}
	// the boundary instant is still active
	return d + time.Millisecond
}

// Resync replaces the projection with a full refetch. It is idempotent and safe
// to call at any time; results are discarded if ctx is done before they arrive.
func (p *Projector) Resync(ctx context.Context) error {
	s, err := p.cfg.Sessions.GetByID(ctx, p.cfg.SessionID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return err
		}
		return model.FetchFailure("get session", err)
	}

	view := access.Evaluate(s, p.cfg.CallerID, p.cfg.Now())
	var parts []model.Participant
	if view.CanViewList() {
		parts, err = p.cfg.Participants.ListBySession(ctx, p.cfg.SessionID)
		if err != nil {
			return model.FetchFailure("list participants", err)
		}
	}

	p.mu.Lock()
	if ctx.Err() != nil {
		p.mu.Unlock()
		return ctx.Err()
	}
	p.session = s
	p.participants = parts
	p.synced = true
	snap := p.snapshotLocked()
	p.mu.Unlock()

	p.notify(snap)
	return nil
}

func (p *Projector) applySession(ctx context.Context, e model.ChangeEvent) {
	if e.Op == model.OpDelete {
		return
	}

	p.mu.Lock()
	// the next resync reads the whole row
	if ctx.Err() != nil || !p.synced {
		p.mu.Unlock()
		return
	}
	p.session.Merge(e.Record)
	snap := p.snapshotLocked()
	p.mu.Unlock()

	p.notify(snap)
}

func (p *Projector) refreshParticipants(ctx context.Context) {
	p.mu.Lock()
	synced := p.synced
	view := access.Evaluate(p.session, p.cfg.CallerID, p.cfg.Now())
	p.mu.Unlock()

	// an unsynced session says nothing about who may see the list
	if !synced || !view.CanViewList() {
		return
	}

	parts, err := p.cfg.Participants.ListBySession(ctx, p.cfg.SessionID)
	if err != nil {
		if ctx.Err() == nil {
			p.cfg.Logger.Warn("participant refetch failed", "error", err)
		}
		return
	}

	p.mu.Lock()
	if ctx.Err() != nil {
		p.mu.Unlock()
		return
	}
	p.participants = parts
	snap := p.snapshotLocked()
	p.mu.Unlock()

	p.cfg.Metrics.ProjectionRefreshed()
	p.notify(snap)
}

// Remove drops a participant from the local list ahead of the change stream
func (p *Projector) Remove(participantID uuid.UUID) {
	p.mu.Lock()
	p.participants = slices.DeleteFunc(slices.Clone(p.participants), func(x model.Participant) bool {
		return x.ID == participantID
	})
	snap := p.snapshotLocked()
	p.mu.Unlock()

	p.notify(snap)
}

// Snapshot returns a copy of the current projection
func (p *Projector) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

// must hold p.mu. Before the first resync there is no session to evaluate.
func (p *Projector) snapshotLocked() Snapshot {
	if !p.synced {
		return Snapshot{Session: p.session}
	}
	return Snapshot{
		Session:      p.session,
		View:         access.Evaluate(p.session, p.cfg.CallerID, p.cfg.Now()),
		Participants: slices.Clone(p.participants),
		Synced:       p.synced,
	}
}

func (p *Projector) notify(s Snapshot) {
	if p.cfg.OnChange != nil {
		p.cfg.OnChange(s)
	}
}
