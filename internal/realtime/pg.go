package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/vcfgather/server/internal/model"
)

// NotifyChannel is the LISTEN channel the row triggers notify on
const NotifyChannel = "vcf_changes"

const pingInterval = 60 * time.Second

// PGStream is a Stream backed by PostgreSQL LISTEN/NOTIFY.
// Each subscription owns one pq.Listener connection.
type PGStream struct {
	dsn          string
	minReconnect time.Duration
	maxReconnect time.Duration
	log          *slog.Logger
}

// NewPGStream creates a PGStream for the database at dsn
func NewPGStream(dsn string, minReconnect, maxReconnect time.Duration, log *slog.Logger) *PGStream {
	if log == nil {
		log = slog.Default()
	}
	return &PGStream{
		dsn:          dsn,
		minReconnect: minReconnect,
		maxReconnect: maxReconnect,
		log:          log,
	}
}

// Subscribe opens a listener on NotifyChannel and forwards matching events.
// A dropped connection closes the returned channel even though pq reconnects on
// its own, because notifications sent while disconnected are lost.
func (s *PGStream) Subscribe(ctx context.Context, filter model.ChangeFilter) (<-chan model.ChangeEvent, error) {
	listener := pq.NewListener(s.dsn, s.minReconnect, s.maxReconnect, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			s.log.Warn("change listener event", "event", int(ev), "error", err)
		}
	})
	if err := listener.Listen(NotifyChannel); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("listen %s: %w", NotifyChannel, err)
	}

	out := make(chan model.ChangeEvent, defaultHubBuffer)
	go s.pump(ctx, listener, filter, out)
	return out, nil
}

func (s *PGStream) pump(ctx context.Context, listener *pq.Listener, filter model.ChangeFilter, out chan<- model.ChangeEvent) {
	defer close(out)
	defer listener.Close()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-listener.Notify:
			if !ok || n == nil {
				// nil marks a reconnect
				return
			}
			e, err := decodeNotification(n.Extra)
			if err != nil {
				s.log.Warn("dropping malformed change notification", "error", err)
				continue
			}
			if !filter.Matches(e) {
				continue
			}
			select {
			case out <- e:
			case <-ctx.Done():
				return
			}
		case <-ticker.C:
			if err := listener.Ping(); err != nil {
				s.log.Warn("change listener ping failed", "error", err)
				return
			}
		}
	}
}

func decodeNotification(payload string) (model.ChangeEvent, error) {
	var e model.ChangeEvent
	if err := json.Unmarshal([]byte(payload), &e); err != nil {
		return model.ChangeEvent{}, fmt.Errorf("decode notification: %w", err)
	}
	if e.Table == "" {
		return model.ChangeEvent{}, fmt.Errorf("decode notification: missing table")
	}
	return e, nil
}
