package realtime

import (
	"context"
	"sync"

	"github.com/vcfgather/server/internal/model"
)

const defaultHubBuffer = 64

type hubSubscriber struct {
	filter model.ChangeFilter
	ch     chan model.ChangeEvent
}

// Hub is an in-process Stream fed by Publish. A subscriber whose buffer is
// full is dropped: its channel is closed and it has to resubscribe and resync.
type Hub struct {
	mu     sync.Mutex
	subs   map[*hubSubscriber]struct{}
	buffer int
}

// NewHub creates a Hub with the given per-subscriber buffer (0 selects the default)
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultHubBuffer
	}
	return &Hub{
		subs:   make(map[*hubSubscriber]struct{}),
		buffer: buffer,
	}
}

// Subscribe registers a subscriber until ctx is done
func (h *Hub) Subscribe(ctx context.Context, filter model.ChangeFilter) (<-chan model.ChangeEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sub := &hubSubscriber{filter: filter, ch: make(chan model.ChangeEvent, h.buffer)}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.remove(sub)
	}()

	return sub.ch, nil
}

// Publish fans e out to every matching subscriber without blocking
func (h *Hub) Publish(e model.ChangeEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		if !sub.filter.Matches(e) {
			continue
		}
		select {
		case sub.ch <- e:
		default:
			delete(h.subs, sub)
			close(sub.ch)
		}
	}
}

// DropAll closes every subscription, as if the stream had failed
func (h *Hub) DropAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		delete(h.subs, sub)
		close(sub.ch)
	}
}

// Subscribers returns the number of open subscriptions
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) remove(sub *hubSubscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub]; ok {
		delete(h.subs, sub)
		close(sub.ch)
	}
}
