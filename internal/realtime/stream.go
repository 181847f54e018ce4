// Package realtime keeps live projections of a session and its participants
// in sync with row changes delivered by a change stream.
package realtime

import (
	"context"

	"github.com/vcfgather/server/internal/model"
)

// Stream delivers row changes matching a filter.
// The returned channel is closed when the subscription fails or ctx is done;
// events missed while disconnected are not replayed.
type Stream interface {
	Subscribe(ctx context.Context, filter model.ChangeFilter) (<-chan model.ChangeEvent, error)
}
