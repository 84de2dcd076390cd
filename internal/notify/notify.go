package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// StatusEvent carries enough data for an external observer to decide whether
// to email or SMS the owner. Message content is out of scope here.
type StatusEvent struct {
	RequestType string    `json:"request_type"`
	RequestID   uuid.UUID `json:"request_id"`
	OwnerID     uuid.UUID `json:"owner_id"`
	OldStatus   string    `json:"old_status"`
	NewStatus   string    `json:"new_status"`
	Timestamp   time.Time `json:"timestamp"`
}

// Publisher receives status-change events after the owning transaction has
// committed. Implementations must not block the request path on failure.
type Publisher interface {
	PublishStatusChange(ctx context.Context, event StatusEvent)
}

// Fanout forwards each event to every configured publisher. Nil members are
// skipped, so the hub and the kafka writer can be wired independently.
type Fanout []Publisher

func (f Fanout) PublishStatusChange(ctx context.Context, event StatusEvent) {
	for _, p := range f {
		if p != nil {
			p.PublishStatusChange(ctx, event)
		}
	}
}
