package fast

import (
	"context"
	"time"

	"github.com/rpggio/fastwatch/internal/domain/activity"
	"github.com/rpggio/fastwatch/internal/domain/protocol"
)

// Store is the live document collection holding fasts.
type Store interface {
	// Subscribe streams full snapshots of the user's fasts, current state first.
	Subscribe(ctx context.Context, userID string) (Subscription, error)
	// Create inserts sess, assigning ID and StartTime.
	Create(ctx context.Context, sess *Session) error
	Update(ctx context.Context, userID, id string, patch Patch) error
	Delete(ctx context.Context, userID, id string) error
	// BatchDelete removes all ids atomically.
	BatchDelete(ctx context.Context, userID string, ids []string) error
	Query(ctx context.Context, userID string) ([]Session, error)
}

// Subscription is a cancellable stream of snapshots.
type Subscription interface {
	Snapshots() <-chan []Session
	Close() error
}

// Catalog resolves protocol targets.
type Catalog interface {
	Lookup(id string) (protocol.Protocol, bool)
}

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

// Journal records lifecycle events.
type Journal interface {
	Log(ctx context.Context, userID string, entry *activity.ActivityEntry) error
}
