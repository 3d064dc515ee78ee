// Package ports defines the storage contracts the registration service
// depends on. Memory, Postgres and Redis stores implement them.
package ports

import (
	"context"

	"eventreg/internal/registration/models"
)

// Tx is the view of the store inside one transaction attempt. Reads observe
// a consistent snapshot; writes become visible only if the attempt commits.
type Tx interface {
	// Counter reads the named counter. ok is false when it does not exist yet.
	Counter(ctx context.Context, key string) (value int64, ok bool, err error)
	// InitCounter creates the named counter with value 1. It must conflict with
	// a concurrent initialization rather than overwrite it.
	InitCounter(ctx context.Context, key string) error
	// UpdateCounter sets an existing counter to value.
	UpdateCounter(ctx context.Context, key string, value int64) error
	// NewID returns a fresh unique document identifier.
	NewID() string
	// Insert writes a new registration under r.ID.
	Insert(ctx context.Context, r *models.Registration) error
}

// Store persists registrations and their sequence counters.
type Store interface {
	// RunInTx executes fn as a single attempt. Conflicts surface as
	// sentinel.ErrConflict; retrying is the caller's responsibility.
	RunInTx(ctx context.Context, fn func(tx Tx) error) error
	// ListBySequence returns up to limit records ordered by ascending sequence.
	ListBySequence(ctx context.Context, limit int) ([]*models.Registration, error)
	// FindByNamePrefix returns up to q.Limit records whose name starts with
	// q.Prefix (case-sensitive), ordered by name.
	FindByNamePrefix(ctx context.Context, q models.NameQuery) ([]*models.Registration, error)
	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error
}
