// Package session persists export sessions. Backends share one contract:
// Update applies a caller-supplied mutation atomically so concurrent workers
// never lose appended frames or progress.
package session

import (
	"context"
	"errors"

	"github.com/Uni298/OSMStudio/pkg/core"
)

var (
	// ErrSessionNotFound is returned when no session has the given ID.
	ErrSessionNotFound = errors.New("session: not found")

	// ErrSessionExists is returned when creating a session whose ID is taken.
	ErrSessionExists = errors.New("session: already exists")
)

// Store is the interface all session store implementations must satisfy.
type Store interface {
	// Create persists a new session.
	Create(ctx context.Context, s *core.ExportSession) error

	// Get returns a copy of the session with the given ID.
	Get(ctx context.Context, id string) (*core.ExportSession, error)

	// Update applies mutate to the stored session under a read-modify-write
	// cycle that is atomic with respect to other Update calls. It returns
	// the updated session.
	Update(ctx context.Context, id string, mutate func(*core.ExportSession) error) (*core.ExportSession, error)

	// Delete removes the session. Deleting an unknown ID is not an error.
	Delete(ctx context.Context, id string) error

	// List returns all sessions.
	List(ctx context.Context) ([]*core.ExportSession, error)

	// Close releases backend resources.
	Close() error
}
