// Package persist defines the session persistence contract. A session is one
// chat's serialized event store; backends store the encoded document plus
// enough metadata to list sessions without decoding them.
package persist

import (
	"context"
	"errors"
	"time"

	"talekeeper/internal/store"
)

// ErrSessionNotFound is returned by Load and Delete for unknown session ids.
var ErrSessionNotFound = errors.New("session not found")

// SessionInfo is the listing metadata for one stored session.
type SessionInfo struct {
	SessionID       string
	Version         int
	NarrativeEvents int
	StateEvents     int
	UpdatedAt       time.Time
}

// Sessions is implemented by the sqlite and postgres backends.
type Sessions interface {
	Close(ctx context.Context) error
	EnsureSchema(ctx context.Context) error

	// Save validates nothing: the store enforces its invariants before
	// encoding. Saving an existing session id replaces it.
	Save(ctx context.Context, sessionID string, s *store.Store) error

	// Load decodes a current-version store. Older generations fail to decode;
	// LoadRaw plus the migrate package own that path.
	Load(ctx context.Context, sessionID string) (*store.Store, error)

	// LoadRaw returns the stored document without decoding, for migration.
	LoadRaw(ctx context.Context, sessionID string) ([]byte, error)

	List(ctx context.Context) ([]SessionInfo, error)
	Delete(ctx context.Context, sessionID string) error
}
