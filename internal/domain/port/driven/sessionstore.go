package driven

import (
	"context"

	"github.com/ericfisherdev/runpanel/internal/domain/model"
)

// SessionStore defines the driven port for session record persistence.
// Records are keyed by identity and always written wholesale; the last
// writer wins.
type SessionStore interface {
	// Get returns the session for identity, or nil, nil if none exists.
	Get(ctx context.Context, identity string) (*model.Session, error)

	// Put creates or overwrites the session for session.Identity.
	Put(ctx context.Context, session model.Session) error

	// Delete removes the session for identity. Deleting a missing session is not an error.
	Delete(ctx context.Context, identity string) error
}
