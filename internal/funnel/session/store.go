// Package session persists funnel state between requests and guards each
// session against concurrent forward actions.
package session

import (
	"context"
	"errors"

	"signup_funnel_backend/internal/funnel/domain"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no state exists for a session id.
	ErrNotFound = errors.New("session not found")
	// ErrBusy is returned when another request holds the session's in-flight lock.
	ErrBusy = errors.New("session has a request in progress")
)

// Unlock releases an in-flight lock. It is safe to call more than once.
type Unlock func()

// Store keeps one domain.State per session id.
type Store interface {
	Load(ctx context.Context, id uuid.UUID) (domain.State, error)
	Save(ctx context.Context, state domain.State) error
	Delete(ctx context.Context, id uuid.UUID) error
	// Lock takes the per-session in-flight lock or fails with ErrBusy.
	Lock(ctx context.Context, id uuid.UUID) (Unlock, error)
}
