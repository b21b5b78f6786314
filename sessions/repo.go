package sessions

import "context"

// Repo persists the single current session.
type Repo interface {
	// Get returns the stored session, ErrNoSession when there is none and
	// ErrCorruptSession when the stored value cannot be decoded
	Get(ctx context.Context) (*Session, error)

	// Save replaces any stored session
	Save(ctx context.Context, session *Session) error

	// Update applies fn to the stored session and saves the result, holding the
	// write lock for the whole read-modify-write
	Update(ctx context.Context, fn func(*Session) error) (*Session, error)

	// Delete removes the session, including any legacy copy
	Delete(ctx context.Context) error
}
