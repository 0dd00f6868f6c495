// Package token persists the opaque backend session token and the pending
// return destination for redirect-based logins.
package token

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no value is stored under the requested key.
var ErrNotFound = errors.New("not found")

// Store is the durable local key-value state behind the session coordinator.
//
// At most one session token exists at a time: SetToken is a whole-value
// replacement, never a partial update. TakeReturnPath is consume-once, the
// stored path is deleted as it is read.
type Store interface {
	Token(ctx context.Context) (string, error)
	SetToken(ctx context.Context, value string) error
	ClearToken(ctx context.Context) error

	PutReturnPath(ctx context.Context, path string) error
	TakeReturnPath(ctx context.Context) (string, error)

	Close() error
}
