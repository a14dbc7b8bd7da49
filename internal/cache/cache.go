package cache

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// ErrUnavailable marks store failures (connection, timeout, protocol). Drivers wrap it.
var ErrUnavailable = errors.New("cache unavailable")

// Store is the key-value collaborator used for idempotency entries.
// Implementations must make SetIfAbsentWithTTL atomic.
type Store interface {
	// Get returns found=false and a nil error when the key is absent or expired.
	Get(ctx context.Context, key string) (value string, found bool, err error)
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error
	// SetIfAbsentWithTTL stores value only if key has no live value and reports whether it did.
	SetIfAbsentWithTTL(ctx context.Context, key, value string, ttl time.Duration) (stored bool, err error)
}

// Pinger is implemented by stores that can report readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Unavailable wraps err with ErrUnavailable keeping the driver context in the message.
func Unavailable(err error, op string) error {
	if err == nil {
		return nil
	}
	return &unavailableError{op: op, cause: err}
}

type unavailableError struct {
	op    string
	cause error
}

func (e *unavailableError) Error() string { return e.op + ": " + e.cause.Error() }

func (e *unavailableError) Unwrap() []error { return []error{ErrUnavailable, e.cause} }
