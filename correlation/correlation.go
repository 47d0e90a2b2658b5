// Package correlation threads a request/workflow ID explicitly through
// context.Context, never through a goroutine-local or thread-local trick.
// When work is handed off to a handler goroutine, a worker pool, or a timer
// callback, the ID must be captured at dispatch time and re-entered at the
// receiving end — the context value is the handoff point.
package correlation

import (
	"context"

	"github.com/google/uuid"
)

type correlationKey struct{}

// Enter binds id to ctx, returning the derived context callers must use for
// the remainder of the logical operation. If id is empty a new UUIDv4 is
// generated — absence of a correlation ID never produces an error.
func Enter(ctx context.Context, id string) context.Context {
	if id == "" {
		id = New()
	}
	return context.WithValue(ctx, correlationKey{}, id)
}

// New generates a fresh correlation ID.
func New() string {
	return uuid.NewString()
}

// From retrieves the correlation ID bound to ctx, if any.
func From(ctx context.Context) (string, bool) {
	v := ctx.Value(correlationKey{})
	if v == nil {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}

// MustFrom retrieves the correlation ID bound to ctx, generating and
// returning a fresh one (without binding it) if ctx carries none — used by
// leaf code that wants a usable ID without forcing every caller to pre-seed
// the context via Enter.
func MustFrom(ctx context.Context) string {
	if id, ok := From(ctx); ok {
		return id
	}
	return New()
}
