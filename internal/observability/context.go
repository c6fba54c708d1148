package observability

import (
	"context"

	"github.com/oklog/ulid/v2"
)

type runIDKey struct{}

// NewRunID returns a sortable identifier for one invocation.
func NewRunID() string {
	return ulid.Make().String()
}

// WithRunID attaches a run identifier that the logger adds to every line.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunID returns the identifier set by WithRunID, or "".
func RunID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}
