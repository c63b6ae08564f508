package storage

import (
	"context"
	"time"
)

const (
	// DefaultQueryTimeout bounds a store call when the caller set no deadline.
	// Lambda invocations always carry a deadline, so this only applies to the HTTP server.
	DefaultQueryTimeout = 5 * time.Second
)

// withQueryTimeout wraps the context with a query timeout if one isn't already set.
// An existing deadline (for example the Lambda invocation deadline) is never overridden.
func withQueryTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, DefaultQueryTimeout)
}
