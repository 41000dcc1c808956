// Package middleware provides composable middleware for job execution.
// Middleware wraps handler calls synchronously and can modify execution
// (recover from panics, log, etc.) without the worker pool knowing about
// any specific cross-cutting concern.
package middleware

import (
	"context"

	"github.com/chronopool/chronopool/id"
)

// Info identifies the job an execution belongs to, for middleware that
// wants to log or tag without depending on job.Registry internals.
type Info struct {
	ID   id.JobID
	Name string
}

// Handler is the terminal function that executes job logic.
type Handler func(ctx context.Context) error

// Middleware wraps a Handler with cross-cutting logic. It receives the
// current context, identifying info for the job being executed, and the
// next handler to call. Middleware MUST call next to continue the chain
// (unless intentionally short-circuiting).
type Middleware func(ctx context.Context, info Info, next Handler) error

// Chain composes multiple middleware into a single Middleware. Middleware
// are applied right-to-left: the first middleware in the list is the
// outermost wrapper.
//
// Example: Chain(logging, recover) executes as:
//
//	logging → recover → handler
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, info Info, next Handler) error {
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			prev := h
			h = func(ctx context.Context) error {
				return mw(ctx, info, prev)
			}
		}

		return h(ctx)
	}
}
