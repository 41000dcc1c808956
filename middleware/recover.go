package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
)

// Recover returns middleware that recovers from panics in the handler
// chain. Panics are converted to errors and logged with a stack trace,
// so they participate in the pool's ordinary retry/failure handling
// instead of crashing a worker goroutine.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, info Info, next Handler) (retErr error) {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())
				logger.Error("job handler panicked",
					slog.String("job_name", info.Name),
					slog.String("job_id", info.ID.String()),
					slog.Any("panic", r),
					slog.String("stack", stack),
				)
				retErr = fmt.Errorf("panic in job %s: %v", info.Name, r)
			}
		}()

		return next(ctx)
	}
}
