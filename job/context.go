package job

import (
	"context"
	"log/slog"
)

// Context is the per-invocation capability bag passed to a typed handler.
// It embeds context.Context so a handler can use it directly for
// cancellation and deadlines, and additionally carries a scoped Logger.
// Its lifetime is a single execute call.
type Context struct {
	context.Context
	Logger *slog.Logger
}
