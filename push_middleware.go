package chronopool

import (
	"context"
	"encoding/json"

	"github.com/chronopool/chronopool/id"
)

// PushInfo identifies a job about to be enqueued, for middleware that
// wants to inspect or log a push without depending on job.Registry
// internals.
type PushInfo struct {
	Name       string
	Parameters json.RawMessage
}

// PushHandler is the terminal function that performs the actual enqueue,
// returning the driver-assigned JobID.
type PushHandler func(ctx context.Context) (id.JobID, error)

// PushMiddleware wraps a Queue.Push call with cross-cutting logic, the
// producer-side analogue of middleware.Middleware. It receives the
// current context, the job's name and encoded parameters, and the next
// handler to call. Because the JobID does not exist until the push
// actually completes, middleware observes it by inspecting next's return
// value rather than receiving it up front. Middleware MUST call next to
// continue the chain (unless intentionally short-circuiting the push).
type PushMiddleware func(ctx context.Context, info PushInfo, next PushHandler) (id.JobID, error)

// ChainPush composes multiple push middleware into a single
// PushMiddleware. Middleware are applied right-to-left: the first
// middleware in the list is the outermost wrapper. An empty chain calls
// next directly.
func ChainPush(mws ...PushMiddleware) PushMiddleware {
	return func(ctx context.Context, info PushInfo, next PushHandler) (id.JobID, error) {
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			prev := h
			h = func(ctx context.Context) (id.JobID, error) {
				return mw(ctx, info, prev)
			}
		}

		return h(ctx)
	}
}
