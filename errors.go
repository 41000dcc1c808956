package chronopool

import "errors"

// ErrCancelled marks a job execution that was cancelled by the caller's
// context rather than failed by the handler. It is a terminal status,
// distinct from a retryable handler error.
var ErrCancelled = errors.New("chronopool: job execution cancelled")
