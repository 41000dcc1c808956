package metrics

import (
	"context"
	"time"
)

// Noop discards every signal. Pass it to NewExtension where no metrics
// are collected; worker.Pool itself holds no Emitter.
type Noop struct{}

var _ Emitter = Noop{}

func (Noop) MarkQueued(context.Context, string)                       {}
func (Noop) MarkDequeued(context.Context, string)                     {}
func (Noop) MarkProcessingDone(context.Context, string)                {}
func (Noop) RecordTerminal(context.Context, string, Status, time.Duration) {}
func (Noop) RecordQueuedFor(context.Context, string, time.Duration)   {}
func (Noop) SetWorkers(context.Context, int)                          {}
