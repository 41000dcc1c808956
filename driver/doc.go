// Package driver defines the queue backend contract chronopool consumes.
//
// A Driver owns durability: it persists pushed jobs, yields them for
// execution through an iterator channel, and tracks completion. The
// worker pool and scheduler only ever depend on this interface, never on
// a concrete backend, so drivers/memory, drivers/redis, drivers/postgres,
// and drivers/bun are interchangeable behind it.
package driver
