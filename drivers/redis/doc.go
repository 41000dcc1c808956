// Package redis implements driver.Driver on top of Redis, using one
// sorted set per logical queue as a delay queue and a plain key per job
// body.
//
// The layout follows the key-naming and pipeline conventions of the
// dispatch project's store/redis package: every key is prefixed
// "chronopool:", job bodies are stored under chronopool:job:<id>, and
// readiness is tracked in chronopool:queue:<name>, a sorted set scored by
// the job's ready-at instant in nanoseconds. Push is one transactional
// pipeline of SET (body), HSET (job-to-queue index) and ZADD; the
// dispatch loop peeks the lowest score, waits until it is due, then
// claims it with ZREM from the queue set plus ZADD into the
// chronopool:inflight set, so a duplicate consumer racing the same set
// never delivers the same job twice and a claim that is never finished
// is reaped back to its queue after ClaimTimeout.
//
// Unlike drivers/memory, this driver is durable: jobs not yet due when
// Stop is called are left in Redis rather than dropped, ready for the
// next process that calls OnInit against the same keyspace.
package redis
