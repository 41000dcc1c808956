// Package postgres implements driver.Driver on top of PostgreSQL using
// pgx/v5 and pgxpool, following the connection and migration conventions
// of the dispatch project's store/postgres package.
//
// Jobs live in a single table, chronopool_jobs, with a ready_at column
// and a claimed flag. The dispatch loop claims work with
// "SELECT ... FOR UPDATE SKIP LOCKED", the same pattern dispatch's
// DequeueJobs uses, so multiple processes sharing one database never
// deliver the same row twice. A small chronopool_metadata table backs
// GetMetadata/SetMetadata.
//
// Call Migrate once per deployment before OnInit; New/NewFromPool do not
// migrate implicitly.
package postgres
