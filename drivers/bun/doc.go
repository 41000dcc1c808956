// Package bunstore implements driver.Driver on top of PostgreSQL using
// the uptrace/bun ORM, mirroring dispatch's store/bun package: the caller
// owns the *bun.DB lifecycle, migrations are embedded SQL files applied
// in filename order, and the atomic claim query is raw SQL because bun's
// query builder has no first-class SKIP LOCKED support.
package bunstore
