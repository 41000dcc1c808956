package bunstore

import (
	"database/sql"
	"time"

	"github.com/uptrace/bun"
)

// jobModel is the bun row mapping for chronopool_jobs.
type jobModel struct {
	bun.BaseModel `bun:"table:chronopool_jobs"`

	ID        string       `bun:"id,pk"`
	Queue     string       `bun:"queue,notnull,default:'default'"`
	Buffer    []byte       `bun:"buffer,notnull,type:bytea"`
	ReadyAt   time.Time    `bun:"ready_at,notnull"`
	Claimed   bool         `bun:"claimed,notnull,default:false"`
	ClaimedAt sql.NullTime `bun:"claimed_at"`
}

// metadataModel is the bun row mapping for chronopool_metadata.
type metadataModel struct {
	bun.BaseModel `bun:"table:chronopool_metadata"`

	Key   string `bun:"key,pk"`
	Value []byte `bun:"value,notnull,type:bytea"`
}
