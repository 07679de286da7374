package storage

import "context"

// PersistenceDAO is the write contract a worker flushes batches through.
type PersistenceDAO interface {
	Save(ctx context.Context, batch []Record) error
}

// MergeDAO is implemented by backends for record kinds that merge: the
// worker reads existing rows through Get, combines them with the incoming
// batch via the record's Merge hook, and issues a single Save.
type MergeDAO interface {
	PersistenceDAO
	Get(ctx context.Context, id string) (Record, bool, error)
}

// Store hands out the DAO for each record kind.
type Store interface {
	Table(kind Kind) MergeDAO
}
