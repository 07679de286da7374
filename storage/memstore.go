package storage

import (
	"context"
	"sync"
)

// MemStore keeps one in-memory table per record kind. It is the reference
// Store implementation: the collector runs on it out of the box and tests
// use it to observe what the pipeline persisted.
type MemStore struct {
	mu     sync.Mutex
	tables map[Kind]*MemTable
}

func NewMemStore() *MemStore {
	return &MemStore{tables: make(map[Kind]*MemTable)}
}

func (m *MemStore) Table(kind Kind) MergeDAO {
	m.mu.Lock()
	defer m.mu.Unlock()
	table, ok := m.tables[kind]
	if !ok {
		table = &MemTable{rows: make(map[string]Record)}
		m.tables[kind] = table
	}
	return table
}

// MemTable is one kind's rows, keyed by record ID. Save overwrites by ID;
// merge semantics are the worker's job, not the table's.
type MemTable struct {
	mu   sync.RWMutex
	rows map[string]Record
}

func (t *MemTable) Save(ctx context.Context, batch []Record) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, record := range batch {
		t.rows[record.ID()] = record
	}
	return nil
}

func (t *MemTable) Get(ctx context.Context, id string) (Record, bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	record, ok := t.rows[id]
	return record, ok, nil
}

// Len reports the number of stored rows.
func (t *MemTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}
