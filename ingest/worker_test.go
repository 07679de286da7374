package ingest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traceloom/traceloom/logger"
	"github.com/traceloom/traceloom/metrics"
	"github.com/traceloom/traceloom/storage"
	"github.com/traceloom/traceloom/types"
)

func newMockMetrics() *metrics.MockMetrics {
	m := &metrics.MockMetrics{}
	m.Start()
	return m
}

func segmentRecord(id string) *storage.SegmentRecord {
	return &storage.SegmentRecord{Segment: types.SegmentObject{SegmentID: id}}
}

func TestEnqueueDropsNewestWhenFull(t *testing.T) {
	const capacity = 8
	met := newMockMetrics()
	// the worker is deliberately not started so nothing drains the queue
	worker := NewPersistenceWorker(101, storage.KindSegment,
		make(chan storage.Record, capacity), storage.NewMemStore().Table(storage.KindSegment),
		false, 100, time.Hour, clockwork.NewRealClock(), &logger.NullLogger{}, met)

	accepted := 0
	for i := 0; i < capacity+5; i++ {
		if worker.Enqueue(segmentRecord(fmt.Sprintf("seg-%d", i))) {
			accepted++
		}
	}

	assert.Equal(t, capacity, accepted, "a full queue should retain exactly its capacity")
	assert.Equal(t, 5, met.GetCount("ingest_worker_101_dropped"), "overflow should be counted, not an error")
	assert.Equal(t, capacity, met.GetCount("ingest_worker_101_enqueued"))
}

func TestFlushOnBatchSize(t *testing.T) {
	store := storage.NewMemStore()
	table := store.Table(storage.KindSegment).(*storage.MemTable)
	worker := NewPersistenceWorker(101, storage.KindSegment,
		make(chan storage.Record, 64), table,
		false, 3, time.Hour, clockwork.NewRealClock(), &logger.NullLogger{}, newMockMetrics())
	require.NoError(t, worker.Start())
	defer worker.Stop()

	for i := 0; i < 3; i++ {
		require.True(t, worker.Enqueue(segmentRecord(fmt.Sprintf("seg-%d", i))))
	}

	assert.Eventually(t, func() bool { return table.Len() == 3 },
		time.Second, 5*time.Millisecond, "a full batch should flush without waiting for the ticker")
}

func TestFlushOnInterval(t *testing.T) {
	store := storage.NewMemStore()
	table := store.Table(storage.KindSegment).(*storage.MemTable)
	worker := NewPersistenceWorker(101, storage.KindSegment,
		make(chan storage.Record, 64), table,
		false, 100, 10*time.Millisecond, clockwork.NewRealClock(), &logger.NullLogger{}, newMockMetrics())
	require.NoError(t, worker.Start())
	defer worker.Stop()

	require.True(t, worker.Enqueue(segmentRecord("seg-a")))

	assert.Eventually(t, func() bool { return table.Len() == 1 },
		time.Second, 5*time.Millisecond, "a partial batch should flush when the interval fires")
}

func runMergeCycle(t *testing.T, table *storage.MemTable, records ...storage.Record) {
	t.Helper()
	worker := NewPersistenceWorker(112, storage.KindGCMetric,
		make(chan storage.Record, 64), table,
		true, 100, time.Hour, clockwork.NewRealClock(), &logger.NullLogger{}, newMockMetrics())
	require.NoError(t, worker.Start())
	for _, record := range records {
		require.True(t, worker.Enqueue(record))
	}
	// Stop drains and flushes whatever is queued
	require.NoError(t, worker.Stop())
}

func TestMergeSumsWithinBatch(t *testing.T) {
	a3 := &storage.GCMetricRecord{InstanceID: 1, TimeBucket: 100, Count: 3}
	a5 := &storage.GCMetricRecord{InstanceID: 1, TimeBucket: 100, Count: 5}

	forward := storage.NewMemStore().Table(storage.KindGCMetric).(*storage.MemTable)
	runMergeCycle(t, forward, a3, a5)
	reverse := storage.NewMemStore().Table(storage.KindGCMetric).(*storage.MemTable)
	runMergeCycle(t, reverse, a5, a3)

	for _, table := range []*storage.MemTable{forward, reverse} {
		require.Equal(t, 1, table.Len())
		stored, found, err := table.Get(context.Background(), a3.ID())
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, int64(8), stored.(*storage.GCMetricRecord).Count, "counter merge is a sum, in either order")
	}
}

func TestMergeAgainstStoredStateAcrossFlushes(t *testing.T) {
	table := storage.NewMemStore().Table(storage.KindGCMetric).(*storage.MemTable)
	runMergeCycle(t, table, &storage.GCMetricRecord{InstanceID: 1, TimeBucket: 100, Count: 3})
	runMergeCycle(t, table, &storage.GCMetricRecord{InstanceID: 1, TimeBucket: 100, Count: 5})

	stored, found, err := table.Get(context.Background(), (&storage.GCMetricRecord{InstanceID: 1, TimeBucket: 100}).ID())
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(8), stored.(*storage.GCMetricRecord).Count,
		"a later flush should fold into the stored aggregate")
}

func TestHeartbeatMergeLatestWins(t *testing.T) {
	table := storage.NewMemStore().Table(storage.KindInstanceHeartbeat).(*storage.MemTable)
	worker := NewPersistenceWorker(124, storage.KindInstanceHeartbeat,
		make(chan storage.Record, 64), table,
		true, 100, time.Hour, clockwork.NewRealClock(), &logger.NullLogger{}, newMockMetrics())
	require.NoError(t, worker.Start())
	require.True(t, worker.Enqueue(&storage.InstanceHeartbeatRecord{InstanceID: 9, HeartbeatTime: 200}))
	require.True(t, worker.Enqueue(&storage.InstanceHeartbeatRecord{InstanceID: 9, HeartbeatTime: 100}))
	require.NoError(t, worker.Stop())

	stored, found, err := table.Get(context.Background(), "9")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(200), stored.(*storage.InstanceHeartbeatRecord).HeartbeatTime)
}

// flakyDAO fails the first n Save calls, then delegates.
type flakyDAO struct {
	inner    storage.MergeDAO
	mu       sync.Mutex
	failures int
	saves    int
}

func (d *flakyDAO) Save(ctx context.Context, batch []storage.Record) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.saves++
	if d.failures > 0 {
		d.failures--
		return errors.New("storage unavailable")
	}
	return d.inner.Save(ctx, batch)
}

func (d *flakyDAO) Get(ctx context.Context, id string) (storage.Record, bool, error) {
	return d.inner.Get(ctx, id)
}

func (d *flakyDAO) saveCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.saves
}

func TestFlushRetriesOnceThenSucceeds(t *testing.T) {
	table := storage.NewMemStore().Table(storage.KindSegment).(*storage.MemTable)
	dao := &flakyDAO{inner: table, failures: 1}
	met := newMockMetrics()
	worker := NewPersistenceWorker(101, storage.KindSegment,
		make(chan storage.Record, 64), dao,
		false, 100, time.Hour, clockwork.NewRealClock(), &logger.NullLogger{}, met)
	require.NoError(t, worker.Start())
	require.True(t, worker.Enqueue(segmentRecord("seg-a")))
	require.NoError(t, worker.Stop())

	assert.Equal(t, 2, dao.saveCalls())
	assert.Equal(t, 1, table.Len(), "the retry should have persisted the batch")
	assert.Equal(t, 0, met.GetCount("ingest_worker_101_flush_failures"))
}

func TestFlushDiscardsAfterSecondFailure(t *testing.T) {
	table := storage.NewMemStore().Table(storage.KindSegment).(*storage.MemTable)
	dao := &flakyDAO{inner: table, failures: 2}
	met := newMockMetrics()
	worker := NewPersistenceWorker(101, storage.KindSegment,
		make(chan storage.Record, 64), dao,
		false, 100, time.Hour, clockwork.NewRealClock(), &logger.NullLogger{}, met)
	require.NoError(t, worker.Start())
	require.True(t, worker.Enqueue(segmentRecord("seg-a")))
	require.NoError(t, worker.Stop())

	assert.Equal(t, 2, dao.saveCalls(), "exactly one retry per flush")
	assert.Equal(t, 0, table.Len(), "the batch is discarded after the retry fails")
	assert.Equal(t, 1, met.GetCount("ingest_worker_101_flush_failures"))
}
