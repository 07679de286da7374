package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGCMetricIdentity(t *testing.T) {
	young := &GCMetricRecord{InstanceID: 7, PhaseOld: false, TimeBucket: 42}
	old := &GCMetricRecord{InstanceID: 7, PhaseOld: true, TimeBucket: 42}
	assert.NotEqual(t, young.ID(), old.ID(), "gc phases must land in separate rows")

	later := &GCMetricRecord{InstanceID: 7, PhaseOld: false, TimeBucket: 43}
	assert.NotEqual(t, young.ID(), later.ID(), "time buckets must land in separate rows")
}

func TestGCMetricMergeSumsWithoutMutating(t *testing.T) {
	a := &GCMetricRecord{InstanceID: 7, TimeBucket: 42, Count: 2, Millis: 30}
	b := &GCMetricRecord{InstanceID: 7, TimeBucket: 42, Count: 5, Millis: 70}

	merged := a.Merge(b).(*GCMetricRecord)
	assert.Equal(t, int64(7), merged.Count)
	assert.Equal(t, int64(100), merged.Millis)

	// inputs stay untouched
	assert.Equal(t, int64(2), a.Count)
	assert.Equal(t, int64(5), b.Count)

	// commutative
	reversed := b.Merge(a).(*GCMetricRecord)
	assert.Equal(t, merged.Count, reversed.Count)
	assert.Equal(t, merged.Millis, reversed.Millis)
}

func TestHeartbeatMergeKeepsLatest(t *testing.T) {
	earlier := &InstanceHeartbeatRecord{InstanceID: 7, HeartbeatTime: 100}
	later := &InstanceHeartbeatRecord{InstanceID: 7, HeartbeatTime: 200}

	assert.Equal(t, int64(200), earlier.Merge(later).(*InstanceHeartbeatRecord).HeartbeatTime)
	assert.Equal(t, int64(200), later.Merge(earlier).(*InstanceHeartbeatRecord).HeartbeatTime)
}

func TestMergeIgnoresForeignKind(t *testing.T) {
	gc := &GCMetricRecord{InstanceID: 7, Count: 1}
	hb := &InstanceHeartbeatRecord{InstanceID: 7, HeartbeatTime: 100}
	assert.Equal(t, Record(gc), gc.Merge(hb))
}

func TestMemTableSaveOverwritesByID(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	table := store.Table(KindInstanceHeartbeat)

	require.NoError(t, table.Save(ctx, []Record{
		&InstanceHeartbeatRecord{InstanceID: 7, HeartbeatTime: 100},
		&InstanceHeartbeatRecord{InstanceID: 8, HeartbeatTime: 100},
	}))
	require.NoError(t, table.Save(ctx, []Record{
		&InstanceHeartbeatRecord{InstanceID: 7, HeartbeatTime: 300},
	}))

	record, found, err := table.Get(ctx, "7")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(300), record.(*InstanceHeartbeatRecord).HeartbeatTime)
	assert.Equal(t, 2, table.(*MemTable).Len())
}

func TestMemStoreKeepsKindsSeparate(t *testing.T) {
	store := NewMemStore()
	assert.Same(t, store.Table(KindSegment), store.Table(KindSegment))
	assert.NotSame(t, store.Table(KindSegment), store.Table(KindGCMetric))
}
