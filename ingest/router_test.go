package ingest

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traceloom/traceloom/config"
	"github.com/traceloom/traceloom/logger"
	"github.com/traceloom/traceloom/storage"
)

type unroutableRecord struct{}

func (unroutableRecord) ID() string         { return "x" }
func (unroutableRecord) Kind() storage.Kind { return storage.Kind("no-such-kind") }

func TestRouterRoutesByKind(t *testing.T) {
	store := storage.NewMemStore()
	router := &Router{
		Config: &config.MockConfig{
			GetQueueCapacityVal: 16,
			GetBatchSizeVal:     100,
			GetFlushIntervalVal: time.Hour,
		},
		Logger:  &logger.NullLogger{},
		Metrics: newMockMetrics(),
		Store:   store,
		Clock:   clockwork.NewRealClock(),
	}
	require.NoError(t, router.Start())

	assert.True(t, router.Enqueue(segmentRecord("seg-1")))
	assert.True(t, router.Enqueue(&storage.GCMetricRecord{InstanceID: 1, TimeBucket: 5, Count: 2}))
	assert.True(t, router.Enqueue(&storage.InstanceHeartbeatRecord{InstanceID: 1, HeartbeatTime: 10}))
	assert.False(t, router.Enqueue(unroutableRecord{}), "an unroutable record is refused, not an error")

	require.NoError(t, router.Stop())

	assert.Equal(t, 1, store.Table(storage.KindSegment).(*storage.MemTable).Len())
	assert.Equal(t, 1, store.Table(storage.KindGCMetric).(*storage.MemTable).Len())
	assert.Equal(t, 1, store.Table(storage.KindInstanceHeartbeat).(*storage.MemTable).Len())
}

func TestRouterWorkerIDsAreStable(t *testing.T) {
	ids := map[storage.Kind]int{}
	for _, spec := range workerSpecs {
		_, dup := ids[spec.kind]
		assert.False(t, dup, "one worker per record kind")
		ids[spec.kind] = spec.id
	}
	assert.Equal(t, 101, ids[storage.KindSegment])
	assert.Equal(t, 112, ids[storage.KindGCMetric])
	assert.Equal(t, 124, ids[storage.KindInstanceHeartbeat])
}
