package ingest

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"

	"github.com/traceloom/traceloom/config"
	"github.com/traceloom/traceloom/logger"
	"github.com/traceloom/traceloom/metrics"
	"github.com/traceloom/traceloom/storage"
)

// Enqueuer is the producer-facing face of the pipeline: hand in a record,
// get told whether it was accepted.
type Enqueuer interface {
	Enqueue(record storage.Record) bool
}

// workerSpec is the static routing table from record kind to worker
// identity and merge policy. Worker ids are stable so dashboards and logs
// mean the same thing across restarts.
var workerSpecs = []struct {
	id         int
	kind       storage.Kind
	needsMerge bool
}{
	{101, storage.KindSegment, false},
	{112, storage.KindGCMetric, true},
	{124, storage.KindInstanceHeartbeat, true},
}

// Router owns one PersistenceWorker per record kind and routes records to
// them. The kind-to-worker mapping is built once at Start and never changes.
type Router struct {
	Config  config.Config   `inject:""`
	Logger  logger.Logger   `inject:""`
	Metrics metrics.Metrics `inject:""`
	Store   storage.Store   `inject:""`
	Clock   clockwork.Clock `inject:""`

	workers map[storage.Kind]*PersistenceWorker
}

func (r *Router) Start() error {
	capacity, err := r.Config.GetQueueCapacity()
	if err != nil || capacity <= 0 {
		capacity = 1024
	}
	batchSize, err := r.Config.GetBatchSize()
	if err != nil || batchSize <= 0 {
		batchSize = 100
	}
	flushInterval, err := r.Config.GetFlushInterval()
	if err != nil || flushInterval <= 0 {
		flushInterval = time.Second
	}

	r.workers = make(map[storage.Kind]*PersistenceWorker, len(workerSpecs))
	for _, spec := range workerSpecs {
		worker := NewPersistenceWorker(
			spec.id,
			spec.kind,
			make(chan storage.Record, capacity),
			r.Store.Table(spec.kind),
			spec.needsMerge,
			batchSize,
			flushInterval,
			r.Clock,
			r.Logger,
			r.Metrics,
		)
		if err := worker.Start(); err != nil {
			return errors.Wrapf(err, "failed to start worker %d for %s", spec.id, spec.kind)
		}
		r.workers[spec.kind] = worker
		r.Logger.Infof("started persistence worker %d for %s (capacity %d, merge %t)",
			spec.id, spec.kind, capacity, spec.needsMerge)
	}
	return nil
}

func (r *Router) Stop() error {
	for _, worker := range r.workers {
		worker.Stop()
	}
	return nil
}

// Enqueue routes a record to its kind's worker. Unroutable records and full
// queues both come back as not-accepted; neither is an error the receive
// path should surface to the agent.
func (r *Router) Enqueue(record storage.Record) bool {
	worker, ok := r.workers[record.Kind()]
	if !ok {
		r.Logger.Errorf("no worker routes record kind %s", record.Kind())
		return false
	}
	return worker.Enqueue(record)
}
