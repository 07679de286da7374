// Package ingest is the collector's asynchronous worker pipeline: one
// bounded-queue, single-consumer persistence worker per record kind,
// batching incoming records and flushing them through the storage DAO.
package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/traceloom/traceloom/logger"
	"github.com/traceloom/traceloom/metrics"
	"github.com/traceloom/traceloom/storage"
)

// PersistenceWorker owns one record kind's queue. Producers enqueue from any
// goroutine; exactly one consumer drains, batches, and flushes, so the
// batch-merge-persist step needs no locking.
//
// Backpressure policy: drop-newest-and-count. Tracing data is best-effort
// telemetry; a full queue sheds the incoming record and bumps a counter
// rather than ever blocking the receive path.
type PersistenceWorker struct {
	workerID      int
	kind          storage.Kind
	queue         chan storage.Record
	dao           storage.PersistenceDAO
	needsMerge    bool
	batchSize     int
	flushInterval time.Duration

	clock   clockwork.Clock
	logger  logger.Logger
	metrics metrics.Metrics

	done chan struct{}
	wg   sync.WaitGroup
}

// NewPersistenceWorker wires a worker from its collaborators. The queue is
// created by the caller so capacity policy stays outside the worker.
func NewPersistenceWorker(
	workerID int,
	kind storage.Kind,
	queue chan storage.Record,
	dao storage.PersistenceDAO,
	needsMerge bool,
	batchSize int,
	flushInterval time.Duration,
	clock clockwork.Clock,
	lgr logger.Logger,
	met metrics.Metrics,
) *PersistenceWorker {
	return &PersistenceWorker{
		workerID:      workerID,
		kind:          kind,
		queue:         queue,
		dao:           dao,
		needsMerge:    needsMerge,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		clock:         clock,
		logger:        lgr,
		metrics:       met,
	}
}

func (w *PersistenceWorker) ID() int            { return w.workerID }
func (w *PersistenceWorker) Kind() storage.Kind { return w.kind }

func (w *PersistenceWorker) Start() error {
	w.metrics.Register(w.metricName("enqueued"), "counter")
	w.metrics.Register(w.metricName("dropped"), "counter")
	w.metrics.Register(w.metricName("flushes"), "counter")
	w.metrics.Register(w.metricName("flush_failures"), "counter")
	w.metrics.Register(w.metricName("batch_size"), "histogram")

	w.done = make(chan struct{})
	w.wg.Add(1)
	go w.consume()
	return nil
}

// Stop drains whatever is already queued, flushes it, and exits. In-flight
// batches that fail during shutdown are discarded like any other.
func (w *PersistenceWorker) Stop() error {
	close(w.done)
	w.wg.Wait()
	return nil
}

// Enqueue offers a record to the worker without ever blocking the caller.
// It reports whether the record was accepted.
func (w *PersistenceWorker) Enqueue(record storage.Record) bool {
	select {
	case w.queue <- record:
		w.metrics.IncrementCounter(w.metricName("enqueued"))
		return true
	default:
		w.metrics.IncrementCounter(w.metricName("dropped"))
		return false
	}
}

func (w *PersistenceWorker) consume() {
	defer w.wg.Done()

	ticker := w.clock.NewTicker(w.flushInterval)
	defer ticker.Stop()

	batch := make([]storage.Record, 0, w.batchSize)
	for {
		select {
		case record := <-w.queue:
			batch = append(batch, record)
			if len(batch) >= w.batchSize {
				w.flush(batch)
				batch = make([]storage.Record, 0, w.batchSize)
			}
		case <-ticker.Chan():
			if len(batch) > 0 {
				w.flush(batch)
				batch = make([]storage.Record, 0, w.batchSize)
			}
		case <-w.done:
			for {
				select {
				case record := <-w.queue:
					batch = append(batch, record)
					continue
				default:
				}
				break
			}
			if len(batch) > 0 {
				w.flush(batch)
			}
			return
		}
	}
}

// flush persists one batch: merge same-identity records (within the batch
// and against stored state) when the kind calls for it, then one Save. A
// failed Save gets exactly one retry before the batch is discarded.
func (w *PersistenceWorker) flush(batch []storage.Record) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	w.metrics.Histogram(w.metricName("batch_size"), float64(len(batch)))

	if w.needsMerge {
		batch = w.mergeBatch(ctx, batch)
	}

	err := w.dao.Save(ctx, batch)
	if err != nil {
		w.logger.Errorf("worker %d: flush of %d %s records failed, retrying once: %v",
			w.workerID, len(batch), w.kind, err)
		err = w.dao.Save(ctx, batch)
	}
	if err != nil {
		w.metrics.IncrementCounter(w.metricName("flush_failures"))
		w.logger.Errorf("worker %d: retry failed, discarding %d %s records: %v",
			w.workerID, len(batch), w.kind, err)
		return
	}
	w.metrics.IncrementCounter(w.metricName("flushes"))
}

// mergeBatch collapses same-identity records, preserving first-seen order,
// and folds in already-stored rows so many short-lived records for the same
// logical bucket become one write.
func (w *PersistenceWorker) mergeBatch(ctx context.Context, batch []storage.Record) []storage.Record {
	index := make(map[string]int, len(batch))
	merged := make([]storage.Record, 0, len(batch))
	for _, record := range batch {
		id := record.ID()
		if i, seen := index[id]; seen {
			if m, ok := merged[i].(storage.Mergeable); ok {
				merged[i] = m.Merge(record)
			} else {
				merged[i] = record
			}
			continue
		}
		index[id] = len(merged)
		merged = append(merged, record)
	}

	mergeDAO, ok := w.dao.(storage.MergeDAO)
	if !ok {
		return merged
	}
	for i, record := range merged {
		existing, found, err := mergeDAO.Get(ctx, record.ID())
		if err != nil {
			w.logger.Errorf("worker %d: failed to read %s %s for merge, writing incoming as-is: %v",
				w.workerID, w.kind, record.ID(), err)
			continue
		}
		if !found {
			continue
		}
		if m, ok := existing.(storage.Mergeable); ok {
			merged[i] = m.Merge(record)
		}
	}
	return merged
}

func (w *PersistenceWorker) metricName(suffix string) string {
	return fmt.Sprintf("ingest_worker_%d_%s", w.workerID, suffix)
}
