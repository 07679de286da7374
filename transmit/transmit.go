package transmit

import (
	"bytes"
	"fmt"
	"net/http"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/traceloom/traceloom/config"
	"github.com/traceloom/traceloom/logger"
	"github.com/traceloom/traceloom/metrics"
	"github.com/traceloom/traceloom/remote"
	"github.com/traceloom/traceloom/trace"
	"github.com/traceloom/traceloom/types"
)

type Transmission interface {
	// Report accepts a finished segment and schedules it for delivery to a
	// collector. It never blocks the traced code path.
	Report(segment *trace.Segment)
	// Flush sends everything currently queued.
	Flush()
}

// DefaultTransmission buffers finished segments on a bounded queue, encodes
// them in batches, and POSTs them to a collector endpoint taken from the
// downstream config. Delivery is best effort: a full queue or a failed send
// drops segments with a counted metric and never disturbs the host.
type DefaultTransmission struct {
	Config     config.Config            `inject:""`
	Logger     logger.Logger            `inject:""`
	Metrics    metrics.Metrics          `inject:""`
	Encoder    *Encoder                 `inject:""`
	Downstream *remote.DownstreamConfig `inject:""`
	Client     *http.Client             `inject:"upstreamClient"`

	queue   chan *trace.Segment
	done    chan struct{}
	flushCh chan chan struct{}
	wg      sync.WaitGroup

	encoderPool *zstd.Encoder
	nextServer  int
}

const defaultSendBatch = 50

func (d *DefaultTransmission) Start() error {
	capacity, err := d.Config.GetQueueCapacity()
	if err != nil || capacity <= 0 {
		capacity = 1024
	}

	d.Metrics.Register("transmit_segments_sent", "counter")
	d.Metrics.Register("transmit_segments_dropped", "counter")
	d.Metrics.Register("transmit_send_failures", "counter")

	zenc, err := zstd.NewWriter(nil)
	if err != nil {
		return errors.Wrap(err, "failed to create zstd encoder")
	}
	d.encoderPool = zenc

	d.queue = make(chan *trace.Segment, capacity)
	d.done = make(chan struct{})
	d.flushCh = make(chan chan struct{})
	d.wg.Add(1)
	go d.send()
	return nil
}

func (d *DefaultTransmission) Stop() error {
	close(d.done)
	d.wg.Wait()
	return nil
}

func (d *DefaultTransmission) Report(segment *trace.Segment) {
	select {
	case d.queue <- segment:
	default:
		d.Metrics.IncrementCounter("transmit_segments_dropped")
	}
}

func (d *DefaultTransmission) Flush() {
	ack := make(chan struct{})
	select {
	case d.flushCh <- ack:
		<-ack
	case <-d.done:
	}
}

func (d *DefaultTransmission) send() {
	defer d.wg.Done()
	batch := make([]*trace.Segment, 0, defaultSendBatch)
	for {
		select {
		case segment := <-d.queue:
			batch = append(batch, segment)
			if len(batch) >= defaultSendBatch {
				d.deliver(batch)
				batch = batch[:0]
			}
		case ack := <-d.flushCh:
			batch = d.drainInto(batch)
			d.deliver(batch)
			batch = batch[:0]
			close(ack)
		case <-d.done:
			batch = d.drainInto(batch)
			d.deliver(batch)
			return
		}
	}
}

func (d *DefaultTransmission) drainInto(batch []*trace.Segment) []*trace.Segment {
	for {
		select {
		case segment := <-d.queue:
			batch = append(batch, segment)
		default:
			return batch
		}
	}
}

func (d *DefaultTransmission) deliver(batch []*trace.Segment) {
	if len(batch) == 0 {
		return
	}
	objects := make([]types.SegmentObject, 0, len(batch))
	for _, segment := range batch {
		objects = append(objects, d.Encoder.Encode(segment))
	}
	encoded, err := msgpack.Marshal(objects)
	if err != nil {
		d.Metrics.IncrementCounter("transmit_send_failures")
		d.Logger.Errorf("failed to encode %d segments, dropping them: %v", len(batch), err)
		return
	}
	compressed := d.encoderPool.EncodeAll(encoded, nil)

	if err := d.post(compressed); err != nil {
		d.Metrics.IncrementCounter("transmit_send_failures")
		d.Logger.Errorf("failed to deliver %d segments, dropping them: %v", len(batch), err)
		return
	}
	d.Metrics.Count("transmit_segments_sent", float64(len(batch)))
}

func (d *DefaultTransmission) post(body []byte) error {
	servers := d.Downstream.Get().Servers
	if len(servers) == 0 {
		var err error
		servers, err = d.Config.GetCollectorServers()
		if err != nil || len(servers) == 0 {
			return errors.New("no collector servers available")
		}
	}

	var lastErr error
	for attempt := 0; attempt < len(servers); attempt++ {
		server := servers[d.nextServer%len(servers)]
		d.nextServer++
		req, err := http.NewRequest(http.MethodPost,
			fmt.Sprintf("http://%s/v1/segments", server), bytes.NewReader(body))
		if err != nil {
			lastErr = err
			continue
		}
		req.Header.Set("Content-Type", "application/msgpack")
		req.Header.Set("Content-Encoding", "zstd")
		resp, err := d.Client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			lastErr = errors.Errorf("collector %s returned status %d", server, resp.StatusCode)
			continue
		}
		return nil
	}
	return lastErr
}
