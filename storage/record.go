// Package storage defines the persistence contract the collector's workers
// write through, the record kinds that flow through them, and an in-memory
// store. Real storage engines plug in behind the DAO interfaces.
package storage

import (
	"fmt"

	"github.com/traceloom/traceloom/types"
)

// Kind names a record stream. Each kind routes to exactly one worker.
type Kind string

const (
	KindSegment           Kind = "segment"
	KindGCMetric          Kind = "gc_metric"
	KindInstanceHeartbeat Kind = "instance_heartbeat"
)

// Record is one persistable unit flowing through the ingestion pipeline.
type Record interface {
	// ID is the record's storage identity. Two records with the same ID
	// describe the same logical row.
	ID() string
	Kind() Kind
}

// Mergeable marks record kinds whose same-identity rows combine instead of
// appending. Merge must not mutate either input, and for kinds that declare
// it, must be commutative.
type Mergeable interface {
	Record
	Merge(other Record) Record
}

// SegmentRecord is one received trace segment. Insert-only: segment ids are
// globally unique so there is nothing to merge.
type SegmentRecord struct {
	Segment    types.SegmentObject
	ReceivedAt int64
}

func (r *SegmentRecord) ID() string { return r.Segment.SegmentID }
func (r *SegmentRecord) Kind() Kind { return KindSegment }

// GCMetricRecord aggregates garbage-collection counters per instance, phase,
// and minute bucket. Same-identity records merge by summing.
type GCMetricRecord struct {
	InstanceID int32
	PhaseOld   bool
	TimeBucket int64
	Count      int64
	Millis     int64
}

func (r *GCMetricRecord) ID() string {
	return fmt.Sprintf("%d:%t:%d", r.InstanceID, r.PhaseOld, r.TimeBucket)
}
func (r *GCMetricRecord) Kind() Kind { return KindGCMetric }

func (r *GCMetricRecord) Merge(other Record) Record {
	o, ok := other.(*GCMetricRecord)
	if !ok {
		return r
	}
	merged := *r
	merged.Count += o.Count
	merged.Millis += o.Millis
	return &merged
}

// InstanceHeartbeatRecord is the last-seen time of a registered instance.
// Same-identity records merge latest-wins.
type InstanceHeartbeatRecord struct {
	InstanceID    int32
	HeartbeatTime int64
}

func (r *InstanceHeartbeatRecord) ID() string { return fmt.Sprintf("%d", r.InstanceID) }
func (r *InstanceHeartbeatRecord) Kind() Kind { return KindInstanceHeartbeat }

func (r *InstanceHeartbeatRecord) Merge(other Record) Record {
	o, ok := other.(*InstanceHeartbeatRecord)
	if !ok {
		return r
	}
	if o.HeartbeatTime > r.HeartbeatTime {
		return o
	}
	return r
}
