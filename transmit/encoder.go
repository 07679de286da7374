package transmit

import (
	"github.com/traceloom/traceloom/dict"
	"github.com/traceloom/traceloom/remote"
	"github.com/traceloom/traceloom/trace"
	"github.com/traceloom/traceloom/types"
)

// Encoder turns finished in-memory segments into wire objects. Identity
// fields come from the downstream-config snapshot at encode time; operation
// and component names shrink to interned ids when the dictionary already
// knows them, and stay as raw strings when it doesn't. Both lookups fall
// back to sentinels rather than ever failing.
type Encoder struct {
	Dict       dict.Dictionary          `inject:""`
	Downstream *remote.DownstreamConfig `inject:""`
}

func (e *Encoder) Encode(segment *trace.Segment) types.SegmentObject {
	state := e.Downstream.Get()
	obj := types.SegmentObject{
		SegmentID:     segment.ID,
		ApplicationID: state.ApplicationID,
		InstanceID:    state.InstanceID,
		Spans:         make([]types.SpanObject, 0, len(segment.Spans())),
	}
	refsAttached := false
	for _, span := range segment.Spans() {
		// the segment's refs ride on its first entry span
		var spanRefs []trace.SegmentRef
		if span.IsEntry() && !refsAttached {
			spanRefs = segment.Refs()
			refsAttached = true
		}
		wire := span.Transform(spanRefs)
		if wire.OperationID == dict.NullValue && wire.OperationName != "" {
			if id := e.Dict.Lookup(wire.OperationName); id != dict.NullValue {
				wire.OperationID = id
				wire.OperationName = ""
			}
		}
		if wire.ComponentID == dict.NullValue && wire.ComponentName != "" {
			if id := e.Dict.Lookup(wire.ComponentName); id != dict.NullValue {
				wire.ComponentID = id
				wire.ComponentName = ""
			}
		}
		obj.Spans = append(obj.Spans, wire)
	}
	return obj
}
