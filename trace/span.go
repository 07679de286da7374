package trace

import (
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/traceloom/traceloom/dict"
	"github.com/traceloom/traceloom/types"
)

// Strict makes use-after-finish mutations panic instead of being ignored.
// Production wiring leaves it off: tracing must never take down the host
// application, so a late mutator is silently dropped there.
var Strict bool

const rootSpanParent int32 = -1

// Span is one traced operation. The three kinds share all fields and route
// every mutator through one gate; entry spans additionally collapse nested
// same-boundary invocations onto a single logical span via a depth counter.
type Span struct {
	kind         types.SpanType
	spanID       int32
	parentSpanID int32

	operationName string
	operationID   int32
	componentName string
	componentID   int32
	layer         types.SpanLayer
	peer          string

	startTime time.Time
	endTime   time.Time
	started   bool
	finished  bool

	tags    []types.KeyValue
	logs    []types.LogMessage
	isError bool

	// entry spans only: how deeply the same service boundary has been
	// re-entered, and the depth at which this span was truly started. Only
	// calls at that depth own the span's externally visible identity.
	stackDepth      int
	currentMaxDepth int

	clock clockwork.Clock
}

func newSpan(kind types.SpanType, spanID, parentSpanID int32, operationName string, clock clockwork.Clock) *Span {
	return &Span{
		kind:          kind,
		spanID:        spanID,
		parentSpanID:  parentSpanID,
		operationName: operationName,
		componentID:   dict.NullValue,
		clock:         clock,
	}
}

func (s *Span) SpanID() int32       { return s.spanID }
func (s *Span) ParentSpanID() int32 { return s.parentSpanID }
func (s *Span) OperationName() string {
	return s.operationName
}
func (s *Span) IsEntry() bool { return s.kind == types.SpanTypeEntry }
func (s *Span) IsExit() bool  { return s.kind == types.SpanTypeExit }
func (s *Span) IsError() bool { return s.isError }

// Start moves the span from Created to Started. For an entry span every call
// increments the boundary depth, but only the call that truly starts the
// span reads the clock; that call also clears any attribute state left over
// from a previous start/finish cycle so one span object can be reused in a
// tight loop without leaking stale tags.
func (s *Span) Start() *Span {
	if s.kind == types.SpanTypeEntry {
		s.stackDepth++
		if !s.started {
			s.currentMaxDepth = s.stackDepth
			s.clearWhenRestart()
			s.startTime = s.clock.Now()
			s.started = true
		}
		return s
	}
	if !s.started {
		s.clearWhenRestart()
		s.startTime = s.clock.Now()
		s.started = true
	}
	return s
}

// Finish records the end of the operation. For an entry span only the call
// that unwinds the boundary depth back to zero completes it; the return
// value reports whether the span is now done and may leave the active stack.
func (s *Span) Finish() bool {
	if s.kind == types.SpanTypeEntry {
		s.stackDepth--
		if s.stackDepth > 0 {
			return false
		}
	}
	s.endTime = s.clock.Now()
	s.finished = true
	// arm the restart path for span reuse
	s.started = false
	return true
}

// appliesMutation is the single gate every attribute mutator goes through.
// A finished span rejects mutation (loudly under Strict); an entry span
// rejects mutation from anywhere but the depth that owns it. This is a
// deliberate collapse policy, not an error, so callers get a fluent no-op.
func (s *Span) appliesMutation() bool {
	if s.finished {
		if Strict {
			panic(fmt.Sprintf("mutation of finished span %d (%s)", s.spanID, s.operationName))
		}
		return false
	}
	if s.kind == types.SpanTypeEntry {
		return s.stackDepth == s.currentMaxDepth
	}
	return true
}

func (s *Span) Tag(key, value string) *Span {
	if s.appliesMutation() {
		s.tags = append(s.tags, types.KeyValue{Key: key, Value: value})
	}
	return s
}

func (s *Span) SetComponent(id int32) *Span {
	if s.appliesMutation() {
		s.componentID = id
		s.componentName = ""
	}
	return s
}

func (s *Span) SetComponentName(name string) *Span {
	if s.appliesMutation() {
		s.componentName = name
		s.componentID = dict.NullValue
	}
	return s
}

func (s *Span) SetLayer(layer types.SpanLayer) *Span {
	if s.appliesMutation() {
		s.layer = layer
	}
	return s
}

func (s *Span) SetOperationName(name string) *Span {
	if s.appliesMutation() {
		s.operationName = name
		s.operationID = dict.NullValue
	}
	return s
}

func (s *Span) SetOperationID(id int32) *Span {
	if s.appliesMutation() {
		s.operationID = id
		s.operationName = ""
	}
	return s
}

// SetPeer records the remote address of an exit span's call target.
func (s *Span) SetPeer(peer string) *Span {
	if s.appliesMutation() {
		s.peer = peer
	}
	return s
}

// Error attaches an error event to the span. Unlike the other mutators it is
// never depth-gated: an error thrown from a nested re-entry still belongs on
// the span.
func (s *Span) Error(err error) *Span {
	if err == nil {
		return s
	}
	s.isError = true
	s.logs = append(s.logs, types.LogMessage{
		Timestamp: s.clock.Now().UnixMilli(),
		Data: []types.KeyValue{
			{Key: "event", Value: "error"},
			{Key: "message", Value: err.Error()},
		},
	})
	return s
}

func (s *Span) clearWhenRestart() {
	s.componentID = dict.NullValue
	s.componentName = ""
	s.layer = types.LayerUnknown
	s.peer = ""
	s.tags = nil
	s.logs = nil
	s.isError = false
	s.finished = false
	s.endTime = time.Time{}
}

// Transform produces the wire form of the span. Tags collapse to one value
// per key, last write winning, in first-written key order. Entry spans carry
// the segment's references onto the wire.
func (s *Span) Transform(refs []SegmentRef) types.SpanObject {
	obj := types.SpanObject{
		SpanID:        s.spanID,
		ParentSpanID:  s.parentSpanID,
		StartTime:     s.startTime.UnixMilli(),
		EndTime:       s.endTime.UnixMilli(),
		OperationName: s.operationName,
		OperationID:   s.operationID,
		ComponentName: s.componentName,
		ComponentID:   s.componentID,
		Peer:          s.peer,
		SpanType:      s.kind,
		SpanLayer:     s.layer,
		IsError:       s.isError,
		Tags:          compactTags(s.tags),
		Logs:          s.logs,
	}
	if s.kind == types.SpanTypeEntry {
		for _, ref := range refs {
			obj.Refs = append(obj.Refs, ref.Transform())
		}
	}
	return obj
}

func compactTags(tags []types.KeyValue) []types.KeyValue {
	if len(tags) == 0 {
		return nil
	}
	index := make(map[string]int, len(tags))
	out := make([]types.KeyValue, 0, len(tags))
	for _, kv := range tags {
		if i, seen := index[kv.Key]; seen {
			out[i].Value = kv.Value
			continue
		}
		index[kv.Key] = len(out)
		out = append(out, kv)
	}
	return out
}
