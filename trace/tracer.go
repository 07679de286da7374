package trace

import (
	"context"

	"github.com/jonboulle/clockwork"

	"github.com/traceloom/traceloom/logger"
	"github.com/traceloom/traceloom/remote"
	"github.com/traceloom/traceloom/types"
)

// Reporter receives finished segments. The transmit package provides the
// production implementation; tests swap in their own.
type Reporter interface {
	Report(segment *Segment)
}

// Tracer builds segments and spans for traced units of work. Host
// integrations drive it through a three-call contract: create a span on the
// way in, Error on a failure, StopSpan on the way out. How those calls get
// attached to the host's code paths is entirely the host's business.
type Tracer struct {
	Logger     logger.Logger            `inject:""`
	Downstream *remote.DownstreamConfig `inject:""`
	Reporter   Reporter                 `inject:""`
	Clock      clockwork.Clock          `inject:""`
}

func (t *Tracer) Start() error { return nil }
func (t *Tracer) Stop() error  { return nil }

// NewUnit opens a unit of work with no usable parent context, creating a
// fresh segment for it.
func (t *Tracer) NewUnit() *Unit {
	return &Unit{
		tracer:  t,
		segment: NewSegment(t.Clock),
	}
}

// Unit tracks the active span stack for one unit of work on one goroutine.
// It is not safe for concurrent use; cross-goroutine continuation goes
// through Capture/Continued snapshots instead.
type Unit struct {
	tracer  *Tracer
	segment *Segment
	actives []*Span
}

func (u *Unit) Segment() *Segment { return u.segment }

// ActiveSpan returns the innermost unfinished span, or nil outside any span.
func (u *Unit) ActiveSpan() *Span {
	if len(u.actives) == 0 {
		return nil
	}
	return u.actives[len(u.actives)-1]
}

// CreateEntrySpan starts (or re-enters) the span marking the service
// boundary. If the active span is already an entry span the boundary is
// being re-entered in the same unit of work, and the existing span absorbs
// the call instead of producing a duplicate; its depth gate decides whether
// later mutators stick.
func (u *Unit) CreateEntrySpan(operationName string) *Span {
	if active := u.ActiveSpan(); active != nil && active.IsEntry() {
		active.Start()
		active.SetOperationName(operationName)
		return active
	}
	span := newSpan(types.SpanTypeEntry, u.segment.newSpanID(), u.parentSpanID(), operationName, u.tracer.Clock)
	u.push(span)
	return span.Start()
}

// CreateLocalSpan starts a span for an in-process operation.
func (u *Unit) CreateLocalSpan(operationName string) *Span {
	span := newSpan(types.SpanTypeLocal, u.segment.newSpanID(), u.parentSpanID(), operationName, u.tracer.Clock)
	u.push(span)
	return span.Start()
}

// CreateExitSpan starts a span for an outbound call to the given peer.
func (u *Unit) CreateExitSpan(operationName, peer string) *Span {
	span := newSpan(types.SpanTypeExit, u.segment.newSpanID(), u.parentSpanID(), operationName, u.tracer.Clock)
	span.peer = peer
	u.push(span)
	return span.Start()
}

// StopSpan finishes the active span. When the last span leaves the stack the
// segment is declared finished and handed to the reporter; an unregistered
// agent still reports, with sentinel identity filled in downstream.
func (u *Unit) StopSpan() {
	active := u.ActiveSpan()
	if active == nil {
		return
	}
	if active.Finish() {
		u.actives = u.actives[:len(u.actives)-1]
	}
	if len(u.actives) == 0 {
		u.segment.Finish()
		u.tracer.Reporter.Report(u.segment)
	}
}

// Capture snapshots the current position for handoff to another goroutine
// or process. The snapshot is a pure value copy.
func (u *Unit) Capture() ContextSnapshot {
	active := u.ActiveSpan()
	if active == nil {
		return ContextSnapshot{}
	}
	state := u.tracer.Downstream.Get()
	snapshot := ContextSnapshot{
		SegmentID:     u.segment.ID,
		SpanID:        active.SpanID(),
		ApplicationID: state.ApplicationID,
		InstanceID:    state.InstanceID,
		OperationName: active.OperationName(),
		Valid:         true,
	}
	if len(u.segment.spans) > 0 {
		snapshot.EntryOperationName = u.segment.spans[0].OperationName()
	}
	return snapshot
}

// Continued links this unit to the context a snapshot was captured from.
// Malformed (invalid) snapshots are ignored; duplicate refs collapse.
func (u *Unit) Continued(snapshot ContextSnapshot, peer string) {
	if !snapshot.Valid {
		return
	}
	u.segment.Ref(NewSegmentRef(snapshot, peer))
}

func (u *Unit) parentSpanID() int32 {
	if active := u.ActiveSpan(); active != nil {
		return active.SpanID()
	}
	return rootSpanParent
}

func (u *Unit) push(span *Span) {
	u.segment.attach(span)
	u.actives = append(u.actives, span)
}

type unitContextKey struct{}

// ContextWith stores a Unit in a context.Context for plumbing through
// call stacks that already carry one.
func ContextWith(ctx context.Context, unit *Unit) context.Context {
	return context.WithValue(ctx, unitContextKey{}, unit)
}

// FromContext returns the Unit carried by ctx, or nil.
func FromContext(ctx context.Context) *Unit {
	unit, _ := ctx.Value(unitContextKey{}).(*Unit)
	return unit
}
