package trace

import (
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Segment is one process-local unit of trace work: an ordered list of spans
// it owns exclusively, plus the deduplicated set of references to whatever
// caused it. It is built on a single goroutine and becomes immutable once
// the owner declares it finished.
type Segment struct {
	ID string

	spans      []*Span
	refs       []SegmentRef
	nextSpanID int32
	finished   bool

	clock clockwork.Clock
}

func NewSegment(clock clockwork.Clock) *Segment {
	return &Segment{
		ID:    uuid.NewString(),
		clock: clock,
	}
}

// Ref attaches a reference to a parent context. Adding a structurally equal
// reference twice is a no-op; a segment with several distinct refs models
// fan-in, like a batch consumer merging multiple upstream chains.
func (s *Segment) Ref(ref SegmentRef) {
	for _, existing := range s.refs {
		if existing == ref {
			return
		}
	}
	s.refs = append(s.refs, ref)
}

func (s *Segment) Refs() []SegmentRef { return s.refs }

func (s *Segment) Spans() []*Span { return s.spans }

// Finish marks the segment ready for transport. Completion is the caller's
// call: the core never infers it from span or queue state.
func (s *Segment) Finish() {
	s.finished = true
}

func (s *Segment) Finished() bool { return s.finished }

func (s *Segment) newSpanID() int32 {
	id := s.nextSpanID
	s.nextSpanID++
	return id
}

func (s *Segment) attach(span *Span) {
	s.spans = append(s.spans, span)
}
