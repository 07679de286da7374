package trace

import "github.com/traceloom/traceloom/types"

// ContextSnapshot is a point-in-time copy of everything a continuation needs
// to link itself back to the segment that spawned it. It is captured on the
// originating goroutine and consumed on another goroutine or in another
// process; it never aliases the parent's live objects.
type ContextSnapshot struct {
	SegmentID          string
	SpanID             int32
	ApplicationID      int32
	InstanceID         int32
	OperationName      string
	EntryOperationName string
	Valid              bool
}

// SegmentRef is a causal pointer from a child segment to a parent context.
// Structural equality drives dedup: the same upstream delivered twice (a
// retried message, a duplicated header) must not produce two edges.
type SegmentRef struct {
	ParentSegmentID     string
	ParentSpanID        int32
	ParentApplicationID int32
	ParentInstanceID    int32
	ParentOperationName string
	EntryOperationName  string
	NetworkAddress      string
}

// NewSegmentRef builds a ref from a propagated snapshot, copying everything
// it needs up front.
func NewSegmentRef(snapshot ContextSnapshot, peer string) SegmentRef {
	return SegmentRef{
		ParentSegmentID:     snapshot.SegmentID,
		ParentSpanID:        snapshot.SpanID,
		ParentApplicationID: snapshot.ApplicationID,
		ParentInstanceID:    snapshot.InstanceID,
		ParentOperationName: snapshot.OperationName,
		EntryOperationName:  snapshot.EntryOperationName,
		NetworkAddress:      peer,
	}
}

func (r SegmentRef) Transform() types.SegmentReference {
	return types.SegmentReference{
		ParentSegmentID:     r.ParentSegmentID,
		ParentSpanID:        r.ParentSpanID,
		ParentApplicationID: r.ParentApplicationID,
		ParentInstanceID:    r.ParentInstanceID,
		ParentOperationName: r.ParentOperationName,
		EntryOperationName:  r.EntryOperationName,
		NetworkAddress:      r.NetworkAddress,
	}
}
