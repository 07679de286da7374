package types

// SpanType describes where a span sits relative to the process boundary.
type SpanType int32

const (
	SpanTypeEntry SpanType = iota
	SpanTypeExit
	SpanTypeLocal
)

func (t SpanType) String() string {
	switch t {
	case SpanTypeEntry:
		return "Entry"
	case SpanTypeExit:
		return "Exit"
	case SpanTypeLocal:
		return "Local"
	}
	return "Unknown"
}

// SpanLayer is the protocol family a span describes.
type SpanLayer int32

const (
	LayerUnknown SpanLayer = iota
	LayerDatabase
	LayerRPCFramework
	LayerHTTP
	LayerMQ
	LayerCache
)

// KeyValue is one tag on a span. Order is preserved on the wire; the last
// value written for a key wins at serialization time.
type KeyValue struct {
	Key   string `msgpack:"k"`
	Value string `msgpack:"v"`
}

// LogMessage is one timestamped event attached to a span, usually an error.
type LogMessage struct {
	Timestamp int64      `msgpack:"ts"`
	Data      []KeyValue `msgpack:"data"`
}

// SegmentReference points at the parent segment/span that caused this
// segment, possibly in another process. It carries everything the collector
// needs to rebuild the causal edge without access to the parent's objects.
type SegmentReference struct {
	ParentSegmentID        string `msgpack:"psid"`
	ParentSpanID           int32  `msgpack:"pspan"`
	ParentApplicationID    int32  `msgpack:"papp"`
	ParentInstanceID       int32  `msgpack:"pinst"`
	ParentOperationName    string `msgpack:"pop,omitempty"`
	ParentOperationID      int32  `msgpack:"popid,omitempty"`
	NetworkAddress         string `msgpack:"peer,omitempty"`
	EntryOperationName     string `msgpack:"entryop,omitempty"`
	EntryApplicationInstID int32  `msgpack:"entryinst,omitempty"`
}

// SpanObject is the wire form of one span. Field identity is by name, not
// position, so the schema can grow without breaking older readers.
type SpanObject struct {
	SpanID        int32              `msgpack:"sid"`
	ParentSpanID  int32              `msgpack:"psid"`
	StartTime     int64              `msgpack:"st"`
	EndTime       int64              `msgpack:"et"`
	OperationName string             `msgpack:"op,omitempty"`
	OperationID   int32              `msgpack:"opid,omitempty"`
	ComponentName string             `msgpack:"comp,omitempty"`
	ComponentID   int32              `msgpack:"compid,omitempty"`
	Peer          string             `msgpack:"peer,omitempty"`
	SpanType      SpanType           `msgpack:"type"`
	SpanLayer     SpanLayer          `msgpack:"layer"`
	IsError       bool               `msgpack:"err"`
	Tags          []KeyValue         `msgpack:"tags,omitempty"`
	Logs          []LogMessage       `msgpack:"logs,omitempty"`
	Refs          []SegmentReference `msgpack:"refs,omitempty"`
}

// SegmentObject is the wire form of one trace segment.
type SegmentObject struct {
	SegmentID     string       `msgpack:"id"`
	ApplicationID int32        `msgpack:"app"`
	InstanceID    int32        `msgpack:"inst"`
	Spans         []SpanObject `msgpack:"spans"`
}
