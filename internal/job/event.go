package job

import (
	"time"

	"github.com/google/uuid"
)

// Kind names one of the fixed pipeline operations.
type Kind string

const (
	KindReindex     Kind = "reindex"
	KindThumbnail   Kind = "thumbnail"
	KindRender      Kind = "render"
	KindLabelUpdate Kind = "label-update"
	KindScanSingle  Kind = "scan-single"
	KindScanMulti   Kind = "scan-multi"
)

// EventType is the consumer facing name of an event, e.g. indexation-end.
type EventType string

// Event is a value published by a run. Seq increases by one for every
// event of the same run, starting at 1.
type Event struct {
	Kind      Kind
	Run       uuid.UUID
	Seq       uint64
	Type      EventType
	Time      time.Time
	Fraction  float64
	Message   string
	Payload   any
	Err       error
	Progress  bool // intermediate progress report, may be coalesced
	Terminal  bool // last event of the run
	Cancelled bool // set on the terminal event of a stopped run
}

// Publisher receives events from any goroutine and must not block.
type Publisher interface {
	Publish(Event)
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(Event)

func (f PublisherFunc) Publish(ev Event) {
	f(ev)
}
