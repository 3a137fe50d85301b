// Package jobtest provides a job.Publisher recording events for tests.
package jobtest

import (
	"context"
	"sync"

	"github.com/CZERTAINLY/Paperwork/internal/job"
)

// Recorder is a job.Publisher keeping every event.
type Recorder struct {
	mx     sync.Mutex
	events []job.Event
	notify chan struct{}
}

func NewRecorder() *Recorder {
	return &Recorder{notify: make(chan struct{})}
}

func (r *Recorder) Publish(ev job.Event) {
	r.mx.Lock()
	defer r.mx.Unlock()
	r.events = append(r.events, ev)
	close(r.notify)
	r.notify = make(chan struct{})
}

func (r *Recorder) Events() []job.Event {
	r.mx.Lock()
	defer r.mx.Unlock()
	return append([]job.Event(nil), r.events...)
}

func (r *Recorder) Types() []job.EventType {
	var ret []job.EventType
	for _, ev := range r.Events() {
		ret = append(ret, ev.Type)
	}
	return ret
}

func (r *Recorder) Terminals() []job.Event {
	var ret []job.Event
	for _, ev := range r.Events() {
		if ev.Terminal {
			ret = append(ret, ev)
		}
	}
	return ret
}

// WaitFor blocks until an event of type typ was published or ctx is done.
func (r *Recorder) WaitFor(ctx context.Context, typ job.EventType) (job.Event, error) {
	for {
		r.mx.Lock()
		for _, ev := range r.events {
			if ev.Type == typ {
				r.mx.Unlock()
				return ev, nil
			}
		}
		notify := r.notify
		r.mx.Unlock()

		select {
		case <-notify:
		case <-ctx.Done():
			return job.Event{}, ctx.Err()
		}
	}
}
