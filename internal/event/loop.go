package event

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/CZERTAINLY/Paperwork/internal/job"
)

var ErrLoopClosed = errors.New("event loop closed")

// Handler consumes one event on the consumer goroutine.
type Handler func(ctx context.Context, ev job.Event)

// Action runs on the consumer goroutine.
type Action func(ctx context.Context) error

// Loop is the single consumer of a Channel. Everything the handler and the
// actions touch is owned by the goroutine calling Run.
type Loop struct {
	ch      *Channel
	handler Handler

	mx      sync.Mutex
	actions []Action
	wake    chan struct{}
	done    chan struct{}
}

func NewLoop(ch *Channel, handler Handler) *Loop {
	return &Loop{
		ch:      ch,
		handler: handler,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// Run consumes actions and events until ctx is done. On each wake up it runs
// the posted actions first, then the events queued so far.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)
	slog.DebugContext(ctx, "event loop started")
	for {
		l.tick(ctx)
		select {
		case <-ctx.Done():
			slog.DebugContext(ctx, "event loop stopped")
			return nil
		case <-l.ch.Ready():
		case <-l.wake:
		}
	}
}

// Flush runs pending actions and drains the channel once on the calling
// goroutine. It is meant for tools driving the loop without Run.
func (l *Loop) Flush(ctx context.Context) {
	l.tick(ctx)
}

func (l *Loop) tick(ctx context.Context) {
	l.mx.Lock()
	actions := l.actions
	l.actions = nil
	l.mx.Unlock()

	for _, action := range actions {
		if err := action(ctx); err != nil {
			slog.ErrorContext(ctx, "action failed", "error", err)
		}
	}
	for ev := range l.ch.Drain() {
		slog.DebugContext(ctx, "event",
			"job_kind", ev.Kind,
			"run", ev.Run,
			"seq", ev.Seq,
			"type", ev.Type,
		)
		l.handler(ctx, ev)
	}
}

// Post queues fn for the consumer goroutine and returns immediately.
func (l *Loop) Post(fn Action) {
	l.mx.Lock()
	l.actions = append(l.actions, fn)
	l.mx.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Do runs fn on the consumer goroutine and returns its error. It must not be
// called from the consumer goroutine.
func (l *Loop) Do(ctx context.Context, fn Action) error {
	errc := make(chan error, 1)
	l.Post(func(ctx context.Context) error {
		errc <- fn(ctx)
		return nil
	})
	select {
	case err := <-errc:
		return err
	case <-l.done:
		select {
		case err := <-errc:
			return err
		default:
			return ErrLoopClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}
