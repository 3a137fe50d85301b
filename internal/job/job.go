package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/CZERTAINLY/Paperwork/internal/log"

	"github.com/google/uuid"
)

type State int32

const (
	StateIdle State = iota
	StateRunning
	// StateStopping is a Running job whose cancel flag has been raised.
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Worker is the body of a job.
type Worker interface {
	Kind() Kind
	// Cancellable reports whether Stop may interrupt a run. Workers which
	// would leave shared state half updated must return false.
	Cancellable() bool
	// Do executes one run. It must poll run.ShouldContinue at every
	// indivisible unit of work and return ErrCancelled once it is false.
	Do(ctx context.Context, req any, run *Run) error
	// Terminal builds the terminal event published when Do returned
	// without calling run.Finish. err is nil for successful or cancelled runs.
	Terminal(err error) (EventType, any)
}

// Job is a single-flight runner of one Worker.
type Job struct {
	worker Worker
	pub    Publisher

	mx      sync.Mutex
	state   State
	cancel  atomic.Bool
	stopRun context.CancelFunc
	done    chan struct{}
	runID   uuid.UUID
	lastErr error
}

func New(worker Worker, pub Publisher) *Job {
	return &Job{
		worker: worker,
		pub:    pub,
	}
}

func (j *Job) Kind() Kind {
	return j.worker.Kind()
}

func (j *Job) Cancellable() bool {
	return j.worker.Cancellable()
}

// Start begins a new run of the worker with req on a new goroutine. The run
// context keeps ctx values but not its cancellation, runs end through Stop only.
func (j *Job) Start(ctx context.Context, req any) error {
	j.mx.Lock()
	defer j.mx.Unlock()
	if j.state != StateIdle {
		return fmt.Errorf("%s: %w", j.Kind(), ErrAlreadyRunning)
	}

	id := uuid.New()
	runCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	runCtx = log.ContextAttrs(runCtx,
		slog.String("job_kind", string(j.Kind())),
		slog.String("run", id.String()),
	)

	j.cancel.Store(false)
	j.runID = id
	j.stopRun = stop
	j.done = make(chan struct{})
	j.state = StateRunning
	j.lastErr = nil

	run := &Run{
		id:     id,
		kind:   j.Kind(),
		ctx:    runCtx,
		cancel: &j.cancel,
		pub:    j.pub,
	}
	slog.DebugContext(runCtx, "job started")
	go j.execute(run, req, j.done)
	return nil
}

func (j *Job) execute(run *Run, req any, done chan struct{}) {
	ctx := run.Context()
	err := j.do(run, req)
	switch {
	case err == nil:
		slog.DebugContext(ctx, "job finished")
	case run.cancelled() && (errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)):
		slog.InfoContext(ctx, "job interrupted")
		err = nil
	case errors.Is(err, ErrCancelled):
		// a worker may stop itself, it is not a failure either
		err = nil
	default:
		slog.ErrorContext(ctx, "job failed", "error", err)
	}

	if !run.isFinished() {
		typ, payload := j.worker.Terminal(err)
		run.Finish(typ, payload, err)
	}

	j.mx.Lock()
	defer j.mx.Unlock()
	j.state = StateIdle
	j.lastErr = err
	j.stopRun()
	close(done)
}

func (j *Job) do(run *Run, req any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return j.worker.Do(run.Context(), req, run)
}

// Stop raises the cancel flag and blocks until the current run exits. It is
// a no-op for an idle or non-cancellable job.
func (j *Job) Stop() {
	j.mx.Lock()
	if j.state == StateIdle || !j.worker.Cancellable() {
		j.mx.Unlock()
		return
	}
	j.state = StateStopping
	j.cancel.Store(true)
	j.stopRun()
	done := j.done
	j.mx.Unlock()

	slog.Debug("job stopping", "job_kind", j.Kind())
	<-done
}

// Wait blocks until the current run, if any, exits or ctx is done.
func (j *Job) Wait(ctx context.Context) error {
	j.mx.Lock()
	done := j.done
	j.mx.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	default:
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (j *Job) IsRunning() bool {
	return j.State() != StateIdle
}

func (j *Job) State() State {
	j.mx.Lock()
	defer j.mx.Unlock()
	return j.state
}

// RunID returns the id of the current or the last run, uuid.Nil before the
// first Start.
func (j *Job) RunID() uuid.UUID {
	j.mx.Lock()
	defer j.mx.Unlock()
	return j.runID
}

// LastErr returns the failure of the last finished run.
func (j *Job) LastErr() error {
	j.mx.Lock()
	defer j.mx.Unlock()
	return j.lastErr
}

// Run is the handle a Worker uses to report from one execution.
type Run struct {
	id     uuid.UUID
	kind   Kind
	ctx    context.Context
	cancel *atomic.Bool
	pub    Publisher

	mx       sync.Mutex
	seq      uint64
	finished bool
}

func (r *Run) ID() uuid.UUID {
	return r.id
}

func (r *Run) Kind() Kind {
	return r.kind
}

// Context is cancelled when the job is stopped.
func (r *Run) Context() context.Context {
	return r.ctx
}

// ShouldContinue reports false once Stop has been requested.
func (r *Run) ShouldContinue() bool {
	return !r.cancel.Load()
}

func (r *Run) cancelled() bool {
	return r.cancel.Load()
}

// Emit publishes an intermediate event.
func (r *Run) Emit(typ EventType, payload any) {
	r.publish(Event{Type: typ, Payload: payload})
}

// Progress publishes a progress report. Consecutive reports may be
// coalesced by a bounded channel.
func (r *Run) Progress(typ EventType, fraction float64, message string) {
	r.publish(Event{Type: typ, Fraction: fraction, Message: message, Progress: true})
}

// Finish publishes the terminal event. Events emitted afterwards are dropped.
func (r *Run) Finish(typ EventType, payload any, err error) {
	r.publish(Event{Type: typ, Payload: payload, Err: err, Terminal: true, Cancelled: r.cancelled()})
}

func (r *Run) isFinished() bool {
	r.mx.Lock()
	defer r.mx.Unlock()
	return r.finished
}

func (r *Run) publish(ev Event) {
	r.mx.Lock()
	defer r.mx.Unlock()
	if r.finished {
		slog.WarnContext(r.ctx, "event after terminal event dropped", "type", ev.Type)
		return
	}
	r.seq++
	ev.Kind = r.kind
	ev.Run = r.id
	ev.Seq = r.seq
	ev.Time = time.Now().UTC()
	r.finished = ev.Terminal
	r.pub.Publish(ev)
}
