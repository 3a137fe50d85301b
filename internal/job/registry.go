package job

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Registry owns exactly one Job per kind. Start, Stop and StartExclusive are
// serialized, so a StartExclusive can't interleave with another start.
type Registry struct {
	mx    sync.Mutex
	jobs  map[Kind]*Job
	kinds []Kind
}

// NewRegistry creates a Job for every worker. All jobs publish to pub.
func NewRegistry(pub Publisher, workers ...Worker) (*Registry, error) {
	r := &Registry{
		jobs: make(map[Kind]*Job, len(workers)),
	}
	for _, w := range workers {
		kind := w.Kind()
		if _, ok := r.jobs[kind]; ok {
			return nil, fmt.Errorf("worker for %s registered twice", kind)
		}
		r.jobs[kind] = New(w, pub)
		r.kinds = append(r.kinds, kind)
	}
	return r, nil
}

// Get returns the job of a kind or nil.
func (r *Registry) Get(kind Kind) *Job {
	return r.jobs[kind]
}

func (r *Registry) Kinds() []Kind {
	return append([]Kind(nil), r.kinds...)
}

func (r *Registry) IsRunning(kind Kind) bool {
	j := r.jobs[kind]
	return j != nil && j.IsRunning()
}

// Start starts a job, it fails with ErrAlreadyRunning if it still runs.
func (r *Registry) Start(ctx context.Context, kind Kind, req any) error {
	j, err := r.lookup(kind)
	if err != nil {
		return err
	}
	r.mx.Lock()
	defer r.mx.Unlock()
	return j.Start(ctx, req)
}

// Stop stops a job and waits for a cancellable one to exit.
func (r *Registry) Stop(kind Kind) error {
	j, err := r.lookup(kind)
	if err != nil {
		return err
	}
	r.mx.Lock()
	defer r.mx.Unlock()
	j.Stop()
	return nil
}

// StartExclusive stops a job and starts it again with req. For a
// non-cancellable job which is still running it returns ErrAlreadyRunning.
func (r *Registry) StartExclusive(ctx context.Context, kind Kind, req any) error {
	j, err := r.lookup(kind)
	if err != nil {
		return err
	}
	r.mx.Lock()
	defer r.mx.Unlock()
	j.Stop()
	return j.Start(ctx, req)
}

// StopAll stops every job and waits until all runs, including the
// non-cancellable ones, published their terminal event. It returns early with
// ctx error when ctx is done first.
func (r *Registry) StopAll(ctx context.Context) error {
	r.mx.Lock()
	defer r.mx.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	for _, kind := range r.kinds {
		j := r.jobs[kind]
		g.Go(func() error {
			j.Stop()
			if err := j.Wait(ctx); err != nil {
				return fmt.Errorf("waiting for %s: %w", kind, err)
			}
			return nil
		})
	}
	err := g.Wait()
	if err != nil {
		slog.ErrorContext(ctx, "stopping jobs", "error", err)
	}
	return err
}

func (r *Registry) lookup(kind Kind) (*Job, error) {
	j, ok := r.jobs[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	return j, nil
}
