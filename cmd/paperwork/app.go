package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/CZERTAINLY/Paperwork/internal/docindex"
	"github.com/CZERTAINLY/Paperwork/internal/docstore"
	"github.com/CZERTAINLY/Paperwork/internal/event"
	"github.com/CZERTAINLY/Paperwork/internal/job"
	"github.com/CZERTAINLY/Paperwork/internal/model"
	"github.com/CZERTAINLY/Paperwork/internal/pipeline"
	"github.com/CZERTAINLY/Paperwork/internal/scandev"
	"github.com/CZERTAINLY/Paperwork/internal/workflow"

	"github.com/gofrs/flock"
)

const (
	lockTimeout     = 5 * time.Second
	shutdownTimeout = 30 * time.Second
)

// app wires the job core to the reference library and scan services. All
// coordinator calls go through the loop.
type app struct {
	cfg   model.Config
	lock  *flock.Flock
	ch    *event.Channel
	reg   *job.Registry
	coord *workflow.Coordinator
	loop  *event.Loop
	out   io.Writer // progress lines, nil for none

	mx      sync.Mutex
	waiters map[job.Kind][]chan job.Event

	loopDone chan error
	cancel   context.CancelFunc
}

type appOption func(*app)

func withProgress(w io.Writer) appOption {
	return func(a *app) {
		a.out = w
	}
}

// startApp locks the working directory and starts the consumer loop.
func startApp(ctx context.Context, cfg model.Config, opts ...appOption) (*app, error) {
	workdir := cfg.Workdir.String()
	if err := workflow.EnsureWorkdir(ctx, workdir); err != nil {
		return nil, err
	}
	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	lock, err := docstore.Lock(lockCtx, workdir)
	cancel()
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		lock:     lock,
		waiters:  make(map[job.Kind][]chan job.Event),
		loopDone: make(chan error, 1),
	}
	for _, o := range opts {
		o(a)
	}

	var chOpts []event.Option
	if n := cfg.EventLimit(); n > 0 {
		chOpts = append(chOpts, event.WithLimit(n))
	}
	a.ch = event.NewChannel(chOpts...)

	lib := docindex.NewLibrary()
	scanner := scandevService(cfg)
	a.reg, err = job.NewRegistry(a.ch,
		pipeline.NewIndexer(lib, pipeline.DefaultProgressInterval),
		pipeline.NewThumbnailer(),
		pipeline.NewRenderer(),
		pipeline.NewLabelUpdater(),
		pipeline.NewScanAcquirer(scanner),
		pipeline.NewMultiScanAcquirer(scanner),
	)
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}
	a.coord = workflow.New(a.reg, lib, workflow.Options{
		Workdir:        workdir,
		ThumbnailWidth: cfg.ThumbnailWidth(),
		Zoom:           cfg.Zoom(),
		Scan: pipeline.ScanRequest{
			Device:     cfg.ScannerDevice(),
			Source:     cfg.ScannerSource(),
			Resolution: cfg.ScannerResolution(),
			Lang:       cfg.OCRLang(),
		},
		OnEvent: a.onEvent,
	})
	a.loop = event.NewLoop(a.ch, a.coord.Handle)

	loopCtx, cancelLoop := context.WithCancel(context.WithoutCancel(ctx))
	a.cancel = cancelLoop
	go func() {
		a.loopDone <- a.loop.Run(loopCtx)
	}()
	slog.InfoContext(ctx, "paperwork started", "workdir", workdir)
	return a, nil
}

// do runs fn on the consumer goroutine.
func (a *app) do(ctx context.Context, fn func(ctx context.Context, c *workflow.Coordinator) error) error {
	return a.loop.Do(ctx, func(ctx context.Context) error {
		return fn(ctx, a.coord)
	})
}

// await returns a channel receiving the next accepted terminal event of
// kind. Register before starting the job.
func (a *app) await(kind job.Kind) <-chan job.Event {
	c := make(chan job.Event, 1)
	a.mx.Lock()
	a.waiters[kind] = append(a.waiters[kind], c)
	a.mx.Unlock()
	return c
}

// run starts a job through fn and waits for its terminal event.
func (a *app) run(ctx context.Context, kind job.Kind, fn func(ctx context.Context, c *workflow.Coordinator) error) (job.Event, error) {
	done := a.await(kind)
	if err := a.do(ctx, fn); err != nil {
		return job.Event{}, err
	}
	select {
	case <-ctx.Done():
		return job.Event{}, ctx.Err()
	case ev := <-done:
		if ev.Err != nil && !ev.Cancelled {
			return ev, ev.Err
		}
		return ev, nil
	}
}

func (a *app) onEvent(ev job.Event, st *workflow.State) {
	if a.out != nil && ev.Progress && st.Progress.Text != "" {
		fmt.Fprintf(a.out, "%-12s %3.0f%% %s\n", ev.Kind, 100*st.Progress.Fraction, st.Progress.Text)
	}
	if !ev.Terminal {
		return
	}
	switch {
	case ev.Cancelled:
		slog.Info("job stopped", "job_kind", ev.Kind, "run", ev.Run)
	case ev.Err != nil:
		slog.Error("job failed", "job_kind", ev.Kind, "run", ev.Run, "error", ev.Err)
	default:
		slog.Info("job done", "job_kind", ev.Kind, "run", ev.Run, "type", ev.Type)
	}
	a.mx.Lock()
	waiters := a.waiters[ev.Kind]
	delete(a.waiters, ev.Kind)
	a.mx.Unlock()
	for _, c := range waiters {
		c <- ev
	}
}

// openIndex installs the index of the previous session, or builds one when
// there is none. built reports the latter.
func (a *app) openIndex(ctx context.Context) (built bool, err error) {
	idx, err := docindex.Open(ctx, a.cfg.Workdir.String())
	if errors.Is(err, docindex.ErrNoIndex) {
		slog.InfoContext(ctx, "no index found, reindexing")
		return true, a.reindex(ctx)
	}
	if err != nil {
		return false, err
	}
	err = a.do(ctx, func(ctx context.Context, c *workflow.Coordinator) error {
		return c.UseIndex(ctx, idx)
	})
	if err != nil {
		_ = idx.Close()
	}
	return false, err
}

func (a *app) reindex(ctx context.Context) error {
	_, err := a.run(ctx, job.KindReindex, func(ctx context.Context, c *workflow.Coordinator) error {
		return c.Reindex(ctx)
	})
	return err
}

func scandevService(cfg model.Config) *scandev.Service {
	return scandev.NewService(cfg.OCRBinary())
}

// Close stops all jobs, the loop and releases the working directory.
func (a *app) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	err := a.do(ctx, func(ctx context.Context, c *workflow.Coordinator) error {
		return c.Shutdown(ctx)
	})
	a.cancel()
	if loopErr := <-a.loopDone; loopErr != nil && !errors.Is(loopErr, context.Canceled) {
		err = errors.Join(err, loopErr)
	}
	if dropped := a.ch.Dropped(); dropped > 0 {
		slog.DebugContext(ctx, "coalesced progress events", "dropped", dropped)
	}
	return errors.Join(err, a.lock.Unlock())
}
