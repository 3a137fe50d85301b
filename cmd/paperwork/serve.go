package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"

	"github.com/CZERTAINLY/Paperwork/internal/workflow"
)

// serve keeps the index fresh until ctx is done: once on start, then on the
// configured reindex schedule and, when enabled, after documents change.
func serve(ctx context.Context, a *app) error {
	built, err := a.openIndex(ctx)
	if err != nil {
		return err
	}
	if !built {
		a.loop.Post(a.coord.ReindexIfIdle)
	}

	if sched := a.cfg.ReindexSchedule(); sched != nil {
		s, err := workflow.NewScheduler(ctx, sched, func() {
			slog.DebugContext(ctx, "scheduled reindex")
			a.loop.Post(a.coord.ReindexIfIdle)
		})
		if err != nil {
			return err
		}
		s.Start()
		defer func() {
			if err := s.Shutdown(); err != nil {
				slog.ErrorContext(ctx, "scheduler shutdown", "error", err)
			}
		}()
	}

	slog.InfoContext(ctx, "paperwork running", "workdir", a.cfg.Workdir.String())
	if a.cfg.ReindexWatch() {
		err = workflow.Watch(ctx, a.cfg.Workdir.String(), workflow.DefaultWatchDelay, func() {
			slog.DebugContext(ctx, "documents changed, reindexing")
			a.loop.Post(a.coord.ReindexIfIdle)
		})
	} else {
		<-ctx.Done()
	}
	slog.InfoContext(ctx, "paperwork stopping")
	return err
}

func writePNG(name string, img image.Image) (err error) {
	f, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("creating %s: %w", name, err)
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()
	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}
	return nil
}
