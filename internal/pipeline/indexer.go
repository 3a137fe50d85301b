package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/CZERTAINLY/Paperwork/internal/job"
	"github.com/CZERTAINLY/Paperwork/internal/model"

	"golang.org/x/time/rate"
)

// DefaultProgressInterval is the minimal gap between two intermediate
// indexation-progression events of the same phase.
const DefaultProgressInterval = 100 * time.Millisecond

// Indexer rebuilds the document index. It is cancellable: the progress
// callback stops the library as soon as the job is stopped and the previous
// index stays in place.
type Indexer struct {
	lib      model.Library
	interval time.Duration
}

func NewIndexer(lib model.Library, progressInterval time.Duration) *Indexer {
	return &Indexer{
		lib:      lib,
		interval: progressInterval,
	}
}

func (*Indexer) Kind() job.Kind {
	return job.KindReindex
}

func (*Indexer) Cancellable() bool {
	return true
}

func (*Indexer) Terminal(error) (job.EventType, any) {
	return IndexationEnd, nil
}

func (x *Indexer) Do(ctx context.Context, req any, run *job.Run) error {
	r, err := request[IndexRequest](req)
	if err != nil {
		return err
	}
	run.Emit(IndexationStart, nil)

	var (
		phase   = model.IndexStep(-1)
		limiter *rate.Limiter
	)
	onProgress := func(done, total int, step model.IndexStep, doc model.Document) error {
		if !run.ShouldContinue() {
			return job.ErrCancelled
		}
		if step != phase {
			phase = step
			limiter = x.newLimiter()
		}
		if !limiter.Allow() && done < total {
			return nil
		}
		run.Progress(IndexationProgression, fraction(done, total), progressText(step, doc))
		return nil
	}

	idx, err := x.lib.Reindex(ctx, r.Workdir, onProgress)
	if err != nil {
		if errors.Is(err, job.ErrCancelled) || errors.Is(err, context.Canceled) {
			return job.ErrCancelled
		}
		return fmt.Errorf("reindexing %s: %w", r.Workdir, err)
	}
	if !run.ShouldContinue() {
		if err := idx.Close(); err != nil {
			slog.WarnContext(ctx, "closing index of a stopped run", "error", err)
		}
		return job.ErrCancelled
	}
	run.Finish(IndexationEnd, idx, nil)
	return nil
}

func (x *Indexer) newLimiter() *rate.Limiter {
	if x.interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(x.interval), 1)
}

func progressText(step model.IndexStep, doc model.Document) string {
	var txt string
	switch step {
	case model.IndexStepReading:
		txt = "Reading ..."
	case model.IndexStepSorting:
		txt = "Sorting ..."
	}
	if doc != nil {
		txt += " (" + doc.Name() + ")"
	}
	return txt
}
