package parallel

import (
	"context"
	"iter"

	"golang.org/x/sync/errgroup"
)

type result[D any] struct {
	d D
	e error
}

// Map runs mapFunc for the items of an input sequence with bounded
// parallelism. The input and output are represented as iterators, so the
// typical usage is
//
//	for doc, err := range parallel.NewMap(ctx, 4, load).Iter(ids) {}
//
// Results come in completion order. Errors from the input sequence are passed
// through unchanged. A canceled context or a break in the consumer ends the
// processing, the workers are gone once Iter returns.
type Map[E, D any] struct {
	limit   int
	mapFunc func(context.Context, E) (D, error)
	ctx     context.Context
}

func NewMap[E, D any](ctx context.Context, limit int, mapFunc func(context.Context, E) (D, error)) *Map[E, D] {
	if limit < 1 {
		limit = 1
	}
	return &Map[E, D]{
		limit:   limit,
		mapFunc: mapFunc,
		ctx:     ctx,
	}
}

func (s *Map[E, D]) Iter(seq iter.Seq2[E, error]) iter.Seq2[D, error] {
	return func(yield func(D, error) bool) {
		ctx, cancel := context.WithCancel(s.ctx)
		defer cancel()

		g, gctx := errgroup.WithContext(ctx)
		// one extra slot for the feeder
		g.SetLimit(s.limit + 1)
		mapped := make(chan result[D], s.limit)

		send := func(r result[D]) error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case mapped <- r:
				return nil
			}
		}

		g.Go(func() error {
			for entry, err := range seq {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				if err != nil {
					var zero D
					if err := send(result[D]{d: zero, e: err}); err != nil {
						return err
					}
					continue
				}
				g.Go(func() error {
					d, err := s.mapFunc(gctx, entry)
					return send(result[D]{d: d, e: err})
				})
			}
			return nil
		})

		done := make(chan struct{})
		go func() {
			defer close(done)
			_ = g.Wait()
			close(mapped)
		}()
		defer func() {
			cancel()
			for range mapped {
			}
			<-done
		}()

		for r := range mapped {
			if ctx.Err() != nil {
				return
			}
			if !yield(r.d, r.e) {
				return
			}
		}
	}
}
