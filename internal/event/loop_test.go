package event_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/CZERTAINLY/Paperwork/internal/event"
	"github.com/CZERTAINLY/Paperwork/internal/job"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestLoop(t *testing.T) {
	t.Parallel()
	ch := event.NewChannel()

	// seen is owned by the consumer goroutine
	var seen []uint64
	loop := event.NewLoop(ch, func(_ context.Context, ev job.Event) {
		seen = append(seen, ev.Seq)
	})

	ctx, cancel := context.WithCancel(t.Context())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = loop.Run(ctx)
	}()

	run := uuid.New()
	for i := range 10 {
		ch.Publish(job.Event{Run: run, Seq: uint64(i + 1)})
	}

	t.Run("do observes events published before", func(t *testing.T) {
		// Do is queued after the events, they are handled by the time the
		// second Do runs at the latest
		require.NoError(t, loop.Do(t.Context(), func(context.Context) error { return nil }))
		var got []uint64
		require.NoError(t, loop.Do(t.Context(), func(context.Context) error {
			got = append(got, seen...)
			return nil
		}))
		require.Len(t, got, 10)
		for i, seq := range got {
			require.Equal(t, uint64(i+1), seq)
		}
	})
	t.Run("do returns action error", func(t *testing.T) {
		boom := errors.New("boom")
		err := loop.Do(t.Context(), func(context.Context) error { return boom })
		require.ErrorIs(t, err, boom)
	})
	t.Run("post runs in order", func(t *testing.T) {
		var order []int
		for i := range 5 {
			loop.Post(func(context.Context) error {
				order = append(order, i)
				return nil
			})
		}
		var got []int
		require.NoError(t, loop.Do(t.Context(), func(context.Context) error {
			got = append(got, order...)
			return nil
		}))
		require.Equal(t, []int{0, 1, 2, 3, 4}, got)
	})

	cancel()
	wg.Wait()

	t.Run("closed", func(t *testing.T) {
		err := loop.Do(t.Context(), func(context.Context) error { return nil })
		require.ErrorIs(t, err, event.ErrLoopClosed)
	})
}

func TestLoop_Flush(t *testing.T) {
	t.Parallel()
	ch := event.NewChannel()
	var types []job.EventType
	loop := event.NewLoop(ch, func(_ context.Context, ev job.Event) {
		types = append(types, ev.Type)
	})
	loop.Post(func(context.Context) error {
		types = append(types, "action")
		return nil
	})
	ch.Publish(job.Event{Type: "a"})
	loop.Flush(t.Context())
	require.Equal(t, []job.EventType{"action", "a"}, types)
}
