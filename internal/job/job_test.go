package job_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/CZERTAINLY/Paperwork/internal/job"
	"github.com/CZERTAINLY/Paperwork/internal/job/jobtest"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestJob(t *testing.T) {
	t.Parallel()
	rec := jobtest.NewRecorder()
	release := make(chan struct{})
	j := job.New(worker{kind: job.KindThumbnail, cancellable: true, do: loop(release)}, rec)

	t.Run("idle", func(t *testing.T) {
		require.False(t, j.IsRunning())
		require.Equal(t, job.StateIdle, j.State())
		require.Equal(t, uuid.Nil, j.RunID())
		require.NoError(t, j.Wait(t.Context()))
	})
	t.Run("start", func(t *testing.T) {
		err := j.Start(t.Context(), "doc-a")
		require.NoError(t, err)
		require.True(t, j.IsRunning())
		require.NotEqual(t, uuid.Nil, j.RunID())
	})
	t.Run("already running", func(t *testing.T) {
		err := j.Start(t.Context(), "doc-b")
		require.Error(t, err)
		require.ErrorIs(t, err, job.ErrAlreadyRunning)
	})
	t.Run("finish", func(t *testing.T) {
		close(release)
		require.NoError(t, j.Wait(t.Context()))
		require.False(t, j.IsRunning())
		require.NoError(t, j.LastErr())

		events := rec.Events()
		require.Len(t, events, 2)
		require.Equal(t, job.EventType("start"), events[0].Type)
		require.Equal(t, "doc-a", events[0].Payload)
		require.Equal(t, uint64(1), events[0].Seq)
		require.True(t, events[1].Terminal)
		require.False(t, events[1].Cancelled)
		require.Equal(t, uint64(2), events[1].Seq)
		require.Equal(t, j.RunID(), events[1].Run)
	})
}

func TestJob_StopStart(t *testing.T) {
	t.Parallel()
	rec := jobtest.NewRecorder()
	j := job.New(worker{kind: job.KindRender, cancellable: true, do: loop(nil)}, rec)

	require.NoError(t, j.Start(t.Context(), "first"))
	first := j.RunID()
	j.Stop()
	require.False(t, j.IsRunning())

	// terminal event of the stopped run is published before Stop returns
	terms := rec.Terminals()
	require.Len(t, terms, 1)
	require.Equal(t, first, terms[0].Run)
	require.True(t, terms[0].Cancelled)
	require.NoError(t, terms[0].Err)
	require.NoError(t, j.LastErr())

	require.NoError(t, j.Start(t.Context(), "second"))
	second := j.RunID()
	require.NotEqual(t, first, second)
	j.Stop()

	// nothing of the first run is published after the second one started
	var seenSecond bool
	for _, ev := range rec.Events() {
		if ev.Run == second {
			seenSecond = true
			continue
		}
		require.False(t, seenSecond, "event %s of a stale run", ev.Type)
	}
	require.True(t, seenSecond)
	require.Len(t, rec.Terminals(), 2)
}

func TestJob_StopNotCancellable(t *testing.T) {
	t.Parallel()
	rec := jobtest.NewRecorder()
	release := make(chan struct{})
	j := job.New(worker{kind: job.KindLabelUpdate, cancellable: false, do: loop(release)}, rec)

	require.NoError(t, j.Start(t.Context(), nil))
	j.Stop()
	require.True(t, j.IsRunning())
	require.Equal(t, job.StateRunning, j.State())
	require.Empty(t, rec.Terminals())

	close(release)
	require.NoError(t, j.Wait(t.Context()))
	terms := rec.Terminals()
	require.Len(t, terms, 1)
	require.False(t, terms[0].Cancelled)
}

func TestJob_Terminal(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")

	var testCases = []struct {
		scenario string
		given    func(context.Context, any, *job.Run) error
		then     error
	}{
		{
			scenario: "error",
			given: func(context.Context, any, *job.Run) error {
				return boom
			},
			then: boom,
		},
		{
			scenario: "panic",
			given: func(context.Context, any, *job.Run) error {
				panic("boom")
			},
			then: job.ErrPanic,
		},
		{
			scenario: "self cancelled",
			given: func(context.Context, any, *job.Run) error {
				return job.ErrCancelled
			},
			then: nil,
		},
		{
			scenario: "worker finished",
			given: func(_ context.Context, _ any, run *job.Run) error {
				run.Finish("custom-end", 42, nil)
				run.Emit("late", nil)
				return nil
			},
			then: nil,
		},
	}

	for _, tt := range testCases {
		t.Run(tt.scenario, func(t *testing.T) {
			t.Parallel()
			rec := jobtest.NewRecorder()
			j := job.New(worker{kind: job.KindReindex, cancellable: true, do: tt.given}, rec)
			require.NoError(t, j.Start(t.Context(), nil))
			require.NoError(t, j.Wait(t.Context()))
			require.False(t, j.IsRunning())

			events := rec.Events()
			require.Len(t, events, 1)
			require.True(t, events[0].Terminal)
			if tt.then == nil {
				require.NoError(t, events[0].Err)
				require.NoError(t, j.LastErr())
			} else {
				require.ErrorIs(t, events[0].Err, tt.then)
				require.ErrorIs(t, j.LastErr(), tt.then)
			}
		})
	}
}

func TestJob_ContextOnlyValues(t *testing.T) {
	t.Parallel()
	rec := jobtest.NewRecorder()
	release := make(chan struct{})
	j := job.New(worker{kind: job.KindScanMulti, cancellable: true, do: loop(release)}, rec)

	ctx, cancel := context.WithCancel(t.Context())
	require.NoError(t, j.Start(ctx, nil))
	cancel()
	time.Sleep(10 * time.Millisecond)
	require.True(t, j.IsRunning())
	close(release)
	require.NoError(t, j.Wait(t.Context()))
}
