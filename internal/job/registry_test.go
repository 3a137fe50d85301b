package job_test

import (
	"context"
	"testing"
	"time"

	"github.com/CZERTAINLY/Paperwork/internal/job"
	"github.com/CZERTAINLY/Paperwork/internal/job/jobtest"

	"github.com/stretchr/testify/require"
)

func TestNewRegistry_Duplicate(t *testing.T) {
	t.Parallel()
	w := worker{kind: job.KindRender, cancellable: true, do: loop(nil)}
	_, err := job.NewRegistry(jobtest.NewRecorder(), w, w)
	require.Error(t, err)
}

func TestRegistry(t *testing.T) {
	t.Parallel()
	rec := jobtest.NewRecorder()
	release := make(chan struct{})
	reg, err := job.NewRegistry(rec,
		worker{kind: job.KindRender, cancellable: true, do: loop(nil)},
		worker{kind: job.KindLabelUpdate, cancellable: false, do: loop(release)},
	)
	require.NoError(t, err)
	require.Equal(t, []job.Kind{job.KindRender, job.KindLabelUpdate}, reg.Kinds())

	t.Run("unknown kind", func(t *testing.T) {
		err := reg.Start(t.Context(), job.KindReindex, nil)
		require.ErrorIs(t, err, job.ErrUnknownKind)
		require.ErrorIs(t, reg.Stop(job.KindReindex), job.ErrUnknownKind)
		require.Nil(t, reg.Get(job.KindReindex))
	})
	t.Run("start exclusive", func(t *testing.T) {
		require.NoError(t, reg.Start(t.Context(), job.KindRender, "a"))
		first := reg.Get(job.KindRender).RunID()
		require.NoError(t, reg.StartExclusive(t.Context(), job.KindRender, "b"))
		second := reg.Get(job.KindRender).RunID()
		require.NotEqual(t, first, second)
		require.True(t, reg.IsRunning(job.KindRender))

		terms := rec.Terminals()
		require.Len(t, terms, 1)
		require.Equal(t, first, terms[0].Run)
	})
	t.Run("start exclusive not cancellable", func(t *testing.T) {
		require.NoError(t, reg.Start(t.Context(), job.KindLabelUpdate, nil))
		err := reg.StartExclusive(t.Context(), job.KindLabelUpdate, nil)
		require.ErrorIs(t, err, job.ErrAlreadyRunning)
	})
	t.Run("stop all waits", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
		defer cancel()
		err := reg.StopAll(ctx)
		require.ErrorIs(t, err, context.DeadlineExceeded)
		require.False(t, reg.IsRunning(job.KindRender))
		require.True(t, reg.IsRunning(job.KindLabelUpdate))

		close(release)
		require.NoError(t, reg.StopAll(t.Context()))
		for _, kind := range reg.Kinds() {
			require.False(t, reg.IsRunning(kind))
		}
		require.Len(t, rec.Terminals(), 3)
	})
}
