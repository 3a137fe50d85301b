package pipeline_test

import (
	"testing"

	"github.com/CZERTAINLY/Paperwork/internal/job"
	"github.com/CZERTAINLY/Paperwork/internal/job/jobtest"
	"github.com/CZERTAINLY/Paperwork/internal/model"
	"github.com/CZERTAINLY/Paperwork/internal/model/modeltest"
	"github.com/CZERTAINLY/Paperwork/internal/pipeline"

	"github.com/stretchr/testify/require"
)

func TestLabelUpdater(t *testing.T) {
	t.Parallel()
	bills := model.Label{Name: "bills", Color: "#ff0000"}
	invoices := model.Label{Name: "invoices", Color: "#00ff00"}
	a := modeltest.NewDocument("a", 1, bills)
	b := modeltest.NewDocument("b", 1)
	idx := modeltest.NewIndex(a, b)

	events, err := runJob(t, pipeline.NewLabelUpdater(), pipeline.LabelRequest{Index: idx, Old: bills, New: invoices})
	require.NoError(t, err)
	require.Equal(t, []job.EventType{
		pipeline.LabelUpdatingStart,
		pipeline.LabelUpdatingDocUpdated,
		pipeline.LabelUpdatingDocUpdated,
		pipeline.LabelUpdatingEnd,
	}, types(events))
	require.Equal(t, 0.5, events[1].Fraction)
	require.Equal(t, "a", events[1].Message)
	require.Equal(t, 1.0, events[2].Fraction)
	require.Equal(t, "b", events[2].Message)

	require.Equal(t, []model.Label{invoices}, a.Labels())
	labels, err := idx.Labels(t.Context())
	require.NoError(t, err)
	require.Equal(t, []model.Label{invoices}, labels)
}

func TestLabelUpdater_IgnoresStop(t *testing.T) {
	t.Parallel()
	gate := make(chan struct{})
	idx := modeltest.NewIndex(modeltest.NewDocument("a", 1), modeltest.NewDocument("b", 1))
	idx.Gate = gate
	rec := jobtest.NewRecorder()
	j := job.New(pipeline.NewLabelUpdater(), rec)

	require.NoError(t, j.Start(t.Context(), pipeline.LabelRequest{Index: idx}))
	_, err := rec.WaitFor(t.Context(), pipeline.LabelUpdatingDocUpdated)
	require.NoError(t, err)

	j.Stop()
	require.True(t, j.IsRunning())
	require.ErrorIs(t, j.Start(t.Context(), pipeline.LabelRequest{Index: idx}), job.ErrAlreadyRunning)

	close(gate)
	require.NoError(t, j.Wait(t.Context()))
	end, err := rec.WaitFor(t.Context(), pipeline.LabelUpdatingEnd)
	require.NoError(t, err)
	require.False(t, end.Cancelled)
	require.NoError(t, end.Err)
}
