package pipeline_test

import (
	"errors"
	"image"
	"testing"

	"github.com/CZERTAINLY/Paperwork/internal/job"
	"github.com/CZERTAINLY/Paperwork/internal/model"
	"github.com/CZERTAINLY/Paperwork/internal/model/modeltest"
	"github.com/CZERTAINLY/Paperwork/internal/pipeline"

	"github.com/stretchr/testify/require"
)

func TestThumbnailer(t *testing.T) {
	t.Parallel()
	doc := modeltest.NewDocument("doc", 3)
	events, err := runJob(t, pipeline.NewThumbnailer(), pipeline.ThumbnailRequest{Doc: doc})
	require.NoError(t, err)
	require.Equal(t, []job.EventType{
		pipeline.ThumbnailingStart,
		pipeline.ThumbnailingPageDone,
		pipeline.ThumbnailingPageDone,
		pipeline.ThumbnailingPageDone,
		pipeline.ThumbnailingEnd,
	}, types(events))

	for i, ev := range events[1:4] {
		th, ok := ev.Payload.(model.Thumbnail)
		require.True(t, ok)
		require.Equal(t, i, th.PageIndex)
		// 400x600 pages at the default width
		require.Equal(t, image.Pt(150, 225), th.Image.Bounds().Size())
	}
}

func TestThumbnailer_Width(t *testing.T) {
	t.Parallel()
	doc := modeltest.NewDocument("doc", 1)
	events, err := runJob(t, pipeline.NewThumbnailer(), pipeline.ThumbnailRequest{Doc: doc, Width: 40})
	require.NoError(t, err)
	th := events[1].Payload.(model.Thumbnail)
	require.Equal(t, image.Pt(40, 60), th.Image.Bounds().Size())
}

func TestThumbnailer_BrokenPage(t *testing.T) {
	t.Parallel()
	doc := modeltest.NewDocument("doc", 0)
	doc.AddPage(nil)
	doc.AddPage(nil).Err = errors.New("corrupted")
	doc.AddPage(nil)

	events, err := runJob(t, pipeline.NewThumbnailer(), pipeline.ThumbnailRequest{Doc: doc})
	require.NoError(t, err)
	var pages []int
	for _, ev := range events {
		if ev.Type == pipeline.ThumbnailingPageDone {
			pages = append(pages, ev.Payload.(model.Thumbnail).PageIndex)
		}
	}
	require.Equal(t, []int{0, 2}, pages)
	require.Equal(t, pipeline.ThumbnailingEnd, events[len(events)-1].Type)
}

func TestThumbnailer_NoDocument(t *testing.T) {
	t.Parallel()
	events, err := runJob(t, pipeline.NewThumbnailer(), pipeline.ThumbnailRequest{})
	require.ErrorIs(t, err, job.ErrBadRequest)
	require.Equal(t, []job.EventType{pipeline.ThumbnailingEnd}, types(events))
}
