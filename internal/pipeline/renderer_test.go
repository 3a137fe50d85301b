package pipeline_test

import (
	"errors"
	"image"
	"testing"

	"github.com/CZERTAINLY/Paperwork/internal/imgutil"
	"github.com/CZERTAINLY/Paperwork/internal/job"
	"github.com/CZERTAINLY/Paperwork/internal/model"
	"github.com/CZERTAINLY/Paperwork/internal/model/modeltest"
	"github.com/CZERTAINLY/Paperwork/internal/pipeline"

	"github.com/stretchr/testify/require"
)

func TestRenderer(t *testing.T) {
	t.Parallel()

	page := &modeltest.Page{
		Img: modeltest.NewImage(400, 200),
		Words: []model.Box{
			{Word: "Invoice", Rect: image.Rect(100, 50, 200, 80)},
			{Word: "total", Rect: image.Rect(100, 120, 160, 140)},
		},
	}

	type given struct {
		zoom     float64
		viewport int
		allBoxes bool
		query    string
	}
	var testCases = []struct {
		scenario string
		given    given
		then     image.Point
	}{
		{"fit viewport", given{zoom: 0, viewport: 800}, image.Pt(770, 385)},
		{"explicit zoom", given{zoom: 0.5, viewport: 800}, image.Pt(200, 100)},
		{"zoom ignores viewport", given{zoom: 2, viewport: 10}, image.Pt(800, 400)},
		{"with boxes", given{zoom: 1, allBoxes: true, query: "invoice"}, image.Pt(400, 200)},
	}

	for _, tt := range testCases {
		t.Run(tt.scenario, func(t *testing.T) {
			t.Parallel()
			events, err := runJob(t, pipeline.NewRenderer(), pipeline.RenderRequest{
				Page:          page,
				Zoom:          tt.given.zoom,
				ViewportWidth: tt.given.viewport,
				ShowAllBoxes:  tt.given.allBoxes,
				Query:         tt.given.query,
			})
			require.NoError(t, err)
			require.Equal(t, []job.EventType{pipeline.ImgBuildingStart, pipeline.ImgBuildingResultPixbuf}, types(events))
			img, ok := events[1].Payload.(image.Image)
			require.True(t, ok)
			require.Equal(t, tt.then, img.Bounds().Size())
		})
	}
}

func TestRenderer_Boxes(t *testing.T) {
	t.Parallel()
	page := &modeltest.Page{
		Img: modeltest.NewImage(400, 200),
		Words: []model.Box{
			{Word: "Invoice", Rect: image.Rect(100, 50, 200, 80)},
			{Word: "total", Rect: image.Rect(100, 120, 160, 140)},
		},
	}
	events, err := runJob(t, pipeline.NewRenderer(), pipeline.RenderRequest{
		Page:         page,
		Zoom:         1,
		ShowAllBoxes: true,
		Query:        "INVOICE",
	})
	require.NoError(t, err)
	img := events[1].Payload.(*image.RGBA)
	// match outline, 5 pixels wide, one pixel away from the word
	require.Equal(t, imgutil.MatchColor, img.RGBAAt(94, 60))
	// plain outline of the other word
	require.Equal(t, imgutil.BoxColor, img.RGBAAt(98, 130))
	// the page image itself is left intact
	src, err := page.Image()
	require.NoError(t, err)
	require.Equal(t, uint8(0xff), src.(*image.RGBA).RGBAAt(94, 60).G)
}

func TestRenderer_NoPage(t *testing.T) {
	t.Parallel()
	events, err := runJob(t, pipeline.NewRenderer(), pipeline.RenderRequest{ViewportWidth: 800})
	require.NoError(t, err)
	require.Equal(t, []job.EventType{pipeline.ImgBuildingStart, pipeline.ImgBuildingResultStock}, types(events))
	require.Equal(t, model.StockMissingImage, events[1].Payload)
}

func TestRenderer_Error(t *testing.T) {
	t.Parallel()
	boom := errors.New("unreadable")

	var testCases = []struct {
		scenario string
		given    pipeline.RenderRequest
		then     error
	}{
		{"image error", pipeline.RenderRequest{Page: &modeltest.Page{Err: boom}, Zoom: 1}, boom},
		{"narrow viewport", pipeline.RenderRequest{Page: &modeltest.Page{}, ViewportWidth: 20}, pipeline.ErrRender},
	}
	for _, tt := range testCases {
		t.Run(tt.scenario, func(t *testing.T) {
			t.Parallel()
			events, err := runJob(t, pipeline.NewRenderer(), tt.given)
			require.ErrorIs(t, err, pipeline.ErrRender)
			require.ErrorIs(t, err, tt.then)
			require.Equal(t, []job.EventType{pipeline.ImgBuildingStart, pipeline.ImgBuildingResultStock}, types(events))
			require.Equal(t, model.StockDialogError, events[1].Payload)
			require.ErrorIs(t, events[1].Err, pipeline.ErrRender)
			require.True(t, events[1].Terminal)
		})
	}
}
