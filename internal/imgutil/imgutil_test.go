package imgutil_test

import (
	"image"
	"image/color"
	"testing"

	"github.com/CZERTAINLY/Paperwork/internal/imgutil"
	"github.com/CZERTAINLY/Paperwork/internal/model"

	"github.com/stretchr/testify/require"
)

func white(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	return img
}

func TestScale(t *testing.T) {
	t.Parallel()
	var testCases = []struct {
		scenario string
		given    float64
		then     image.Point
	}{
		{"same", 1, image.Pt(400, 200)},
		{"viewport fit", 770.0 / 400.0, image.Pt(770, 385)},
		{"half", 0.5, image.Pt(200, 100)},
		{"tiny", 0.0001, image.Pt(1, 1)},
	}
	for _, tt := range testCases {
		t.Run(tt.scenario, func(t *testing.T) {
			t.Parallel()
			got, err := imgutil.Scale(white(400, 200), tt.given)
			require.NoError(t, err)
			require.Equal(t, tt.then, got.Bounds().Size())
		})
	}

	_, err := imgutil.Scale(white(1, 1), 0)
	require.Error(t, err)
}

func TestFitWidth(t *testing.T) {
	t.Parallel()
	got, err := imgutil.FitWidth(white(300, 600), 150)
	require.NoError(t, err)
	require.Equal(t, image.Pt(150, 300), got.Bounds().Size())

	_, err = imgutil.FitWidth(white(300, 600), 0)
	require.Error(t, err)
}

func TestDrawBoxes(t *testing.T) {
	t.Parallel()
	img := white(100, 100)
	boxes := []model.Box{{Word: "hello", Rect: image.Rect(10, 10, 50, 30)}}
	imgutil.DrawBoxes(img, boxes, imgutil.MatchColor, 5)

	blank := color.RGBA{0xff, 0xff, 0xff, 0xff}
	require.Equal(t, imgutil.MatchColor, img.RGBAAt(4, 4))
	require.Equal(t, imgutil.MatchColor, img.RGBAAt(8, 20))
	require.Equal(t, imgutil.MatchColor, img.RGBAAt(55, 35))
	// gap and the word itself
	require.Equal(t, blank, img.RGBAAt(9, 20))
	require.Equal(t, blank, img.RGBAAt(10, 10))
	require.Equal(t, blank, img.RGBAAt(30, 20))
	// outside the outline
	require.Equal(t, blank, img.RGBAAt(3, 3))

	t.Run("clipped", func(t *testing.T) {
		img := image.NewRGBA(image.Rect(0, 0, 20, 20))
		imgutil.DrawBoxes(img, []model.Box{{Rect: image.Rect(0, 0, 40, 40)}}, imgutil.BoxColor, 1)
		require.Equal(t, imgutil.BoxColor, img.RGBAAt(0, 5))
	})
}

func TestParseHexColor(t *testing.T) {
	t.Parallel()
	c, err := imgutil.ParseHexColor("#6c5dd1")
	require.NoError(t, err)
	require.Equal(t, imgutil.BoxColor, c)
	require.Equal(t, "#6c5dd1", imgutil.HexColor(c))

	for _, s := range []string{"", "6c5dd1", "#6c5dd", "#zzzzzz"} {
		_, err := imgutil.ParseHexColor(s)
		require.Error(t, err, s)
	}
}
