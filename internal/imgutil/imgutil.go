// Package imgutil holds the raster helpers shared by the thumbnailer, the page
// renderer and the reference scan service.
package imgutil

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/CZERTAINLY/Paperwork/internal/model"

	"golang.org/x/image/draw"
)

var (
	// BoxColor outlines every word box.
	BoxColor = color.RGBA{R: 0x6c, G: 0x5d, B: 0xd1, A: 0xff}
	// MatchColor outlines boxes matching a search.
	MatchColor = color.RGBA{R: 0x00, G: 0x9f, B: 0x00, A: 0xff}
)

// ToRGBA returns a mutable copy of img with bounds starting at 0,0.
func ToRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// DrawRect outlines r with a border of width pixels drawn inside r.
func DrawRect(dst draw.Image, r image.Rectangle, c color.Color, width int) {
	r = r.Canon().Intersect(dst.Bounds())
	if r.Empty() || width <= 0 {
		return
	}
	width = min(width, (r.Dx()+1)/2, (r.Dy()+1)/2)
	src := image.NewUniform(c)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+width),
		image.Rect(r.Min.X, r.Max.Y-width, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+width, r.Max.Y),
		image.Rect(r.Max.X-width, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e, src, image.Point{}, draw.Over)
	}
}

// DrawBoxes outlines the word boxes. The outline is drawn outside the box
// with a gap of one pixel, the word itself stays readable.
func DrawBoxes(dst draw.Image, boxes []model.Box, c color.Color, width int) {
	for _, b := range boxes {
		DrawRect(dst, b.Rect.Canon().Inset(-(width + 1)), c, width)
	}
}

// Scale resizes src by factor with bilinear interpolation. The result is at
// least 1x1.
func Scale(src image.Image, factor float64) (*image.RGBA, error) {
	if factor <= 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return nil, fmt.Errorf("invalid scale factor %v", factor)
	}
	b := src.Bounds()
	w := max(int(math.Round(float64(b.Dx())*factor)), 1)
	h := max(int(math.Round(float64(b.Dy())*factor)), 1)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst, nil
}

// FitWidth scales src to the given width keeping its aspect ratio.
func FitWidth(src image.Image, width int) (*image.RGBA, error) {
	if width <= 0 {
		return nil, fmt.Errorf("invalid width %d", width)
	}
	w := src.Bounds().Dx()
	if w == 0 {
		return nil, fmt.Errorf("empty image")
	}
	return Scale(src, float64(width)/float64(w))
}

// ParseHexColor parses #rrggbb.
func ParseHexColor(s string) (color.RGBA, error) {
	var c color.RGBA
	if len(s) != 7 || s[0] != '#' {
		return c, fmt.Errorf("invalid color %q: want #rrggbb", s)
	}
	if _, err := fmt.Sscanf(s[1:], "%02x%02x%02x", &c.R, &c.G, &c.B); err != nil {
		return c, fmt.Errorf("invalid color %q: %w", s, err)
	}
	c.A = 0xff
	return c, nil
}

func HexColor(c color.Color) string {
	r, g, b, _ := c.RGBA()
	return fmt.Sprintf("#%02x%02x%02x", r>>8, g>>8, b>>8)
}
