package pipeline

import (
	"context"
	"fmt"
	"image"
	"log/slog"

	"github.com/CZERTAINLY/Paperwork/internal/imgutil"
	"github.com/CZERTAINLY/Paperwork/internal/job"
	"github.com/CZERTAINLY/Paperwork/internal/model"
)

// ViewportMargin is subtracted from the viewport width when the zoom fits
// the page to the viewport.
const ViewportMargin = 30

// Renderer builds the displayed image of a page. Every run ends with exactly
// one img-building-result-pixbuf or img-building-result-stock event.
type Renderer struct{}

func NewRenderer() *Renderer {
	return &Renderer{}
}

func (*Renderer) Kind() job.Kind {
	return job.KindRender
}

func (*Renderer) Cancellable() bool {
	return true
}

func (*Renderer) Terminal(err error) (job.EventType, any) {
	if err != nil {
		return ImgBuildingResultStock, model.StockDialogError
	}
	return ImgBuildingResultStock, nil
}

func (*Renderer) Do(ctx context.Context, req any, run *job.Run) error {
	r, err := request[RenderRequest](req)
	if err != nil {
		return err
	}
	run.Emit(ImgBuildingStart, nil)

	if r.Page == nil {
		run.Finish(ImgBuildingResultStock, model.StockMissingImage, nil)
		return nil
	}

	img, err := render(ctx, run, r)
	if err != nil {
		if !run.ShouldContinue() {
			return job.ErrCancelled
		}
		err = fmt.Errorf("%w %d: %w", ErrRender, r.Page.Number(), err)
		run.Finish(ImgBuildingResultStock, model.StockDialogError, err)
		return err
	}
	run.Finish(ImgBuildingResultPixbuf, img, nil)
	return nil
}

func render(ctx context.Context, run *job.Run, r RenderRequest) (image.Image, error) {
	src, err := r.Page.Image()
	if err != nil {
		return nil, err
	}
	if !run.ShouldContinue() {
		return nil, job.ErrCancelled
	}
	img := imgutil.ToRGBA(src)

	if r.ShowAllBoxes {
		boxes, err := r.Page.Boxes()
		if err != nil {
			return nil, fmt.Errorf("word boxes: %w", err)
		}
		imgutil.DrawBoxes(img, boxes, imgutil.BoxColor, 1)
	}
	if r.Query != "" {
		boxes, err := r.Page.FindBoxes(r.Query)
		if err != nil {
			return nil, fmt.Errorf("search boxes: %w", err)
		}
		imgutil.DrawBoxes(img, boxes, imgutil.MatchColor, 5)
	}
	if !run.ShouldContinue() {
		return nil, job.ErrCancelled
	}

	factor, err := zoomFactor(r.Zoom, r.ViewportWidth, img.Bounds().Dx())
	if err != nil {
		return nil, err
	}
	slog.DebugContext(ctx, "rendering page", "page", r.Page.Number(), "factor", factor)
	return imgutil.Scale(img, factor)
}

func zoomFactor(zoom float64, viewport, width int) (float64, error) {
	if zoom > 0 {
		return zoom, nil
	}
	wanted := viewport - ViewportMargin
	if wanted <= 0 {
		return 0, fmt.Errorf("viewport of %d pixels is too narrow", viewport)
	}
	if width <= 0 {
		return 0, fmt.Errorf("empty page image")
	}
	return float64(wanted) / float64(width), nil
}
