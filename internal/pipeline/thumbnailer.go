package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/CZERTAINLY/Paperwork/internal/job"
	"github.com/CZERTAINLY/Paperwork/internal/model"
)

const DefaultThumbnailWidth = 150

type Thumbnailer struct{}

func NewThumbnailer() *Thumbnailer {
	return &Thumbnailer{}
}

func (*Thumbnailer) Kind() job.Kind {
	return job.KindThumbnail
}

func (*Thumbnailer) Cancellable() bool {
	return true
}

func (*Thumbnailer) Terminal(error) (job.EventType, any) {
	return ThumbnailingEnd, nil
}

// Do emits one thumbnailing-page-done per page, in page order. A page which
// can't be thumbnailed is skipped and keeps its placeholder.
func (*Thumbnailer) Do(ctx context.Context, req any, run *job.Run) error {
	r, err := request[ThumbnailRequest](req)
	if err != nil {
		return err
	}
	if r.Doc == nil {
		return fmt.Errorf("%w: no document", job.ErrBadRequest)
	}
	width := r.Width
	if width <= 0 {
		width = DefaultThumbnailWidth
	}

	run.Emit(ThumbnailingStart, nil)
	for i := range r.Doc.PageCount() {
		if !run.ShouldContinue() {
			return job.ErrCancelled
		}
		th, err := thumbnail(r.Doc, i, width)
		if err != nil {
			slog.WarnContext(ctx, "thumbnail skipped", "error", err)
			continue
		}
		if !run.ShouldContinue() {
			return job.ErrCancelled
		}
		run.Emit(ThumbnailingPageDone, th)
	}
	return nil
}

func thumbnail(doc model.Document, i, width int) (model.Thumbnail, error) {
	page, err := doc.Page(i)
	if err != nil {
		return model.Thumbnail{}, fmt.Errorf("thumbnailing page %d: %w", i, err)
	}
	img, err := page.Thumbnail(width)
	if err != nil {
		return model.Thumbnail{}, fmt.Errorf("thumbnailing page %d: %w", i, err)
	}
	return model.Thumbnail{PageIndex: i, Image: img}, nil
}
