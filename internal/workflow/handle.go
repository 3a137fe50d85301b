package workflow

import (
	"context"
	"fmt"
	"image"
	"log/slog"

	"github.com/CZERTAINLY/Paperwork/internal/job"
	"github.com/CZERTAINLY/Paperwork/internal/model"
	"github.com/CZERTAINLY/Paperwork/internal/pipeline"
)

func (c *Coordinator) handle(ctx context.Context, ev job.Event) {
	switch ev.Type {
	case pipeline.IndexationStart:
		c.setProgress(ev.Kind, 0, "")
		c.setBusy(true)
	case pipeline.IndexationProgression:
		c.setProgress(ev.Kind, ev.Fraction, ev.Message)
	case pipeline.IndexationEnd:
		c.setProgress(ev.Kind, 0, "")
		c.setBusy(false)
		if idx, ok := ev.Payload.(model.Index); ok && idx != nil {
			c.installIndex(ctx, idx)
		}
		c.refreshDocList(ctx)
		c.refreshLabelList(ctx)

	case pipeline.ThumbnailingStart:
		c.setProgress(ev.Kind, 0, "Thumbnailing ...")
	case pipeline.ThumbnailingPageDone:
		th, ok := ev.Payload.(model.Thumbnail)
		if !ok || th.PageIndex < 0 || th.PageIndex >= len(c.state.Pages) {
			return
		}
		c.state.Pages[th.PageIndex].Thumbnail = th.Image
		c.setProgress(ev.Kind, float64(th.PageIndex+1)/float64(len(c.state.Pages)), "Thumbnailing ...")
	case pipeline.ThumbnailingEnd:
		c.setProgress(ev.Kind, 0, "")

	case pipeline.ImgBuildingStart:
		c.state.Image = nil
		c.state.Stock = model.StockExecute
	case pipeline.ImgBuildingResultPixbuf:
		if img, ok := ev.Payload.(image.Image); ok {
			c.state.Image = img
			c.state.Stock = ""
		}
	case pipeline.ImgBuildingResultStock:
		if stock, ok := ev.Payload.(model.Stock); ok {
			c.state.Image = nil
			c.state.Stock = stock
		}

	case pipeline.LabelUpdatingStart:
		c.setProgress(ev.Kind, 0, "")
		c.setBusy(true)
	case pipeline.LabelUpdatingDocUpdated:
		c.setProgress(ev.Kind, ev.Fraction, fmt.Sprintf("Label updating (%s) ...", ev.Message))
	case pipeline.LabelUpdatingEnd:
		c.setProgress(ev.Kind, 0, "")
		c.setBusy(false)
		c.refreshLabelList(ctx)
		c.refreshDocList(ctx)

	case pipeline.SingleScanStart:
		c.setProgress(ev.Kind, 0, "Scanning ...")
		c.state.Busy = true
		c.state.Image = nil
		c.state.Stock = model.StockExecute
	case pipeline.SingleScanOCR:
		c.setProgress(ev.Kind, 0.5, "Reading ...")
	case pipeline.SingleScanDone:
		c.setProgress(ev.Kind, 0, "")
		c.state.Busy = false
		page, ok := ev.Payload.(model.Page)
		if !ok || page == nil {
			c.state.Stock = model.StockDialogError
			return
		}
		c.afterScan(ctx, page)

	case pipeline.MultiScanStart:
		c.setProgress(ev.Kind, 0, "Scanning ...")
		c.state.Busy = true
	case pipeline.MultiScanOCR:
		c.setProgress(ev.Kind, 0.5, "Reading ...")
	case pipeline.MultiScanPageDone:
		c.setProgress(ev.Kind, 0, "Scanning ...")
		c.refreshPageList()
	case pipeline.MultiScanEnd:
		c.setProgress(ev.Kind, 0, "")
		c.state.Busy = false
		var last model.Page
		if doc := c.state.Doc; doc != nil && doc.PageCount() > 0 {
			last, _ = doc.Page(doc.PageCount() - 1)
		}
		c.afterScan(ctx, last)

	default:
		slog.WarnContext(ctx, "unknown event", "job_kind", ev.Kind, "type", ev.Type)
	}
}

func (c *Coordinator) installIndex(ctx context.Context, idx model.Index) {
	if old := c.state.Index; old != nil && old != idx {
		if err := old.Close(); err != nil {
			slog.WarnContext(ctx, "closing replaced index", "error", err)
		}
	}
	c.state.Index = idx
	slog.InfoContext(ctx, "index installed")
}

// afterScan shows the acquired page and refreshes everything depending on
// the document content.
func (c *Coordinator) afterScan(ctx context.Context, page model.Page) {
	c.stop(job.KindThumbnail)
	c.refreshPageList()
	if doc := c.state.Doc; doc != nil {
		c.startLogged(ctx, job.KindThumbnail, c.thumbnailRequest(doc))
	}
	if page != nil {
		if err := c.showPage(ctx, page); err != nil {
			c.state.LastError = err
			slog.ErrorContext(ctx, "showing scanned page", "error", err)
		}
	}
	c.startLogged(ctx, job.KindReindex, pipeline.IndexRequest{Workdir: c.opts.Workdir})
}

// startLogged restarts a job from an event handler, where there is no
// caller to return an error to.
func (c *Coordinator) startLogged(ctx context.Context, kind job.Kind, req any) {
	if err := c.restart(ctx, kind, req); err != nil {
		c.state.LastError = err
		slog.ErrorContext(ctx, "starting job", "job_kind", kind, "error", err)
	}
}
