package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/CZERTAINLY/Paperwork/internal/job"
	"github.com/CZERTAINLY/Paperwork/internal/model"
	"github.com/CZERTAINLY/Paperwork/internal/pipeline"
)

// NewDocument installs an empty document and renders the missing image
// placeholder.
func (c *Coordinator) NewDocument(ctx context.Context) error {
	c.stop(job.KindThumbnail)
	c.stop(job.KindRender)
	doc, err := c.lib.NewDocument(c.opts.Workdir)
	if err != nil {
		return fmt.Errorf("new document: %w", err)
	}
	c.state.Doc = doc
	c.state.Page = nil
	c.state.PageText = nil
	c.refreshPageList()
	c.refreshLabelList(ctx)
	return c.restart(ctx, job.KindRender, c.renderRequest())
}

// OpenDocument installs doc, starts its thumbnails and shows its first page.
func (c *Coordinator) OpenDocument(ctx context.Context, doc model.Document) error {
	if doc == nil {
		return model.ErrNoDocument
	}
	slog.DebugContext(ctx, "showing document", "doc", doc.Name())
	c.stop(job.KindThumbnail)
	c.state.Doc = doc
	c.refreshPageList()
	c.refreshLabelList(ctx)
	if err := c.restart(ctx, job.KindThumbnail, c.thumbnailRequest(doc)); err != nil {
		return err
	}
	var page model.Page
	if doc.PageCount() > 0 {
		p, err := doc.Page(0)
		if err != nil {
			return err
		}
		page = p
	}
	return c.showPage(ctx, page)
}

// OpenDocumentID opens a document of the installed index.
func (c *Coordinator) OpenDocumentID(ctx context.Context, id string) error {
	if c.state.Index == nil {
		return ErrNoIndex
	}
	doc, err := c.state.Index.Document(ctx, id)
	if err != nil {
		return err
	}
	return c.OpenDocument(ctx, doc)
}

func (c *Coordinator) ShowPage(ctx context.Context, page model.Page) error {
	return c.showPage(ctx, page)
}

// MovePage shows the page offset pages away from the current one. Moving out
// of the document does nothing.
func (c *Coordinator) MovePage(ctx context.Context, offset int) error {
	if c.state.Doc == nil || c.state.Page == nil {
		return nil
	}
	n := c.state.Page.Number() + offset
	if n < 0 || n >= c.state.Doc.PageCount() {
		return nil
	}
	page, err := c.state.Doc.Page(n)
	if err != nil {
		return err
	}
	return c.showPage(ctx, page)
}

// OpenPageNumber shows page n, counted from 1.
func (c *Coordinator) OpenPageNumber(ctx context.Context, n int) error {
	if c.state.Doc == nil {
		return model.ErrNoDocument
	}
	if n < 1 || n > c.state.Doc.PageCount() {
		return fmt.Errorf("page %d of %d: %w", n, c.state.Doc.PageCount(), model.ErrNoPage)
	}
	page, err := c.state.Doc.Page(n - 1)
	if err != nil {
		return err
	}
	return c.showPage(ctx, page)
}

func (c *Coordinator) RebuildPage(ctx context.Context) error {
	return c.restart(ctx, job.KindRender, c.renderRequest())
}

func (c *Coordinator) SetZoom(ctx context.Context, zoom float64) error {
	if zoom < 0 {
		return fmt.Errorf("negative zoom %v", zoom)
	}
	c.state.Zoom = zoom
	return c.RebuildPage(ctx)
}

func (c *Coordinator) SetViewportWidth(ctx context.Context, width int) error {
	c.state.ViewportWidth = width
	return c.RebuildPage(ctx)
}

func (c *Coordinator) SetShowAllBoxes(ctx context.Context, show bool) error {
	c.state.ShowAllBoxes = show
	return c.RebuildPage(ctx)
}

// Search refreshes the suggestions and the matching documents.
func (c *Coordinator) Search(ctx context.Context, query string) error {
	c.state.Query = query
	c.refreshDocList(ctx)
	return nil
}

// SingleScan scans one page into the current document, a new one when none
// is open.
func (c *Coordinator) SingleScan(ctx context.Context) error {
	if err := c.prepareScan(ctx); err != nil {
		return err
	}
	return c.start(ctx, job.KindScanSingle, c.scanRequest())
}

// MultiScan scans up to count pages from the feeder, count 0 scans until
// the feeder is empty.
func (c *Coordinator) MultiScan(ctx context.Context, count int) error {
	if err := c.prepareScan(ctx); err != nil {
		return err
	}
	return c.start(ctx, job.KindScanMulti, pipeline.MultiScanRequest{
		ScanRequest: c.scanRequest(),
		Count:       count,
	})
}

func (c *Coordinator) prepareScan(ctx context.Context) error {
	if err := EnsureWorkdir(ctx, c.opts.Workdir); err != nil {
		return err
	}
	if c.reg.IsRunning(job.KindScanSingle) || c.reg.IsRunning(job.KindScanMulti) {
		return fmt.Errorf("scanning: %w", job.ErrAlreadyRunning)
	}
	if c.state.Doc != nil {
		return nil
	}
	doc, err := c.lib.NewDocument(c.opts.Workdir)
	if err != nil {
		return fmt.Errorf("new document: %w", err)
	}
	c.state.Doc = doc
	c.refreshPageList()
	return nil
}

// Reindex restarts the indexer.
func (c *Coordinator) Reindex(ctx context.Context) error {
	if err := EnsureWorkdir(ctx, c.opts.Workdir); err != nil {
		return err
	}
	return c.restart(ctx, job.KindReindex, pipeline.IndexRequest{Workdir: c.opts.Workdir})
}

// ReindexIfIdle starts the indexer unless it is running already. Periodic
// triggers use it so a slow reindex is never restarted before it completes.
func (c *Coordinator) ReindexIfIdle(ctx context.Context) error {
	if c.reg.IsRunning(job.KindReindex) {
		slog.DebugContext(ctx, "reindex already running")
		return nil
	}
	return c.Reindex(ctx)
}

// UseIndex installs an index opened outside of the indexer, typically the
// one left by the previous session. A running reindex replaces it later.
func (c *Coordinator) UseIndex(ctx context.Context, idx model.Index) error {
	if idx == nil {
		return ErrNoIndex
	}
	c.installIndex(ctx, idx)
	c.refreshDocList(ctx)
	c.refreshLabelList(ctx)
	return nil
}

// EditLabel propagates a label change to every document. It is refused while
// a previous label update runs.
func (c *Coordinator) EditLabel(ctx context.Context, old, new model.Label) error {
	if c.reg.IsRunning(job.KindLabelUpdate) {
		return fmt.Errorf("%s: %w", job.KindLabelUpdate, job.ErrAlreadyRunning)
	}
	if c.state.Index == nil {
		return ErrNoIndex
	}
	return c.start(ctx, job.KindLabelUpdate, pipeline.LabelRequest{
		Index: c.state.Index,
		Old:   old,
		New:   new,
	})
}

// ToggleLabel attaches label to the current document or detaches it.
func (c *Coordinator) ToggleLabel(ctx context.Context, label model.Label) error {
	if c.state.Doc == nil {
		return model.ErrNoDocument
	}
	if c.state.Index == nil {
		return ErrNoIndex
	}
	var err error
	if slices.Contains(c.state.Doc.Labels(), label) {
		slog.InfoContext(ctx, "removing label", "label", label.Name, "doc", c.state.Doc.Name())
		err = c.state.Index.RemoveLabel(ctx, label, c.state.Doc)
	} else {
		slog.InfoContext(ctx, "adding label", "label", label.Name, "doc", c.state.Doc.Name())
		err = c.state.Index.AddLabel(ctx, label, c.state.Doc)
	}
	if err != nil {
		return fmt.Errorf("toggling label %s: %w", label, err)
	}
	c.refreshLabelList(ctx)
	c.refreshDocList(ctx)
	return nil
}

// CreateLabel adds a new label to the current document.
func (c *Coordinator) CreateLabel(ctx context.Context, label model.Label) error {
	if c.state.Doc == nil {
		return model.ErrNoDocument
	}
	if c.state.Index == nil {
		return ErrNoIndex
	}
	if err := c.state.Index.AddLabel(ctx, label, c.state.Doc); err != nil {
		return fmt.Errorf("creating label %s: %w", label, err)
	}
	c.refreshLabelList(ctx)
	return nil
}

// Shutdown stops every job, waits for all of them and closes the index.
// Events still queued afterwards are dropped by Handle, which closes the
// indexes they carry.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	err := c.reg.StopAll(ctx)
	clear(c.live)
	if c.state.Index != nil {
		err = errors.Join(err, c.state.Index.Close())
		c.state.Index = nil
	}
	return err
}

func (c *Coordinator) showPage(ctx context.Context, page model.Page) error {
	c.state.Page = page
	c.state.PageText = nil
	if page != nil {
		slog.DebugContext(ctx, "showing page", "page", page.Number())
		txt, err := page.Text()
		if err != nil {
			slog.WarnContext(ctx, "reading page text", "page", page.Number(), "error", err)
		}
		c.state.PageText = txt
	}
	return c.restart(ctx, job.KindRender, c.renderRequest())
}

func (c *Coordinator) thumbnailRequest(doc model.Document) pipeline.ThumbnailRequest {
	return pipeline.ThumbnailRequest{Doc: doc, Width: c.opts.ThumbnailWidth}
}
