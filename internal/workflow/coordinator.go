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

	"github.com/google/uuid"
)

var ErrNoIndex = errors.New("no index, reindex first")

const DefaultViewportWidth = 800

type Options struct {
	Workdir        string
	ThumbnailWidth int
	Zoom           float64
	ViewportWidth  int
	// Scan is the template of scan requests, Doc is filled in by the
	// Coordinator.
	Scan pipeline.ScanRequest
	// OnEvent, when set, is called after an event changed State.
	OnEvent func(ev job.Event, st *State)
}

// Coordinator runs the actions of the application. Its methods must be
// called from the consumer goroutine only.
type Coordinator struct {
	reg   *job.Registry
	lib   model.Library
	opts  Options
	state State
	// live is the id of the run whose events are accepted, per kind
	live map[job.Kind]uuid.UUID
}

func New(reg *job.Registry, lib model.Library, opts Options) *Coordinator {
	if opts.ViewportWidth <= 0 {
		opts.ViewportWidth = DefaultViewportWidth
	}
	return &Coordinator{
		reg:  reg,
		lib:  lib,
		opts: opts,
		state: State{
			SearchAvailable: true,
			Zoom:            opts.Zoom,
			ViewportWidth:   opts.ViewportWidth,
		},
		live: make(map[job.Kind]uuid.UUID),
	}
}

// State returns the current state. The returned value shares slices with the
// Coordinator and must not outlive the consumer callback.
func (c *Coordinator) State() *State {
	return &c.state
}

func (c *Coordinator) start(ctx context.Context, kind job.Kind, req any) error {
	if err := c.reg.Start(ctx, kind, req); err != nil {
		return err
	}
	c.accept(kind)
	return nil
}

func (c *Coordinator) restart(ctx context.Context, kind job.Kind, req any) error {
	if err := c.reg.StartExclusive(ctx, kind, req); err != nil {
		return err
	}
	c.accept(kind)
	return nil
}

// stop stops a job, nothing it published afterwards reaches State.
func (c *Coordinator) stop(kind job.Kind) {
	if err := c.reg.Stop(kind); err != nil {
		slog.Warn("stopping job", "job_kind", kind, "error", err)
	}
	if j := c.reg.Get(kind); j != nil && !j.IsRunning() {
		delete(c.live, kind)
	}
}

func (c *Coordinator) accept(kind job.Kind) {
	c.live[kind] = c.reg.Get(kind).RunID()
}

// Handle folds an event into State. It is the event.Loop handler.
func (c *Coordinator) Handle(ctx context.Context, ev job.Event) {
	if live, ok := c.live[ev.Kind]; !ok || live != ev.Run {
		slog.DebugContext(ctx, "stale event dropped", "job_kind", ev.Kind, "run", ev.Run, "type", ev.Type)
		c.release(ctx, ev)
		return
	}
	if ev.Err != nil {
		c.state.LastError = ev.Err
	}
	c.handle(ctx, ev)
	if c.opts.OnEvent != nil {
		c.opts.OnEvent(ev, &c.state)
	}
}

// release closes an index carried by an event nobody will install.
func (c *Coordinator) release(ctx context.Context, ev job.Event) {
	idx, ok := ev.Payload.(model.Index)
	if !ok || idx == nil || idx == c.state.Index {
		return
	}
	if err := idx.Close(); err != nil {
		slog.WarnContext(ctx, "closing index of a superseded run", "run", ev.Run, "error", err)
	}
}

func (c *Coordinator) setProgress(src job.Kind, fraction float64, text string) {
	c.state.Progress = Progress{Source: src, Fraction: fraction, Text: text}
}

func (c *Coordinator) setBusy(busy bool) {
	c.state.Busy = busy
	c.state.SearchAvailable = !busy
}

func (c *Coordinator) renderRequest() pipeline.RenderRequest {
	return pipeline.RenderRequest{
		Page:          c.state.Page,
		Zoom:          c.state.Zoom,
		ViewportWidth: c.state.ViewportWidth,
		ShowAllBoxes:  c.state.ShowAllBoxes,
		Query:         c.state.Query,
	}
}

func (c *Coordinator) scanRequest() pipeline.ScanRequest {
	r := c.opts.Scan
	r.Doc = c.state.Doc
	return r
}

func (c *Coordinator) refreshDocList(ctx context.Context) {
	c.state.Suggestions = nil
	c.state.Documents = nil
	idx := c.state.Index
	if idx == nil {
		return
	}
	suggestions, err := idx.FindSuggestions(ctx, c.state.Query)
	if err != nil {
		slog.ErrorContext(ctx, "finding suggestions", "query", c.state.Query, "error", err)
	}
	docs, err := idx.FindDocuments(ctx, c.state.Query)
	if err != nil {
		slog.ErrorContext(ctx, "finding documents", "query", c.state.Query, "error", err)
	}
	slices.Reverse(docs)
	c.state.Suggestions = suggestions
	c.state.Documents = docs
	slog.DebugContext(ctx, "search", "query", c.state.Query, "suggestions", len(suggestions), "documents", len(docs))
}

func (c *Coordinator) refreshPageList() {
	c.state.Pages = nil
	doc := c.state.Doc
	if doc == nil {
		return
	}
	for i := range doc.PageCount() {
		c.state.Pages = append(c.state.Pages, PageSlot{
			Number: i,
			Title:  fmt.Sprintf("Page %d", i+1),
		})
	}
}

func (c *Coordinator) refreshLabelList(ctx context.Context) {
	c.state.Labels = nil
	if c.state.Index == nil {
		return
	}
	labels, err := c.state.Index.Labels(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "listing labels", "error", err)
		return
	}
	var attached []model.Label
	if c.state.Doc != nil {
		attached = c.state.Doc.Labels()
	}
	for _, l := range labels {
		c.state.Labels = append(c.state.Labels, LabelItem{
			Label:   l,
			Checked: slices.Contains(attached, l),
		})
	}
}
