package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/CZERTAINLY/Paperwork/internal/job"
	"github.com/CZERTAINLY/Paperwork/internal/model"
)

const (
	OptionSource     = "source"
	OptionResolution = "resolution"
)

// ScanAcquirer scans a single page. A page write can't be interrupted, so the
// job ignores Stop.
type ScanAcquirer struct {
	svc model.ScanService
}

func NewScanAcquirer(svc model.ScanService) *ScanAcquirer {
	return &ScanAcquirer{svc: svc}
}

func (*ScanAcquirer) Kind() job.Kind {
	return job.KindScanSingle
}

func (*ScanAcquirer) Cancellable() bool {
	return false
}

func (*ScanAcquirer) Terminal(error) (job.EventType, any) {
	return SingleScanDone, nil
}

func (x *ScanAcquirer) Do(ctx context.Context, req any, run *job.Run) error {
	r, err := request[ScanRequest](req)
	if err != nil {
		return err
	}
	if r.Doc == nil {
		return fmt.Errorf("%w: no document", job.ErrBadRequest)
	}
	run.Emit(SingleScanStart, nil)

	dev, err := openDevice(ctx, x.svc, r)
	if err != nil {
		return err
	}
	defer closeDevice(ctx, dev)

	page, err := x.svc.AcquirePage(ctx, dev, r.Doc, r.Lang, onceOCR(func() {
		run.Emit(SingleScanOCR, nil)
	}))
	if err != nil {
		return fmt.Errorf("scanning page: %w", err)
	}
	run.Finish(SingleScanDone, page, nil)
	return nil
}

// MultiScanAcquirer scans pages from a sheet feeder until it is empty. It can
// be stopped between two pages; a page being acquired is always completed.
type MultiScanAcquirer struct {
	svc model.ScanService
}

func NewMultiScanAcquirer(svc model.ScanService) *MultiScanAcquirer {
	return &MultiScanAcquirer{svc: svc}
}

func (*MultiScanAcquirer) Kind() job.Kind {
	return job.KindScanMulti
}

func (*MultiScanAcquirer) Cancellable() bool {
	return true
}

func (*MultiScanAcquirer) Terminal(error) (job.EventType, any) {
	return MultiScanEnd, nil
}

// Do emits multi-scan-ocr (with the page ordinal as payload) and
// multi-scan-page-done (with the page) for every page. The multi-scan-end
// payload is the number of pages acquired.
func (x *MultiScanAcquirer) Do(ctx context.Context, req any, run *job.Run) error {
	r, err := request[MultiScanRequest](req)
	if err != nil {
		return err
	}
	if r.Doc == nil {
		return fmt.Errorf("%w: no document", job.ErrBadRequest)
	}
	run.Emit(MultiScanStart, nil)

	dev, err := openDevice(ctx, x.svc, r.ScanRequest)
	if err != nil {
		return err
	}
	defer closeDevice(ctx, dev)

	var n int
	for r.Count <= 0 || n < r.Count {
		if !run.ShouldContinue() {
			return job.ErrCancelled
		}
		ordinal := n
		page, err := x.svc.AcquirePage(context.WithoutCancel(ctx), dev, r.Doc, r.Lang, onceOCR(func() {
			run.Emit(MultiScanOCR, ordinal)
		}))
		if errors.Is(err, model.ErrFeederEmpty) {
			slog.InfoContext(ctx, "feeder empty", "pages", n)
			break
		}
		if err != nil {
			return fmt.Errorf("scanning page %d: %w", n+1, err)
		}
		n++
		run.Emit(MultiScanPageDone, page)
	}
	run.Finish(MultiScanEnd, n, nil)
	return nil
}

func openDevice(ctx context.Context, svc model.ScanService, r ScanRequest) (model.Device, error) {
	dev, err := svc.Open(ctx, r.Device)
	if err != nil {
		return nil, fmt.Errorf("opening scanner %q: %w", r.Device, err)
	}
	source := r.Source
	if source == "" {
		source = model.SourceAuto
	}
	setOption(ctx, dev, OptionSource, source)
	if r.Resolution > 0 {
		setOption(ctx, dev, OptionResolution, r.Resolution)
	}
	return dev, nil
}

// setOption is best effort, scanning goes on with the device default.
func setOption(ctx context.Context, dev model.Device, name string, value any) {
	err := dev.SetOption(name, value)
	switch {
	case err == nil:
	case errors.Is(err, model.ErrOptionUnsupported):
		slog.WarnContext(ctx, "scanner option unsupported", "device", dev.Name(), "option", name, "value", value)
	default:
		slog.WarnContext(ctx, "can't set scanner option", "device", dev.Name(), "option", name, "value", value, "error", err)
	}
}

func closeDevice(ctx context.Context, dev model.Device) {
	if err := dev.Close(); err != nil {
		slog.WarnContext(ctx, "closing scanner", "device", dev.Name(), "error", err)
	}
}

func onceOCR(f func()) model.ScanProgressFunc {
	var ocr bool
	return func(step model.ScanStep) {
		if step == model.ScanStepOCR && !ocr {
			ocr = true
			f()
		}
	}
}
