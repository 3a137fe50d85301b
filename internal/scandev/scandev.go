// Package scandev is the scan service of paperwork. The only device kind is
// dir:<path>, a sheet feeder serving the image files of a directory in name
// order. Scanned sheets are moved to <path>/.done. OCR runs tesseract and
// keeps its word boxes.
package scandev

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/CZERTAINLY/Paperwork/internal/imgutil"
	"github.com/CZERTAINLY/Paperwork/internal/model"
	"github.com/CZERTAINLY/Paperwork/internal/walk"

	_ "image/jpeg"
	_ "image/png"
)

const (
	devicePrefix = "dir:"
	doneDir      = ".done"

	OptionSource     = "source"
	OptionResolution = "resolution"

	// sheets in the feeder directory are taken as scanned at this resolution
	nativeResolution = 300
	minResolution    = 50
	maxResolution    = 1200
)

var (
	ErrUnknownDevice = errors.New("unknown scanner device")
	ErrDeviceClosed  = errors.New("scanner device closed")
)

// PageAppender is a document accepting scanned pages.
type PageAppender interface {
	AddPage(img image.Image, lines [][]model.Box) (model.Page, error)
}

type Service struct {
	binary string
	runner Runner
}

var _ model.ScanService = (*Service)(nil)

type Option func(*Service)

func WithRunner(r Runner) Option {
	return func(s *Service) {
		s.runner = r
	}
}

// NewService returns a scan service running the tesseract binary for OCR.
func NewService(binary string, opts ...Option) *Service {
	if binary == "" {
		binary = model.DefaultOCRBinary
	}
	s := &Service{binary: binary, runner: ExecRunner{}}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Open opens the device named dir:<path> and loads the sheets found there.
func (s *Service) Open(ctx context.Context, device string) (model.Device, error) {
	dir, ok := strings.CutPrefix(device, devicePrefix)
	if !ok || dir == "" {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDevice, device)
	}
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", device, err)
	}
	defer root.Close()

	var sheets []string
	for entry, err := range walk.Roots(ctx, []*os.Root{root}, walk.MaxDepth(0), walk.SkipHidden()) {
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", device, err)
		}
		switch strings.ToLower(path.Ext(entry.Rel())) {
		case ".png", ".jpg", ".jpeg":
			sheets = append(sheets, entry.Path())
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Feeder{
		name:       device,
		sheets:     sheets,
		source:     model.SourceAuto,
		resolution: nativeResolution,
	}, nil
}

// AcquirePage takes the next sheet of the feeder, runs OCR on it and appends
// it to doc.
func (s *Service) AcquirePage(ctx context.Context, dev model.Device, doc model.Document, lang string, onProgress model.ScanProgressFunc) (model.Page, error) {
	feeder, ok := dev.(*Feeder)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnknownDevice, dev)
	}
	appender, ok := doc.(PageAppender)
	if !ok {
		return nil, fmt.Errorf("document %s does not accept pages", doc.ID())
	}
	if onProgress == nil {
		onProgress = func(model.ScanStep) {}
	}

	sheet, factor, err := feeder.next()
	if err != nil {
		return nil, err
	}
	onProgress(model.ScanStepScan)
	img, err := decode(sheet)
	if err != nil {
		return nil, err
	}
	if factor != 1 {
		if img, err = imgutil.Scale(img, factor); err != nil {
			return nil, err
		}
	}

	onProgress(model.ScanStepOCR)
	lines, err := s.ocr(ctx, sheet, lang)
	if err != nil {
		return nil, err
	}
	for _, line := range lines {
		for i := range line {
			line[i].Rect = scaleRect(line[i].Rect, factor)
		}
	}
	page, err := appender.AddPage(img, lines)
	if err != nil {
		return nil, err
	}
	if err := consume(sheet); err != nil {
		slog.WarnContext(ctx, "sheet stays in the feeder", "sheet", sheet, "error", err)
	}
	return page, nil
}

// consume moves a scanned sheet out of the feeder into its hidden .done
// directory.
func consume(sheet string) error {
	done := filepath.Join(filepath.Dir(sheet), doneDir)
	if err := os.MkdirAll(done, 0o755); err != nil {
		return err
	}
	return os.Rename(sheet, filepath.Join(done, filepath.Base(sheet)))
}

func (s *Service) ocr(ctx context.Context, sheet, lang string) ([][]model.Box, error) {
	if lang == "" {
		lang = model.DefaultOCRLang
	}
	out, stderr, err := s.runner.Run(ctx, s.binary, sheet, "stdout", "-l", lang, "tsv")
	if err != nil {
		return nil, fmt.Errorf("ocr of %s: %w: %s", sheet, err, bytes.TrimSpace(stderr))
	}
	lines, err := ParseTSV(bytes.NewReader(out))
	if err != nil {
		return nil, fmt.Errorf("ocr of %s: %w", sheet, err)
	}
	return lines, nil
}

func decode(name string) (image.Image, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding sheet %s: %w", name, err)
	}
	return img, nil
}

func scaleRect(r image.Rectangle, factor float64) image.Rectangle {
	if factor == 1 {
		return r
	}
	f := func(v int) int { return int(float64(v)*factor + 0.5) }
	return image.Rect(f(r.Min.X), f(r.Min.Y), f(r.Max.X), f(r.Max.Y))
}

// Feeder is an opened dir: device.
type Feeder struct {
	name string

	mx         sync.Mutex
	sheets     []string
	pos        int
	source     string
	resolution int
	closed     bool
}

func (f *Feeder) Name() string {
	return f.name
}

func (f *Feeder) SetOption(name string, value any) error {
	f.mx.Lock()
	defer f.mx.Unlock()
	switch name {
	case OptionSource:
		s, ok := value.(string)
		if !ok {
			break
		}
		switch s {
		case model.SourceAuto, model.SourceADF, model.SourceFlatbed:
			f.source = s
			return nil
		}
	case OptionResolution:
		n, ok := value.(int)
		if !ok || n < minResolution || n > maxResolution {
			break
		}
		f.resolution = n
		return nil
	}
	return fmt.Errorf("%w: %s=%v", model.ErrOptionUnsupported, name, value)
}

// Remaining returns the number of sheets left in the feeder.
func (f *Feeder) Remaining() int {
	f.mx.Lock()
	defer f.mx.Unlock()
	return len(f.sheets) - f.pos
}

func (f *Feeder) Close() error {
	f.mx.Lock()
	defer f.mx.Unlock()
	f.closed = true
	return nil
}

// next pops a sheet. A flatbed holds a single sheet.
func (f *Feeder) next() (string, float64, error) {
	f.mx.Lock()
	defer f.mx.Unlock()
	if f.closed {
		return "", 0, ErrDeviceClosed
	}
	if f.pos >= len(f.sheets) || (f.source == model.SourceFlatbed && f.pos > 0) {
		return "", 0, model.ErrFeederEmpty
	}
	sheet := f.sheets[f.pos]
	f.pos++
	return sheet, float64(f.resolution) / nativeResolution, nil
}
