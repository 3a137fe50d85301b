// Package modeltest contains in-memory implementations of the library and
// scan services for tests.
package modeltest

import (
	"context"
	"fmt"
	"image"
	"slices"
	"strings"
	"sync"

	"github.com/CZERTAINLY/Paperwork/internal/imgutil"
	"github.com/CZERTAINLY/Paperwork/internal/model"
)

// NewImage returns a white image of the given size.
func NewImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	return img
}

type Page struct {
	N     int
	Img   image.Image
	Words []model.Box
	Err   error // returned by Image and Thumbnail
}

func (p *Page) Number() int {
	return p.N
}

func (p *Page) Image() (image.Image, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	if p.Img == nil {
		return NewImage(400, 600), nil
	}
	return p.Img, nil
}

func (p *Page) Thumbnail(width int) (image.Image, error) {
	img, err := p.Image()
	if err != nil {
		return nil, err
	}
	return imgutil.FitWidth(img, width)
}

func (p *Page) Boxes() ([]model.Box, error) {
	return p.Words, nil
}

func (p *Page) FindBoxes(query string) ([]model.Box, error) {
	var ret []model.Box
	for _, b := range p.Words {
		if strings.Contains(strings.ToLower(b.Word), strings.ToLower(query)) {
			ret = append(ret, b)
		}
	}
	return ret, nil
}

func (p *Page) Text() ([]string, error) {
	var words []string
	for _, b := range p.Words {
		words = append(words, b.Word)
	}
	return []string{strings.Join(words, " ")}, nil
}

// Document is safe for concurrent use.
type Document struct {
	DocID string
	Dir   string

	mx     sync.Mutex
	pages  []*Page
	labels []model.Label
}

func NewDocument(id string, pages int, labels ...model.Label) *Document {
	d := &Document{DocID: id, Dir: "/papers/" + id, labels: labels}
	for range pages {
		d.AddPage(nil)
	}
	return d
}

func (d *Document) ID() string {
	return d.DocID
}

func (d *Document) Name() string {
	return d.DocID
}

func (d *Document) Path() string {
	return d.Dir
}

func (d *Document) Labels() []model.Label {
	d.mx.Lock()
	defer d.mx.Unlock()
	return slices.Clone(d.labels)
}

func (d *Document) SetLabels(labels []model.Label) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.labels = labels
}

func (d *Document) PageCount() int {
	d.mx.Lock()
	defer d.mx.Unlock()
	return len(d.pages)
}

func (d *Document) Page(n int) (model.Page, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	if n < 0 || n >= len(d.pages) {
		return nil, fmt.Errorf("%s page %d: %w", d.DocID, n, model.ErrNoPage)
	}
	return d.pages[n], nil
}

// AddPage appends a page, a nil img is replaced by a blank 400x600 one.
func (d *Document) AddPage(img image.Image, words ...model.Box) *Page {
	d.mx.Lock()
	defer d.mx.Unlock()
	p := &Page{N: len(d.pages), Img: img, Words: words}
	d.pages = append(d.pages, p)
	return p
}

// Library serves a fixed set of documents.
type Library struct {
	mx        sync.Mutex
	Docs      []*Document
	Err       error
	Gate      chan struct{} // when set, reading waits for it after the first document
	reindexed int
	created   int
	built     []*Index
}

func (l *Library) Reindex(ctx context.Context, _ string, onProgress model.IndexProgressFunc) (model.Index, error) {
	l.mx.Lock()
	docs := slices.Clone(l.Docs)
	l.reindexed++
	l.mx.Unlock()

	if l.Err != nil {
		return nil, l.Err
	}
	for i, doc := range docs {
		if err := onProgress(i, len(docs), model.IndexStepReading, doc); err != nil {
			return nil, err
		}
		if i == 0 && l.Gate != nil {
			select {
			case <-l.Gate:
			case <-ctx.Done():
			}
		}
	}
	for i := range docs {
		if err := onProgress(i, len(docs), model.IndexStepSorting, nil); err != nil {
			return nil, err
		}
	}
	if err := onProgress(len(docs), len(docs), model.IndexStepSorting, nil); err != nil {
		return nil, err
	}
	idx := NewIndex(docs...)
	l.mx.Lock()
	l.built = append(l.built, idx)
	l.mx.Unlock()
	return idx, nil
}

// Built returns the indexes returned by Reindex, oldest first.
func (l *Library) Built() []*Index {
	l.mx.Lock()
	defer l.mx.Unlock()
	return slices.Clone(l.built)
}

func (l *Library) NewDocument(string) (model.Document, error) {
	l.mx.Lock()
	defer l.mx.Unlock()
	l.created++
	return NewDocument(fmt.Sprintf("new-%d", l.created), 0), nil
}

// Reindexed returns the number of Reindex calls.
func (l *Library) Reindexed() int {
	l.mx.Lock()
	defer l.mx.Unlock()
	return l.reindexed
}

// Index is an in-memory model.Index.
type Index struct {
	mx     sync.Mutex
	docs   []*Document
	labels []model.Label
	closed bool
	// Gate, when set, blocks UpdateLabel after the first document.
	Gate chan struct{}
}

func NewIndex(docs ...*Document) *Index {
	idx := &Index{docs: docs}
	for _, d := range docs {
		for _, l := range d.Labels() {
			if !slices.Contains(idx.labels, l) {
				idx.labels = append(idx.labels, l)
			}
		}
	}
	return idx
}

func (x *Index) FindDocuments(_ context.Context, query string) ([]model.Document, error) {
	x.mx.Lock()
	defer x.mx.Unlock()
	var ret []model.Document
	for _, d := range x.docs {
		if strings.Contains(d.Name(), query) {
			ret = append(ret, d)
		}
	}
	return ret, nil
}

func (x *Index) FindSuggestions(_ context.Context, query string) ([]string, error) {
	if query == "" {
		return nil, nil
	}
	return []string{query}, nil
}

func (x *Index) Document(_ context.Context, id string) (model.Document, error) {
	x.mx.Lock()
	defer x.mx.Unlock()
	for _, d := range x.docs {
		if d.ID() == id {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", id, model.ErrNoDocument)
}

func (x *Index) Labels(context.Context) ([]model.Label, error) {
	x.mx.Lock()
	defer x.mx.Unlock()
	return slices.Clone(x.labels), nil
}

func (x *Index) AddLabel(_ context.Context, label model.Label, doc model.Document) error {
	x.mx.Lock()
	defer x.mx.Unlock()
	if !slices.Contains(x.labels, label) {
		x.labels = append(x.labels, label)
	}
	if d, ok := doc.(*Document); ok {
		labels := d.Labels()
		if !slices.Contains(labels, label) {
			d.SetLabels(append(labels, label))
		}
	}
	return nil
}

func (x *Index) RemoveLabel(_ context.Context, label model.Label, doc model.Document) error {
	if d, ok := doc.(*Document); ok {
		d.SetLabels(slices.DeleteFunc(d.Labels(), func(l model.Label) bool { return l == label }))
	}
	return nil
}

func (x *Index) UpdateLabel(ctx context.Context, old, new model.Label, onProgress model.LabelProgressFunc) error {
	x.mx.Lock()
	docs := slices.Clone(x.docs)
	for i, l := range x.labels {
		if l == old {
			x.labels[i] = new
		}
	}
	x.mx.Unlock()

	for i, d := range docs {
		labels := d.Labels()
		for j, l := range labels {
			if l == old {
				labels[j] = new
			}
		}
		d.SetLabels(labels)
		onProgress(i+1, len(docs), d)
		if i == 0 && x.Gate != nil {
			select {
			case <-x.Gate:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

func (x *Index) Close() error {
	x.mx.Lock()
	defer x.mx.Unlock()
	x.closed = true
	return nil
}

func (x *Index) Closed() bool {
	x.mx.Lock()
	defer x.mx.Unlock()
	return x.closed
}

// Scanner is a model.ScanService feeding Sheets blank pages.
type Scanner struct {
	mx         sync.Mutex
	Sheets     int
	Unsupport  []string // options rejected with model.ErrOptionUnsupported
	OpenErr    error
	AcquireErr error
	// BeforeAcquire, when set, is called before every page.
	BeforeAcquire func()
	options       map[string]any
	closed        int
}

func (s *Scanner) Open(_ context.Context, device string) (model.Device, error) {
	if s.OpenErr != nil {
		return nil, s.OpenErr
	}
	return &fakeDevice{name: device, s: s}, nil
}

func (s *Scanner) AcquirePage(_ context.Context, _ model.Device, doc model.Document, _ string, onProgress model.ScanProgressFunc) (model.Page, error) {
	if s.BeforeAcquire != nil {
		s.BeforeAcquire()
	}
	s.mx.Lock()
	if s.Sheets <= 0 {
		s.mx.Unlock()
		return nil, model.ErrFeederEmpty
	}
	s.Sheets--
	s.mx.Unlock()

	onProgress(model.ScanStepScan)
	if s.AcquireErr != nil {
		return nil, s.AcquireErr
	}
	onProgress(model.ScanStepOCR)
	onProgress(model.ScanStepOCR)
	d, ok := doc.(*Document)
	if !ok {
		return nil, fmt.Errorf("unexpected document %T", doc)
	}
	return d.AddPage(nil, model.Box{Word: "scanned", Rect: image.Rect(10, 10, 100, 30)}), nil
}

// Options returns the options set on the opened devices.
func (s *Scanner) Options() map[string]any {
	s.mx.Lock()
	defer s.mx.Unlock()
	ret := make(map[string]any, len(s.options))
	for k, v := range s.options {
		ret[k] = v
	}
	return ret
}

func (s *Scanner) Closed() int {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.closed
}

type fakeDevice struct {
	name string
	s    *Scanner
}

func (d *fakeDevice) Name() string {
	return d.name
}

func (d *fakeDevice) SetOption(name string, value any) error {
	if slices.Contains(d.s.Unsupport, name) {
		return fmt.Errorf("%s=%v: %w", name, value, model.ErrOptionUnsupported)
	}
	d.s.mx.Lock()
	defer d.s.mx.Unlock()
	if d.s.options == nil {
		d.s.options = make(map[string]any)
	}
	d.s.options[name] = value
	return nil
}

func (d *fakeDevice) Close() error {
	d.s.mx.Lock()
	defer d.s.mx.Unlock()
	d.s.closed++
	return nil
}

// Gray returns a uniform image, handy to recognize a page after scaling.
func Gray(w, h int, y uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = y
	}
	return img
}
