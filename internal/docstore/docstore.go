// Package docstore keeps scanned documents on disk. A document is a
// directory of the working directory named after its creation time,
// YYYYMMDD_hhmm_ss_<n>. It holds the page images paper.<n>.png, the OCR
// word boxes paper.<n>.words and a labels file.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/CZERTAINLY/Paperwork/internal/model"
	"github.com/CZERTAINLY/Paperwork/internal/walk"
)

const (
	idLayout   = "20060102_1504_05"
	labelsFile = "labels"
	// a document directory may keep its pages one level below
	maxDepth = 1
)

var ErrBadID = errors.New("invalid document id")

// Document is safe for concurrent use.
type Document struct {
	id   string
	dir  string
	date time.Time

	mx     sync.RWMutex
	pages  int
	labels []model.Label
}

var _ model.Document = (*Document)(nil)

// NewDocument creates an empty document directory in workdir. The id is
// derived from now, a numeric suffix keeps it unique.
func NewDocument(workdir string, now time.Time) (*Document, error) {
	if err := os.MkdirAll(workdir, 0o755); err != nil {
		return nil, fmt.Errorf("creating workdir: %w", err)
	}
	prefix := now.Format(idLayout)
	for n := 0; ; n++ {
		id := prefix + "_" + strconv.Itoa(n)
		dir := filepath.Join(workdir, id)
		err := os.Mkdir(dir, 0o755)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("creating document %s: %w", id, err)
		}
		return &Document{id: id, dir: dir, date: now}, nil
	}
}

// Open loads the document id stored in workdir.
func Open(workdir, id string) (*Document, error) {
	if id == "" || !filepath.IsLocal(id) || strings.ContainsAny(id, `/\`) {
		return nil, fmt.Errorf("%w: %q", ErrBadID, id)
	}
	dir := filepath.Join(workdir, id)
	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", model.ErrNoDocument, id)
	}
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", model.ErrNoDocument, id)
	}

	doc := &Document{id: id, dir: dir}
	doc.date, _ = ParseID(id)
	for doc.pages = 0; ; doc.pages++ {
		_, err := os.Stat(filepath.Join(dir, imageName(doc.pages)))
		if errors.Is(err, fs.ErrNotExist) {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	doc.labels, err = readLabels(filepath.Join(dir, labelsFile))
	if err != nil {
		return nil, fmt.Errorf("document %s: %w", id, err)
	}
	return doc, nil
}

// ParseID returns the creation time encoded in a document id.
func ParseID(id string) (time.Time, error) {
	if len(id) < len(idLayout) {
		return time.Time{}, fmt.Errorf("%w: %q", ErrBadID, id)
	}
	t, err := time.ParseInLocation(idLayout, id[:len(idLayout)], time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", ErrBadID, err)
	}
	return t, nil
}

// List yields the ids of the documents in workdir in lexical order. A
// directory counts as a document once it holds a page or a labels file.
// Hidden entries are skipped.
func List(ctx context.Context, workdir string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		root, err := os.OpenRoot(workdir)
		if err != nil {
			yield("", err)
			return
		}
		defer root.Close()

		var last string
		for entry, err := range walk.Roots(ctx, []*os.Root{root}, walk.MaxDepth(maxDepth), walk.SkipHidden()) {
			if err != nil {
				if !yield("", err) {
					return
				}
				continue
			}
			id, _, ok := strings.Cut(entry.Rel(), "/")
			if !ok || id == last || !isDocumentFile(path.Base(entry.Rel())) {
				continue
			}
			last = id
			if !yield(id, nil) {
				return
			}
		}
		if err := ctx.Err(); err != nil {
			yield("", err)
		}
	}
}

func isDocumentFile(name string) bool {
	if name == labelsFile {
		return true
	}
	_, ok := pageIndex(name)
	return ok
}

func (d *Document) ID() string {
	return d.id
}

// Name is the creation time of the document or its id when the id does not
// encode one.
func (d *Document) Name() string {
	if d.date.IsZero() {
		return d.id
	}
	return d.date.Format(time.DateTime)
}

func (d *Document) Path() string {
	return d.dir
}

func (d *Document) Date() time.Time {
	return d.date
}

func (d *Document) Labels() []model.Label {
	d.mx.RLock()
	defer d.mx.RUnlock()
	return slices.Clone(d.labels)
}

func (d *Document) PageCount() int {
	d.mx.RLock()
	defer d.mx.RUnlock()
	return d.pages
}

func (d *Document) Page(n int) (model.Page, error) {
	if n < 0 || n >= d.PageCount() {
		return nil, fmt.Errorf("%w: %d of %s", model.ErrNoPage, n, d.id)
	}
	return &Page{n: n, dir: d.dir}, nil
}

// Pages returns all pages of the document.
func (d *Document) Pages() []*Page {
	n := d.PageCount()
	ret := make([]*Page, n)
	for i := range n {
		ret[i] = &Page{n: i, dir: d.dir}
	}
	return ret
}

// Text returns the OCR text of all pages, one line per OCR line.
func (d *Document) Text() ([]string, error) {
	var ret []string
	for _, p := range d.Pages() {
		lines, err := p.Text()
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", p.n, err)
		}
		ret = append(ret, lines...)
	}
	return ret, nil
}
