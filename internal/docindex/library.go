package docindex

import (
	"cmp"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
	"unicode"

	"github.com/CZERTAINLY/Paperwork/internal/docstore"
	"github.com/CZERTAINLY/Paperwork/internal/model"
	"github.com/CZERTAINLY/Paperwork/internal/parallel"

	"github.com/google/uuid"
)

const (
	indexDir  = ".index"
	indexFile = "index.db"
	// shorter words are not worth a suggestion
	minWordLen = 3
)

var ErrNoIndex = errors.New("no index, reindex the working directory first")

// Library implements model.Library on top of docstore.
type Library struct {
	parallel int
	now      func() time.Time
}

var _ model.Library = (*Library)(nil)

type Option func(*Library)

// WithParallel sets how many documents are read at once.
func WithParallel(n int) Option {
	return func(l *Library) {
		l.parallel = n
	}
}

// WithClock replaces time.Now for new document ids.
func WithClock(now func() time.Time) Option {
	return func(l *Library) {
		l.now = now
	}
}

func NewLibrary(opts ...Option) *Library {
	l := &Library{
		parallel: 4,
		now:      time.Now,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

func (l *Library) NewDocument(workdir string) (model.Document, error) {
	return docstore.NewDocument(workdir, l.now())
}

type indexed struct {
	doc  *docstore.Document
	text string
}

// Reindex reads all documents of workdir and builds a new index. Progress
// is reported from the calling goroutine only. Documents which cannot be
// read are logged and left out.
func (l *Library) Reindex(ctx context.Context, workdir string, onProgress model.IndexProgressFunc) (model.Index, error) {
	if onProgress == nil {
		onProgress = func(int, int, model.IndexStep, model.Document) error { return nil }
	}

	var ids []string
	for id, err := range docstore.List(ctx, workdir) {
		if err != nil {
			return nil, fmt.Errorf("listing documents: %w", err)
		}
		ids = append(ids, id)
	}
	total := len(ids)

	read := func(_ context.Context, id string) (indexed, error) {
		doc, err := docstore.Open(workdir, id)
		if err != nil {
			return indexed{}, err
		}
		lines, err := doc.Text()
		if err != nil {
			return indexed{}, fmt.Errorf("document %s: %w", id, err)
		}
		return indexed{doc: doc, text: strings.Join(lines, "\n")}, nil
	}

	docs := make([]indexed, 0, total)
	var done int
	for x, err := range parallel.NewMap(ctx, l.parallel, read).Iter(seq(ids)) {
		done++
		if err != nil {
			slog.WarnContext(ctx, "skipping unreadable document", "error", err)
		} else {
			docs = append(docs, x)
		}
		var doc model.Document
		if x.doc != nil {
			doc = x.doc
		}
		if err := onProgress(done, total, model.IndexStepReading, doc); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// newest first
	slices.SortFunc(docs, func(a, b indexed) int {
		return cmp.Compare(b.doc.ID(), a.doc.ID())
	})

	dir := filepath.Join(workdir, indexDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}
	tmp := filepath.Join(dir, "."+uuid.NewString()+".db.tmp")
	if err := build(ctx, tmp, docs, onProgress); err != nil {
		_ = os.Remove(tmp)
		return nil, err
	}
	// a stopped run must not replace the index the next session opens
	if err := ctx.Err(); err != nil {
		_ = os.Remove(tmp)
		return nil, err
	}
	if err := os.Rename(tmp, filepath.Join(dir, indexFile)); err != nil {
		_ = os.Remove(tmp)
		return nil, fmt.Errorf("installing index: %w", err)
	}
	slog.InfoContext(ctx, "index built", "workdir", workdir, "documents", len(docs))
	return Open(ctx, workdir)
}

func build(ctx context.Context, path string, docs []indexed, onProgress model.IndexProgressFunc) error {
	// nobody reads a temporary index, a crash leaves garbage only
	db, err := openDB(path, "PRAGMA journal_mode = OFF", "PRAGMA synchronous = OFF")
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	freq := make(map[string]int)
	err = inTx(ctx, db, func(tx *sql.Tx) error {
		for i, x := range docs {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO documents(id, name, text) VALUES (?, ?, ?)",
				x.doc.ID(), x.doc.Name(), x.text); err != nil {
				return fmt.Errorf("indexing %s: %w", x.doc.ID(), err)
			}
			for _, label := range x.doc.Labels() {
				if _, err := tx.ExecContext(ctx,
					"INSERT INTO labels(doc_id, name, color) VALUES (?, ?, ?)",
					x.doc.ID(), label.Name, label.Color); err != nil {
					return fmt.Errorf("indexing labels of %s: %w", x.doc.ID(), err)
				}
			}
			for _, w := range words(x.text) {
				freq[w]++
			}
			if err := onProgress(i+1, len(docs), model.IndexStepSorting, x.doc); err != nil {
				return err
			}
		}
		for w, n := range freq {
			if _, err := tx.ExecContext(ctx, "INSERT INTO words(word, freq) VALUES (?, ?)", w, n); err != nil {
				return fmt.Errorf("indexing words: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		if err := onProgress(0, 0, model.IndexStepSorting, nil); err != nil {
			return err
		}
	}
	return db.Close()
}

// words returns the lowercase words of text usable as suggestions.
func words(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return slices.DeleteFunc(fields, func(w string) bool {
		return len([]rune(w)) < minWordLen
	})
}

func seq(ids []string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, id := range ids {
			if !yield(id, nil) {
				return
			}
		}
	}
}
