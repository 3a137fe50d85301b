package docindex

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/CZERTAINLY/Paperwork/internal/docstore"
	"github.com/CZERTAINLY/Paperwork/internal/model"
)

const maxSuggestions = 10

// Index implements model.Index. Documents are always loaded from disk, the
// database only answers which ones match.
type Index struct {
	db      *sql.DB
	workdir string
}

var _ model.Index = (*Index)(nil)

// Open opens the index built by the last successful Reindex of workdir.
func Open(_ context.Context, workdir string) (*Index, error) {
	path := filepath.Join(workdir, indexDir, indexFile)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoIndex, workdir)
	} else if err != nil {
		return nil, err
	}
	db, err := openDB(path, "PRAGMA journal_mode = DELETE")
	if err != nil {
		return nil, err
	}
	return &Index{db: db, workdir: workdir}, nil
}

func (x *Index) Close() error {
	return x.db.Close()
}

// FindDocuments returns the documents matching every keyword of query in
// their text, name or labels, oldest first. An empty query matches all.
func (x *Index) FindDocuments(ctx context.Context, query string) ([]model.Document, error) {
	var (
		where []string
		args  []any
	)
	for _, k := range strings.Fields(query) {
		where = append(where, `(d.text LIKE ? ESCAPE '\' OR d.name LIKE ? ESCAPE '\'
			OR EXISTS (SELECT 1 FROM labels l WHERE l.doc_id = d.id AND l.name LIKE ? ESCAPE '\'))`)
		pattern := "%" + escapeLike(k) + "%"
		args = append(args, pattern, pattern, pattern)
	}
	q := "SELECT d.id FROM documents d"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY d.id"

	ids, err := x.queryStrings(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("searching %q: %w", query, err)
	}
	docs := make([]model.Document, 0, len(ids))
	for _, id := range ids {
		doc, err := docstore.Open(x.workdir, id)
		if errors.Is(err, model.ErrNoDocument) {
			slog.DebugContext(ctx, "indexed document is gone", "doc", id)
			continue
		}
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// FindSuggestions completes the last keyword of query with indexed words,
// most frequent first.
func (x *Index) FindSuggestions(ctx context.Context, query string) ([]string, error) {
	keywords := strings.Fields(strings.ToLower(query))
	if len(keywords) == 0 {
		return nil, nil
	}
	last := keywords[len(keywords)-1]
	found, err := x.queryStrings(ctx,
		`SELECT word FROM words WHERE word LIKE ? ESCAPE '\' AND word <> ?
		ORDER BY freq DESC, word LIMIT ?`,
		escapeLike(last)+"%", last, maxSuggestions)
	if err != nil {
		return nil, fmt.Errorf("suggestions for %q: %w", query, err)
	}
	prefix := strings.Join(keywords[:len(keywords)-1], " ")
	ret := make([]string, len(found))
	for i, w := range found {
		ret[i] = strings.TrimSpace(prefix + " " + w)
	}
	return ret, nil
}

func (x *Index) Document(_ context.Context, id string) (model.Document, error) {
	doc, err := docstore.Open(x.workdir, id)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Labels returns all labels in use, sorted by name.
func (x *Index) Labels(ctx context.Context) ([]model.Label, error) {
	rows, err := x.db.QueryContext(ctx, "SELECT name, MIN(color) FROM labels GROUP BY name ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("listing labels: %w", err)
	}
	defer rows.Close()
	var ret []model.Label
	for rows.Next() {
		var l model.Label
		if err := rows.Scan(&l.Name, &l.Color); err != nil {
			return nil, err
		}
		ret = append(ret, l)
	}
	return ret, rows.Err()
}

func (x *Index) AddLabel(ctx context.Context, label model.Label, doc model.Document) error {
	stored, err := x.stored(doc)
	if err != nil {
		return err
	}
	if err := stored.AddLabel(label); err != nil {
		return err
	}
	return x.syncLabels(ctx, stored)
}

func (x *Index) RemoveLabel(ctx context.Context, label model.Label, doc model.Document) error {
	stored, err := x.stored(doc)
	if err != nil {
		return err
	}
	if err := stored.RemoveLabel(label); err != nil {
		return err
	}
	return x.syncLabels(ctx, stored)
}

// UpdateLabel renames or recolors old on every document carrying it.
func (x *Index) UpdateLabel(ctx context.Context, old, new model.Label, onProgress model.LabelProgressFunc) error {
	ids, err := x.queryStrings(ctx, "SELECT doc_id FROM labels WHERE name = ? ORDER BY doc_id", old.Name)
	if err != nil {
		return fmt.Errorf("documents labeled %s: %w", old.Name, err)
	}
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		doc, err := docstore.Open(x.workdir, id)
		if errors.Is(err, model.ErrNoDocument) {
			continue
		}
		if err != nil {
			return err
		}
		labels := doc.Labels()
		for j, l := range labels {
			if l.Name == old.Name {
				labels[j] = new
			}
		}
		if err := doc.SetLabels(labels); err != nil {
			return err
		}
		if err := x.syncLabels(ctx, doc); err != nil {
			return err
		}
		if onProgress != nil {
			onProgress(i+1, len(ids), doc)
		}
	}
	return nil
}

// stored returns the on-disk document behind doc.
func (x *Index) stored(doc model.Document) (*docstore.Document, error) {
	if doc == nil {
		return nil, model.ErrNoDocument
	}
	if d, ok := doc.(*docstore.Document); ok {
		return d, nil
	}
	return docstore.Open(x.workdir, doc.ID())
}

// syncLabels copies the labels of doc into the index. Documents created
// after the last reindex get a row without text.
func (x *Index) syncLabels(ctx context.Context, doc *docstore.Document) error {
	err := inTx(ctx, x.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO documents(id, name, text) VALUES (?, ?, '')",
			doc.ID(), doc.Name()); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM labels WHERE doc_id = ?", doc.ID()); err != nil {
			return err
		}
		for _, l := range doc.Labels() {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO labels(doc_id, name, color) VALUES (?, ?, ?)",
				doc.ID(), l.Name, l.Color); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("indexing labels of %s: %w", doc.ID(), err)
	}
	return nil
}

func (x *Index) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := x.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ret []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		ret = append(ret, s)
	}
	return ret, rows.Err()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
