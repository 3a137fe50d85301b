package docindex_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/CZERTAINLY/Paperwork/internal/docindex"
	"github.com/CZERTAINLY/Paperwork/internal/model"

	"github.com/stretchr/testify/require"
)

var (
	bills = model.Label{Name: "bills", Color: "#ff0000"}
	taxes = model.Label{Name: "taxes", Color: "#00ff00"}
)

type progress struct {
	done, total int
	step        model.IndexStep
}

func ids(docs []model.Document) []string {
	ret := make([]string, len(docs))
	for i, d := range docs {
		ret[i] = d.ID()
	}
	return ret
}

func TestLibrary_Reindex(t *testing.T) {
	t.Parallel()
	workdir := t.TempDir()
	electricity := addDoc(t, workdir, day(1), []string{"Electricity invoice", "total 120 EUR"}, bills)
	water := addDoc(t, workdir, day(2), []string{"Water invoice"}, bills, taxes)
	letter := addDoc(t, workdir, day(3), []string{"Dear customer"})

	var got []progress
	lib := docindex.NewLibrary(docindex.WithParallel(2))
	idx, err := lib.Reindex(t.Context(), workdir, func(done, total int, step model.IndexStep, doc model.Document) error {
		require.NotNil(t, doc)
		got = append(got, progress{done, total, step})
		return nil
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	require.Equal(t, []progress{
		{1, 3, model.IndexStepReading},
		{2, 3, model.IndexStepReading},
		{3, 3, model.IndexStepReading},
		{1, 3, model.IndexStepSorting},
		{2, 3, model.IndexStepSorting},
		{3, 3, model.IndexStepSorting},
	}, got)
	require.FileExists(t, filepath.Join(workdir, ".index", "index.db"))

	ctx := t.Context()
	var testCases = []struct {
		scenario string
		given    string
		then     []string
	}{
		{"all oldest first", "", []string{electricity.ID(), water.ID(), letter.ID()}},
		{"text", "INVOICE", []string{electricity.ID(), water.ID()}},
		{"every keyword", "invoice 120", []string{electricity.ID()}},
		{"label", "taxes", []string{water.ID()}},
		{"like wildcard is literal", "%", nil},
		{"no match", "nothing", nil},
	}
	for _, tt := range testCases {
		t.Run(tt.scenario, func(t *testing.T) {
			docs, err := idx.FindDocuments(ctx, tt.given)
			require.NoError(t, err)
			if tt.then == nil {
				require.Empty(t, docs)
				return
			}
			require.Equal(t, tt.then, ids(docs))
		})
	}

	suggestions, err := idx.FindSuggestions(ctx, "water inv")
	require.NoError(t, err)
	require.Equal(t, []string{"water invoice"}, suggestions)

	labels, err := idx.Labels(ctx)
	require.NoError(t, err)
	require.Equal(t, []model.Label{bills, taxes}, labels)

	doc, err := idx.Document(ctx, water.ID())
	require.NoError(t, err)
	require.Equal(t, water.Labels(), doc.Labels())
	_, err = idx.Document(ctx, "20000101_0000_00_0")
	require.ErrorIs(t, err, model.ErrNoDocument)
}

func TestLibrary_ReindexEmpty(t *testing.T) {
	t.Parallel()
	workdir := t.TempDir()
	var got []progress
	idx, err := docindex.NewLibrary().Reindex(t.Context(), workdir, func(done, total int, step model.IndexStep, _ model.Document) error {
		got = append(got, progress{done, total, step})
		return nil
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	require.Equal(t, []progress{{0, 0, model.IndexStepSorting}}, got)

	docs, err := idx.FindDocuments(t.Context(), "")
	require.NoError(t, err)
	require.Empty(t, docs)
}

func TestLibrary_ReindexAbort(t *testing.T) {
	t.Parallel()
	workdir := t.TempDir()
	for d := 1; d <= 5; d++ {
		addDoc(t, workdir, day(d), []string{"page"})
	}
	lib := docindex.NewLibrary()
	first, err := lib.Reindex(t.Context(), workdir, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = first.Close() })

	addDoc(t, workdir, day(6), []string{"late"})
	errStop := errors.New("stop")

	var testCases = []struct {
		scenario string
		given    model.IndexStep
	}{
		{"while reading", model.IndexStepReading},
		{"while sorting", model.IndexStepSorting},
	}
	for _, tt := range testCases {
		t.Run(tt.scenario, func(t *testing.T) {
			_, err := lib.Reindex(t.Context(), workdir, func(done, _ int, step model.IndexStep, _ model.Document) error {
				if step == tt.given && done == 2 {
					return errStop
				}
				return nil
			})
			require.ErrorIs(t, err, errStop)

			// the previous generation is intact
			docs, err := first.FindDocuments(t.Context(), "late")
			require.NoError(t, err)
			require.Empty(t, docs)
			idx, err := docindex.Open(t.Context(), workdir)
			require.NoError(t, err)
			docs, err = idx.FindDocuments(t.Context(), "")
			require.NoError(t, err)
			require.Len(t, docs, 5)
			require.NoError(t, idx.Close())

			entries, err := os.ReadDir(filepath.Join(workdir, ".index"))
			require.NoError(t, err)
			require.Len(t, entries, 1, "temporary index removed")
		})
	}

	t.Run("stopped after the last document", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		defer cancel()
		_, err := lib.Reindex(ctx, workdir, func(done, total int, step model.IndexStep, _ model.Document) error {
			if step == model.IndexStepSorting && done == total {
				cancel()
			}
			return nil
		})
		require.Error(t, err)

		idx, err := docindex.Open(t.Context(), workdir)
		require.NoError(t, err)
		docs, err := idx.FindDocuments(t.Context(), "late")
		require.NoError(t, err)
		require.Empty(t, docs)
		require.NoError(t, idx.Close())

		entries, err := os.ReadDir(filepath.Join(workdir, ".index"))
		require.NoError(t, err)
		require.Len(t, entries, 1, "temporary index removed")
	})

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err = lib.Reindex(ctx, workdir, nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestLibrary_SkipsBrokenDocuments(t *testing.T) {
	t.Parallel()
	workdir := t.TempDir()
	good := addDoc(t, workdir, day(1), []string{"fine"})
	broken := addDoc(t, workdir, day(2), []string{"broken"})
	require.NoError(t, os.WriteFile(filepath.Join(broken.Path(), "labels"), []byte("no color\n"), 0o644))

	var last progress
	idx, err := docindex.NewLibrary().Reindex(t.Context(), workdir, func(done, total int, step model.IndexStep, _ model.Document) error {
		last = progress{done, total, step}
		return nil
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	require.Equal(t, progress{1, 1, model.IndexStepSorting}, last)

	docs, err := idx.FindDocuments(t.Context(), "")
	require.NoError(t, err)
	require.Equal(t, []string{good.ID()}, ids(docs))
}

func TestOpen_NoIndex(t *testing.T) {
	t.Parallel()
	_, err := docindex.Open(t.Context(), t.TempDir())
	require.ErrorIs(t, err, docindex.ErrNoIndex)
}

func TestLibrary_NewDocument(t *testing.T) {
	t.Parallel()
	workdir := t.TempDir()
	lib := docindex.NewLibrary(docindex.WithClock(func() time.Time { return day(7) }))
	doc, err := lib.NewDocument(workdir)
	require.NoError(t, err)
	require.Equal(t, "20240107_0930_00_0", doc.ID())
	require.DirExists(t, filepath.Join(workdir, doc.ID()))
}

func TestIndex_Labels(t *testing.T) {
	t.Parallel()
	workdir := t.TempDir()
	a := addDoc(t, workdir, day(1), []string{"a"}, bills)
	b := addDoc(t, workdir, day(2), []string{"b"}, bills, taxes)
	idx, err := docindex.NewLibrary().Reindex(t.Context(), workdir, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	ctx := t.Context()

	// scanned after the reindex
	c, err := docindex.NewLibrary(docindex.WithClock(func() time.Time { return day(3) })).NewDocument(workdir)
	require.NoError(t, err)
	require.NoError(t, idx.AddLabel(ctx, taxes, c))
	docs, err := idx.FindDocuments(ctx, "taxes")
	require.NoError(t, err)
	require.Equal(t, []string{b.ID(), c.ID()}, ids(docs))

	require.NoError(t, idx.RemoveLabel(ctx, taxes, b))
	docs, err = idx.FindDocuments(ctx, "taxes")
	require.NoError(t, err)
	require.Equal(t, []string{c.ID()}, ids(docs))

	invoices := model.Label{Name: "invoices", Color: "#0000ff"}
	var touched []string
	err = idx.UpdateLabel(ctx, bills, invoices, func(done, total int, doc model.Document) {
		require.Equal(t, 2, total)
		touched = append(touched, doc.ID())
	})
	require.NoError(t, err)
	require.Equal(t, []string{a.ID(), b.ID()}, touched)

	labels, err := idx.Labels(ctx)
	require.NoError(t, err)
	require.Equal(t, []model.Label{invoices, taxes}, labels)

	reread, err := idx.Document(ctx, a.ID())
	require.NoError(t, err)
	require.Equal(t, []model.Label{invoices}, reread.Labels())

	require.ErrorIs(t, idx.AddLabel(ctx, taxes, nil), model.ErrNoDocument)
}
