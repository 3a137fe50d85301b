package docindex_test

import (
	"image"
	"testing"
	"time"

	"github.com/CZERTAINLY/Paperwork/internal/docstore"
	"github.com/CZERTAINLY/Paperwork/internal/model"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// addDoc stores a one page document with the given text lines.
func addDoc(t *testing.T, workdir string, created time.Time, text []string, labels ...model.Label) *docstore.Document {
	t.Helper()
	doc, err := docstore.NewDocument(workdir, created)
	require.NoError(t, err)
	var lines [][]model.Box
	for i, line := range text {
		lines = append(lines, []model.Box{{Word: line, Rect: image.Rect(0, i*10, 50, i*10+8)}})
	}
	_, err = doc.AddPage(image.NewGray(image.Rect(0, 0, 10, 10)), lines)
	require.NoError(t, err)
	require.NoError(t, doc.SetLabels(labels))
	return doc
}

func day(d int) time.Time {
	return time.Date(2024, 1, d, 9, 30, 0, 0, time.Local)
}
