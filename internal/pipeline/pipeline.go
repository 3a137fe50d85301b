// Package pipeline holds the job.Worker implementations of the document
// pipeline: indexing, thumbnailing, page rendering, label propagation and
// scanning.
package pipeline

import (
	"errors"
	"fmt"

	"github.com/CZERTAINLY/Paperwork/internal/job"
	"github.com/CZERTAINLY/Paperwork/internal/model"
)

const (
	IndexationStart       job.EventType = "indexation-start"
	IndexationProgression job.EventType = "indexation-progression"
	IndexationEnd         job.EventType = "indexation-end"

	ThumbnailingStart    job.EventType = "thumbnailing-start"
	ThumbnailingPageDone job.EventType = "thumbnailing-page-done"
	ThumbnailingEnd      job.EventType = "thumbnailing-end"

	ImgBuildingStart        job.EventType = "img-building-start"
	ImgBuildingResultPixbuf job.EventType = "img-building-result-pixbuf"
	ImgBuildingResultStock  job.EventType = "img-building-result-stock"

	LabelUpdatingStart      job.EventType = "label-updating-start"
	LabelUpdatingDocUpdated job.EventType = "label-updating-doc-updated"
	LabelUpdatingEnd        job.EventType = "label-updating-end"

	SingleScanStart job.EventType = "single-scan-start"
	SingleScanOCR   job.EventType = "single-scan-ocr"
	SingleScanDone  job.EventType = "single-scan-done"

	MultiScanStart    job.EventType = "multi-scan-start"
	MultiScanOCR      job.EventType = "multi-scan-ocr"
	MultiScanPageDone job.EventType = "multi-scan-page-done"
	MultiScanEnd      job.EventType = "multi-scan-end"
)

// ErrRender wraps every page rendering failure.
var ErrRender = errors.New("rendering page")

// IndexRequest asks for a full reindex of Workdir.
type IndexRequest struct {
	Workdir string
}

// ThumbnailRequest asks for thumbnails of every page of Doc.
type ThumbnailRequest struct {
	Doc   model.Document
	Width int
}

// RenderRequest is a snapshot of everything the page renderer needs. Page is
// nil when no page is shown.
type RenderRequest struct {
	Page          model.Page
	Zoom          float64 // 0 fits the viewport
	ViewportWidth int
	ShowAllBoxes  bool
	Query         string
}

type LabelRequest struct {
	Index model.Index
	Old   model.Label
	New   model.Label
}

// ScanRequest asks for one page appended to Doc.
type ScanRequest struct {
	Doc        model.Document
	Device     string
	Resolution int
	Source     string
	Lang       string
}

// MultiScanRequest repeats ScanRequest until the feeder is empty or Count
// pages were acquired. Count 0 means no limit.
type MultiScanRequest struct {
	ScanRequest
	Count int
}

func request[T any](req any) (T, error) {
	r, ok := req.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: got %T, want %T", job.ErrBadRequest, req, zero)
	}
	return r, nil
}

func fraction(done, total int) float64 {
	if total <= 0 {
		return 0
	}
	return min(float64(done)/float64(total), 1)
}
