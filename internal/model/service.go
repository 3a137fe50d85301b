package model

import (
	"context"
)

type IndexStep int

const (
	IndexStepReading IndexStep = iota
	IndexStepSorting
)

func (s IndexStep) String() string {
	switch s {
	case IndexStepReading:
		return "reading"
	case IndexStepSorting:
		return "sorting"
	default:
		return "unknown"
	}
}

// IndexProgressFunc reports reindex progress. doc may be nil. A non-nil
// return value aborts the reindex, which then returns that error.
type IndexProgressFunc func(done, total int, step IndexStep, doc Document) error

// LabelProgressFunc reports each document touched by a label update.
type LabelProgressFunc func(done, total int, doc Document)

// Library is the document library service. Reindex builds a fresh Index of
// the working directory; the previous one stays usable until the caller
// swaps it.
type Library interface {
	Reindex(ctx context.Context, workdir string, onProgress IndexProgressFunc) (Index, error)
	NewDocument(workdir string) (Document, error)
}

// Index is the searchable view of the library.
type Index interface {
	// FindDocuments returns the matching documents, oldest first.
	FindDocuments(ctx context.Context, query string) ([]Document, error)
	FindSuggestions(ctx context.Context, query string) ([]string, error)
	Document(ctx context.Context, id string) (Document, error)
	Labels(ctx context.Context) ([]Label, error)
	AddLabel(ctx context.Context, label Label, doc Document) error
	RemoveLabel(ctx context.Context, label Label, doc Document) error
	UpdateLabel(ctx context.Context, old, new Label, onProgress LabelProgressFunc) error
	Close() error
}

type ScanStep int

const (
	ScanStepScan ScanStep = iota
	ScanStepOCR
)

func (s ScanStep) String() string {
	switch s {
	case ScanStepScan:
		return "scan"
	case ScanStepOCR:
		return "ocr"
	default:
		return "unknown"
	}
}

type ScanProgressFunc func(step ScanStep)

// ScanService is the scan and OCR service.
type ScanService interface {
	Open(ctx context.Context, device string) (Device, error)
	// AcquirePage scans one sheet, runs OCR on it and appends the result to
	// doc as a new page.
	AcquirePage(ctx context.Context, dev Device, doc Document, lang string, onProgress ScanProgressFunc) (Page, error)
}

// Device is an opened scanner. SetOption returns ErrOptionUnsupported for
// options or values the device does not accept.
type Device interface {
	Name() string
	SetOption(name string, value any) error
	Close() error
}
