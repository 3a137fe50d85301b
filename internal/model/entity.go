package model

import (
	"image"
)

// Label is a colored tag attached to documents.
type Label struct {
	Name  string `json:"name"`
	Color string `json:"color"` // #rrggbb
}

func (l Label) String() string {
	return l.Name
}

// Box is the bounding box of one OCR word on a page image.
type Box struct {
	Word string          `json:"word"`
	Rect image.Rectangle `json:"rect"`
}

// Document is a scanned document owned by the library service. The job core
// only passes it around, it never mutates it directly.
type Document interface {
	ID() string
	Name() string
	Path() string
	Labels() []Label
	PageCount() int
	Page(n int) (Page, error)
}

// Page is a single page of a Document. Number is 0-based.
type Page interface {
	Number() int
	Image() (image.Image, error)
	Thumbnail(width int) (image.Image, error)
	Boxes() ([]Box, error)
	FindBoxes(query string) ([]Box, error)
	Text() ([]string, error)
}

// Thumbnail is the payload of a thumbnailing-page-done event.
type Thumbnail struct {
	PageIndex int
	Image     image.Image
}

// Stock identifies a placeholder image shown instead of a rendered page.
type Stock string

const (
	StockMissingImage Stock = "missing-image"
	StockDialogError  Stock = "dialog-error"
	StockExecute      Stock = "execute"
)
