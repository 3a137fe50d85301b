package workflow

import (
	"image"

	"github.com/CZERTAINLY/Paperwork/internal/job"
	"github.com/CZERTAINLY/Paperwork/internal/model"
)

// Progress is the status bar: the job reporting, how far it is and what it
// does.
type Progress struct {
	Source   job.Kind
	Fraction float64
	Text     string
}

// PageSlot is an entry of the page list. Thumbnail is nil until the
// thumbnailer delivers it.
type PageSlot struct {
	Number    int
	Title     string
	Thumbnail image.Image
}

type LabelItem struct {
	Label   model.Label
	Checked bool // attached to the current document
}

// State is everything a front end displays. It is owned by the consumer
// goroutine.
type State struct {
	Progress        Progress
	Busy            bool
	SearchAvailable bool

	Query       string
	Suggestions []string
	Documents   []model.Document // most recent first

	Doc      model.Document
	Page     model.Page
	PageText []string
	Pages    []PageSlot
	Labels   []LabelItem

	// Image is the rendered page, Stock the placeholder shown instead.
	Image image.Image
	Stock model.Stock

	Zoom          float64
	ViewportWidth int
	ShowAllBoxes  bool

	Index     model.Index
	LastError error
}
