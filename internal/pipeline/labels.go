package pipeline

import (
	"context"
	"fmt"

	"github.com/CZERTAINLY/Paperwork/internal/job"
	"github.com/CZERTAINLY/Paperwork/internal/model"
)

// LabelUpdater renames or recolors a label on every document. It rewrites
// documents one by one, so it can't be interrupted.
type LabelUpdater struct{}

func NewLabelUpdater() *LabelUpdater {
	return &LabelUpdater{}
}

func (*LabelUpdater) Kind() job.Kind {
	return job.KindLabelUpdate
}

func (*LabelUpdater) Cancellable() bool {
	return false
}

func (*LabelUpdater) Terminal(error) (job.EventType, any) {
	return LabelUpdatingEnd, nil
}

func (*LabelUpdater) Do(ctx context.Context, req any, run *job.Run) error {
	r, err := request[LabelRequest](req)
	if err != nil {
		return err
	}
	if r.Index == nil {
		return fmt.Errorf("%w: no index", job.ErrBadRequest)
	}
	run.Emit(LabelUpdatingStart, nil)
	err = r.Index.UpdateLabel(ctx, r.Old, r.New, func(done, total int, doc model.Document) {
		var name string
		if doc != nil {
			name = doc.Name()
		}
		run.Progress(LabelUpdatingDocUpdated, fraction(done, total), name)
	})
	if err != nil {
		return fmt.Errorf("updating label %s: %w", r.Old, err)
	}
	return nil
}
