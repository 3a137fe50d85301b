package workflow_test

import (
	"context"
	"testing"
	"time"

	"github.com/CZERTAINLY/Paperwork/internal/event"
	"github.com/CZERTAINLY/Paperwork/internal/job"
	"github.com/CZERTAINLY/Paperwork/internal/model/modeltest"
	"github.com/CZERTAINLY/Paperwork/internal/pipeline"
	"github.com/CZERTAINLY/Paperwork/internal/workflow"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fixture drives a Coordinator from the test goroutine, which plays the
// consumer role.
type fixture struct {
	ch      *event.Channel
	reg     *job.Registry
	lib     *modeltest.Library
	scanner *modeltest.Scanner
	coord   *workflow.Coordinator
	loop    *event.Loop
	handled []job.Event
}

func newFixture(t *testing.T, workdir string, lib *modeltest.Library) *fixture {
	t.Helper()
	f := &fixture{
		ch:      event.NewChannel(),
		lib:     lib,
		scanner: &modeltest.Scanner{Sheets: 10},
	}
	reg, err := job.NewRegistry(f.ch,
		pipeline.NewIndexer(lib, 0),
		pipeline.NewThumbnailer(),
		pipeline.NewRenderer(),
		pipeline.NewLabelUpdater(),
		pipeline.NewScanAcquirer(f.scanner),
		pipeline.NewMultiScanAcquirer(f.scanner),
	)
	require.NoError(t, err)
	f.reg = reg
	f.coord = workflow.New(reg, lib, workflow.Options{
		Workdir:       workdir,
		ViewportWidth: 800,
		Scan: pipeline.ScanRequest{
			Device:     "dir:feeder",
			Resolution: 300,
			Lang:       "eng",
		},
		OnEvent: func(ev job.Event, _ *workflow.State) {
			f.handled = append(f.handled, ev)
		},
	})
	f.loop = event.NewLoop(f.ch, f.coord.Handle)
	t.Cleanup(func() {
		require.NoError(t, f.coord.Shutdown(context.Background()))
	})
	return f
}

// wait waits for the given jobs and handles their events.
func (f *fixture) wait(t *testing.T, kinds ...job.Kind) {
	t.Helper()
	for _, kind := range kinds {
		require.NoError(t, f.reg.Get(kind).Wait(t.Context()))
	}
	f.loop.Flush(t.Context())
}

// settle handles events until every job is idle. Handlers may start new jobs.
func (f *fixture) settle(t *testing.T) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		f.wait(t, f.reg.Kinds()...)
		running := false
		for _, kind := range f.reg.Kinds() {
			running = running || f.reg.IsRunning(kind)
		}
		if !running && f.ch.Len() == 0 {
			return
		}
	}
	t.Fatal("jobs did not settle")
}

func (f *fixture) handledTypes(kind job.Kind) []job.EventType {
	var ret []job.EventType
	for _, ev := range f.handled {
		if ev.Kind == kind {
			ret = append(ret, ev.Type)
		}
	}
	return ret
}
