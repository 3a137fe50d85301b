package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/CZERTAINLY/Paperwork/internal/model"

	gocron "github.com/go-co-op/gocron/v2"
)

// NewScheduler returns a stopped scheduler calling trigger according to the
// reindex schedule. The caller starts and shuts it down.
func NewScheduler(ctx context.Context, sched *model.Schedule, trigger func()) (gocron.Scheduler, error) {
	if sched == nil {
		return nil, errors.New("reindex.schedule is nil")
	}
	interval, err := sched.Interval()
	if err != nil {
		return nil, fmt.Errorf("parsing reindex.schedule: %w", err)
	}

	var def gocron.JobDefinition
	switch {
	case sched.Cron != "":
		def = gocron.CronJob(sched.Cron, false)
		slog.DebugContext(ctx, "reindex scheduled", "cron", sched.Cron, "interval", interval.String())
	default:
		def = gocron.DurationJob(interval)
		slog.DebugContext(ctx, "reindex scheduled", "duration", sched.Duration, "interval", interval.String())
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("initializing gocron scheduler: %w", err)
	}
	_, err = s.NewJob(
		def,
		gocron.NewTask(trigger),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, errors.Join(
			fmt.Errorf("initializing gocron job: %w", err),
			s.Shutdown(),
		)
	}
	return s, nil
}
