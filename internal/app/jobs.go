package app

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// job is a recurring background task.
type job struct {
	name      string
	interval  time.Duration
	immediate bool
	task      func()
}

// newScheduler registers jobs on a gocron scheduler. Jobs with a
// non-positive interval are skipped. Overlapping runs are rescheduled rather
// than stacked.
func newScheduler(clock clockwork.Clock, logger zerolog.Logger, jobs ...job) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler(
		gocron.WithClock(clock),
		gocron.WithLocation(time.UTC),
	)
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	logger = logger.With().Str("component", "scheduler").Logger()
	for _, j := range jobs {
		if j.interval <= 0 {
			logger.Warn().Str("job", j.name).Msg("job disabled")
			continue
		}
		opts := []gocron.JobOption{
			gocron.WithName(j.name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		}
		if j.immediate {
			opts = append(opts, gocron.WithStartAt(gocron.WithStartImmediately()))
		}
		if _, err := sched.NewJob(gocron.DurationJob(j.interval), gocron.NewTask(j.task), opts...); err != nil {
			_ = sched.Shutdown()
			return nil, fmt.Errorf("register job %s: %w", j.name, err)
		}
		logger.Debug().Str("job", j.name).Dur("interval", j.interval).Msg("job registered")
	}
	return sched, nil
}
