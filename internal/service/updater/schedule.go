package updater

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/oshokin/compose-updater/internal/logger"
)

// scheduleParser accepts standard five-field cron expressions, an optional
// seconds field and descriptors such as "@daily".
//
//nolint:gochecknoglobals // The parser is stateless and shared by every schedule.
var scheduleParser = cron.NewParser(
	cron.SecondOptional |
		cron.Minute |
		cron.Hour |
		cron.Dom |
		cron.Month |
		cron.Dow |
		cron.Descriptor,
)

// runOnSchedule repeats the batch on the configured cron schedule until the
// context is canceled. A failed run is logged and the schedule keeps going.
func (r *runner) runOnSchedule(ctx context.Context) error {
	schedule, err := scheduleParser.Parse(r.schedule)
	if err != nil {
		return fmt.Errorf("parse schedule %q: %w", r.schedule, err)
	}

	logger.Infof(ctx, "Running on schedule %q", r.schedule)

	for {
		next := schedule.Next(time.Now())
		if next.IsZero() {
			return fmt.Errorf("schedule %q has no future activation", r.schedule)
		}

		logger.Infof(ctx, "Next update run at %s", next.Format(time.RFC3339))

		if !sleepUntil(ctx, next) {
			logger.Info(ctx, "Schedule stopped")
			return nil
		}

		if err := r.runOnce(ctx); err != nil {
			if ctx.Err() != nil {
				logger.Info(ctx, "Schedule stopped")
				return nil
			}

			logger.ErrorKV(ctx, "Scheduled update run failed", "error", err)
		}
	}
}

// sleepUntil blocks until the given time or context cancellation, reporting
// whether the deadline was reached.
func sleepUntil(ctx context.Context, deadline time.Time) bool {
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
