package poll

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/phuslu/log"

	"realty-engine/internal/config"
	"realty-engine/internal/scheduler"
)

// StartPoller blocks, running r on the configured schedule until ctx is
// done. A cron expression wins over an interval; with neither it returns
// at once.
func StartPoller(ctx context.Context, cfgVal *atomic.Value, r *Runner) error {
	cfg := cfgVal.Load().(config.Config)
	task := func(ctx context.Context) error {
		_, err := r.RunOnce(ctx)
		if errors.Is(err, ErrBusy) {
			log.Debug().Msg("scheduled run skipped, previous run still active")
			return nil
		}
		return err
	}

	switch {
	case cfg.Schedule.Cron != "":
		return scheduler.Cron(ctx, cfg.Schedule.Cron, "listing-run", task)
	case cfg.Schedule.IntervalSeconds > 0:
		scheduler.Every(ctx, time.Duration(cfg.Schedule.IntervalSeconds)*time.Second, "listing-run", task)
		return nil
	default:
		log.Info().Msg("no schedule configured, runs are manual")
		return nil
	}
}
