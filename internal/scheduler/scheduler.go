package scheduler

import (
	"context"
	"time"

	"github.com/phuslu/log"
	"github.com/robfig/cron/v3"
)

type Task func(ctx context.Context) error

// Every runs task immediately and then on each tick until ctx is done. Ticks
// that arrive while task is still running are dropped.
func Every(ctx context.Context, interval time.Duration, name string, task Task) {
	t := time.NewTicker(interval)
	defer t.Stop()

	run(ctx, name, task)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			run(ctx, name, task)
		}
	}
}

// Cron runs task on a standard 5-field cron spec until ctx is done.
func Cron(ctx context.Context, spec, name string, task Task) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(spec, func() { run(ctx, name, task) }); err != nil {
		return err
	}
	c.Start()
	log.Info().Str("task", name).Str("cron", spec).Msg("cron schedule started")

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

func run(ctx context.Context, name string, task Task) {
	if ctx.Err() != nil {
		return
	}
	if err := task(ctx); err != nil {
		log.Error().Str("task", name).Err(err).Msg("scheduled task failed")
	}
}
