package poll

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/phuslu/log"

	"realty-engine/internal/config"
	"realty-engine/internal/domain"
	"realty-engine/internal/pipeline"
)

var ErrBusy = errors.New("a run is already in progress")

type Status struct {
	Running    bool              `json:"running"`
	LastRunAt  string            `json:"last_run_at,omitempty"`
	LastOkAt   string            `json:"last_ok_at,omitempty"`
	LastError  string            `json:"last_error,omitempty"`
	LastReport *domain.RunReport `json:"last_report,omitempty"`
}

// Store is what a run persists into, plus retention pruning.
type Store interface {
	pipeline.Store
	PruneOlderThan(ctx context.Context, age time.Duration) (int64, error)
}

// Runner allows one run at a time and remembers how the last one went.
type Runner struct {
	base   context.Context
	cfgVal *atomic.Value // config.Config
	store  Store
	pub    pipeline.Publisher

	running atomic.Bool
	mu      sync.Mutex
	status  Status
}

// NewRunner ties background runs started by Trigger to base.
func NewRunner(base context.Context, cfgVal *atomic.Value, store Store, pub pipeline.Publisher) *Runner {
	return &Runner{base: base, cfgVal: cfgVal, store: store, pub: pub}
}

func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Trigger starts a run in the background. It reports false if one is
// already running.
func (r *Runner) Trigger() bool {
	if !r.running.CompareAndSwap(false, true) {
		return false
	}
	r.markStarted()
	go func() {
		defer r.running.Store(false)
		_, _ = r.execute(r.base)
	}()
	return true
}

// RunOnce runs synchronously and returns ErrBusy if a run is in progress.
func (r *Runner) RunOnce(ctx context.Context) (domain.RunReport, error) {
	if !r.running.CompareAndSwap(false, true) {
		return domain.RunReport{}, ErrBusy
	}
	defer r.running.Store(false)
	r.markStarted()
	return r.execute(ctx)
}

func (r *Runner) markStarted() {
	r.mu.Lock()
	r.status.Running = true
	r.status.LastRunAt = time.Now().UTC().Format(time.RFC3339)
	r.mu.Unlock()
}

func (r *Runner) execute(ctx context.Context) (domain.RunReport, error) {
	cfg := r.cfgVal.Load().(config.Config)

	var rep domain.RunReport
	orch, err := Build(cfg, r.store, r.pub)
	if err == nil {
		rep, err = orch.Run(ctx, cfg.Query())
	}
	if err == nil && cfg.Store.RetentionDays > 0 {
		age := time.Duration(cfg.Store.RetentionDays) * 24 * time.Hour
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.RequestTimeout())
		n, perr := r.store.PruneOlderThan(pctx, age)
		cancel()
		if perr != nil {
			log.Warn().Err(perr).Msg("retention prune failed")
		} else if n > 0 {
			log.Info().Int64("removed", n).Int("retention_days", cfg.Store.RetentionDays).Msg("pruned old properties")
		}
	}

	r.mu.Lock()
	r.status.Running = false
	if rep.RunID != "" {
		r.status.LastReport = &rep
	}
	if err != nil {
		r.status.LastError = err.Error()
	} else {
		r.status.LastError = ""
		r.status.LastOkAt = time.Now().UTC().Format(time.RFC3339)
	}
	r.mu.Unlock()

	if err != nil {
		log.Error().Err(err).Msg("run failed")
		return rep, err
	}
	log.Info().
		Str("run_id", rep.RunID).
		Int("persisted", rep.Persisted).
		Int("failed", rep.Failed).
		Bool("partial", rep.Partial).
		Msg("run done")
	return rep, nil
}
