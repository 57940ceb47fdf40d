package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phuslu/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"realty-engine/internal/domain"
	"realty-engine/internal/events"
	"realty-engine/internal/retry"
	"realty-engine/internal/scrape/detail"
	"realty-engine/internal/scrape/search"
	"realty-engine/internal/scrape/summary"
	"realty-engine/internal/session"
	"realty-engine/internal/validate"
)

// Store is the only persistence boundary of a run.
type Store interface {
	Save(ctx context.Context, p domain.Property) (domain.SaveOutcome, error)
}

type Publisher interface {
	Publish(evt string)
}

type Config struct {
	Source     string
	SearchPath string

	StreamConcurrency int
	FetchConcurrency  int
	MaxPages          int
	// RequestTimeout bounds one detail fetch or save; in-flight work drains
	// for at most this long after the run is cancelled.
	RequestTimeout time.Duration
	// RunTimeout is the wall-clock budget of a whole run. Zero means none.
	RunTimeout time.Duration

	Retry      retry.Policy
	Validation validate.Config
}

func (c Config) withDefaults() Config {
	if c.StreamConcurrency <= 0 {
		c.StreamConcurrency = 2
	}
	if c.FetchConcurrency <= 0 {
		c.FetchConcurrency = 4
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.Source == "" {
		c.Source = "centris"
	}
	return c
}

type Orchestrator struct {
	cfg      Config
	sessions *session.Manager
	store    Store
	pub      Publisher

	pages   search.PageFetcher
	parser  *summary.Parser
	details *detail.Extractor
}

func New(cfg Config, sessions *session.Manager, store Store, pub Publisher) *Orchestrator {
	cfg = cfg.withDefaults()
	return &Orchestrator{
		cfg:      cfg,
		sessions: sessions,
		store:    store,
		pub:      pub,
		pages:    search.NewClient(sessions, sessions.BaseURL(), cfg.SearchPath),
		parser:   summary.NewParser(sessions.BaseURL(), cfg.Source),
		details:  detail.NewExtractor(sessions),
	}
}

// run is the state of one Run call.
type run struct {
	id        string
	query     domain.SearchQuery
	policy    retry.Policy
	validator *validate.Validator
	seen      *seenSet
	acc       *accumulator
	fetches   *semaphore.Weighted
	inflight  sync.WaitGroup
}

// Run executes one search query end to end. Only an invalid query is
// returned as an error; every other failure is recorded in the report.
func (o *Orchestrator) Run(ctx context.Context, q domain.SearchQuery) (domain.RunReport, error) {
	if err := q.Validate(); err != nil {
		log.Error().Err(err).Msg("search query rejected")
		return domain.RunReport{}, err
	}

	r := &run{
		id:        uuid.NewString(),
		query:     q,
		validator: validate.New(o.cfg.Validation, q),
		seen:      newSeenSet(),
		acc:       &accumulator{},
		fetches:   semaphore.NewWeighted(int64(o.cfg.FetchConcurrency)),
	}
	r.policy = o.policyFor()
	r.acc.rep = domain.RunReport{
		RunID:     r.id,
		StartedAt: time.Now().UTC(),
		Streams:   make([]domain.StreamReport, len(q.Locations)),
	}

	runCtx := ctx
	if o.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, o.cfg.RunTimeout)
		defer cancel()
	}

	log.Info().Str("run_id", r.id).Int("locations", len(q.Locations)).Msg("run started")
	o.publish(r.id, events.RunStarted, map[string]any{"run_id": r.id, "locations": q.Locations})

	if _, err := o.sessions.Acquire(runCtx); err != nil {
		log.Warn().Str("run_id", r.id).Err(err).Msg("initial session acquisition failed")
		r.acc.issue(domain.Issue{
			Stage:    domain.StageSession,
			Kind:     domain.Kind(err),
			Severity: domain.SeverityError,
			Message:  err.Error(),
		})
	}
	defer o.sessions.Release()

	var g errgroup.Group
	g.SetLimit(o.cfg.StreamConcurrency)
	for i, loc := range q.Locations {
		g.Go(func() error {
			o.runStream(runCtx, r, i, loc)
			return nil
		})
	}
	_ = g.Wait()
	r.inflight.Wait()

	r.acc.update(func(rep *domain.RunReport) {
		rep.FinishedAt = time.Now().UTC()
		if runCtx.Err() != nil {
			rep.Partial = true
		}
		sort.SliceStable(rep.Issues, func(a, b int) bool {
			return rep.Issues[a].Location < rep.Issues[b].Location
		})
	})
	rep := r.acc.snapshot()

	log.Info().
		Str("run_id", rep.RunID).
		Int("discovered", rep.Discovered).
		Int("duplicates", rep.Duplicates).
		Int("persisted", rep.Persisted).
		Int("failed", rep.Failed).
		Int("skipped", rep.Skipped).
		Bool("partial", rep.Partial).
		Dur("took", rep.Duration()).
		Msg("run finished")
	o.publish(r.id, events.RunFinished, rep)
	return rep, nil
}

// policyFor wires rate-limit recovery into the retry policy: pause the site,
// then force a renewal of the session generation that was throttled.
func (o *Orchestrator) policyFor() retry.Policy {
	p := o.cfg.Retry
	p.OnRateLimit = func(ctx context.Context, err error, cooldown time.Duration) error {
		o.sessions.Cooldown(cooldown)
		var stale uint64
		var he *domain.HTTPError
		if errors.As(err, &he) {
			stale = he.Generation
		}
		_, rerr := o.sessions.Renew(ctx, stale)
		return rerr
	}
	return p
}

func (o *Orchestrator) runStream(ctx context.Context, r *run, idx int, loc domain.LocationConfig) {
	pager := search.NewPager(o.pages, r.query, loc, o.cfg.MaxPages, r.policy)

	dispatching := true
	for dispatching {
		page, ok := pager.Next(ctx)
		if !ok {
			break
		}

		res, err := o.parser.ParsePage(page.Raw)
		for _, is := range res.Issues {
			is.Location = loc.Value
			is.Page = page.Number
			r.acc.issue(is)
		}
		r.acc.update(func(rep *domain.RunReport) { rep.Discovered += len(res.Summaries) })
		if err != nil {
			log.Warn().Str("location", loc.Value).Int("page", page.Number).Err(err).Msg("result page unparseable")
			r.acc.update(func(rep *domain.RunReport) {
				rep.PagesFailed++
				rep.Issues = append(rep.Issues, domain.Issue{
					Stage:    domain.StageSummary,
					Kind:     domain.Kind(err),
					Severity: domain.SeverityError,
					Location: loc.Value,
					Page:     page.Number,
					Message:  err.Error(),
				})
			})
			continue
		}

		for n, s := range res.Summaries {
			if !r.seen.Add(s.ID) {
				r.acc.update(func(rep *domain.RunReport) { rep.Duplicates++ })
				continue
			}
			if err := r.fetches.Acquire(ctx, 1); err != nil {
				left := len(res.Summaries) - n
				r.acc.update(func(rep *domain.RunReport) { rep.Skipped += left })
				dispatching = false
				break
			}
			r.inflight.Add(1)
			go func(s domain.PropertySummary) {
				defer r.inflight.Done()
				defer r.fetches.Release(1)
				o.processSummary(ctx, r, loc, s)
			}(s)
		}
	}

	if !pager.Done() {
		// dispatch stopped by the run context; let the pager settle its state
		pager.Next(ctx)
	}

	st := domain.StreamReport{Location: loc.Value, State: pager.State(), Pages: pager.Pages()}
	if err := pager.Err(); err != nil {
		st.Error = err.Error()
	}
	r.acc.update(func(rep *domain.RunReport) {
		rep.Streams[idx] = st
		if st.State == domain.StreamFailed {
			rep.PagesFailed++
			rep.Issues = append(rep.Issues, domain.Issue{
				Stage:    domain.StageSearch,
				Kind:     domain.Kind(pager.Err()),
				Severity: domain.SeverityError,
				Location: loc.Value,
				Page:     pager.Pages() + 1,
				Message:  st.Error,
			})
		}
	})
	log.Info().Str("location", loc.Value).Str("state", string(st.State)).Int("pages", st.Pages).Msg("stream done")
}

// processSummary fetches, validates and persists one summary. Attempts stop
// when the run is cancelled, but a started request keeps its own deadline.
func (o *Orchestrator) processSummary(ctx context.Context, r *run, loc domain.LocationConfig, s domain.PropertySummary) {
	fail := func(stage domain.Stage, err error) {
		r.acc.update(func(rep *domain.RunReport) {
			rep.Failed++
			rep.Issues = append(rep.Issues, domain.Issue{
				Stage:     stage,
				Kind:      domain.Kind(err),
				Severity:  domain.SeverityError,
				SummaryID: s.ID,
				Location:  loc.Value,
				Message:   err.Error(),
			})
		})
	}

	var p domain.Property
	err := r.policy.Do(ctx, "detail "+s.ID, func(ctx context.Context) error {
		actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.RequestTimeout)
		defer cancel()
		var ferr error
		p, ferr = o.details.FetchDetail(actx, s, loc)
		return ferr
	})
	if err != nil && ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		r.acc.update(func(rep *domain.RunReport) { rep.Skipped++ })
		return
	}
	if err != nil {
		log.Warn().Str("summary_id", s.ID).Str("location", loc.Value).Err(err).Msg("detail fetch failed")
		fail(domain.StageDetail, err)
		return
	}

	r.acc.update(func(rep *domain.RunReport) {
		rep.Extracted++
		for g, st := range p.Metadata.Fields {
			if st.State != domain.FieldFailed {
				continue
			}
			rep.Issues = append(rep.Issues, domain.Issue{
				Stage:     domain.StageDetail,
				Kind:      "ParseError",
				Severity:  domain.SeverityWarning,
				Field:     string(g),
				SummaryID: s.ID,
				Location:  loc.Value,
				Message:   st.Error,
			})
		}
	})

	p, verr := r.validator.Validate(p)
	r.acc.update(func(rep *domain.RunReport) {
		rep.Issues = append(rep.Issues, p.Issues...)
		if verr != nil {
			rep.Failed++
		} else {
			rep.Validated++
		}
	})
	if verr != nil {
		log.Info().Str("summary_id", s.ID).Err(verr).Msg("property rejected by validation")
		return
	}

	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.RequestTimeout)
	defer cancel()
	out, err := o.store.Save(sctx, p)
	if err != nil {
		log.Error().Str("summary_id", s.ID).Err(err).Msg("save failed")
		fail(domain.StageStore, err)
		return
	}
	switch out.Status {
	case domain.SaveAccepted:
		r.acc.update(func(rep *domain.RunReport) { rep.Persisted++ })
		o.publish(r.id, events.PropertySaved, p.PropertySummary)
	case domain.SaveDuplicate:
		r.acc.update(func(rep *domain.RunReport) { rep.AlreadyStored++ })
	default:
		fail(domain.StageStore, fmt.Errorf("store rejected %s: %s", s.ID, out.Reason))
	}
}

func (o *Orchestrator) publish(runID, typ string, data any) {
	if o.pub == nil {
		return
	}
	o.pub.Publish(events.MakeEvent(runID, typ, 1, data))
}
