package search

import (
	"context"
	"errors"
	"fmt"

	"github.com/phuslu/log"

	"realty-engine/internal/domain"
	"realty-engine/internal/retry"
)

// PageFetcher is satisfied by *Client and by test doubles.
type PageFetcher interface {
	FetchPage(ctx context.Context, req Request) (Page, error)
}

// Pager walks the result pages of one (query, location) stream:
//
//	INIT -> FETCHING -> (HAS_MORE -> FETCHING)* -> EXHAUSTED
//
// or FAILED from any state once retries run out. Pages are fetched strictly
// in order; a fresh Pager for the same inputs repeats the same traversal.
type Pager struct {
	fetcher  PageFetcher
	query    domain.SearchQuery
	loc      domain.LocationConfig
	maxPages int
	policy   retry.Policy

	state  domain.StreamState
	cursor int
	pages  int
	err    error
}

// NewPager returns a pager in INIT. maxPages <= 0 means no cap.
func NewPager(f PageFetcher, q domain.SearchQuery, loc domain.LocationConfig, maxPages int, policy retry.Policy) *Pager {
	return &Pager{
		fetcher:  f,
		query:    q,
		loc:      loc,
		maxPages: maxPages,
		policy:   policy,
		state:    domain.StreamInit,
	}
}

func (p *Pager) State() domain.StreamState { return p.state }
func (p *Pager) Pages() int                { return p.pages }
func (p *Pager) Err() error                { return p.err }

func (p *Pager) Done() bool {
	return p.state == domain.StreamExhausted || p.state == domain.StreamFailed
}

// Next fetches the next page. ok is false once the stream is EXHAUSTED or
// FAILED; Err then explains a failure.
func (p *Pager) Next(ctx context.Context) (page Page, ok bool) {
	if p.Done() {
		return Page{}, false
	}

	if err := ctx.Err(); err != nil {
		p.stop(err)
		return Page{}, false
	}

	req, err := BuildRequest(p.query, p.loc, p.cursor)
	if err != nil {
		p.fail(err)
		return Page{}, false
	}

	p.state = domain.StreamFetching
	op := fmt.Sprintf("search %s page %d", p.loc.Value, p.pages+1)
	err = p.policy.Do(ctx, op, func(ctx context.Context) error {
		var ferr error
		page, ferr = p.fetcher.FetchPage(ctx, req)
		return ferr
	})
	if err != nil {
		if ctx.Err() != nil {
			p.stop(err)
		} else {
			p.fail(err)
		}
		return Page{}, false
	}

	p.pages++
	page.Number = p.pages
	p.cursor = page.NextPosition

	switch {
	case !page.HasNext:
		p.state = domain.StreamExhausted
	case p.maxPages > 0 && p.pages >= p.maxPages:
		log.Info().Str("location", p.loc.Value).Int("pages", p.pages).Msg("page cap reached")
		p.state = domain.StreamExhausted
	default:
		p.state = domain.StreamHasMore
	}
	return page, true
}

func (p *Pager) fail(err error) {
	p.state = domain.StreamFailed
	p.err = err
	log.Warn().Str("location", p.loc.Value).Int("pages", p.pages).Err(err).Msg("search stream failed")
}

// stop handles run-level cancellation: a spent wall-clock budget ends the
// stream as EXHAUSTED, an explicit cancel as FAILED.
func (p *Pager) stop(err error) {
	if errors.Is(err, context.DeadlineExceeded) {
		p.state = domain.StreamExhausted
		p.err = err
		return
	}
	p.state = domain.StreamFailed
	p.err = err
}
