package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/phuslu/log"
	"golang.org/x/sync/singleflight"

	"realty-engine/internal/domain"
	"realty-engine/internal/scrape/util"
)

const maxBody = 8 << 20

type Config struct {
	BaseURL       string
	BootstrapPath string
	UserAgent     string
	Headers       map[string]string
	Timeout       time.Duration
	Transport     http.RoundTripper
}

// Handle is one browsing context: a cookie-jar client plus the headers
// every request must carry. Handles are replaced, never mutated.
type Handle struct {
	client     *http.Client
	header     http.Header
	generation uint64
	acquiredAt time.Time
}

func (h *Handle) Generation() uint64    { return h.generation }
func (h *Handle) AcquiredAt() time.Time { return h.acquiredAt }

// Manager owns the current Handle. Renewals are serialized: concurrent
// callers holding the same stale generation share one bootstrap.
type Manager struct {
	cfg     Config
	limiter *util.HostLimiter

	mu  sync.RWMutex
	cur *Handle
	gen uint64

	sf         singleflight.Group
	bootstraps atomic.Int64
}

func NewManager(cfg Config, limiter *util.HostLimiter) *Manager {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36"
	}
	if limiter == nil {
		limiter = util.NewHostLimiter(0, 1)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Manager{cfg: cfg, limiter: limiter}
}

func (m *Manager) BaseURL() string { return m.cfg.BaseURL }

// Bootstraps counts how many sessions were created.
func (m *Manager) Bootstraps() int64 { return m.bootstraps.Load() }

func (m *Manager) current() *Handle {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cur
}

// Acquire returns the current handle, bootstrapping one if none exists.
func (m *Manager) Acquire(ctx context.Context) (*Handle, error) {
	if h := m.current(); h != nil {
		return h, nil
	}
	return m.Renew(ctx, 0)
}

// Renew replaces the handle of generation stale. If a newer handle already
// exists it is returned as is; if a renewal is in flight the caller waits
// for it instead of starting another.
func (m *Manager) Renew(ctx context.Context, stale uint64) (*Handle, error) {
	if h := m.current(); h != nil && h.generation > stale {
		return h, nil
	}

	ch := m.sf.DoChan("renew:"+strconv.FormatUint(stale, 10), func() (any, error) {
		if h := m.current(); h != nil && h.generation > stale {
			return h, nil
		}
		// Shared by every waiter, so it must not die with the first caller.
		bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.Timeout)
		defer cancel()

		h, err := m.bootstrap(bctx)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		m.gen++
		h.generation = m.gen
		old := m.cur
		m.cur = h
		m.mu.Unlock()

		if old != nil {
			old.client.CloseIdleConnections()
		}
		log.Info().Uint64("generation", h.generation).Msg("session renewed")
		return h, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("session bootstrap: %w", res.Err)
		}
		return res.Val.(*Handle), nil
	}
}

// Release drops the current handle. Generations keep counting so handles
// held elsewhere stay recognisably stale.
func (m *Manager) Release() {
	m.mu.Lock()
	old := m.cur
	m.cur = nil
	m.mu.Unlock()

	if old != nil {
		old.client.CloseIdleConnections()
		log.Debug().Uint64("generation", old.generation).Msg("session released")
	}
}

// Cooldown holds every request to the site back for d.
func (m *Manager) Cooldown(d time.Duration) {
	if d <= 0 {
		return
	}
	m.limiter.Pause(m.cfg.BaseURL, d)
	log.Warn().Dur("cooldown", d).Msg("site throttling, cooling down")
}

func (m *Manager) bootstrap(ctx context.Context) (*Handle, error) {
	m.bootstraps.Add(1)

	jar, _ := cookiejar.New(nil)
	client := &http.Client{
		Jar:       jar,
		Timeout:   m.cfg.Timeout,
		Transport: m.cfg.Transport,
	}

	header := http.Header{}
	header.Set("User-Agent", m.cfg.UserAgent)
	header.Set("Accept-Language", "fr-CA,fr;q=0.9,en-CA;q=0.8,en;q=0.7")
	for k, v := range m.cfg.Headers {
		header.Set(k, v)
	}

	target := m.cfg.BaseURL + m.cfg.BootstrapPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header = header.Clone()
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	if err := m.limiter.WaitURL(ctx, target); err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	// Small preview for challenge detection, then drain.
	previewBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		he := domain.NewHTTPError(resp.StatusCode, target, m.generation())
		he.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
		return nil, he
	}
	if looksLikeChallenge(resp, string(previewBytes)) {
		return nil, fmt.Errorf("%w: anti-bot challenge on %s", domain.ErrRateLimited, target)
	}

	return &Handle{
		client:     client,
		header:     header,
		acquiredAt: time.Now().UTC(),
	}, nil
}

func (m *Manager) generation() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gen
}

func transportError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrTransientNetwork, err)
}

func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

func looksLikeChallenge(resp *http.Response, preview string) bool {
	low := strings.ToLower(preview)
	if strings.Contains(low, "/cdn-cgi/challenge-platform") ||
		(strings.Contains(low, "cloudflare") && strings.Contains(low, "checking your browser")) ||
		(strings.Contains(low, "attention required") && strings.Contains(low, "cloudflare")) {
		return true
	}
	return strings.Contains(strings.ToLower(resp.Header.Get("cf-mitigated")), "challenge")
}
