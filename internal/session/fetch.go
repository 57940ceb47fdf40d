package session

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/phuslu/log"

	"realty-engine/internal/domain"
	"realty-engine/internal/scrape/util"
)

type Request struct {
	Method      string
	URL         string
	Body        []byte
	ContentType string
	Accept      string
}

// Do sends r with the current session. A 401/403 renews the session and
// retries exactly once; any other failure is returned classified.
func (m *Manager) Do(ctx context.Context, r Request) ([]byte, error) {
	h, err := m.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	body, err := m.send(ctx, h, r)
	if !errors.Is(err, domain.ErrSessionExpired) {
		return body, err
	}

	log.Warn().Str("url", r.URL).Uint64("generation", h.generation).Msg("session expired, renewing")
	fresh, rerr := m.Renew(ctx, h.generation)
	if rerr != nil {
		return nil, rerr
	}
	return m.send(ctx, fresh, r)
}

func (m *Manager) send(ctx context.Context, h *Handle, r Request) ([]byte, error) {
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	var rd io.Reader
	if r.Body != nil {
		rd = bytes.NewReader(r.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.URL, rd)
	if err != nil {
		return nil, err
	}
	req.Header = h.header.Clone()
	req.Header.Set("Accept", util.FirstNonEmpty(r.Accept, "text/html,application/xhtml+xml,*/*;q=0.8"))
	if r.ContentType != "" {
		req.Header.Set("Content-Type", r.ContentType)
	}
	if method != http.MethodGet {
		req.Header.Set("Origin", m.cfg.BaseURL)
		req.Header.Set("X-Requested-With", "XMLHttpRequest")
	}
	req.Header.Set("Referer", m.cfg.BaseURL+"/")

	if err := m.limiter.WaitURL(ctx, r.URL); err != nil {
		return nil, err
	}

	res, err := h.client.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, maxBody))
	if err != nil {
		return nil, transportError(err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		he := domain.NewHTTPError(res.StatusCode, r.URL, h.generation)
		he.RetryAfter = parseRetryAfter(res.Header.Get("Retry-After"))
		he.Body = util.Truncate(string(data), 240)
		return nil, he
	}
	return data, nil
}
