package poll

import (
	"fmt"
	"net/http"
	"net/url"

	"realty-engine/internal/config"
	"realty-engine/internal/domain"
	"realty-engine/internal/pipeline"
	"realty-engine/internal/scrape/util"
	"realty-engine/internal/secrets"
	"realty-engine/internal/session"
)

// Build wires an Orchestrator for one run from the current config. A fresh
// session and limiter per run keeps cookies from leaking between runs.
func Build(cfg config.Config, store pipeline.Store, pub pipeline.Publisher) (*pipeline.Orchestrator, error) {
	transport, err := Transport(cfg.Site.Proxy)
	if err != nil {
		return nil, err
	}

	limiter := util.NewHostLimiter(cfg.Limits.RequestsPerSecond, cfg.Limits.Burst)
	sessions := session.NewManager(session.Config{
		BaseURL:       cfg.Site.BaseURL,
		BootstrapPath: cfg.Site.BootstrapPath,
		UserAgent:     cfg.Site.UserAgent,
		Headers:       cfg.Site.Headers,
		Timeout:       cfg.RequestTimeout(),
		Transport:     transport,
	}, limiter)

	return pipeline.New(pipeline.Config{
		Source:            cfg.Site.Source,
		SearchPath:        cfg.Site.SearchPath,
		StreamConcurrency: cfg.Limits.StreamConcurrency,
		FetchConcurrency:  cfg.Limits.FetchConcurrency,
		MaxPages:          cfg.Limits.MaxPages,
		RequestTimeout:    cfg.RequestTimeout(),
		RunTimeout:        cfg.RunTimeout(),
		Retry:             cfg.RetryPolicy(),
		Validation:        cfg.ValidationConfig(),
	}, sessions, store, pub), nil
}

// Transport returns nil (the default transport) unless a proxy is set. The
// proxy password comes from the keychain, never from the config file.
func Transport(p config.Proxy) (http.RoundTripper, error) {
	if p.URL == "" {
		return nil, nil
	}
	u, err := url.Parse(p.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: proxy url: %v", domain.ErrFatalConfig, err)
	}
	if p.Username != "" {
		pw, err := secrets.ProxyPassword(secrets.ProxyAccount(p.URL, p.Username))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrFatalConfig, err)
		}
		u.User = url.UserPassword(p.Username, pw)
	}

	t := http.DefaultTransport.(*http.Transport).Clone()
	t.Proxy = http.ProxyURL(u)
	return t, nil
}
