package httpapi

import "net/http"

// NewMux returns the raw mux; main wraps it with the middleware chain.
func NewMux(d Deps) *http.ServeMux {
	mux := http.NewServeMux()

	hh := HealthHandler{Store: d.Store}
	mux.HandleFunc("/health", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: hh.Health,
	}))

	// Properties
	ph := PropertiesHandler{Store: d.Store}
	mux.HandleFunc("/properties", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ph.List,
	}))

	// Runs
	rh := RunsHandler{Runs: d.Runs}
	mux.HandleFunc("/runs", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: rh.Start,
	}))
	mux.HandleFunc("/runs/last", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: rh.Last,
	}))

	// Config
	ch := ConfigHandler{
		CfgVal:      d.CfgVal,
		UserCfgPath: d.UserCfgPath,
		LoadCfg:     d.LoadCfg,
	}
	mux.HandleFunc("/config", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Get,
		http.MethodPut: ch.Put,
	}))
	mux.HandleFunc("/config/path", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Path,
	}))
	mux.HandleFunc("/config/validate", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Validate,
	}))

	// Secrets (use cfgVal, NOT a snapshot cfg)
	sh := SecretsHandler{CfgVal: d.CfgVal}
	mux.HandleFunc("/api/secrets/proxy", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: sh.SetProxyPassword,
	}))

	// SSE events
	eh := EventsHandler{Hub: d.Hub}
	mux.HandleFunc("/events", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: eh.ServeSSE,
	}))

	return mux
}
