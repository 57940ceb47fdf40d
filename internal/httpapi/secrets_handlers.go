package httpapi

import (
	"encoding/json"
	"net/http"
	"sync/atomic"

	"realty-engine/internal/config"
	"realty-engine/internal/secrets"
)

type SecretsHandler struct {
	CfgVal *atomic.Value // stores config.Config
}

type setProxyPasswordReq struct {
	Password string `json:"password"`
}

func (h SecretsHandler) SetProxyPassword(w http.ResponseWriter, r *http.Request) {
	var req setProxyPasswordReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}

	cfg := h.CfgVal.Load().(config.Config)
	p := cfg.Site.Proxy
	if p.URL == "" || p.Username == "" {
		WriteError(w, r, http.StatusBadRequest, "no_proxy", "site.proxy url and username must be configured first")
		return
	}
	if err := secrets.SetProxyPassword(secrets.ProxyAccount(p.URL, p.Username), req.Password); err != nil {
		WriteError(w, r, http.StatusBadRequest, "keyring_error", "failed to store password: "+err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
