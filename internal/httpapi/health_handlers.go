package httpapi

import (
	"net/http"
	"time"
)

type HealthHandler struct {
	Store PropertyLister
}

func (h HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"ok":   true,
		"time": time.Now().UTC().Format(time.RFC3339),
	}
	if _, err := h.Store.CountProperties(r.Context()); err != nil {
		body["ok"] = false
		body["store_error"] = err.Error()
		WriteJSON(w, http.StatusServiceUnavailable, body)
		return
	}
	writeJSON(w, body)
}
