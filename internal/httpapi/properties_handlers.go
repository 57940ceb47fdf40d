package httpapi

import (
	"net/http"
	"strconv"

	"realty-engine/internal/store"
)

const (
	defaultListLimit = 200
	maxListLimit     = 1000
)

type PropertiesHandler struct {
	Store PropertyLister
}

func (h PropertiesHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			WriteError(w, r, http.StatusBadRequest, "bad_limit", "limit must be a positive integer")
			return
		}
		limit = min(n, maxListLimit)
	}

	props, err := h.Store.ListProperties(r.Context(), limit)
	if err != nil {
		WriteFailure(w, r, err)
		return
	}
	total, err := h.Store.CountProperties(r.Context())
	if err != nil {
		WriteFailure(w, r, err)
		return
	}
	if props == nil {
		props = []store.StoredProperty{}
	}
	writeJSON(w, PropertiesResponse{Total: total, Properties: props})
}
