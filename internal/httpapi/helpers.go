package httpapi

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"

	"github.com/phuslu/log"
)

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("response body not fully written")
	}
}

// methodMux dispatches on r.Method and answers anything else with 405 and
// an Allow header listing the accepted verbs.
func methodMux(m map[string]http.HandlerFunc) http.HandlerFunc {
	allowed := make([]string, 0, len(m))
	for verb := range m {
		allowed = append(allowed, verb)
	}
	sort.Strings(allowed)
	allow := strings.Join(allowed, ", ")

	return func(w http.ResponseWriter, r *http.Request) {
		h, ok := m[r.Method]
		if !ok {
			w.Header().Set("Allow", allow)
			WriteError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", r.Method+" not allowed on "+r.URL.Path)
			return
		}
		h(w, r)
	}
}
