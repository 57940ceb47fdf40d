package httpapi

import "net/http"

type RunsHandler struct {
	Runs RunController
}

func (h RunsHandler) Start(w http.ResponseWriter, r *http.Request) {
	if !h.Runs.Trigger() {
		WriteJSON(w, http.StatusConflict, RunStarted{OK: false, Msg: "already running"})
		return
	}
	WriteJSON(w, http.StatusAccepted, RunStarted{OK: true})
}

func (h RunsHandler) Last(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.Runs.Status())
}
