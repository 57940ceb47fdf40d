package events

import (
	"encoding/json"
	"time"
)

const (
	RunStarted    = "run_started"
	PropertySaved = "property_saved"
	RunFinished   = "run_finished"
	RunRejected   = "run_rejected"
)

type Event struct {
	Type    string          `json:"type"`
	Version int             `json:"v"`
	At      time.Time       `json:"at"`
	RunID   string          `json:"run_id,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func MakeEvent(runID, typ string, v int, data any) string {
	var raw json.RawMessage
	if data != nil {
		b, _ := json.Marshal(data)
		raw = b
	}
	e := Event{
		Type:    typ,
		Version: v,
		At:      time.Now().UTC(),
		RunID:   runID,
		Data:    raw,
	}
	b, _ := json.Marshal(e)
	return string(b)
}
