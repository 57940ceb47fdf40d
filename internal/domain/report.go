package domain

import "time"

type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

type Stage string

const (
	StageSession  Stage = "session"
	StageSearch   Stage = "search"
	StageSummary  Stage = "summary"
	StageDetail   Stage = "detail"
	StageValidate Stage = "validate"
	StageStore    Stage = "store"
)

// Issue is one recorded problem. Validation issues attach to the Property,
// everything else lands in the RunReport.
type Issue struct {
	Stage     Stage    `json:"stage"`
	Kind      string   `json:"kind"`
	Severity  Severity `json:"severity"`
	Code      string   `json:"code,omitempty"`
	Field     string   `json:"field,omitempty"`
	SummaryID string   `json:"summary_id,omitempty"`
	Location  string   `json:"location,omitempty"`
	Page      int      `json:"page,omitempty"`
	Message   string   `json:"message"`
}

type StreamState string

const (
	StreamInit      StreamState = "INIT"
	StreamFetching  StreamState = "FETCHING"
	StreamHasMore   StreamState = "HAS_MORE"
	StreamExhausted StreamState = "EXHAUSTED"
	StreamFailed    StreamState = "FAILED"
)

type StreamReport struct {
	Location string      `json:"location"`
	State    StreamState `json:"state"`
	Pages    int         `json:"pages"`
	Error    string      `json:"error,omitempty"`
}

// RunReport is produced by one orchestrator run and read-only afterwards.
type RunReport struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Discovered counts every summary parsed; Duplicates the ones dropped by
	// the in-run dedup set, AlreadyStored the ones the store already had.
	Discovered    int            `json:"discovered"`
	Duplicates    int            `json:"duplicates"`
	Extracted     int            `json:"extracted"`
	Validated     int            `json:"validated"`
	Persisted     int            `json:"persisted"`
	AlreadyStored int            `json:"already_stored"`
	Failed        int            `json:"failed"`
	Skipped       int            `json:"skipped"`
	PagesFailed   int            `json:"pages_failed"`
	Partial       bool           `json:"partial"`
	Streams       []StreamReport `json:"streams"`
	Issues        []Issue        `json:"issues"`
}

func (r *RunReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
