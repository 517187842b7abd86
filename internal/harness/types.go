package harness

import "github.com/roach88/sqlchef/internal/session"

// TraceEvent records one executed step and its outcome.
type TraceEvent struct {
	Seq     int           `json:"seq"`
	Op      string        `json:"op"`
	SQL     string        `json:"sql,omitempty"`
	Table   string        `json:"table,omitempty"`
	Session string        `json:"session,omitempty"`
	Rows    []session.Row `json:"rows,omitempty"`
	Count   *int          `json:"count,omitempty"`
	State   string        `json:"state"`
	Error   string        `json:"error,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true if every step met its expectations.
	Pass bool `json:"pass"`

	// Trace holds one event per executed step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors holds expectation failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends an event, numbering it after the previous one.
func (r *Result) AddTrace(event TraceEvent) {
	event.Seq = len(r.Trace) + 1
	r.Trace = append(r.Trace, event)
}
