package orchestrator

import (
	"fmt"
	"sync"
	"time"
)

// Skip stages.
const (
	StageDecode  = "decode"
	StageScore   = "score"
	StagePersist = "persist"
)

// PairError records one investor/target pair that was skipped.
type PairError struct {
	InvestorID int64  `json:"investor_id"`
	TargetID   int64  `json:"target_id"`
	Stage      string `json:"stage"`
	Message    string `json:"error"`
	Err        error  `json:"-"`
}

func (e PairError) Error() string {
	return fmt.Sprintf("pair %d/%d: %s: %s", e.InvestorID, e.TargetID, e.Stage, e.Message)
}

func (e PairError) Unwrap() error { return e.Err }

// Report summarizes one orchestrator run. Qualified counts pairs at or
// above the admission threshold; Created and Updated count the ones that
// were persisted.
type Report struct {
	RunID     string        `json:"run_id"`
	Scored    int           `json:"scored"`
	Qualified int           `json:"qualified"`
	Created   int           `json:"created"`
	Updated   int           `json:"updated"`
	Skipped   []PairError   `json:"skipped,omitempty"`
	Elapsed   time.Duration `json:"elapsed_ns"`
}

// String renders a one-line summary of the report.
func (r *Report) String() string {
	return fmt.Sprintf("run %s: scored=%d qualified=%d created=%d updated=%d skipped=%d",
		r.RunID, r.Scored, r.Qualified, r.Created, r.Updated, len(r.Skipped))
}

// Persisted returns the number of records written.
func (r *Report) Persisted() int { return r.Created + r.Updated }

// tally accumulates a Report across concurrent workers.
type tally struct {
	mu     sync.Mutex
	report Report
}

func (t *tally) scored(qualified bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.report.Scored++
	if qualified {
		t.report.Qualified++
	}
}

func (t *tally) persisted(created bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if created {
		t.report.Created++
	} else {
		t.report.Updated++
	}
}

func (t *tally) skip(pe PairError) {
	if pe.Err != nil && pe.Message == "" {
		pe.Message = pe.Err.Error()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.report.Skipped = append(t.report.Skipped, pe)
}

func (t *tally) snapshot() *Report {
	t.mu.Lock()
	defer t.mu.Unlock()
	r := t.report
	r.Skipped = append([]PairError(nil), t.report.Skipped...)
	return &r
}
