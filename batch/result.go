package batch

import (
	"github.com/zero-day-ai/bulkload/loaderr"
	"github.com/zero-day-ai/bulkload/ontology"
	"github.com/zero-day-ai/bulkload/stash"
)

// State is a step of the batch state machine.
type State string

const (
	StateValidating  State = "validating"
	StateOrdering    State = "ordering"
	StateExecuting   State = "executing"
	StateReinserting State = "reinserting"
	StateDone        State = "done"
	StateRejected    State = "rejected"
)

// ProblemKind tells what went wrong with a record or a stashed value.
type ProblemKind string

const (
	// KindFailed is a create call the backend refused or that ran out of retries.
	KindFailed ProblemKind = "failed"

	// KindBlocked is a record not created because a record it references was not.
	KindBlocked ProblemKind = "blocked"

	// KindReinsertFailed is an update call for a stashed value that failed.
	KindReinsertFailed ProblemKind = "reinsert-failed"

	// KindReinsertSkipped is a stashed value not written back because its
	// owner or one of its targets was not created.
	KindReinsertSkipped ProblemKind = "reinsert-skipped"

	// KindCancelled is work not started because the run was cancelled.
	KindCancelled ProblemKind = "cancelled"
)

// Problem is one unresolved issue of a run.
type Problem struct {
	RecordID string      `json:"record_id"`
	Property string      `json:"property,omitempty"`
	Kind     ProblemKind `json:"kind"`

	// Inherited is true when the problem comes from a dependency rather
	// than from the record itself.
	Inherited bool `json:"inherited"`

	// BlockedBy names the dependency an inherited problem comes from.
	BlockedBy string `json:"blocked_by,omitempty"`

	Err error `json:"-"`
}

// Code returns the loaderr code of the problem's error.
func (p Problem) Code() string {
	return loaderr.CodeOf(p.Err)
}

// Hint returns the recovery hint for the problem.
func (p Problem) Hint() string {
	return loaderr.HintFor(p.Code())
}

// Origin returns "inherited" or "direct".
func (p Problem) Origin() string {
	if p.Inherited {
		return "inherited"
	}
	return "direct"
}

// EntryStatus tells how a record of the creation log reached the backend.
type EntryStatus string

const (
	// EntryCreated is a record created by this run.
	EntryCreated EntryStatus = "created"

	// EntryResumed is a record created by an earlier run of the same batch.
	EntryResumed EntryStatus = "resumed"
)

// LogEntry is one record of the creation log.
type LogEntry struct {
	RecordID string      `json:"record_id"`
	GlobalID string      `json:"global_id"`
	Level    int         `json:"level"`
	Status   EntryStatus `json:"status"`
}

// Result is the outcome of a run.
type Result struct {
	RunID string `json:"run_id"`
	State State  `json:"state"`

	// IDs is the final identifier map.
	IDs map[string]string `json:"ids"`

	// CreationLog lists the records on the backend in creation order.
	CreationLog []LogEntry `json:"creation_log"`

	Problems []Problem `json:"problems"`

	// Violations is set when the schema was rejected.
	Violations []ontology.Violation `json:"violations,omitempty"`

	// Stashes lists the values removed to break cycles.
	Stashes []stash.StashRecord `json:"stashes,omitempty"`

	Levels     int `json:"levels"`
	Created    int `json:"created"`
	Resumed    int `json:"resumed"`
	Reinserted int `json:"reinserted"`
}

// OK reports whether the run finished with nothing left to fix.
func (r *Result) OK() bool {
	return r.State == StateDone && len(r.Problems) == 0
}

// Count returns the number of problems of the given kind.
func (r *Result) Count(kind ProblemKind) int {
	n := 0
	for _, p := range r.Problems {
		if p.Kind == kind {
			n++
		}
	}
	return n
}
