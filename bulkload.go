package bulkload

import (
	"context"

	"github.com/zero-day-ai/bulkload/backend"
	"github.com/zero-day-ai/bulkload/batch"
	"github.com/zero-day-ai/bulkload/loaderr"
	"github.com/zero-day-ai/bulkload/ontology"
	"github.com/zero-day-ai/bulkload/record"
	"github.com/zero-day-ai/bulkload/stash"
)

// Result is the outcome of a run: the identifier map, the creation log and
// the problem list.
type Result = batch.Result

// Run loads records into b. A nil schema skips the schema cycle check.
//
// The error is non-nil only when the batch was rejected before any call or
// the run was cancelled; see IsRejected. Failures of single records are
// reported in the result's problem list.
func Run(ctx context.Context, b backend.Backend, records []record.Record, schema *ontology.Schema, opts ...Option) (*Result, error) {
	o := batch.Options{Backend: b, Schema: schema}
	for _, opt := range opts {
		opt(&o)
	}
	c, err := batch.New(o)
	if err != nil {
		return nil, err
	}
	return c.Run(ctx, records)
}

// Plan orders records for creation without calling any backend.
func Plan(records []record.Record) (*stash.Plan, error) {
	return stash.Order(records)
}

// Check returns the mandatory properties of schema that sit on reference cycles.
func Check(schema *ontology.Schema) ([]ontology.Violation, error) {
	return ontology.Validate(schema)
}

// IsRejected reports whether err rejected a batch before any backend call.
func IsRejected(err error) bool {
	switch loaderr.CodeOf(err) {
	case loaderr.CodeSchemaCycleViolation, loaderr.CodeUnstashableCycle, loaderr.CodeInvalidInput,
		loaderr.CodeCheckpointUnavailable:
		return true
	}
	return false
}
