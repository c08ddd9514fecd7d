package record

import "errors"

// Sentinel errors for record construction and validation.
var (
	// ErrInvalidCardinality indicates a cardinality string that is not one of
	// "1", "0-1", "1-n" or "0-n".
	ErrInvalidCardinality = errors.New("record: invalid cardinality")

	// ErrInvalidRecord indicates a record that is missing its id or class, or
	// carries a property value without a name or payload.
	ErrInvalidRecord = errors.New("record: invalid record")

	// ErrDuplicateRecord indicates two records in one batch share a caller-local id.
	ErrDuplicateRecord = errors.New("record: duplicate record id")
)
