package ontology

import "errors"

var (
	// ErrInvalidSchema indicates a schema document that cannot be decoded.
	ErrInvalidSchema = errors.New("ontology: invalid schema")

	// ErrInconsistentSchema indicates a schema that decodes but contradicts
	// itself: unknown names, duplicates or circular inheritance.
	ErrInconsistentSchema = errors.New("ontology: inconsistent schema")
)
