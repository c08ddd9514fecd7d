// Package record defines the in-memory model of a batch: records, their
// property values and the reference edges derived from them.
//
// # Payloads
//
// A PropertyValue carries exactly one Payload variant:
//
//   - Scalar: a plain value
//   - Reference: the id of another record (caller-local or global)
//   - FormattedText: markup that may embed references as IRI:<id>:IRI markers
//
// Callers switch on the concrete type:
//
//	switch p := v.Payload.(type) {
//	case record.Reference:
//	    fmt.Println("points at", p.Target)
//	case record.FormattedText:
//	    fmt.Println("mentions", record.EmbeddedTargets(p.Text))
//	}
//
// # Edges
//
// Edges derives the reference graph of a record. Passing the set of batch ids
// restricts the result to in-batch targets; references to anything else are
// external and assumed to exist on the backend already.
//
// # Resolution
//
// Before a record is sent to the backend, ResolveReferences swaps every
// caller-local id for the global id issued by the backend.
package record
