// Package stash orders a batch of records for creation and breaks reference
// cycles by temporarily removing flexible values.
//
// Plan runs a fixpoint loop over the batch. Every scan places the records
// whose in-batch references all point at records placed by earlier scans;
// those records form one level. When a scan places nothing, the pending
// records contain a cycle, and the planner stashes the values of one record
// that point at the next record on that cycle. A stashed direct reference is
// dropped from the record. A stashed formatted text is replaced as a whole by
// a placeholder token, so every reference embedded in it goes with it.
//
// After all records are created, each StashRecord is resolved against the
// identifier map and written back with an update call.
package stash

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"

	"github.com/zero-day-ai/bulkload/record"
)

// StashRecord is a value removed from a record to break a cycle.
type StashRecord struct {
	// RecordID is the caller-local id of the record owning the value.
	RecordID string `json:"record_id"`

	// Property is the property of the value.
	Property string `json:"property"`

	// ValueIndex is the position of the value in the input record.
	ValueIndex int `json:"value_index"`

	// Placeholder is the token standing in for a stashed text value. It is
	// empty for stashed direct references, which are dropped instead.
	Placeholder string `json:"placeholder,omitempty"`

	// Original is the value as it appeared in the input.
	Original record.PropertyValue `json:"original"`

	// Targets lists the in-batch ids the value referenced.
	Targets []string `json:"targets"`
}

// Key identifies the stash record within its batch.
func (s StashRecord) Key() string {
	return s.RecordID + "/" + s.Property + "/" + strconv.Itoa(s.ValueIndex)
}

// IsText reports whether the stashed value is formatted text.
func (s StashRecord) IsText() bool {
	_, ok := s.Original.Payload.(record.FormattedText)
	return ok
}

// Resolve rebuilds the original value with every reference translated by res.
func (s StashRecord) Resolve(res record.Resolver) record.PropertyValue {
	return record.ResolveValue(s.Original, res)
}

// Placeholder returns the deterministic token that replaces a stashed text
// value at the given position of a record.
func Placeholder(recordID, property string, index int, text string) string {
	canonical := fmt.Sprintf("%s|%s|%d|%s", recordID, property, index, text)
	hash := sha256.Sum256([]byte(canonical))
	return "stash:" + base64.RawURLEncoding.EncodeToString(hash[:12])
}

// Plan is the output of the planner.
type Plan struct {
	// Levels holds the records to create, grouped by scan. Records of one
	// level never reference each other and only reference records of
	// earlier levels (or ids outside the batch). Stashed values are already
	// removed or replaced by placeholders.
	Levels [][]record.Record

	// Stashes lists the removed values in the order they were stashed.
	Stashes []StashRecord
}

// Order returns the records of all levels in creation order.
func (p *Plan) Order() []record.Record {
	var out []record.Record
	for _, level := range p.Levels {
		out = append(out, level...)
	}
	return out
}

// Len returns the number of records in the plan.
func (p *Plan) Len() int {
	n := 0
	for _, level := range p.Levels {
		n += len(level)
	}
	return n
}

// StashesFor returns the stash records owned by recordID.
func (p *Plan) StashesFor(recordID string) []StashRecord {
	var out []StashRecord
	for _, s := range p.Stashes {
		if s.RecordID == recordID {
			out = append(out, s)
		}
	}
	return out
}
