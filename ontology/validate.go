package ontology

import (
	"fmt"
	"sort"

	"github.com/zero-day-ai/bulkload/record"
)

// Violation is a mandatory property on a class-level reference cycle.
type Violation struct {
	Class       string             `json:"class"`
	Property    string             `json:"property"`
	Target      string             `json:"target"`
	Cardinality record.Cardinality `json:"cardinality"`
}

// String formats the violation for reports.
func (v Violation) String() string {
	return fmt.Sprintf("%s.%s -> %s has cardinality %s on a reference cycle", v.Class, v.Property, v.Target, v.Cardinality)
}

// Violations returns every mandatory edge found on any of cycles, without
// duplicates, sorted by class, property and target.
func Violations(cycles []Cycle) []Violation {
	seen := make(map[Violation]struct{})
	var out []Violation
	for _, c := range cycles {
		for _, e := range c {
			if !e.Cardinality.IsMandatory() {
				continue
			}
			v := Violation{Class: e.From, Property: e.Property, Target: e.To, Cardinality: e.Cardinality}
			if _, dup := seen[v]; dup {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Class != b.Class {
			return a.Class < b.Class
		}
		if a.Property != b.Property {
			return a.Property < b.Property
		}
		return a.Target < b.Target
	})
	return out
}

// Validate checks the schema for consistency and returns the mandatory
// properties that sit on a reference cycle. An empty list means every cycle
// can be broken by stashing flexible values. A non-nil error means the schema
// is inconsistent and no cycle analysis was done.
func Validate(s *Schema) ([]Violation, error) {
	if err := s.Check(); err != nil {
		return nil, err
	}
	return Violations(s.Cycles()), nil
}
