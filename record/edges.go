package record

import (
	"regexp"
)

// markerPattern matches an embedded reference inside formatted text.
var markerPattern = regexp.MustCompile(`IRI:(.+?):IRI`)

// Marker formats id as an embedded reference marker.
func Marker(id string) string {
	return "IRI:" + id + ":IRI"
}

// EmbeddedTargets returns the ids referenced from text, in order of first
// appearance. The same id appearing twice counts once.
func EmbeddedTargets(text string) []string {
	matches := markerPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		out = append(out, m[1])
	}
	return out
}

// Edge is a reference from one record to another, derived from a direct
// reference or from a marker embedded in formatted text.
type Edge struct {
	// Source is the id of the record owning the value.
	Source string

	// Target is the referenced id.
	Target string

	// Property is the name of the owning property.
	Property string

	// Cardinality of the owning property.
	Cardinality Cardinality

	// ValueIndex is the position of the value in Source's Values slice.
	ValueIndex int

	// Embedded is true when the edge comes from formatted text.
	Embedded bool
}

// Edges returns every reference edge of r. When inBatch is non-nil, edges whose
// target is not a caller-local id of the batch (external edges) are dropped.
func Edges(r Record, inBatch map[string]struct{}) []Edge {
	var edges []Edge
	keep := func(target string) bool {
		if inBatch == nil {
			return true
		}
		_, ok := inBatch[target]
		return ok
	}
	for i, v := range r.Values {
		switch p := v.Payload.(type) {
		case Reference:
			if keep(p.Target) {
				edges = append(edges, Edge{
					Source:      r.ID,
					Target:      p.Target,
					Property:    v.Property,
					Cardinality: v.Cardinality,
					ValueIndex:  i,
				})
			}
		case FormattedText:
			for _, target := range EmbeddedTargets(p.Text) {
				if keep(target) {
					edges = append(edges, Edge{
						Source:      r.ID,
						Target:      target,
						Property:    v.Property,
						Cardinality: v.Cardinality,
						ValueIndex:  i,
						Embedded:    true,
					})
				}
			}
		}
	}
	return edges
}

// Dependencies returns the distinct in-batch ids r references, in order of first appearance.
func Dependencies(r Record, inBatch map[string]struct{}) []string {
	var deps []string
	seen := make(map[string]struct{})
	for _, e := range Edges(r, inBatch) {
		if _, ok := seen[e.Target]; ok {
			continue
		}
		seen[e.Target] = struct{}{}
		deps = append(deps, e.Target)
	}
	return deps
}
