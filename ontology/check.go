package ontology

import (
	"fmt"
	"sort"
	"strings"
)

// ConsistencyError lists every contradiction found in a schema.
type ConsistencyError struct {
	Issues []string
}

// Error implements the error interface.
func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInconsistentSchema, strings.Join(e.Issues, "; "))
}

// Unwrap allows errors.Is(err, ErrInconsistentSchema).
func (e *ConsistencyError) Unwrap() error {
	return ErrInconsistentSchema
}

// Check verifies that every name the schema mentions is defined exactly once,
// that cardinalities are valid, and that neither the class nor the property
// hierarchy is circular. It returns a *ConsistencyError or nil.
func (s *Schema) Check() error {
	var issues []string
	add := func(format string, args ...any) {
		issues = append(issues, fmt.Sprintf(format, args...))
	}

	classes := make(map[string]bool, len(s.Classes))
	for _, c := range s.Classes {
		switch {
		case c.Name == "":
			add("class without a name")
		case classes[c.Name]:
			add("class %q defined twice", c.Name)
		}
		classes[c.Name] = true
	}
	props := make(map[string]bool, len(s.Properties))
	for _, p := range s.Properties {
		switch {
		case p.Name == "":
			add("property without a name")
		case props[p.Name]:
			add("property %q defined twice", p.Name)
		}
		props[p.Name] = true
	}

	for _, c := range s.Classes {
		for _, super := range c.SuperClasses {
			if !classes[super] {
				add("class %q: unknown superclass %q", c.Name, super)
			}
		}
		for _, d := range c.Cardinalities {
			if !props[d.Property] {
				add("class %q: cardinality for undefined property %q", c.Name, d.Property)
			}
			if !d.Cardinality.Valid() {
				add("class %q: property %q: invalid cardinality %q", c.Name, d.Property, d.Cardinality)
			}
		}
	}
	for _, p := range s.Properties {
		for _, super := range p.SuperProperties {
			if !props[super] {
				add("property %q: unknown superproperty %q", p.Name, super)
			}
		}
	}

	classParents := make(map[string][]string, len(s.Classes))
	for _, c := range s.Classes {
		classParents[c.Name] = c.SuperClasses
	}
	for _, cycle := range inheritanceCycles(classParents) {
		add("circular class inheritance: %s", strings.Join(cycle, " -> "))
	}
	propParents := make(map[string][]string, len(s.Properties))
	for _, p := range s.Properties {
		propParents[p.Name] = p.SuperProperties
	}
	for _, cycle := range inheritanceCycles(propParents) {
		add("circular property inheritance: %s", strings.Join(cycle, " -> "))
	}

	if len(issues) > 0 {
		return &ConsistencyError{Issues: issues}
	}
	return nil
}

// inheritanceCycles returns one path per back edge found by a depth-first walk
// of the parent relation, each closed by repeating its first name.
func inheritanceCycles(parents map[string][]string) [][]string {
	const (
		white = iota
		grey
		black
	)
	names := make([]string, 0, len(parents))
	for name := range parents {
		names = append(names, name)
	}
	sort.Strings(names)

	color := make(map[string]int, len(parents))
	var path []string
	var cycles [][]string
	var visit func(name string)
	visit = func(name string) {
		color[name] = grey
		path = append(path, name)
		for _, parent := range parents[name] {
			if _, known := parents[parent]; !known {
				continue
			}
			switch color[parent] {
			case white:
				visit(parent)
			case grey:
				start := 0
				for i, n := range path {
					if n == parent {
						start = i
						break
					}
				}
				cycle := append([]string{}, path[start:]...)
				cycles = append(cycles, append(cycle, parent))
			}
		}
		path = path[:len(path)-1]
		color[name] = black
	}
	for _, name := range names {
		if color[name] == white {
			visit(name)
		}
	}
	return cycles
}
