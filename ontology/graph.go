package ontology

import (
	"fmt"
	"sort"

	"github.com/zero-day-ai/bulkload/record"
)

// Edge is one class-level reference: instances of From may point at instances
// of To through Property, with the given multiplicity.
type Edge struct {
	From        string
	Property    string
	To          string
	Cardinality record.Cardinality
}

// String formats the edge as "From -[Property 0-1]-> To".
func (e Edge) String() string {
	return fmt.Sprintf("%s -[%s %s]-> %s", e.From, e.Property, e.Cardinality, e.To)
}

// Cycle is a simple cycle of the class graph. Edge i ends where edge i+1
// starts and the last edge returns to the first edge's From.
type Cycle []Edge

// Graph returns the class-level reference multigraph, with inherited
// cardinalities and objects resolved. Properties whose object is not a class of
// the schema (scalars, value types) contribute no edge. Edges are sorted by
// class, then property.
func (s *Schema) Graph() []Edge {
	var edges []Edge
	for _, class := range s.ClassNames() {
		cards := s.Cardinalities(class)
		props := make([]string, 0, len(cards))
		for p := range cards {
			props = append(props, p)
		}
		sort.Strings(props)
		for _, p := range props {
			obj := s.ObjectOf(p)
			if _, ok := s.Class(obj); !ok {
				continue
			}
			edges = append(edges, Edge{From: class, Property: p, To: obj, Cardinality: cards[p]})
		}
	}
	return edges
}

// SimpleCycles enumerates every simple cycle of edges. Each cycle is reported
// once, starting at its smallest class name. Parallel edges between the same
// classes yield distinct cycles; a self-referencing property is a cycle of
// length one.
func SimpleCycles(edges []Edge) []Cycle {
	nodeSet := make(map[string]struct{})
	for _, e := range edges {
		nodeSet[e.From] = struct{}{}
		nodeSet[e.To] = struct{}{}
	}
	nodes := make([]string, 0, len(nodeSet))
	for n := range nodeSet {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)
	index := make(map[string]int, len(nodes))
	for i, n := range nodes {
		index[n] = i
	}
	out := make([][]Edge, len(nodes))
	for _, e := range edges {
		out[index[e.From]] = append(out[index[e.From]], e)
	}

	var cycles []Cycle
	onStack := make([]bool, len(nodes))
	var path []Edge
	var visit func(root, v int)
	visit = func(root, v int) {
		onStack[v] = true
		for _, e := range out[v] {
			w := index[e.To]
			switch {
			case w < root:
				// Cycles through smaller nodes were found from those roots.
			case w == root:
				c := make(Cycle, 0, len(path)+1)
				c = append(c, path...)
				cycles = append(cycles, append(c, e))
			case !onStack[w]:
				path = append(path, e)
				visit(root, w)
				path = path[:len(path)-1]
			}
		}
		onStack[v] = false
	}
	for root := range nodes {
		visit(root, root)
	}
	return cycles
}

// Cycles returns the simple cycles of the schema's class graph.
func (s *Schema) Cycles() []Cycle {
	return SimpleCycles(s.Graph())
}
