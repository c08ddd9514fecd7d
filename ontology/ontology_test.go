package ontology

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero-day-ai/bulkload/record"
)

func decl(property string, card record.Cardinality) CardinalityDecl {
	return CardinalityDecl{Property: property, Cardinality: card}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		schema     *Schema
		wantCycles int
		want       []Violation
	}{
		{
			name: "mandatory edge on two-class cycle",
			schema: New(
				[]Class{
					{Name: "A", Cardinalities: []CardinalityDecl{decl("hasB", record.ExactlyOne)}},
					{Name: "B", Cardinalities: []CardinalityDecl{decl("hasA", record.ZeroOrOne)}},
				},
				[]Property{{Name: "hasB", Object: "B"}, {Name: "hasA", Object: "A"}},
			),
			wantCycles: 1,
			want:       []Violation{{Class: "A", Property: "hasB", Target: "B", Cardinality: record.ExactlyOne}},
		},
		{
			name: "flexible three-class cycle",
			schema: New(
				[]Class{
					{Name: "A", Cardinalities: []CardinalityDecl{decl("toB", record.ZeroOrOne)}},
					{Name: "B", Cardinalities: []CardinalityDecl{decl("toC", record.ZeroOrOne)}},
					{Name: "C", Cardinalities: []CardinalityDecl{decl("toA", record.ZeroOrMany)}},
				},
				[]Property{{Name: "toB", Object: "B"}, {Name: "toC", Object: "C"}, {Name: "toA", Object: "A"}},
			),
			wantCycles: 1,
		},
		{
			name: "mandatory self reference",
			schema: New(
				[]Class{{Name: "Part", Cardinalities: []CardinalityDecl{decl("partOf", record.OneOrMany)}}},
				[]Property{{Name: "partOf", Object: "Part"}},
			),
			wantCycles: 1,
			want:       []Violation{{Class: "Part", Property: "partOf", Target: "Part", Cardinality: record.OneOrMany}},
		},
		{
			name: "flexible self reference",
			schema: New(
				[]Class{{Name: "Part", Cardinalities: []CardinalityDecl{decl("partOf", record.ZeroOrOne)}}},
				[]Property{{Name: "partOf", Object: "Part"}},
			),
			wantCycles: 1,
		},
		{
			name: "parallel edges",
			schema: New(
				[]Class{
					{Name: "A", Cardinalities: []CardinalityDecl{decl("p1", record.ZeroOrOne), decl("p2", record.ExactlyOne)}},
					{Name: "B", Cardinalities: []CardinalityDecl{decl("back", record.ZeroOrMany)}},
				},
				[]Property{{Name: "p1", Object: "B"}, {Name: "p2", Object: "B"}, {Name: "back", Object: "A"}},
			),
			wantCycles: 2,
			want:       []Violation{{Class: "A", Property: "p2", Target: "B", Cardinality: record.ExactlyOne}},
		},
		{
			name: "acyclic",
			schema: New(
				[]Class{
					{Name: "Book", Cardinalities: []CardinalityDecl{decl("hasAuthor", record.OneOrMany), decl("title", record.ExactlyOne)}},
					{Name: "Person"},
				},
				[]Property{{Name: "hasAuthor", Object: "Person"}, {Name: "title"}},
			),
			wantCycles: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, tt.schema.Cycles(), tt.wantCycles)
			got, err := Validate(tt.schema)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInheritedCardinalitiesAndObjects(t *testing.T) {
	s := New(
		[]Class{
			{Name: "Work", Cardinalities: []CardinalityDecl{decl("hasCreator", record.ExactlyOne)}},
			{Name: "Book", SuperClasses: []string{"Work"}, Cardinalities: []CardinalityDecl{decl("hasEditor", record.ZeroOrOne)}},
			{Name: "Person", Cardinalities: []CardinalityDecl{decl("favourite", record.ZeroOrMany)}},
		},
		[]Property{
			{Name: "hasCreator", Object: "Person"},
			{Name: "hasEditor", SuperProperties: []string{"hasCreator"}},
			{Name: "favourite", Object: "Book"},
		},
	)

	assert.Equal(t, map[string]record.Cardinality{
		"hasCreator": record.ExactlyOne,
		"hasEditor":  record.ZeroOrOne,
	}, s.Cardinalities("Book"))
	assert.Equal(t, "Person", s.ObjectOf("hasEditor"))
	assert.True(t, s.IsSubclassOf("Book", "Work"))
	assert.False(t, s.IsSubclassOf("Work", "Book"))
	assert.Nil(t, s.Cardinalities("Missing"))

	got, err := Validate(s)
	require.NoError(t, err)
	assert.Equal(t, []Violation{{Class: "Book", Property: "hasCreator", Target: "Person", Cardinality: record.ExactlyOne}}, got)
}

func TestSubclassOverridesCardinality(t *testing.T) {
	s := New(
		[]Class{
			{Name: "Base", Cardinalities: []CardinalityDecl{decl("link", record.ExactlyOne)}},
			{Name: "Loose", SuperClasses: []string{"Base"}, Cardinalities: []CardinalityDecl{decl("link", record.ZeroOrOne)}},
		},
		[]Property{{Name: "link", Object: "Loose"}},
	)
	assert.Equal(t, record.ZeroOrOne, s.Cardinalities("Loose")["link"])
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name   string
		schema *Schema
		issue  string
	}{
		{
			name:   "unknown superclass",
			schema: New([]Class{{Name: "A", SuperClasses: []string{"Ghost"}}}, nil),
			issue:  `class "A": unknown superclass "Ghost"`,
		},
		{
			name:   "undefined property",
			schema: New([]Class{{Name: "A", Cardinalities: []CardinalityDecl{decl("nope", record.ZeroOrOne)}}}, nil),
			issue:  `class "A": cardinality for undefined property "nope"`,
		},
		{
			name: "circular class inheritance",
			schema: New([]Class{
				{Name: "A", SuperClasses: []string{"B"}},
				{Name: "B", SuperClasses: []string{"A"}},
			}, nil),
			issue: "circular class inheritance: A -> B -> A",
		},
		{
			name: "circular property inheritance",
			schema: New(nil, []Property{
				{Name: "p", SuperProperties: []string{"p"}},
			}),
			issue: "circular property inheritance: p -> p",
		},
		{
			name:   "duplicate class",
			schema: New([]Class{{Name: "A"}, {Name: "A"}}, nil),
			issue:  `class "A" defined twice`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.schema.Check()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInconsistentSchema)
			var ce *ConsistencyError
			require.ErrorAs(t, err, &ce)
			assert.Contains(t, ce.Issues, tt.issue)

			_, verr := Validate(tt.schema)
			assert.ErrorIs(t, verr, ErrInconsistentSchema)
		})
	}
}

const sampleSchema = `
classes:
  - name: Book
    cardinalities:
      - property: hasAuthor
        cardinality: one-or-many
      - property: description
        cardinality: zero-or-one
  - name: Person
    cardinalities:
      - property: wrote
        cardinality: 0-n
properties:
  - name: hasAuthor
    object: Person
  - name: wrote
    object: Book
  - name: description
`

func TestDecodeSchema(t *testing.T) {
	s, err := DecodeSchema(strings.NewReader(sampleSchema))
	require.NoError(t, err)
	require.Len(t, s.Classes, 2)
	assert.Equal(t, record.OneOrMany, s.Cardinalities("Book")["hasAuthor"])
	assert.Equal(t, record.ZeroOrMany, s.Cardinalities("Person")["wrote"])

	edges := s.Graph()
	assert.Equal(t, []Edge{
		{From: "Book", Property: "hasAuthor", To: "Person", Cardinality: record.OneOrMany},
		{From: "Person", Property: "wrote", To: "Book", Cardinality: record.ZeroOrMany},
	}, edges)

	got, err := Validate(s)
	require.NoError(t, err)
	assert.Equal(t, []Violation{{Class: "Book", Property: "hasAuthor", Target: "Person", Cardinality: record.OneOrMany}}, got)
}

func TestDecodeSchemaRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "empty", doc: ""},
		{name: "unknown field", doc: "classes: []\nversion: 2\n"},
		{name: "bad cardinality", doc: "classes:\n  - name: A\n    cardinalities:\n      - property: p\n        cardinality: some\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeSchema(strings.NewReader(tt.doc))
			assert.ErrorIs(t, err, ErrInvalidSchema)
		})
	}
}

func TestLoadSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleSchema), 0o644))

	s, err := LoadSchema(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Book", "Person"}, s.ClassNames())

	_, err = LoadSchema(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSimpleCyclesTerminatesOnDenseGraph(t *testing.T) {
	var edges []Edge
	names := []string{"A", "B", "C", "D"}
	for _, from := range names {
		for _, to := range names {
			edges = append(edges, Edge{From: from, Property: "p", To: to, Cardinality: record.ZeroOrMany})
		}
	}
	// Complete digraph on 4 nodes with self-loops: 4 loops + 6 + 8 + 6 = 24 cycles.
	assert.Len(t, SimpleCycles(edges), 24)
}
