package record

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCardinality(t *testing.T) {
	tests := []struct {
		in      string
		want    Cardinality
		wantErr bool
	}{
		{in: "1", want: ExactlyOne},
		{in: "0-1", want: ZeroOrOne},
		{in: "1-n", want: OneOrMany},
		{in: "0-n", want: ZeroOrMany},
		{in: "zero-or-many", want: ZeroOrMany},
		{in: " Exactly-One ", want: ExactlyOne},
		{in: "2", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCardinality(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidCardinality)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCardinalityClasses(t *testing.T) {
	assert.True(t, ZeroOrOne.IsFlexible())
	assert.True(t, ZeroOrMany.IsFlexible())
	assert.False(t, ExactlyOne.IsFlexible())
	assert.False(t, OneOrMany.IsFlexible())

	assert.True(t, ExactlyOne.IsMandatory())
	assert.True(t, OneOrMany.IsMandatory())

	assert.Greater(t, ZeroOrMany.Permissiveness(), ZeroOrOne.Permissiveness())
	assert.Greater(t, ZeroOrOne.Permissiveness(), ExactlyOne.Permissiveness())
	assert.Equal(t, 0, OneOrMany.Permissiveness())
}

func TestRecordValidate(t *testing.T) {
	tests := []struct {
		name    string
		rec     *Record
		wantErr error
	}{
		{
			name: "valid",
			rec:  New("a", "Book").WithValue(NewScalar("title", ExactlyOne, "x")),
		},
		{
			name:    "missing id",
			rec:     New("", "Book"),
			wantErr: ErrInvalidRecord,
		},
		{
			name:    "missing class",
			rec:     New("a", ""),
			wantErr: ErrInvalidRecord,
		},
		{
			name:    "bad cardinality",
			rec:     New("a", "Book").WithValue(PropertyValue{Property: "p", Cardinality: "7", Payload: Scalar{}}),
			wantErr: ErrInvalidCardinality,
		},
		{
			name:    "nil payload",
			rec:     New("a", "Book").WithValue(PropertyValue{Property: "p", Cardinality: ZeroOrOne}),
			wantErr: ErrInvalidRecord,
		},
		{
			name:    "empty reference",
			rec:     New("a", "Book").WithValue(NewReference("p", ZeroOrOne, "")),
			wantErr: ErrInvalidRecord,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rec.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestValidateBatchRejectsDuplicates(t *testing.T) {
	recs := []Record{*New("a", "Book"), *New("a", "Book")}
	assert.ErrorIs(t, ValidateBatch(recs), ErrDuplicateRecord)
}

func TestCloneDoesNotShareValues(t *testing.T) {
	orig := New("a", "Book").WithValue(NewScalar("title", ExactlyOne, "x"))
	cp := orig.Clone()
	cp.Values[0] = NewScalar("title", ExactlyOne, "y")

	assert.Equal(t, Scalar{Value: "x"}, orig.Values[0].Payload)
}

func TestEmbeddedTargets(t *testing.T) {
	text := `<text>see <a href="IRI:b:IRI">b</a> and <a href="IRI:c:IRI">c</a> and again IRI:b:IRI</text>`
	assert.Equal(t, []string{"b", "c"}, EmbeddedTargets(text))
	assert.Nil(t, EmbeddedTargets("no links here"))
}

func TestEdges(t *testing.T) {
	rec := New("a", "Book").
		WithValue(NewScalar("title", ExactlyOne, "x")).
		WithValue(NewReference("author", ZeroOrOne, "b")).
		WithValue(NewReference("publisher", ZeroOrOne, "http://rdfh.ch/0001/external")).
		WithValue(NewText("note", ZeroOrMany, "IRI:c:IRI IRI:b:IRI IRI:zzz:IRI"))

	inBatch := map[string]struct{}{"a": {}, "b": {}, "c": {}}

	t.Run("in batch only", func(t *testing.T) {
		edges := Edges(*rec, inBatch)
		require.Len(t, edges, 3)

		assert.Equal(t, Edge{Source: "a", Target: "b", Property: "author", Cardinality: ZeroOrOne, ValueIndex: 1}, edges[0])
		assert.Equal(t, "c", edges[1].Target)
		assert.True(t, edges[1].Embedded)
		assert.Equal(t, 3, edges[1].ValueIndex)
		assert.Equal(t, "b", edges[2].Target)
		assert.True(t, edges[2].Embedded)
	})

	t.Run("all edges", func(t *testing.T) {
		assert.Len(t, Edges(*rec, nil), 5)
	})

	t.Run("dependencies are distinct", func(t *testing.T) {
		assert.Equal(t, []string{"b", "c"}, Dependencies(*rec, inBatch))
	})
}

func TestResolveReferences(t *testing.T) {
	ids := map[string]string{"b": "http://rdfh.ch/b", "c": "http://rdfh.ch/c"}
	res := ResolverFunc(func(id string) string {
		if g, ok := ids[id]; ok {
			return g
		}
		return id
	})

	rec := New("a", "Book").
		WithValue(NewReference("author", ZeroOrOne, "b")).
		WithValue(NewReference("publisher", ZeroOrOne, "http://rdfh.ch/external")).
		WithValue(NewText("note", ZeroOrMany, `<a href="IRI:c:IRI">c</a>`))

	got := ResolveReferences(*rec, res)

	assert.Equal(t, Reference{Target: "http://rdfh.ch/b"}, got.Values[0].Payload)
	assert.Equal(t, Reference{Target: "http://rdfh.ch/external"}, got.Values[1].Payload)
	assert.Equal(t, FormattedText{Text: `<a href="IRI:http://rdfh.ch/c:IRI">c</a>`}, got.Values[2].Payload)

	// the input is left untouched
	assert.Equal(t, Reference{Target: "b"}, rec.Values[0].Payload)
}

func TestPropertyValueJSON(t *testing.T) {
	in := []PropertyValue{
		NewScalar("title", ExactlyOne, "Moby Dick"),
		NewReference("author", ZeroOrOne, "b"),
		NewText("note", ZeroOrMany, "IRI:c:IRI"),
	}

	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"reference":"b"`)

	var out []PropertyValue
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestPropertyValueJSONRejectsAmbiguousPayload(t *testing.T) {
	var v PropertyValue
	err := json.Unmarshal([]byte(`{"property":"p","cardinality":"0-1","scalar":"x","reference":"y"}`), &v)
	assert.ErrorIs(t, err, ErrInvalidRecord)

	err = json.Unmarshal([]byte(`{"property":"p","cardinality":"0-1"}`), &v)
	assert.ErrorIs(t, err, ErrInvalidRecord)
}

func TestDecodeBatch(t *testing.T) {
	input := `{"records": [
		{"id": "a", "class": "Book", "label": "A", "values": [
			{"property": "author", "cardinality": "0-1", "reference": "b"}
		]},
		{"id": "b", "class": "Person", "label": "B", "values": []}
	]}`

	recs, err := DecodeBatch(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "Book", recs[0].Class)
	assert.Equal(t, Reference{Target: "b"}, recs[0].Values[0].Payload)

	_, err = DecodeBatch(strings.NewReader(`{"records": [{"id": "a", "class": "X"}, {"id": "a", "class": "X"}]}`))
	assert.ErrorIs(t, err, ErrDuplicateRecord)
}
