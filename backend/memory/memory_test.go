package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero-day-ai/bulkload/backend"
	"github.com/zero-day-ai/bulkload/loaderr"
	"github.com/zero-day-ai/bulkload/ontology"
	"github.com/zero-day-ai/bulkload/record"
)

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var se *loaderr.StatusError
	require.ErrorAs(t, err, &se)
	return se.StatusCode
}

func TestCreateEnforcesReferentialIntegrity(t *testing.T) {
	ctx := context.Background()
	b := New()

	dangling := record.New("a", "Book").WithValue(record.NewReference("hasAuthor", record.ExactlyOne, "http://rdf.local/nobody"))
	_, err := b.CreateRecord(ctx, *dangling)
	require.Error(t, err)
	assert.Equal(t, 400, statusOf(t, err))
	assert.False(t, loaderr.IsTransient(err))

	authorID, err := b.CreateRecord(ctx, *record.New("p", "Person").WithLabel("Ada"))
	require.NoError(t, err)
	assert.Contains(t, authorID, "http://rdf.local/")

	book := record.New("a", "Book").
		WithValue(record.NewReference("hasAuthor", record.ExactlyOne, authorID)).
		WithValue(record.NewText("note", record.ZeroOrOne, "by "+record.Marker(authorID)))
	bookID, err := b.CreateRecord(ctx, *book)
	require.NoError(t, err)

	stored, ok := b.Get(bookID)
	require.True(t, ok)
	assert.Equal(t, bookID, stored.ID)
	assert.Len(t, stored.Values, 2)
	assert.Equal(t, 2, b.Len())

	creates, updates := b.Calls()
	assert.Equal(t, 3, creates)
	assert.Equal(t, 0, updates)
}

func TestCreateRejectsEmbeddedUnknownTarget(t *testing.T) {
	b := New()
	r := record.New("a", "Note").WithValue(record.NewText("body", record.ExactlyOne, "see "+record.Marker("x")))
	_, err := b.CreateRecord(context.Background(), *r)
	assert.Equal(t, 400, statusOf(t, err))
}

func TestCreateEnforcesCardinality(t *testing.T) {
	b := New()
	b.Seed("g1", "Person")
	b.Seed("g2", "Person")

	r := record.New("a", "Book").
		WithValue(record.NewReference("hasAuthor", record.ZeroOrOne, "g1")).
		WithValue(record.NewReference("hasAuthor", record.ZeroOrOne, "g2"))
	_, err := b.CreateRecord(context.Background(), *r)
	assert.Equal(t, 400, statusOf(t, err))

	many := record.New("a", "Book").
		WithValue(record.NewReference("hasAuthor", record.OneOrMany, "g1")).
		WithValue(record.NewReference("hasAuthor", record.OneOrMany, "g2"))
	_, err = b.CreateRecord(context.Background(), *many)
	assert.NoError(t, err)
}

func TestCreateWithSchema(t *testing.T) {
	schema := ontology.New(
		[]ontology.Class{
			{Name: "Book", Cardinalities: []ontology.CardinalityDecl{
				{Property: "hasAuthor", Cardinality: record.ExactlyOne},
				{Property: "note", Cardinality: record.ZeroOrOne},
			}},
			{Name: "Person"},
		},
		[]ontology.Property{{Name: "hasAuthor", Object: "Person"}, {Name: "note"}},
	)
	b := New(WithSchema(schema))
	b.Seed("g1", "Person")
	ctx := context.Background()

	_, err := b.CreateRecord(ctx, *record.New("a", "Book").WithValue(record.NewScalar("note", record.ZeroOrOne, "x")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing mandatory property hasAuthor")

	_, err = b.CreateRecord(ctx, *record.New("a", "Magazine"))
	assert.Contains(t, err.Error(), "unknown class")

	_, err = b.CreateRecord(ctx, *record.New("a", "Book").
		WithValue(record.NewReference("hasAuthor", record.ExactlyOne, "g1")).
		WithValue(record.NewScalar("pages", record.ExactlyOne, "12")))
	assert.Contains(t, err.Error(), "has no property pages")

	_, err = b.CreateRecord(ctx, *record.New("a", "Book").WithValue(record.NewReference("hasAuthor", record.ExactlyOne, "g1")))
	assert.NoError(t, err)
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	b := New()
	b.Seed("target", "Person")

	id, err := b.CreateRecord(ctx, *record.New("a", "Book").
		WithValue(record.NewText("note", record.ZeroOrOne, "stash:token")))
	require.NoError(t, err)

	t.Run("adds reference", func(t *testing.T) {
		err := b.UpdateRecord(ctx, id, backend.Update{
			Class:    "Book",
			Property: "hasAuthor",
			Value:    record.NewReference("hasAuthor", record.ZeroOrOne, "target"),
		})
		require.NoError(t, err)
	})

	t.Run("second value refused for zero-or-one", func(t *testing.T) {
		err := b.UpdateRecord(ctx, id, backend.Update{
			Property: "hasAuthor",
			Value:    record.NewReference("hasAuthor", record.ZeroOrOne, "target"),
		})
		assert.Equal(t, 400, statusOf(t, err))
	})

	t.Run("replaces placeholder", func(t *testing.T) {
		err := b.UpdateRecord(ctx, id, backend.Update{
			Property:    "note",
			Placeholder: "stash:token",
			Value:       record.NewText("note", record.ZeroOrOne, "about "+record.Marker("target")),
		})
		require.NoError(t, err)
	})

	t.Run("missing placeholder", func(t *testing.T) {
		err := b.UpdateRecord(ctx, id, backend.Update{
			Property:    "note",
			Placeholder: "stash:other",
			Value:       record.NewText("note", record.ZeroOrOne, "x"),
		})
		assert.Equal(t, 400, statusOf(t, err))
	})

	t.Run("unknown record", func(t *testing.T) {
		err := b.UpdateRecord(ctx, "nope", backend.Update{
			Property: "note",
			Value:    record.NewText("note", record.ZeroOrOne, "x"),
		})
		assert.ErrorIs(t, err, backend.ErrNotFound)
	})

	stored, ok := b.Get(id)
	require.True(t, ok)
	require.Len(t, stored.Values, 2)
	assert.Equal(t, record.FormattedText{Text: "about " + record.Marker("target")}, stored.Values[0].Payload)
	assert.Equal(t, record.Reference{Target: "target"}, stored.Values[1].Payload)
}

func TestHooks(t *testing.T) {
	boom := errors.New("boom")
	var seen []string
	b := New(
		WithCreateHook(func(ctx context.Context, r record.Record) error {
			seen = append(seen, r.ID)
			if r.ID == "bad" {
				return boom
			}
			return nil
		}),
		WithUpdateHook(func(ctx context.Context, id string, u backend.Update) error {
			return &loaderr.StatusError{StatusCode: 503}
		}),
	)

	_, err := b.CreateRecord(context.Background(), *record.New("bad", "Thing"))
	assert.ErrorIs(t, err, boom)
	id, err := b.CreateRecord(context.Background(), *record.New("good", "Thing"))
	require.NoError(t, err)

	err = b.UpdateRecord(context.Background(), id, backend.Update{Property: "p", Value: record.NewScalar("p", record.ZeroOrMany, "v")})
	assert.True(t, loaderr.IsTransient(err))

	assert.Equal(t, []string{"bad", "good"}, seen)
	creates, updates := b.Calls()
	assert.Equal(t, 1, creates)
	assert.Equal(t, 0, updates)
}

func TestConcurrentCreates(t *testing.T) {
	b := New(WithIDPrefix("g:"))
	var wg sync.WaitGroup
	ids := make([]string, 50)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := b.CreateRecord(context.Background(), *record.New(fmt.Sprintf("r%d", i), "Thing"))
			assert.NoError(t, err)
			ids[i] = id
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, b.Len())
	assert.Len(t, b.Records(), 50)
	unique := make(map[string]bool)
	for _, id := range ids {
		unique[id] = true
	}
	assert.Len(t, unique, 50)
}
