// Package memory is an in-process Backend that enforces the same rules as a
// real store: every reference must point at an existing resource when a
// record is created, and every property must respect its cardinality.
//
// It is the reference backend for tests and for dry runs of the CLI, and it
// supports fault injection through hooks.
package memory

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/zero-day-ai/bulkload/backend"
	"github.com/zero-day-ai/bulkload/loaderr"
	"github.com/zero-day-ai/bulkload/ontology"
	"github.com/zero-day-ai/bulkload/record"
)

// CreateHook runs before a create is applied. A non-nil error is returned to
// the caller and nothing is stored.
type CreateHook func(ctx context.Context, r record.Record) error

// UpdateHook runs before an update is applied.
type UpdateHook func(ctx context.Context, globalID string, u backend.Update) error

// Backend stores records in memory.
type Backend struct {
	mu      sync.RWMutex
	records map[string]record.Record
	order   []string
	creates int
	updates int

	schema       *ontology.Schema
	idPrefix     string
	beforeCreate CreateHook
	beforeUpdate UpdateHook
	logger       *slog.Logger
}

// Option configures a Backend.
type Option func(*Backend)

// WithSchema checks cardinalities against the schema instead of the
// cardinality carried by each value. With a schema, mandatory properties that
// are missing altogether are refused too.
func WithSchema(s *ontology.Schema) Option {
	return func(b *Backend) {
		b.schema = s
	}
}

// WithIDPrefix sets the prefix of generated global ids.
func WithIDPrefix(prefix string) Option {
	return func(b *Backend) {
		b.idPrefix = prefix
	}
}

// WithCreateHook installs a hook run before each create.
func WithCreateHook(h CreateHook) Option {
	return func(b *Backend) {
		b.beforeCreate = h
	}
}

// WithUpdateHook installs a hook run before each update.
func WithUpdateHook(h UpdateHook) Option {
	return func(b *Backend) {
		b.beforeUpdate = h
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Backend) {
		b.logger = logger
	}
}

// New returns an empty backend.
func New(opts ...Option) *Backend {
	b := &Backend{
		records:  make(map[string]record.Record),
		idPrefix: "http://rdf.local/",
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

var _ backend.Backend = (*Backend)(nil)

// Seed stores a resource that exists before the batch, such as the target of
// an external reference.
func (b *Backend) Seed(globalID, class string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.records[globalID]; !ok {
		b.order = append(b.order, globalID)
	}
	b.records[globalID] = record.Record{ID: globalID, Class: class}
}

// CreateRecord implements backend.Backend.
func (b *Backend) CreateRecord(ctx context.Context, r record.Record) (string, error) {
	if b.beforeCreate != nil {
		if err := b.beforeCreate(ctx, r); err != nil {
			return "", err
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.creates++

	if r.Class == "" {
		return "", refuse(400, "resource has no class")
	}
	if err := b.checkReferences(r.Values); err != nil {
		return "", err
	}
	if err := b.checkCardinalities(r.Class, r.Values, true); err != nil {
		return "", err
	}

	id := b.idPrefix + uuid.NewString()
	stored := r.Clone()
	stored.ID = id
	b.records[id] = stored
	b.order = append(b.order, id)
	b.logger.Debug("record created", "id", id, "class", r.Class, "label", r.Label)
	return id, nil
}

// UpdateRecord implements backend.Backend.
func (b *Backend) UpdateRecord(ctx context.Context, globalID string, u backend.Update) error {
	if b.beforeUpdate != nil {
		if err := b.beforeUpdate(ctx, globalID, u); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.updates++

	r, ok := b.records[globalID]
	if !ok {
		return fmt.Errorf("%w: %s", backend.ErrNotFound, globalID)
	}
	if u.Property == "" || u.Value.Payload == nil {
		return refuse(400, "update has no value")
	}
	if err := b.checkReferences([]record.PropertyValue{u.Value}); err != nil {
		return err
	}

	updated := r.Clone()
	if u.Placeholder != "" {
		replaced := false
		for i, v := range updated.Values {
			t, isText := v.Payload.(record.FormattedText)
			if v.Property == u.Property && isText && t.Text == u.Placeholder {
				updated.Values[i] = u.Value
				replaced = true
				break
			}
		}
		if !replaced {
			return refuse(400, fmt.Sprintf("no value of %s holds the placeholder", u.Property))
		}
	} else {
		updated.Values = append(updated.Values, u.Value)
	}
	if err := b.checkCardinalities(updated.Class, updated.Values, false); err != nil {
		return err
	}
	b.records[globalID] = updated
	b.logger.Debug("record updated", "id", globalID, "property", u.Property)
	return nil
}

// checkReferences refuses values pointing at resources that do not exist.
// The caller holds the lock.
func (b *Backend) checkReferences(values []record.PropertyValue) error {
	for _, v := range values {
		var targets []string
		switch p := v.Payload.(type) {
		case record.Reference:
			targets = []string{p.Target}
		case record.FormattedText:
			targets = record.EmbeddedTargets(p.Text)
		}
		for _, t := range targets {
			if _, ok := b.records[t]; !ok {
				return refuse(400, fmt.Sprintf("property %s references unknown resource %s", v.Property, t))
			}
		}
	}
	return nil
}

// checkCardinalities refuses value counts the multiplicity does not allow.
// Missing mandatory properties are only detected with a schema, and only on
// create. The caller holds the lock.
func (b *Backend) checkCardinalities(class string, values []record.PropertyValue, create bool) error {
	counts := make(map[string]int)
	declared := make(map[string]record.Cardinality)
	for _, v := range values {
		counts[v.Property]++
		declared[v.Property] = v.Cardinality
	}

	if b.schema != nil {
		cards := b.schema.Cardinalities(class)
		if cards == nil {
			return refuse(400, fmt.Sprintf("unknown class %s", class))
		}
		for prop := range counts {
			if _, ok := cards[prop]; !ok {
				return refuse(400, fmt.Sprintf("class %s has no property %s", class, prop))
			}
		}
		declared = cards
	}

	props := make([]string, 0, len(declared))
	for p := range declared {
		props = append(props, p)
	}
	sort.Strings(props)
	for _, prop := range props {
		card, n := declared[prop], counts[prop]
		if n == 0 && (!create || b.schema == nil) {
			continue
		}
		if card.IsMandatory() && n == 0 {
			return refuse(400, fmt.Sprintf("missing mandatory property %s (cardinality %s)", prop, card))
		}
		if !card.AllowsMany() && n > 1 {
			return refuse(400, fmt.Sprintf("property %s allows one value, got %d", prop, n))
		}
	}
	return nil
}

func refuse(status int, msg string) error {
	return &loaderr.StatusError{StatusCode: status, Body: msg}
}

// Get returns the stored record with the given global id. Its references are
// global ids.
func (b *Backend) Get(globalID string) (record.Record, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	r, ok := b.records[globalID]
	if !ok {
		return record.Record{}, false
	}
	return r.Clone(), true
}

// Records returns every stored record, seeded ones included, in creation order.
func (b *Backend) Records() []record.Record {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]record.Record, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.records[id].Clone())
	}
	return out
}

// Len returns the number of stored records.
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.records)
}

// Calls returns how many create and update calls reached the store,
// refused ones included. Calls failed by a hook are not counted.
func (b *Backend) Calls() (creates, updates int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.creates, b.updates
}
