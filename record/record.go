package record

import (
	"fmt"
)

// Payload is the content of a single property value. It is one of Scalar,
// Reference or FormattedText; the set is closed.
type Payload interface {
	isPayload()
}

// Scalar is a plain value that never references another record.
type Scalar struct {
	Value string `json:"value"`
}

// Reference points at another record, either by its caller-local id (when the
// target is part of the batch) or by a global id that already exists on the backend.
type Reference struct {
	Target string `json:"target"`
}

// FormattedText is a markup payload that may embed references to other records
// using the IRI:<id>:IRI marker.
type FormattedText struct {
	Text string `json:"text"`
}

func (Scalar) isPayload()        {}
func (Reference) isPayload()     {}
func (FormattedText) isPayload() {}

// PropertyValue is one value of one property of a record. A property with
// several values appears as several PropertyValues sharing the same name.
type PropertyValue struct {
	// Property is the property name (e.g., "onto:hasAuthor").
	Property string `json:"property"`

	// Cardinality is the multiplicity the schema declares for Property on the
	// owning record's class.
	Cardinality Cardinality `json:"cardinality"`

	// Payload is the value itself.
	Payload Payload `json:"-"`
}

// NewScalar creates a scalar property value.
func NewScalar(property string, card Cardinality, value string) PropertyValue {
	return PropertyValue{Property: property, Cardinality: card, Payload: Scalar{Value: value}}
}

// NewReference creates a direct reference property value.
func NewReference(property string, card Cardinality, target string) PropertyValue {
	return PropertyValue{Property: property, Cardinality: card, Payload: Reference{Target: target}}
}

// NewText creates a formatted text property value.
func NewText(property string, card Cardinality, text string) PropertyValue {
	return PropertyValue{Property: property, Cardinality: card, Payload: FormattedText{Text: text}}
}

// Record is a single resource to be created on the backend.
type Record struct {
	// ID is the caller-local id, unique within the batch.
	ID string `json:"id"`

	// Class is the class (resource type) of the record.
	Class string `json:"class"`

	// Label is a human-readable label.
	Label string `json:"label"`

	// Values holds the property values in input order.
	Values []PropertyValue `json:"values"`
}

// New creates a record with the given id and class.
func New(id, class string) *Record {
	return &Record{ID: id, Class: class}
}

// WithLabel sets the label and returns the record for method chaining.
func (r *Record) WithLabel(label string) *Record {
	r.Label = label
	return r
}

// WithValue appends a property value and returns the record for method chaining.
func (r *Record) WithValue(v PropertyValue) *Record {
	r.Values = append(r.Values, v)
	return r
}

// Clone returns a copy of the record that shares no slices with r.
// Payloads are value types, so a shallow copy of each PropertyValue is enough.
func (r Record) Clone() Record {
	out := r
	out.Values = make([]PropertyValue, len(r.Values))
	copy(out.Values, r.Values)
	return out
}

// Validate checks that the record has all required fields set correctly.
func (r *Record) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidRecord)
	}
	if r.Class == "" {
		return fmt.Errorf("%w: record %q: class is required", ErrInvalidRecord, r.ID)
	}
	for i, v := range r.Values {
		if v.Property == "" {
			return fmt.Errorf("%w: record %q: value %d has no property name", ErrInvalidRecord, r.ID, i)
		}
		if !v.Cardinality.Valid() {
			return fmt.Errorf("%w: record %q: property %q: %q", ErrInvalidCardinality, r.ID, v.Property, v.Cardinality)
		}
		if v.Payload == nil {
			return fmt.Errorf("%w: record %q: property %q has no payload", ErrInvalidRecord, r.ID, v.Property)
		}
		if ref, ok := v.Payload.(Reference); ok && ref.Target == "" {
			return fmt.Errorf("%w: record %q: property %q references an empty id", ErrInvalidRecord, r.ID, v.Property)
		}
	}
	return nil
}

// ValidateBatch validates every record and rejects duplicate ids.
func ValidateBatch(records []Record) error {
	seen := make(map[string]struct{}, len(records))
	for i := range records {
		if err := records[i].Validate(); err != nil {
			return err
		}
		if _, dup := seen[records[i].ID]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateRecord, records[i].ID)
		}
		seen[records[i].ID] = struct{}{}
	}
	return nil
}

// IDs returns the set of caller-local ids in the batch.
func IDs(records []Record) map[string]struct{} {
	ids := make(map[string]struct{}, len(records))
	for _, r := range records {
		ids[r.ID] = struct{}{}
	}
	return ids
}
