package record

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// valueJSON is the JSON form of a PropertyValue. Exactly one of Scalar,
// Reference and Text is set.
type valueJSON struct {
	Property    string  `json:"property"`
	Cardinality string  `json:"cardinality"`
	Scalar      *string `json:"scalar,omitempty"`
	Reference   *string `json:"reference,omitempty"`
	Text        *string `json:"text,omitempty"`
}

// MarshalJSON encodes the value with its payload variant as a tagged field.
func (v PropertyValue) MarshalJSON() ([]byte, error) {
	out := valueJSON{Property: v.Property, Cardinality: string(v.Cardinality)}
	switch p := v.Payload.(type) {
	case Scalar:
		out.Scalar = &p.Value
	case Reference:
		out.Reference = &p.Target
	case FormattedText:
		out.Text = &p.Text
	default:
		return nil, fmt.Errorf("%w: property %q has no payload", ErrInvalidRecord, v.Property)
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a value, rejecting inputs that set zero or several payload variants.
func (v *PropertyValue) UnmarshalJSON(data []byte) error {
	var in valueJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	card, err := ParseCardinality(in.Cardinality)
	if err != nil {
		return fmt.Errorf("property %q: %w", in.Property, err)
	}

	set := 0
	var payload Payload
	if in.Scalar != nil {
		set++
		payload = Scalar{Value: *in.Scalar}
	}
	if in.Reference != nil {
		set++
		payload = Reference{Target: *in.Reference}
	}
	if in.Text != nil {
		set++
		payload = FormattedText{Text: *in.Text}
	}
	if set != 1 {
		return fmt.Errorf("%w: property %q must set exactly one of scalar, reference, text", ErrInvalidRecord, in.Property)
	}

	*v = PropertyValue{Property: in.Property, Cardinality: card, Payload: payload}
	return nil
}

// batchJSON is the on-disk layout of a batch file.
type batchJSON struct {
	Records []Record `json:"records"`
}

// DecodeBatch reads a JSON batch ({"records": [...]}) and validates it.
func DecodeBatch(r io.Reader) ([]Record, error) {
	var b batchJSON
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&b); err != nil {
		return nil, fmt.Errorf("failed to decode batch: %w", err)
	}
	if err := ValidateBatch(b.Records); err != nil {
		return nil, err
	}
	return b.Records, nil
}

// LoadBatch reads and validates a JSON batch file.
func LoadBatch(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open batch file: %w", err)
	}
	defer f.Close()
	return DecodeBatch(f)
}
