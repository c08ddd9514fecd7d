package ontology

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/zero-day-ai/bulkload/record"
)

// UnmarshalYAML accepts both the short ("0-1") and the spelled-out
// ("zero-or-one") cardinality forms.
func (d *CardinalityDecl) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Property    string `yaml:"property"`
		Cardinality string `yaml:"cardinality"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	card, err := record.ParseCardinality(raw.Cardinality)
	if err != nil {
		return fmt.Errorf("property %q: %w", raw.Property, err)
	}
	d.Property = raw.Property
	d.Cardinality = card
	return nil
}

// DecodeSchema reads a yaml schema from r. Unknown top-level fields are rejected.
func DecodeSchema(r io.Reader) (*Schema, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var s Schema
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty schema", ErrInvalidSchema)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	s.index()
	return &s, nil
}

// LoadSchema reads a yaml schema file.
func LoadSchema(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	s, err := DecodeSchema(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}
