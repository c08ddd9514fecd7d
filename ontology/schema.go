// Package ontology models the schema a batch is loaded against and checks
// that its reference graph can be loaded incrementally.
//
// A Schema declares classes and properties. Classes inherit cardinalities from
// their superclasses and properties inherit their object class from their
// superproperties. The class-level reference graph has one edge per
// (class, property) whose object is another class; every simple cycle in that
// graph must consist of flexible (0-1 or 0-n) edges only, otherwise some record
// on the cycle can never be created before its targets.
//
// Basic usage:
//
//	s, err := ontology.LoadSchema("schema.yaml")
//	if err != nil {
//	    return err
//	}
//	violations, err := ontology.Validate(s)
//	if err != nil {
//	    return err // inconsistent schema
//	}
//	if len(violations) > 0 {
//	    // reject the batch
//	}
package ontology

import (
	"sort"

	"github.com/zero-day-ai/bulkload/record"
)

// Schema is a set of class and property definitions.
type Schema struct {
	Classes    []Class    `yaml:"classes" json:"classes"`
	Properties []Property `yaml:"properties" json:"properties"`

	classes    map[string]*Class
	properties map[string]*Property
}

// Class is a resource class.
type Class struct {
	// Name is the class name, unique in the schema.
	Name string `yaml:"name" json:"name"`

	// SuperClasses lists the direct superclasses.
	SuperClasses []string `yaml:"super,omitempty" json:"super,omitempty"`

	// Cardinalities declares the properties of the class. A declaration
	// overrides one inherited for the same property.
	Cardinalities []CardinalityDecl `yaml:"cardinalities,omitempty" json:"cardinalities,omitempty"`
}

// CardinalityDecl binds a property to a class with a multiplicity.
type CardinalityDecl struct {
	Property    string             `yaml:"property" json:"property"`
	Cardinality record.Cardinality `yaml:"cardinality" json:"cardinality"`
}

// Property is a property definition.
type Property struct {
	// Name is the property name, unique in the schema.
	Name string `yaml:"name" json:"name"`

	// SuperProperties lists the direct superproperties.
	SuperProperties []string `yaml:"super,omitempty" json:"super,omitempty"`

	// Object is the class a value of this property points at. It is empty for
	// properties holding scalars, and may be inherited.
	Object string `yaml:"object,omitempty" json:"object,omitempty"`
}

// New returns a schema holding classes and properties. Schemas built by New or
// by the loaders are safe for concurrent reads.
func New(classes []Class, properties []Property) *Schema {
	s := &Schema{Classes: classes, Properties: properties}
	s.index()
	return s
}

// index builds the lookup tables. Accessors call it too so a struct literal
// works, but only New and the loaders make concurrent reads safe.
func (s *Schema) index() {
	if s.classes != nil && len(s.classes) == len(s.Classes) &&
		s.properties != nil && len(s.properties) == len(s.Properties) {
		return
	}
	s.classes = make(map[string]*Class, len(s.Classes))
	for i := range s.Classes {
		s.classes[s.Classes[i].Name] = &s.Classes[i]
	}
	s.properties = make(map[string]*Property, len(s.Properties))
	for i := range s.Properties {
		s.properties[s.Properties[i].Name] = &s.Properties[i]
	}
}

// Class returns the class named name.
func (s *Schema) Class(name string) (*Class, bool) {
	s.index()
	c, ok := s.classes[name]
	return c, ok
}

// Property returns the property named name.
func (s *Schema) Property(name string) (*Property, bool) {
	s.index()
	p, ok := s.properties[name]
	return p, ok
}

// ClassNames returns every class name in sorted order.
func (s *Schema) ClassNames() []string {
	names := make([]string, 0, len(s.Classes))
	for _, c := range s.Classes {
		names = append(names, c.Name)
	}
	sort.Strings(names)
	return names
}

// Cardinalities returns the cardinalities that apply to class, including
// inherited ones. A declaration on a subclass wins over the superclass one;
// among superclasses the first listed wins. Unknown classes yield nil.
// The schema must be consistent (see Check).
func (s *Schema) Cardinalities(class string) map[string]record.Cardinality {
	s.index()
	if _, ok := s.classes[class]; !ok {
		return nil
	}
	out := make(map[string]record.Cardinality)
	visited := make(map[string]bool)
	var walk func(name string)
	walk = func(name string) {
		if visited[name] {
			return
		}
		visited[name] = true
		c, ok := s.classes[name]
		if !ok {
			return
		}
		for _, d := range c.Cardinalities {
			if _, set := out[d.Property]; !set {
				out[d.Property] = d.Cardinality
			}
		}
		for _, super := range c.SuperClasses {
			walk(super)
		}
	}
	walk(class)
	return out
}

// ObjectOf returns the object class of property, following superproperties
// when the property declares none. It returns "" for scalar properties.
func (s *Schema) ObjectOf(property string) string {
	s.index()
	visited := make(map[string]bool)
	queue := []string{property}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if visited[name] {
			continue
		}
		visited[name] = true
		p, ok := s.properties[name]
		if !ok {
			continue
		}
		if p.Object != "" {
			return p.Object
		}
		queue = append(queue, p.SuperProperties...)
	}
	return ""
}

// IsSubclassOf reports whether class equals ancestor or inherits from it.
func (s *Schema) IsSubclassOf(class, ancestor string) bool {
	s.index()
	visited := make(map[string]bool)
	stack := []string{class}
	for len(stack) > 0 {
		name := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if name == ancestor {
			return true
		}
		if visited[name] {
			continue
		}
		visited[name] = true
		if c, ok := s.classes[name]; ok {
			stack = append(stack, c.SuperClasses...)
		}
	}
	return false
}
