package record

import (
	"fmt"
	"strings"
)

// Cardinality is the multiplicity a schema declares for a property on a class.
type Cardinality string

const (
	// ExactlyOne requires exactly one value ("1").
	ExactlyOne Cardinality = "1"

	// ZeroOrOne allows at most one value ("0-1").
	ZeroOrOne Cardinality = "0-1"

	// OneOrMany requires at least one value ("1-n").
	OneOrMany Cardinality = "1-n"

	// ZeroOrMany allows any number of values ("0-n").
	ZeroOrMany Cardinality = "0-n"
)

// ParseCardinality accepts the short notation ("1", "0-1", "1-n", "0-n") as well
// as the spelled-out names ("exactly-one", "zero-or-one", ...).
func ParseCardinality(s string) (Cardinality, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "exactly-one":
		return ExactlyOne, nil
	case "0-1", "zero-or-one":
		return ZeroOrOne, nil
	case "1-n", "one-or-many":
		return OneOrMany, nil
	case "0-n", "zero-or-many":
		return ZeroOrMany, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidCardinality, s)
	}
}

// Valid reports whether c is one of the four known cardinalities.
func (c Cardinality) Valid() bool {
	switch c {
	case ExactlyOne, ZeroOrOne, OneOrMany, ZeroOrMany:
		return true
	}
	return false
}

// IsFlexible reports whether a property with this cardinality may have no value.
// Only flexible values may be stashed.
func (c Cardinality) IsFlexible() bool {
	return c == ZeroOrOne || c == ZeroOrMany
}

// IsMandatory reports whether a property with this cardinality needs at least one value.
func (c Cardinality) IsMandatory() bool {
	return c == ExactlyOne || c == OneOrMany
}

// AllowsMany reports whether more than one value is permitted.
func (c Cardinality) AllowsMany() bool {
	return c == OneOrMany || c == ZeroOrMany
}

// Permissiveness ranks cardinalities for cycle breaking: higher is a better
// candidate for stashing. Mandatory cardinalities rank zero.
func (c Cardinality) Permissiveness() int {
	switch c {
	case ZeroOrMany:
		return 2
	case ZeroOrOne:
		return 1
	default:
		return 0
	}
}

// String returns the short notation.
func (c Cardinality) String() string {
	return string(c)
}
