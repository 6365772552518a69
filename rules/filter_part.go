package rules

import "strings"

// PartKind is the kind of a [FilterPart].
type PartKind uint8

// PartKind enumeration.  The values are persisted.
const (
	// PartEmpty matches anything.
	PartEmpty PartKind = iota

	// PartSimple is a single literal.
	PartSimple

	// PartAnyOf is an ordered list of literals, any of which may match.
	// Duplicates are permitted.
	PartAnyOf
)

// FilterPart is the pattern of a network filter.  The zero value is an Empty
// part.
type FilterPart struct {
	// literals are the pattern strings.  It is empty for PartEmpty and has
	// exactly one element for PartSimple.
	literals []string

	kind PartKind
}

// EmptyPart returns a part that matches anything.
func EmptyPart() (p FilterPart) {
	return FilterPart{kind: PartEmpty}
}

// SimplePart returns a single-literal part.
func SimplePart(s string) (p FilterPart) {
	return FilterPart{kind: PartSimple, literals: []string{s}}
}

// AnyOfPart returns a part that matches if any of the literals matches.  The
// literals slice is retained and must not be modified afterwards.
func AnyOfPart(literals []string) (p FilterPart) {
	return FilterPart{kind: PartAnyOf, literals: literals}
}

// PartFromLiterals returns the most compact part for literals: Empty when
// there are none, Simple for one, and AnyOf otherwise.
func PartFromLiterals(literals []string) (p FilterPart) {
	switch len(literals) {
	case 0:
		return EmptyPart()
	case 1:
		return SimplePart(literals[0])
	default:
		return AnyOfPart(literals)
	}
}

// Kind returns the kind of the part.
func (p FilterPart) Kind() (k PartKind) {
	return p.kind
}

// IsEmpty returns true if p matches anything.
func (p FilterPart) IsEmpty() (ok bool) {
	return p.kind == PartEmpty
}

// Literals returns the literals of the part.  Callers must not modify the
// returned slice.
func (p FilterPart) Literals() (literals []string) {
	return p.literals
}

// Len returns the number of literals.
func (p FilterPart) Len() (n int) {
	return len(p.literals)
}

// Union returns a part that matches whatever p or other matches.  Empty is
// absorbing and literals are never deduplicated.
func (p FilterPart) Union(other FilterPart) (res FilterPart) {
	if p.IsEmpty() || other.IsEmpty() {
		return EmptyPart()
	}

	literals := make([]string, 0, p.Len()+other.Len())
	literals = append(literals, p.literals...)
	literals = append(literals, other.literals...)

	return PartFromLiterals(literals)
}

// String implements the [fmt.Stringer] interface for FilterPart.  AnyOf
// literals are joined with "|".
func (p FilterPart) String() (s string) {
	return strings.Join(p.literals, "|")
}
