package rules

import (
	"slices"
	"strings"
)

// RawLineSeparator separates the original rule texts of a fused filter.
const RawLineSeparator = " <+> "

// NetworkFilter is a single network-level matching rule.  Filters are treated
// as immutable once constructed: the optimizer replaces them instead of
// modifying them.
type NetworkFilter struct {
	// Filter is the pattern of the filter.
	Filter FilterPart

	// ModifierOption is the value of the $redirect, $redirect-rule, $csp, or
	// $removeparam option.  Only one of them is supported per filter.
	ModifierOption string

	// Hostname is the hostname part of a hostname-anchored filter.
	Hostname string

	// Tag is the value of the $tag option.
	Tag string

	// RawLine is the original rule text.  It is only kept in debug mode and
	// becomes a [RawLineSeparator]-joined list of texts after fusion.
	RawLine string

	// OptDomains is the sorted list of hashes of the domains from the $domain
	// option.  Nil means no restriction.
	OptDomains []uint32

	// OptNotDomains is the sorted list of hashes of the negated domains from
	// the $domain option.
	OptNotDomains []uint32

	// ID is the unique identifier of the filter.  IDs are assigned in parse
	// order and a fused filter keeps the smallest ID of its members.
	ID uint64

	// Mask is the set of the filter's flags.
	Mask Mask
}

// IsRegex returns true if the pattern requires regular expression evaluation.
func (f *NetworkFilter) IsRegex() (ok bool) {
	return f.Mask.Has(MaskIsRegex)
}

// IsCompleteRegex returns true if the pattern is a /regex/.
func (f *NetworkFilter) IsCompleteRegex() (ok bool) {
	return f.Mask.Has(MaskIsCompleteRegex)
}

// IsHostnameAnchor returns true if the filter starts with "||".
func (f *NetworkFilter) IsHostnameAnchor() (ok bool) {
	return f.Mask.Has(MaskIsHostnameAnchor)
}

// IsRedirect returns true for $redirect and $redirect-rule filters.
func (f *NetworkFilter) IsRedirect() (ok bool) {
	return f.Mask.Has(MaskIsRedirect)
}

// IsCSP returns true for $csp filters.
func (f *NetworkFilter) IsCSP() (ok bool) {
	return f.Mask.Has(MaskIsCSP)
}

// IsException returns true for "@@" filters.
func (f *NetworkFilter) IsException() (ok bool) {
	return f.Mask.Has(MaskIsException)
}

// HasDomainRestrictions returns true if the filter has a $domain option.
func (f *NetworkFilter) HasDomainRestrictions() (ok bool) {
	return f.OptDomains != nil || f.OptNotDomains != nil
}

// IsFusable returns true if the filter may be merged with other filters that
// share its flags.  Besides the domain, hostname-anchor, redirect, and CSP
// restrictions, filters carrying a modifier value or a tag are excluded,
// because neither of them survives a merge.
func (f *NetworkFilter) IsFusable() (ok bool) {
	switch {
	case
		f.HasDomainRestrictions(),
		f.IsHostnameAnchor(),
		f.IsRedirect(),
		f.IsCSP(),
		f.ModifierOption != "",
		f.Tag != "":
		return false
	default:
		return true
	}
}

// Clone returns a deep copy of f.
func (f *NetworkFilter) Clone() (c *NetworkFilter) {
	c = &NetworkFilter{}
	*c = *f
	c.Filter = FilterPart{
		literals: slices.Clone(f.Filter.literals),
		kind:     f.Filter.kind,
	}
	c.OptDomains = slices.Clone(f.OptDomains)
	c.OptNotDomains = slices.Clone(f.OptNotDomains)

	return c
}

// RawLines returns the original rule texts of the filter, if kept.
func (f *NetworkFilter) RawLines() (lines []string) {
	if f.RawLine == "" {
		return nil
	}

	return strings.Split(f.RawLine, RawLineSeparator)
}

// String implements the [fmt.Stringer] interface for *NetworkFilter.
func (f *NetworkFilter) String() (s string) {
	if f.RawLine != "" {
		return f.RawLine
	}

	var sb strings.Builder
	if f.IsException() {
		sb.WriteString(maskWhiteList)
	}

	if f.IsHostnameAnchor() {
		sb.WriteString("||")
		sb.WriteString(f.Hostname)
	} else if f.Mask.Has(MaskIsLeftAnchor) {
		sb.WriteByte('|')
	}

	sb.WriteString(f.Filter.String())

	return sb.String()
}
