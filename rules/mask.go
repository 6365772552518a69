package rules

import (
	"fmt"
	"math/bits"
)

// Mask is the set of boolean flags of a network filter.  The bit layout is
// persisted in compiled artifacts, so the values must never be reassigned.
type Mask uint32

// Mask enumeration.
const (
	MaskFromImage Mask = 1 << iota
	MaskFromMedia
	MaskFromObject
	MaskFromOther
	MaskFromPing
	MaskFromScript
	MaskFromStylesheet
	MaskFromSubdocument
	MaskFromWebsocket
	MaskFromXMLHTTPRequest
	MaskFromFont
	MaskFromHTTP
	MaskFromHTTPS
	MaskIsImportant
	MaskMatchCase
	MaskIsRemoveparam
	MaskThirdParty
	MaskFirstParty
	MaskIsRegex
	MaskIsLeftAnchor
	MaskIsRightAnchor
	MaskIsHostnameAnchor
	MaskIsException
	MaskIsCSP
	MaskIsCompleteRegex
	MaskUnmatched
	MaskIsRedirect
	MaskBadFilter
	MaskIsHostnameRegex
	MaskFromDocument
	MaskGenericHide
	MaskAlsoBlockRedirect
)

// Composite masks.
const (
	// MaskFromNetworkTypes is every request type that a negated type option
	// implies.
	MaskFromNetworkTypes = MaskFromFont | MaskFromImage | MaskFromMedia |
		MaskFromObject | MaskFromOther | MaskFromPing | MaskFromScript |
		MaskFromStylesheet | MaskFromSubdocument | MaskFromWebsocket |
		MaskFromXMLHTTPRequest

	// MaskFromAllTypes additionally includes the document type.
	MaskFromAllTypes = MaskFromNetworkTypes | MaskFromDocument

	// MaskDefaultOptions are set unless the filter says otherwise.
	MaskDefaultOptions = MaskFromNetworkTypes | MaskFromHTTP | MaskFromHTTPS |
		MaskThirdParty | MaskFirstParty

	// MaskNone is the empty mask.  Careful: every mask contains it.
	MaskNone Mask = 0
)

// Has returns true if every bit of flag is set in m.
func (m Mask) Has(flag Mask) (ok bool) {
	return m&flag == flag
}

// With returns m with flag set or cleared depending on enabled.
func (m Mask) With(flag Mask, enabled bool) (res Mask) {
	if enabled {
		return m | flag
	}

	return m &^ flag
}

// Count returns the number of set flags.
func (m Mask) Count() (n int) {
	return bits.OnesCount32(uint32(m))
}

// String implements the [fmt.Stringer] interface for Mask.
func (m Mask) String() (s string) {
	return fmt.Sprintf("%032b", uint32(m))
}
