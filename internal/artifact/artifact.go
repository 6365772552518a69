// Package artifact implements the versioned binary layout of a compiled filter
// list.
//
// An artifact is a fixed-size header followed by the body.  The body consists
// of sections, each starting at an offset aligned to 8 bytes.  The index
// sections are raw little-endian uint32 arrays which are used in place, so
// loading a mapped artifact does not rebuild the index.  The records section
// holds the encoded filters, optionally compressed.
//
// The header layout is:
//
//	offset  size  field
//	     0     4  magic, "FLT1"
//	     4     4  format version, flatindex.FormatVersion
//	     8    16  build ID
//	    24     1  compression of the records section
//	    25     3  reserved
//	    28     4  CRC-32C of the body
//	    32    96  section table: 6 × (offset uint64, length uint64)
package artifact

import (
	"fmt"

	"github.com/AdguardTeam/flatfilter/internal/lookup"
	"github.com/AdguardTeam/flatfilter/rules"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/google/uuid"
)

// Decoding errors.
const (
	// ErrBadMagic is returned when the data is not an artifact.
	ErrBadMagic errors.Error = "artifact: bad magic"

	// ErrVersionMismatch is returned for artifacts written with a different
	// index format.  Such artifacts must be rebuilt from the rule lists.
	ErrVersionMismatch errors.Error = "artifact: format version mismatch"

	// ErrChecksum is returned when the body does not match the checksum.
	ErrChecksum errors.Error = "artifact: checksum mismatch"

	// ErrTruncated is returned when a section is out of the data bounds.
	ErrTruncated errors.Error = "artifact: truncated"

	// ErrByteOrder is returned on big-endian hosts, which cannot use the
	// little-endian arrays in place.
	ErrByteOrder errors.Error = "artifact: unsupported host byte order"

	// ErrBadRecords is returned when the records section is malformed.
	ErrBadRecords errors.Error = "artifact: malformed records"
)

// magic is the first four bytes of every artifact.
const magic = "FLT1"

// headerSize is the size of the header in bytes.
const headerSize = 32 + int(sectionMax)*16

// sectionAlign is the alignment of every section within the artifact.
const sectionAlign = 8

// section is the identifier of a body section.
type section uint8

// section enumeration.  The values define the order of sections in the body
// and of the entries in the section table.
const (
	sectionKeys section = iota
	sectionValues
	sectionOffsets
	sectionPostings
	sectionOther
	sectionRecords

	sectionMax
)

// String implements the [fmt.Stringer] interface for section.
func (s section) String() (str string) {
	switch s {
	case sectionKeys:
		return "keys"
	case sectionValues:
		return "values"
	case sectionOffsets:
		return "offsets"
	case sectionPostings:
		return "postings"
	case sectionOther:
		return "other"
	case sectionRecords:
		return "records"
	default:
		return fmt.Sprintf("section(%d)", uint8(s))
	}
}

// sectionBounds is an entry of the section table.
type sectionBounds struct {
	off uint64
	len uint64
}

// Header is the decoded artifact header.
type Header struct {
	// sections is the section table.
	sections [sectionMax]sectionBounds

	// BuildID identifies the compilation that produced the artifact.
	BuildID uuid.UUID

	// Version is the index format version.
	Version uint32

	// Checksum is the CRC-32C of the body.
	Checksum uint32

	// Compression is the compression of the records section.
	Compression Compression
}

// SectionSizes returns the sizes of the body sections in bytes by their
// names.
func (h *Header) SectionSizes() (sizes map[string]uint64) {
	sizes = make(map[string]uint64, sectionMax)
	for s, b := range h.sections {
		sizes[section(s).String()] = b.len
	}

	return sizes
}

// Contents is a compiled filter list.
type Contents struct {
	// Index is the shortcut index over Filters.  Its arrays may alias the
	// decoded data.
	Index *lookup.Arrays

	// Filters are the compiled filters sorted by ID.
	Filters []*rules.NetworkFilter

	// Header is the artifact header.  Only BuildID and Compression are used
	// by [Encode].
	Header Header
}
