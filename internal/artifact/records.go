package artifact

import (
	"encoding/binary"
	"fmt"

	"github.com/AdguardTeam/flatfilter/rules"
)

// appendRecords appends the encoding of filters to b.  Each record is:
//
//	uvarint  ID
//	uint32   mask
//	byte     pattern kind
//	uvarint  number of literals, then each literal as a string
//	string   modifier option
//	string   hostname
//	string   tag
//	string   raw line
//	hashes   permitted domains
//	hashes   restricted domains
//
// Strings are a uvarint length followed by the bytes, and hashes are a
// uvarint count followed by little-endian uint32 values.
func appendRecords(b []byte, filters []*rules.NetworkFilter) (res []byte) {
	b = binary.AppendUvarint(b, uint64(len(filters)))
	for _, f := range filters {
		b = binary.AppendUvarint(b, f.ID)
		b = binary.LittleEndian.AppendUint32(b, uint32(f.Mask))
		b = append(b, byte(f.Filter.Kind()))

		literals := f.Filter.Literals()
		b = binary.AppendUvarint(b, uint64(len(literals)))
		for _, lit := range literals {
			b = appendString(b, lit)
		}

		b = appendString(b, f.ModifierOption)
		b = appendString(b, f.Hostname)
		b = appendString(b, f.Tag)
		b = appendString(b, f.RawLine)
		b = appendHashes(b, f.OptDomains)
		b = appendHashes(b, f.OptNotDomains)
	}

	return b
}

// appendString appends a length-prefixed s to b.
func appendString(b []byte, s string) (res []byte) {
	b = binary.AppendUvarint(b, uint64(len(s)))

	return append(b, s...)
}

// appendHashes appends a count-prefixed hashes to b.
func appendHashes(b []byte, hashes []uint32) (res []byte) {
	b = binary.AppendUvarint(b, uint64(len(hashes)))
	for _, h := range hashes {
		b = binary.LittleEndian.AppendUint32(b, h)
	}

	return b
}

// recordReader decodes records.  The first error is kept in err and makes
// every following read return zero values.
type recordReader struct {
	err  error
	data []byte
}

// readUvarint reads a uvarint.
func (r *recordReader) readUvarint() (v uint64) {
	if r.err != nil {
		return 0
	}

	v, n := binary.Uvarint(r.data)
	if n <= 0 {
		r.err = fmt.Errorf("%w: bad uvarint", ErrBadRecords)

		return 0
	}

	r.data = r.data[n:]

	return v
}

// readCount reads a uvarint which is a number of elements of at least elemSize
// bytes each, and checks it against the remaining data.
func (r *recordReader) readCount(elemSize int) (n int) {
	v := r.readUvarint()
	if r.err == nil && v > uint64(len(r.data)/elemSize) {
		r.err = fmt.Errorf("%w: count %d out of bounds", ErrBadRecords, v)

		return 0
	}

	return int(v)
}

// readBytes reads n bytes.
func (r *recordReader) readBytes(n int) (b []byte) {
	if r.err != nil {
		return nil
	}

	if len(r.data) < n {
		r.err = fmt.Errorf("%w: want %d bytes, have %d", ErrBadRecords, n, len(r.data))

		return nil
	}

	b, r.data = r.data[:n], r.data[n:]

	return b
}

// readString reads a length-prefixed string.
func (r *recordReader) readString() (s string) {
	return string(r.readBytes(r.readCount(1)))
}

// readUint32 reads a little-endian uint32.
func (r *recordReader) readUint32() (v uint32) {
	b := r.readBytes(4)
	if b == nil {
		return 0
	}

	return binary.LittleEndian.Uint32(b)
}

// readHashes reads count-prefixed hashes.  It returns nil for zero hashes.
func (r *recordReader) readHashes() (hashes []uint32) {
	n := r.readCount(4)
	if n == 0 {
		return nil
	}

	hashes = make([]uint32, n)
	for i := range hashes {
		hashes[i] = r.readUint32()
	}

	return hashes
}

// readPart reads the pattern of a filter.
func (r *recordReader) readPart() (p rules.FilterPart) {
	kind := rules.PartKind(r.readByte())
	n := r.readCount(1)

	var literals []string
	if n > 0 {
		literals = make([]string, n)
		for i := range literals {
			literals[i] = r.readString()
		}
	}

	if r.err != nil {
		return p
	}

	switch {
	case kind == rules.PartEmpty && n == 0:
		return rules.EmptyPart()
	case kind == rules.PartSimple && n == 1:
		return rules.SimplePart(literals[0])
	case kind == rules.PartAnyOf && n > 0:
		return rules.AnyOfPart(literals)
	default:
		r.err = fmt.Errorf("%w: pattern kind %d with %d literals", ErrBadRecords, kind, n)

		return p
	}
}

// readByte reads a single byte.
func (r *recordReader) readByte() (v uint8) {
	b := r.readBytes(1)
	if b == nil {
		return 0
	}

	return b[0]
}

// decodeRecords decodes the filters written by appendRecords.
func decodeRecords(data []byte) (filters []*rules.NetworkFilter, err error) {
	r := &recordReader{data: data}

	// Every record takes at least 13 bytes.
	n := r.readCount(13)
	if r.err != nil {
		return nil, r.err
	}

	filters = make([]*rules.NetworkFilter, 0, n)
	for range n {
		f := &rules.NetworkFilter{}
		f.ID = r.readUvarint()
		f.Mask = rules.Mask(r.readUint32())
		f.Filter = r.readPart()
		f.ModifierOption = r.readString()
		f.Hostname = r.readString()
		f.Tag = r.readString()
		f.RawLine = r.readString()
		f.OptDomains = r.readHashes()
		f.OptNotDomains = r.readHashes()

		if r.err != nil {
			return nil, fmt.Errorf("record %d: %w", len(filters), r.err)
		}

		filters = append(filters, f)
	}

	if len(r.data) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrBadRecords, len(r.data))
	}

	return filters, nil
}
