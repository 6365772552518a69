package artifact

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"unsafe"

	"github.com/AdguardTeam/flatfilter/internal/flatindex"
	"github.com/AdguardTeam/flatfilter/internal/lookup"
)

// isLittleEndian is true if the host byte order is little-endian.
var isLittleEndian = binary.NativeEndian.Uint16([]byte{1, 0}) == 1

// Decode decodes the artifact in data.  The index arrays of the result alias
// data whenever possible, so data must not be modified or released while the
// result is in use.
func Decode(data []byte) (c *Contents, err error) {
	if !isLittleEndian {
		return nil, ErrByteOrder
	}

	h, err := decodeHeader(data)
	if err != nil {
		return nil, err
	}

	sum := crc32.Checksum(data[headerSize:], castagnoli)
	if sum != h.Checksum {
		return nil, fmt.Errorf("%w: got %#08x, want %#08x", ErrChecksum, sum, h.Checksum)
	}

	var arrays [sectionRecords][]uint32
	for s := range arrays {
		arrays[s], err = uint32Section(data, h, section(s))
		if err != nil {
			return nil, err
		}
	}

	recordsData, err := sectionData(data, h, sectionRecords)
	if err != nil {
		return nil, err
	}

	records, err := decompressBlock(recordsData, h.Compression)
	if err != nil {
		return nil, fmt.Errorf("records: %w", err)
	}

	filters, err := decodeRecords(records)
	if err != nil {
		return nil, fmt.Errorf("records: %w", err)
	}

	return &Contents{
		Index: &lookup.Arrays{
			Keys:     arrays[sectionKeys],
			Values:   arrays[sectionValues],
			Offsets:  arrays[sectionOffsets],
			Postings: arrays[sectionPostings],
			Other:    arrays[sectionOther],
		},
		Filters: filters,
		Header:  *h,
	}, nil
}

// ReadHeader decodes and validates only the header of the artifact in data.
func ReadHeader(data []byte) (h *Header, err error) {
	return decodeHeader(data)
}

// decodeHeader decodes the header at the start of data.
func decodeHeader(data []byte) (h *Header, err error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: %d bytes, want at least %d", ErrTruncated, len(data), headerSize)
	}

	if !bytes.Equal(data[:len(magic)], []byte(magic)) {
		return nil, ErrBadMagic
	}

	h = &Header{
		Version: binary.LittleEndian.Uint32(data[4:]),
	}

	if h.Version != flatindex.FormatVersion {
		return nil, fmt.Errorf(
			"%w: got %d, want %d",
			ErrVersionMismatch,
			h.Version,
			flatindex.FormatVersion,
		)
	}

	copy(h.BuildID[:], data[8:24])
	h.Compression = Compression(data[24])
	h.Checksum = binary.LittleEndian.Uint32(data[28:])

	for i := range h.sections {
		entry := data[32+16*i:]
		h.sections[i] = sectionBounds{
			off: binary.LittleEndian.Uint64(entry),
			len: binary.LittleEndian.Uint64(entry[8:]),
		}
	}

	return h, nil
}

// sectionData returns the bytes of the section s after validating its bounds.
func sectionData(data []byte, h *Header, s section) (b []byte, err error) {
	bounds := h.sections[s]
	switch {
	case
		bounds.off < uint64(headerSize),
		bounds.off > uint64(len(data)),
		bounds.len > uint64(len(data))-bounds.off:
		return nil, fmt.Errorf(
			"%w: section %s at %d of %d bytes, data is %d bytes",
			ErrTruncated,
			s,
			bounds.off,
			bounds.len,
			len(data),
		)
	case bounds.off%sectionAlign != 0:
		return nil, fmt.Errorf("%w: section %s is not aligned", ErrTruncated, s)
	default:
		return data[bounds.off : bounds.off+bounds.len], nil
	}
}

// uint32Section returns the section s as a uint32 array.  The result aliases
// data if the section is suitably aligned in memory.
func uint32Section(data []byte, h *Header, s section) (arr []uint32, err error) {
	b, err := sectionData(data, h, s)
	if err != nil {
		return nil, err
	}

	if len(b)%4 != 0 {
		return nil, fmt.Errorf("%w: section %s has %d bytes", ErrTruncated, s, len(b))
	}

	n := len(b) / 4
	if n == 0 {
		return nil, nil
	}

	p := unsafe.Pointer(&b[0])
	if uintptr(p)%unsafe.Alignof(uint32(0)) == 0 {
		return unsafe.Slice((*uint32)(p), n), nil
	}

	// Slices of the Go heap are not guaranteed to be aligned.
	arr = make([]uint32, n)
	for i := range arr {
		arr[i] = binary.LittleEndian.Uint32(b[4*i:])
	}

	return arr, nil
}
