package artifact

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"slices"

	"github.com/AdguardTeam/flatfilter/internal/flatindex"
)

// castagnoli is the CRC-32C table.
var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// Encode writes c to w.  c.Index and c.Filters must not be nil.
func Encode(w io.Writer, c *Contents) (err error) {
	h := &Header{
		BuildID:     c.Header.BuildID,
		Version:     flatindex.FormatVersion,
		Compression: c.Header.Compression,
	}

	arrays := [...][]uint32{
		sectionKeys:     c.Index.Keys,
		sectionValues:   c.Index.Values,
		sectionOffsets:  c.Index.Offsets,
		sectionPostings: c.Index.Postings,
		sectionOther:    c.Index.Other,
	}

	size := 0
	for _, arr := range arrays {
		size += 4*len(arr) + sectionAlign
	}

	body := make([]byte, 0, size)
	for s, arr := range arrays {
		body = alignBody(body)
		h.sections[s] = sectionBounds{
			off: uint64(headerSize + len(body)),
			len: uint64(4 * len(arr)),
		}

		for _, v := range arr {
			body = binary.LittleEndian.AppendUint32(body, v)
		}
	}

	records, err := compressBlock(appendRecords(nil, c.Filters), h.Compression)
	if err != nil {
		return fmt.Errorf("encoding records: %w", err)
	}

	body = alignBody(body)
	h.sections[sectionRecords] = sectionBounds{
		off: uint64(headerSize + len(body)),
		len: uint64(len(records)),
	}
	body = append(body, records...)

	h.Checksum = crc32.Checksum(body, castagnoli)

	_, err = w.Write(h.encode())
	if err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	_, err = w.Write(body)
	if err != nil {
		return fmt.Errorf("writing body: %w", err)
	}

	return nil
}

// alignBody pads body with zeroes so that the next section is aligned.  The
// header size is a multiple of the alignment.
func alignBody(body []byte) (res []byte) {
	pad := (sectionAlign - len(body)%sectionAlign) % sectionAlign

	return append(body, make([]byte, pad)...)
}

// encode returns the binary form of h.
func (h *Header) encode() (b []byte) {
	b = make([]byte, 0, headerSize)
	b = append(b, magic...)
	b = binary.LittleEndian.AppendUint32(b, h.Version)
	b = append(b, h.BuildID[:]...)
	b = append(b, byte(h.Compression), 0, 0, 0)
	b = binary.LittleEndian.AppendUint32(b, h.Checksum)
	for _, s := range h.sections {
		b = binary.LittleEndian.AppendUint64(b, s.off)
		b = binary.LittleEndian.AppendUint64(b, s.len)
	}

	return slices.Clip(b)
}
