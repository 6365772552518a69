package artifact

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression is the compression algorithm of the records section.
type Compression uint8

// Compression enumeration.  The values are persisted.
const (
	CompressionNone Compression = 0
	CompressionLZ4  Compression = 1
	CompressionZstd Compression = 2
)

// String implements the [fmt.Stringer] interface for Compression.
func (c Compression) String() (s string) {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// ParseCompression returns the compression with the name s.
func ParseCompression(s string) (c Compression, err error) {
	switch s {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("unknown compression %q", s)
	}
}

// errBadCompression is returned for unknown compression values.
const errBadCompression errors.Error = "bad compression"

const (
	// blockHeaderSize is the size of the uncompressed length prefix of a
	// compressed block.
	blockHeaderSize = 8

	// maxBlockSize is the maximum uncompressed size of a block.
	maxBlockSize = 1 << 30

	// maxPreallocSize is the maximum size of the buffer allocated before a
	// zstd block is decoded.
	maxPreallocSize = 16 << 20

	// lz4MaxRatio is the maximum compression ratio of an lz4 block.
	lz4MaxRatio = 255
)

// zstd encoders and decoders are expensive to create, so they are reused.
var (
	zstdEncoderPool = &sync.Pool{
		New: func() (v any) {
			return errors.Must(zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault)))
		},
	}
	zstdDecoderPool = &sync.Pool{
		New: func() (v any) {
			return errors.Must(zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxBlockSize)))
		},
	}
)

// compressBlock returns data compressed with c and prefixed with its length.
func compressBlock(data []byte, c Compression) (block []byte, err error) {
	block = binary.LittleEndian.AppendUint64(nil, uint64(len(data)))

	switch c {
	case CompressionNone:
		return append(block, data...), nil
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))

		var n int
		n, err = lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, fmt.Errorf("lz4: %w", err)
		}

		return append(block, buf[:n]...), nil
	case CompressionZstd:
		enc := zstdEncoderPool.Get().(*zstd.Encoder)
		defer zstdEncoderPool.Put(enc)

		return enc.EncodeAll(data, block), nil
	default:
		return nil, fmt.Errorf("compressing: %w: %s", errBadCompression, c)
	}
}

// decompressBlock returns the data of a block written by compressBlock.
func decompressBlock(block []byte, c Compression) (data []byte, err error) {
	if len(block) < blockHeaderSize {
		return nil, fmt.Errorf("%w: block of %d bytes", ErrTruncated, len(block))
	}

	size := binary.LittleEndian.Uint64(block)
	block = block[blockHeaderSize:]

	switch c {
	case CompressionNone:
		if uint64(len(block)) != size {
			return nil, fmt.Errorf("%w: block size %d, want %d", ErrBadRecords, len(block), size)
		}

		return block, nil
	case CompressionLZ4, CompressionZstd:
		if size == 0 {
			// Both algorithms may produce an empty block for empty input.
			return nil, nil
		}

		return decompressNonEmpty(block, size, c)
	default:
		return nil, fmt.Errorf("decompressing: %w: %s", errBadCompression, c)
	}
}

// decompressNonEmpty decompresses a non-empty lz4 or zstd block.
func decompressNonEmpty(block []byte, size uint64, c Compression) (data []byte, err error) {
	err = validateBlockSize(len(block), size, c)
	if err != nil {
		return nil, err
	}

	if c == CompressionLZ4 {
		data = make([]byte, size)

		var n int
		n, err = lz4.UncompressBlock(block, data)
		if err != nil {
			return nil, fmt.Errorf("lz4: %w", err)
		} else if uint64(n) != size {
			return nil, fmt.Errorf("%w: decompressed %d bytes, want %d", ErrBadRecords, n, size)
		}

		return data, nil
	}

	dec := zstdDecoderPool.Get().(*zstd.Decoder)
	defer zstdDecoderPool.Put(dec)

	data, err = dec.DecodeAll(block, make([]byte, 0, min(size, maxPreallocSize)))
	if err != nil {
		return nil, fmt.Errorf("zstd: %w", err)
	} else if uint64(len(data)) != size {
		return nil, fmt.Errorf("%w: decompressed %d bytes, want %d", ErrBadRecords, len(data), size)
	}

	return data, nil
}

// validateBlockSize returns an error if size cannot be the uncompressed size
// of a compressed block of n bytes.
func validateBlockSize(n int, size uint64, c Compression) (err error) {
	limit := uint64(maxBlockSize)
	if c == CompressionLZ4 {
		// Add the headroom for the literals of a short block.
		limit = min(limit, lz4MaxRatio*uint64(n)+lz4MaxRatio)
	}

	if size > limit {
		return fmt.Errorf("%w: block size %d out of range, max %d", ErrBadRecords, size, limit)
	}

	return nil
}
