package codec

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/pierrec/lz4/v4"
)

// Block format: [uncompressed size uint32][compressed size uint32][data].
// Compressed size 0 means the data is stored as is.
const lz4HeaderSize = 8

type lz4Codec struct {
	inner Codec
}

// LZ4 wraps a codec, compressing its output with LZ4 block compression
func LZ4(inner Codec) Codec {
	return lz4Codec{inner: inner}
}

func (c lz4Codec) Marshal(v any) ([]byte, error) {
	raw, err := c.inner.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := make([]byte, lz4HeaderSize+lz4.CompressBlockBound(len(raw)))
	n, err := lz4.CompressBlock(raw, out[lz4HeaderSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("lz4: %w", err)
	}
	binary.LittleEndian.PutUint32(out[0:], uint32(len(raw)))
	if n == 0 || n >= len(raw) { // incompressible
		binary.LittleEndian.PutUint32(out[4:], 0)
		return append(out[:lz4HeaderSize], raw...), nil
	}
	binary.LittleEndian.PutUint32(out[4:], uint32(n))
	return out[:lz4HeaderSize+n], nil
}

func (c lz4Codec) Unmarshal(data []byte, v any) error {
	if len(data) < lz4HeaderSize {
		return errors.New("lz4: block too small for header")
	}
	size := binary.LittleEndian.Uint32(data[0:])
	compressedSize := binary.LittleEndian.Uint32(data[4:])
	body := data[lz4HeaderSize:]

	if compressedSize == 0 {
		if uint32(len(body)) != size {
			return errors.New("lz4: stored block size mismatch")
		}
		return c.inner.Unmarshal(body, v)
	}
	if uint32(len(body)) != compressedSize {
		return errors.New("lz4: compressed block size mismatch")
	}
	raw := make([]byte, size)
	n, err := lz4.UncompressBlock(body, raw)
	if err != nil {
		return fmt.Errorf("lz4: %w", err)
	}
	if uint32(n) != size {
		return errors.New("lz4: decompressed size mismatch")
	}
	return c.inner.Unmarshal(raw, v)
}

func (c lz4Codec) Name() string {
	return c.inner.Name() + "+lz4"
}
