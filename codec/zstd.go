package codec

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

var zstdCodecs = sync.OnceValues(func() (*zstd.Encoder, *zstd.Decoder) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic(fmt.Errorf("failed to create zstd encoder: %w", err))
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		panic(fmt.Errorf("failed to create zstd decoder: %w", err))
	}
	return enc, dec
})

type zstdCodec struct {
	inner Codec
}

// Zstd wraps a codec, compressing its output with zstd
func Zstd(inner Codec) Codec {
	return zstdCodec{inner: inner}
}

func (c zstdCodec) Marshal(v any) ([]byte, error) {
	raw, err := c.inner.Marshal(v)
	if err != nil {
		return nil, err
	}
	enc, _ := zstdCodecs()
	return enc.EncodeAll(raw, nil), nil
}

func (c zstdCodec) Unmarshal(data []byte, v any) error {
	_, dec := zstdCodecs()
	raw, err := dec.DecodeAll(data, nil)
	if err != nil {
		return fmt.Errorf("zstd: %w", err)
	}
	return c.inner.Unmarshal(raw, v)
}

func (c zstdCodec) Name() string {
	return c.inner.Name() + "+zstd"
}
