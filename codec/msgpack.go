package codec

import (
	"bytes"

	"github.com/vmihailenco/msgpack/v5"
)

// Msgpack is the MessagePack codec. Struct fields fall back to their json
// tags, so models need no extra tags. Map keys are sorted, which makes the
// encoding deterministic.
type Msgpack struct{}

// Marshal encodes the value to MessagePack
func (Msgpack) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.GetEncoder()
	defer msgpack.PutEncoder(enc)
	enc.ResetDict(&buf, nil)
	enc.SetSortMapKeys(true)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes the MessagePack data into v
func (Msgpack) Unmarshal(data []byte, v any) error {
	var r bytes.Reader
	r.Reset(data)
	dec := msgpack.GetDecoder()
	defer msgpack.PutDecoder(dec)
	dec.ResetDict(&r, nil)
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}

// Name returns "msgpack"
func (Msgpack) Name() string { return "msgpack" }
