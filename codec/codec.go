// Package codec contains document codecs used by quarry backends to turn
// models into bytes.
//
// Changing the codec of an existing store makes previously written documents
// unreadable: backends do not record which codec wrote a document.
package codec

import "fmt"

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// Default is the codec used by backends unless configured otherwise
var Default Codec = JSON{}

// ByName returns a built-in codec by its stable name: "json", "msgpack", or
// one of those with a "+zstd" or "+lz4" suffix.
func ByName(name string) (Codec, error) {
	switch name {
	case "json":
		return JSON{}, nil
	case "msgpack":
		return Msgpack{}, nil
	case "json+zstd":
		return Zstd(JSON{}), nil
	case "msgpack+zstd":
		return Zstd(Msgpack{}), nil
	case "json+lz4":
		return LZ4(JSON{}), nil
	case "msgpack+lz4":
		return LZ4(Msgpack{}), nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}

// Names lists the names accepted by ByName
func Names() []string {
	return []string{"json", "msgpack", "json+zstd", "msgpack+zstd", "json+lz4", "msgpack+lz4"}
}
