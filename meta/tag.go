package meta

import (
	"reflect"
	"strings"
)

const tagName = "quarry"

type option struct {
	key   string // includes trailing '=' for options with values
	value string
}

func (opt option) String() string {
	return opt.key + opt.value
}

func parseTag(tag reflect.StructTag) []option {
	str, ok := tag.Lookup(tagName)
	if !ok || str == "" {
		return nil
	}

	parts := strings.Split(str, ",")
	options := make([]option, 0, len(parts))
	for _, part := range parts {
		if key, value, ok := strings.Cut(part, "="); ok {
			options = append(options, option{key: key + "=", value: value})
		} else {
			options = append(options, option{key: key})
		}
	}
	return options
}

// SnakeCase converts a Go identifier to the lower_snake_case form used for
// default index names: "Email" -> "email", "CreatedAt" -> "created_at",
// "HTTPPort" -> "http_port".
func SnakeCase(name string) string {
	var b strings.Builder
	runes := []rune(name)
	for i, r := range runes {
		upper := r >= 'A' && r <= 'Z'
		if upper && i > 0 {
			prevLower := runes[i-1] >= 'a' && runes[i-1] <= 'z' || runes[i-1] >= '0' && runes[i-1] <= '9'
			nextLower := i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z'
			if prevLower || (nextLower && runes[i-1] != '_') {
				b.WriteByte('_')
			}
		}
		if upper {
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
