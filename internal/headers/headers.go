package headers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"iter"
	"strings"
)

const (
	crlf                = "\r\n"
	validFieldNameChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789!#$%&'*+-.^_`|~"
)

// singletons are the fields that take one value. Repeats of them are
// dropped instead of joined.
var singletons = map[string]bool{
	"age":                 true,
	"authorization":       true,
	"content-length":      true,
	"content-type":        true,
	"etag":                true,
	"expires":             true,
	"from":                true,
	"host":                true,
	"if-modified-since":   true,
	"if-unmodified-since": true,
	"last-modified":       true,
	"location":            true,
	"max-forwards":        true,
	"proxy-authorization": true,
	"referer":             true,
	"retry-after":         true,
	"server":              true,
	"user-agent":          true,
}

// Headers maps lower-cased field names to values and remembers the order
// in which names were first seen.
type Headers struct {
	names  []string
	values map[string]string
}

func NewHeaders() *Headers {
	return &Headers{values: map[string]string{}}
}

func (h *Headers) Parse(data []byte) (n int, done bool, err error) {
	idx := bytes.Index(data, []byte(crlf))
	if idx == -1 {
		return 0, false, nil
	}
	if idx == 0 {
		n = idx + 2
		return n, true, nil
	}

	fields := data[:idx]
	colonIdx := bytes.IndexByte(fields, ':')
	if colonIdx == -1 {
		return 0, false, fmt.Errorf("malformed header line (no colon): %q", fields)
	}

	name := fields[:colonIdx]
	if len(name) == 0 {
		return 0, false, fmt.Errorf("malformed field-name: %q", fields)
	}
	if bytes.ContainsAny(name, " \t") {
		return 0, false, fmt.Errorf("malformed field-name (whitespace): %q", fields)
	}

	for _, r := range string(name) {
		if !strings.ContainsRune(validFieldNameChars, r) {
			return 0, false, fmt.Errorf("invalid character in field-name: %q", fields)
		}
	}

	value := string(bytes.TrimSpace(fields[colonIdx+1:]))
	h.Set(string(name), value)

	return idx + 2, false, nil
}

// Set adds value under key. A repeated key gets the values joined with ", ",
// except for single-valued fields such as Content-Type, which keep the
// first value.
func (h *Headers) Set(key, value string) {
	key = strings.ToLower(key)
	if v, ok := h.lookup(key); ok {
		if singletons[key] {
			return
		}
		h.values[key] = v + ", " + value
		return
	}
	h.add(key, value)
}

// Replace overwrites any existing value for key, keeping its position.
func (h *Headers) Replace(key, value string) {
	key = strings.ToLower(key)
	if _, ok := h.lookup(key); ok {
		h.values[key] = value
		return
	}
	h.add(key, value)
}

func (h *Headers) Get(key string) string {
	v, _ := h.lookup(strings.ToLower(key))
	return v
}

func (h *Headers) Has(key string) bool {
	_, ok := h.lookup(strings.ToLower(key))
	return ok
}

func (h *Headers) Del(key string) {
	key = strings.ToLower(key)
	if _, ok := h.lookup(key); !ok {
		return
	}
	delete(h.values, key)
	for i, n := range h.names {
		if n == key {
			h.names = append(h.names[:i], h.names[i+1:]...)
			break
		}
	}
}

func (h *Headers) Len() int {
	if h == nil {
		return 0
	}
	return len(h.names)
}

// All yields every field in insertion order.
func (h *Headers) All() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		if h == nil {
			return
		}
		for _, n := range h.names {
			if !yield(n, h.values[n]) {
				return
			}
		}
	}
}

// MarshalJSON encodes the headers as a JSON object in insertion order.
// HTML characters are left unescaped.
func (h *Headers) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	buf.WriteByte('{')
	first := true
	for k, v := range h.All() {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		if err := enc.Encode(k); err != nil {
			return nil, err
		}
		trimNewline(&buf)
		buf.WriteByte(':')
		if err := enc.Encode(v); err != nil {
			return nil, err
		}
		trimNewline(&buf)
	}
	buf.WriteByte('}')

	return buf.Bytes(), nil
}

func (h *Headers) lookup(key string) (string, bool) {
	if h == nil || h.values == nil {
		return "", false
	}
	v, ok := h.values[key]
	return v, ok
}

func (h *Headers) add(key, value string) {
	if h.values == nil {
		h.values = map[string]string{}
	}
	h.names = append(h.names, key)
	h.values[key] = value
}

// json.Encoder terminates every value with a newline.
func trimNewline(buf *bytes.Buffer) {
	buf.Truncate(buf.Len() - 1)
}
