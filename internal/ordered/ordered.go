// Package ordered decodes JSON objects without losing member order.
//
// encoding/json decodes objects into Go maps, which forget the order the
// members appeared in. The backend lists device properties and the product
// file lists node rules in a meaningful order, so both are decoded into an
// Object instead.
package ordered

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrNotObject is returned when the input is valid JSON but not an object.
var ErrNotObject = errors.New("ordered: not a JSON object")

// Member is one key/value pair of an Object. Value holds the raw JSON text.
type Member struct {
	Key   string
	Value json.RawMessage
}

// Object is a JSON object as an ordered list of members.
//
// Duplicate keys keep the position of their first occurrence and the value
// of their last, matching encoding/json's last-value-wins rule.
type Object []Member

// Decode parses data as a single JSON object.
func Decode(data []byte) (Object, error) {
	var o Object
	if err := o.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return o, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *Object) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*o = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("ordered: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("%w: starts with %v", ErrNotObject, tok)
	}

	var out Object
	index := make(map[string]int)

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("ordered: reading key: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("ordered: unexpected key token %v", tok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("ordered: value of %q: %w", key, err)
		}

		if i, seen := index[key]; seen {
			out[i].Value = raw
			continue
		}
		index[key] = len(out)
		out = append(out, Member{Key: key, Value: raw})
	}

	// closing '}'
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("ordered: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("ordered: trailing data after object")
	}

	*o = out
	return nil
}

// MarshalJSON implements json.Marshaler, writing members in order.
func (o Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, m := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(m.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if len(m.Value) == 0 {
			buf.WriteString("null")
			continue
		}
		if err := json.Compact(&buf, m.Value); err != nil {
			return nil, fmt.Errorf("ordered: value of %q: %w", m.Key, err)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Keys returns the member keys in order.
func (o Object) Keys() []string {
	keys := make([]string, len(o))
	for i, m := range o {
		keys[i] = m.Key
	}
	return keys
}

// Get returns the raw value for key.
func (o Object) Get(key string) (json.RawMessage, bool) {
	for _, m := range o {
		if m.Key == key {
			return m.Value, true
		}
	}
	return nil, false
}

// IsObject reports whether raw is a JSON object.
func IsObject(raw json.RawMessage) bool {
	return firstByte(raw) == '{'
}

// IsArray reports whether raw is a JSON array.
func IsArray(raw json.RawMessage) bool {
	return firstByte(raw) == '['
}

func firstByte(raw json.RawMessage) byte {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}

// Scalar decodes a raw JSON value into a Go value that keeps its source text:
//
//	null            → nil
//	true / false    → bool
//	"text"          → string
//	12 / 1.5        → json.Number
//	{...} / [...]   → json.RawMessage (compacted)
func Scalar(raw json.RawMessage) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, nil
	}

	switch trimmed[0] {
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, trimmed); err != nil {
			return nil, fmt.Errorf("ordered: %w", err)
		}
		return json.RawMessage(buf.Bytes()), nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("ordered: %w", err)
	}
	return v, nil
}
