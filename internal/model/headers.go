package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"iter"
	"slices"
	"strings"
)

// MaxHeaderValueLength is the maximum number of bytes stored for a single
// header value. Longer values are truncated, never rejected.
const MaxHeaderValueLength = 512

// TruncateHeaderValue caps v at MaxHeaderValueLength bytes.
// Values that already fit are returned unchanged.
func TruncateHeaderValue(v string) string {
	if len(v) <= MaxHeaderValueLength {
		return v
	}
	return v[:MaxHeaderValueLength]
}

// Header is one name of a Headers collection with every value received
// for it, in arrival order.
type Header struct {
	Name   string
	Values []string
}

// Value returns the values joined with a newline, the way the DevTools
// protocol reports repeated headers.
func (h Header) Value() string {
	return strings.Join(h.Values, "\n")
}

// Headers is an ordered mapping from header name to values.
//
// Names are lower-cased when they are inserted, so lookups never need to
// care about the case used on the wire. A name that is set twice keeps its
// first position and gains another value. A value containing newlines is
// split into one value per line, since that is how the DevTools protocol
// delivers repeated headers such as set-cookie. Each value is capped at
// MaxHeaderValueLength bytes on its own, so a long header never hides the
// values that follow it.
//
// The zero value is an empty collection ready to use.
type Headers struct {
	entries []Header
}

// NewHeaders builds a Headers collection from a plain map.
// Map iteration order is not stable, so entries are inserted sorted by name.
func NewHeaders(m map[string]string) Headers {
	var h Headers
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		h.Set(name, m[name])
	}
	return h
}

// Set adds value under the lower-cased name.
func (h *Headers) Set(name, value string) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return
	}
	values := strings.Split(value, "\n")
	for i, v := range values {
		values[i] = TruncateHeaderValue(v)
	}
	for i := range h.entries {
		if h.entries[i].Name == name {
			h.entries[i].Values = append(h.entries[i].Values, values...)
			return
		}
	}
	h.entries = append(h.entries, Header{Name: name, Values: values})
}

// Get returns the values stored under name joined with a newline.
// The lookup is case-insensitive.
func (h Headers) Get(name string) (string, bool) {
	e, ok := h.lookup(name)
	if !ok {
		return "", false
	}
	return e.Value(), true
}

// Values returns a copy of every value stored under name. Empty values
// are left out.
func (h Headers) Values(name string) []string {
	e, ok := h.lookup(name)
	if !ok {
		return nil
	}
	var out []string
	for _, v := range e.Values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func (h Headers) lookup(name string) (Header, bool) {
	name = strings.ToLower(name)
	for _, e := range h.entries {
		if e.Name == name {
			return e, true
		}
	}
	return Header{}, false
}

// Len returns the number of distinct header names.
func (h Headers) Len() int {
	return len(h.entries)
}

// All iterates over the headers in insertion order, yielding each name
// with its joined value.
func (h Headers) All() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, e := range h.entries {
			if !yield(e.Name, e.Value()) {
				return
			}
		}
	}
}

// MarshalJSON encodes the headers as a JSON object, preserving order.
// Repeated values are joined with a newline and split again on decode.
func (h Headers) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range h.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(e.Name)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(e.Value())
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object into the headers, keeping the order
// of the document.
func (h *Headers) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		h.entries = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("headers: expected JSON object, got %v", tok)
	}
	h.entries = nil
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("headers: expected string key, got %v", keyTok)
		}
		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("headers: value of %q: %w", key, err)
		}
		h.Set(key, value)
	}
	_, err = dec.Token()
	return err
}
