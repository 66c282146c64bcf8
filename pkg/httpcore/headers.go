package httpcore

import "bytes"

// Header is a single name/value pair. Name comparison is ASCII
// case-insensitive; value comparison is exact.
type Header struct {
	Name  []byte
	Value []byte
}

// Headers is an ordered, case-insensitive multi-map of byte name/value
// pairs. Insertion order is preserved and duplicate names are permitted —
// required for repeated Set-Cookie response headers.
type Headers struct {
	pairs []Header
}

// NewHeaders builds a Headers collection from zero or more pairs,
// preserving their order.
func NewHeaders(pairs ...Header) *Headers {
	h := &Headers{}
	for _, p := range pairs {
		h.pairs = append(h.pairs, p)
	}
	return h
}

func lowerEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		ca, cb := a[i], b[i]
		if ca >= 'A' && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if cb >= 'A' && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// Get returns every value stored under name, in insertion order.
func (h *Headers) Get(name []byte) [][]byte {
	var values [][]byte
	for _, p := range h.pairs {
		if lowerEqual(p.Name, name) {
			values = append(values, p.Value)
		}
	}
	return values
}

// GetFirst returns the first value stored under name, or nil if absent.
func (h *Headers) GetFirst(name []byte) []byte {
	for _, p := range h.pairs {
		if lowerEqual(p.Name, name) {
			return p.Value
		}
	}
	return nil
}

// GetSingle returns the last value stored under name, or nil if absent.
// Unlike a strict implementation this does not error on conflicting
// duplicate values — it simply returns the most recently added one.
func (h *Headers) GetSingle(name []byte) []byte {
	var value []byte
	found := false
	for _, p := range h.pairs {
		if lowerEqual(p.Name, name) {
			value = p.Value
			found = true
		}
	}
	if !found {
		return nil
	}
	return value
}

// Add appends a new name/value pair, preserving any existing values under
// the same name.
func (h *Headers) Add(name, value []byte) {
	h.pairs = append(h.pairs, Header{Name: name, Value: value})
}

// Set removes all existing values under name and adds the new one.
func (h *Headers) Set(name, value []byte) {
	h.Remove(name)
	h.Add(name, value)
}

// Remove deletes every pair stored under name.
func (h *Headers) Remove(name []byte) {
	kept := h.pairs[:0]
	for _, p := range h.pairs {
		if !lowerEqual(p.Name, name) {
			kept = append(kept, p)
		}
	}
	h.pairs = kept
}

// Contains reports whether any pair is stored under name.
func (h *Headers) Contains(name []byte) bool {
	for _, p := range h.pairs {
		if lowerEqual(p.Name, name) {
			return true
		}
	}
	return false
}

// Keys returns the deduplicated set of names, in first-seen order.
func (h *Headers) Keys() [][]byte {
	var keys [][]byte
	for _, p := range h.pairs {
		seen := false
		for _, k := range keys {
			if lowerEqual(k, p.Name) {
				seen = true
				break
			}
		}
		if !seen {
			keys = append(keys, p.Name)
		}
	}
	return keys
}

// Merge appends every pair from other onto h, preserving duplicates.
func (h *Headers) Merge(other []Header) {
	h.pairs = append(h.pairs, other...)
}

// Clone returns an independent copy with identical iteration order.
func (h *Headers) Clone() *Headers {
	c := &Headers{pairs: make([]Header, len(h.pairs))}
	copy(c.pairs, h.pairs)
	return c
}

// Range iterates every pair in insertion order. Iteration stops early if
// fn returns false.
func (h *Headers) Range(fn func(name, value []byte) bool) {
	for _, p := range h.pairs {
		if !fn(p.Name, p.Value) {
			return
		}
	}
}

// Len returns the number of stored pairs (including duplicates).
func (h *Headers) Len() int { return len(h.pairs) }

// Pairs returns the raw backing slice; callers must not mutate it.
func (h *Headers) Pairs() []Header { return h.pairs }

// Equal compares two Headers collections by content, ignoring order.
func (h *Headers) Equal(other *Headers) bool {
	if h.Len() != other.Len() {
		return false
	}
	for _, p := range h.pairs {
		found := false
		for _, op := range other.pairs {
			if lowerEqual(p.Name, op.Name) && bytes.Equal(p.Value, op.Value) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
