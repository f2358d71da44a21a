package http11

import "strings"

// Header maps lower-cased header names to their values in arrival order.
//
// Get follows last-write-wins semantics; Values keeps every occurrence so
// legally repeated headers are not lost.
type Header map[string][]string

// Get returns the last value stored for name, or "" if none.
func (h Header) Get(name string) string {
	vs := h[strings.ToLower(name)]
	if len(vs) == 0 {
		return ""
	}
	return vs[len(vs)-1]
}

// Values returns every value stored for name.
func (h Header) Values(name string) []string {
	return h[strings.ToLower(name)]
}

// Has reports whether name is present.
func (h Header) Has(name string) bool {
	_, ok := h[strings.ToLower(name)]
	return ok
}

// Set replaces all values of name.
func (h Header) Set(name, value string) {
	h[strings.ToLower(name)] = []string{value}
}

// Add appends a value to name.
func (h Header) Add(name, value string) {
	k := strings.ToLower(name)
	h[k] = append(h[k], value)
}

// Del removes name.
func (h Header) Del(name string) {
	delete(h, strings.ToLower(name))
}

// Reset removes every entry, keeping the map allocated.
func (h Header) Reset() {
	clear(h)
}

// canonicalName returns the wire form of a lower-cased header name:
// "content-type" becomes "Content-Type".
func canonicalName(name string) string {
	b := []byte(name)
	upper := true
	for i, c := range b {
		if upper && c >= 'a' && c <= 'z' {
			b[i] = c - ('a' - 'A')
		}
		upper = c == '-'
	}
	return string(b)
}
