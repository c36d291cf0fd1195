package headerfilter

import "strings"

// HeaderEntry is a single header name with all of its values
type HeaderEntry struct {
	Name   string
	Values []string
}

// Headers is an ordered, case-insensitive multimap of header names to values.
// Names keep the casing they were first seen with and the order they were
// first inserted in. The zero value is ready to use.
//
// Headers is not safe for concurrent mutation.
type Headers struct {
	entries []HeaderEntry
	index   map[string]int
}

// NewHeaders creates an empty header set
func NewHeaders() *Headers {
	return &Headers{index: make(map[string]int)}
}

func normalizeName(name string) string {
	return strings.ToLower(name)
}

func (h *Headers) lookup(name string) (int, bool) {
	if h == nil || h.index == nil {
		return 0, false
	}
	i, ok := h.index[normalizeName(name)]
	return i, ok
}

func (h *Headers) insert(name string, values []string) {
	if h.index == nil {
		h.index = make(map[string]int)
	}
	h.index[normalizeName(name)] = len(h.entries)
	h.entries = append(h.entries, HeaderEntry{Name: name, Values: values})
}

// Set replaces all values for name. An existing entry keeps its slot and casing.
func (h *Headers) Set(name string, values ...string) {
	copied := append([]string(nil), values...)
	if i, ok := h.lookup(name); ok {
		h.entries[i].Values = copied
		return
	}
	h.insert(name, copied)
}

// Get returns a copy of the values for name, or nil when absent
func (h *Headers) Get(name string) []string {
	i, ok := h.lookup(name)
	if !ok {
		return nil
	}
	return append([]string(nil), h.entries[i].Values...)
}

// First returns the first value for name, or "" when absent
func (h *Headers) First(name string) string {
	i, ok := h.lookup(name)
	if !ok || len(h.entries[i].Values) == 0 {
		return ""
	}
	return h.entries[i].Values[0]
}

// Has reports whether an entry exists for name
func (h *Headers) Has(name string) bool {
	_, ok := h.lookup(name)
	return ok
}

// Add appends a single value for name
func (h *Headers) Add(name, value string) {
	h.AddAll(name, []string{value})
}

// AddAll appends values to the list for name, creating the entry if needed
func (h *Headers) AddAll(name string, values []string) {
	if i, ok := h.lookup(name); ok {
		h.entries[i].Values = append(h.entries[i].Values, values...)
		return
	}
	h.insert(name, append([]string(nil), values...))
}

// Del removes the entry for name
func (h *Headers) Del(name string) {
	i, ok := h.lookup(name)
	if !ok {
		return
	}
	h.entries = append(h.entries[:i], h.entries[i+1:]...)
	delete(h.index, normalizeName(name))
	for j := i; j < len(h.entries); j++ {
		h.index[normalizeName(h.entries[j].Name)] = j
	}
}

// Entries returns all entries in insertion order. The returned slices are copies.
func (h *Headers) Entries() []HeaderEntry {
	if h == nil {
		return nil
	}
	out := make([]HeaderEntry, len(h.entries))
	for i, e := range h.entries {
		out[i] = HeaderEntry{Name: e.Name, Values: append([]string(nil), e.Values...)}
	}
	return out
}

// Names returns the header names in insertion order
func (h *Headers) Names() []string {
	if h == nil {
		return nil
	}
	names := make([]string, len(h.entries))
	for i, e := range h.entries {
		names[i] = e.Name
	}
	return names
}

// Len returns the number of distinct header names
func (h *Headers) Len() int {
	if h == nil {
		return 0
	}
	return len(h.entries)
}

// Clone returns a deep copy
func (h *Headers) Clone() *Headers {
	out := NewHeaders()
	if h == nil {
		return out
	}
	for _, e := range h.entries {
		out.insert(e.Name, append([]string(nil), e.Values...))
	}
	return out
}

// Equal reports whether both sets hold the same names, values and ordering.
// Names are compared case-insensitively.
func (h *Headers) Equal(other *Headers) bool {
	if h.Len() != other.Len() {
		return false
	}
	for i := 0; i < h.Len(); i++ {
		a, b := h.entries[i], other.entries[i]
		if !strings.EqualFold(a.Name, b.Name) || len(a.Values) != len(b.Values) {
			return false
		}
		for j := range a.Values {
			if a.Values[j] != b.Values[j] {
				return false
			}
		}
	}
	return true
}

// String renders the set as "Name: value" lines, one per value
func (h *Headers) String() string {
	var sb strings.Builder
	for _, e := range h.Entries() {
		for _, v := range e.Values {
			sb.WriteString(e.Name)
			sb.WriteString(": ")
			sb.WriteString(v)
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}
