package headerfilter

import "strings"

// ForwardedHeader is the RFC 7239 header name
const ForwardedHeader = "Forwarded"

// Well-known Forwarded parameters
const (
	ForwardedBy    = "by"
	ForwardedFor   = "for"
	ForwardedHost  = "host"
	ForwardedProto = "proto"
)

const (
	pairSeparator    = ";"
	pairJoiner       = "; "
	elementSeparator = ','
)

// ForwardedPair is one key=value parameter of a hop record
type ForwardedPair struct {
	Key   string
	Value string
}

// ForwardedRecord is one hop's parameters. Keys are case-insensitive and unique;
// iteration follows insertion order.
type ForwardedRecord struct {
	pairs []ForwardedPair
	index map[string]int
}

// NewForwardedRecord creates an empty record
func NewForwardedRecord() *ForwardedRecord {
	return &ForwardedRecord{index: make(map[string]int)}
}

// Set stores value under key. A key already present keeps its position.
func (r *ForwardedRecord) Set(key, value string) {
	if r.index == nil {
		r.index = make(map[string]int)
	}
	lk := strings.ToLower(key)
	if i, ok := r.index[lk]; ok {
		r.pairs[i].Value = value
		return
	}
	r.index[lk] = len(r.pairs)
	r.pairs = append(r.pairs, ForwardedPair{Key: key, Value: value})
}

// Get returns the value for key and whether it was present
func (r *ForwardedRecord) Get(key string) (string, bool) {
	if r == nil || r.index == nil {
		return "", false
	}
	i, ok := r.index[strings.ToLower(key)]
	if !ok {
		return "", false
	}
	return r.pairs[i].Value, true
}

func (r *ForwardedRecord) value(key string) string {
	v, _ := r.Get(key)
	return v
}

// For returns the "for" parameter
func (r *ForwardedRecord) For() string { return r.value(ForwardedFor) }

// By returns the "by" parameter
func (r *ForwardedRecord) By() string { return r.value(ForwardedBy) }

// Host returns the "host" parameter
func (r *ForwardedRecord) Host() string { return r.value(ForwardedHost) }

// Proto returns the "proto" parameter
func (r *ForwardedRecord) Proto() string { return r.value(ForwardedProto) }

// Keys returns the keys in insertion order
func (r *ForwardedRecord) Keys() []string {
	if r == nil {
		return nil
	}
	keys := make([]string, len(r.pairs))
	for i, p := range r.pairs {
		keys[i] = p.Key
	}
	return keys
}

// Pairs returns a copy of the key/value pairs in insertion order
func (r *ForwardedRecord) Pairs() []ForwardedPair {
	if r == nil {
		return nil
	}
	return append([]ForwardedPair(nil), r.pairs...)
}

// Len returns the number of parameters
func (r *ForwardedRecord) Len() int {
	if r == nil {
		return 0
	}
	return len(r.pairs)
}

// String serializes the record as "k1=v1; k2=v2"
func (r *ForwardedRecord) String() string {
	if r == nil {
		return ""
	}
	var sb strings.Builder
	for i, p := range r.pairs {
		if i > 0 {
			sb.WriteString(pairJoiner)
		}
		sb.WriteString(p.Key)
		sb.WriteByte('=')
		sb.WriteString(p.Value)
	}
	return sb.String()
}

// ParseForwarded parses one raw Forwarded value into a record.
//
// The value is split on ';' and each trimmed, non-empty token is split on its
// first '='. Tokens without '=' or with an empty key are skipped. A repeated
// key overwrites the earlier value. Nil is returned when nothing parseable
// remains.
func ParseForwarded(value string) *ForwardedRecord {
	tokens := tokenize(value, pairSeparator)
	if len(tokens) == 0 {
		return nil
	}

	record := NewForwardedRecord()
	for _, token := range tokens {
		key, val, found := strings.Cut(token, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		record.Set(key, strings.TrimSpace(val))
	}

	if record.Len() == 0 {
		return nil
	}
	return record
}

// ParseAllForwarded parses each raw value into one record. Unparseable values
// produce a nil entry at the same position.
func ParseAllForwarded(values []string) []*ForwardedRecord {
	records := make([]*ForwardedRecord, 0, len(values))
	for _, v := range values {
		records = append(records, ParseForwarded(v))
	}
	return records
}

// SplitForwardedElements splits a header value holding several comma-separated
// forwarded elements. Commas inside quoted strings do not split.
func SplitForwardedElements(value string) []string {
	var (
		elements []string
		inQuotes bool
		escaped  bool
		start    int
	)
	for i := 0; i < len(value); i++ {
		c := value[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inQuotes:
			escaped = true
		case c == '"':
			inQuotes = !inQuotes
		case c == elementSeparator && !inQuotes:
			if e := strings.TrimSpace(value[start:i]); e != "" {
				elements = append(elements, e)
			}
			start = i + 1
		}
	}
	if e := strings.TrimSpace(value[start:]); e != "" {
		elements = append(elements, e)
	}
	return elements
}

// tokenize splits s on sep, trims every token and drops the empty ones
func tokenize(s, sep string) []string {
	var tokens []string
	for _, t := range strings.Split(s, sep) {
		if t = strings.TrimSpace(t); t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}
