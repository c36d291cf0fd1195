package headerfilter

import (
	"net/http"
	"net/textproto"
	"sort"
	"strings"

	"google.golang.org/grpc/metadata"
)

// FromHTTPHeader copies an http.Header. Go maps carry no order, so names are
// inserted in sorted order to keep the result deterministic.
func FromHTTPHeader(h http.Header) *Headers {
	out := NewHeaders()
	for _, name := range sortedKeys(h) {
		out.AddAll(name, h[name])
	}
	return out
}

// ToHTTPHeader converts headers to an http.Header with canonical keys
func ToHTTPHeader(headers *Headers) http.Header {
	out := make(http.Header, headers.Len())
	for _, e := range headers.Entries() {
		key := textproto.CanonicalMIMEHeaderKey(e.Name)
		out[key] = append(out[key], e.Values...)
	}
	return out
}

// FromMetadata copies gRPC metadata, keys in sorted order
func FromMetadata(md metadata.MD) *Headers {
	out := NewHeaders()
	for _, key := range sortedKeys(md) {
		out.AddAll(key, md[key])
	}
	return out
}

// ToMetadata converts headers to gRPC metadata. When names are given only
// those headers are copied.
func ToMetadata(headers *Headers, names ...string) metadata.MD {
	md := metadata.MD{}
	if len(names) > 0 {
		for _, name := range names {
			if values := headers.Get(name); len(values) > 0 {
				md.Append(strings.ToLower(name), values...)
			}
		}
		return md
	}
	for _, e := range headers.Entries() {
		md.Append(strings.ToLower(e.Name), e.Values...)
	}
	return md
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
