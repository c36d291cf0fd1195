package headerfilter

import (
	"strings"

	"github.com/google/uuid"
)

// DefaultRequestIDHeader is the header written by RequestIDFilter
const DefaultRequestIDHeader = "X-Request-ID"

// HopByHopHeaders are removed by RemoveHeadersFilter when HopByHop is set.
//
// http://tools.ietf.org/html/draft-ietf-httpbis-p1-messaging-14#section-7.1.3.1
var HopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection", // Non-standard, but required for HTTP/2.
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// HeaderMapping copies one header to another name
type HeaderMapping struct {
	// From is the source header name (case-insensitive)
	From string `json:"from" yaml:"from"`
	// To is the target header name
	To string `json:"to" yaml:"to"`
	// Transform is an optional transformation applied to every value
	Transform TransformFunc `json:"-" yaml:"-"`
	// Required logs a warning when the source header is missing
	Required bool `json:"required" yaml:"required"`
	// DefaultValue is used when the source header is missing
	DefaultValue string `json:"default_value" yaml:"default_value"`
	// KeepSource keeps the source header next to the target
	KeepSource bool `json:"keep_source" yaml:"keep_source"`
}

// MappingFilter renames or copies headers according to its mappings
type MappingFilter struct {
	Mappings []HeaderMapping
	// OverwriteExisting replaces a target header that is already present
	OverwriteExisting bool
	// Priority is the execution order
	Priority int
	Logger   Logger
}

// Order implements Ordered
func (f *MappingFilter) Order() int { return f.Priority }

// Filter implements HeaderFilter
func (f *MappingFilter) Filter(headers *Headers) *Headers {
	out := headers.Clone()
	for _, m := range f.Mappings {
		f.apply(headers, out, m)
	}
	return out
}

func (f *MappingFilter) apply(in, out *Headers, m HeaderMapping) {
	values := in.Get(m.From)
	if len(values) == 0 {
		if m.DefaultValue == "" {
			if m.Required {
				f.logger().Warn("Required header missing: ", m.From)
			}
			return
		}
		values = []string{m.DefaultValue}
	}

	if m.Transform != nil {
		for i := range values {
			values[i] = m.Transform(values[i])
		}
	}

	sameName := strings.EqualFold(m.From, m.To)
	if !sameName && out.Has(m.To) && !f.OverwriteExisting {
		return
	}
	if !sameName && !m.KeepSource {
		out.Del(m.From)
	}
	out.Set(m.To, values...)
}

func (f *MappingFilter) logger() Logger {
	if f.Logger == nil {
		return NoOpLogger{}
	}
	return f.Logger
}

// RemoveHeadersFilter drops a fixed set of headers
type RemoveHeadersFilter struct {
	Headers []string
	// HopByHop also removes hop-by-hop headers and the names listed in Connection
	HopByHop bool
	Priority int
}

// Order implements Ordered
func (f *RemoveHeadersFilter) Order() int { return f.Priority }

// Filter implements HeaderFilter
func (f *RemoveHeadersFilter) Filter(headers *Headers) *Headers {
	out := headers.Clone()
	if f.HopByHop {
		for _, v := range headers.Get("Connection") {
			for _, name := range strings.Split(v, ",") {
				if name = strings.TrimSpace(name); name != "" {
					out.Del(name)
				}
			}
		}
		for _, name := range HopByHopHeaders {
			out.Del(name)
		}
	}
	for _, name := range f.Headers {
		out.Del(name)
	}
	return out
}

// SetHeadersFilter writes static header values
type SetHeadersFilter struct {
	Values map[string][]string
	// Append adds the values instead of replacing existing ones
	Append   bool
	Priority int
}

// Order implements Ordered
func (f *SetHeadersFilter) Order() int { return f.Priority }

// Filter implements HeaderFilter
func (f *SetHeadersFilter) Filter(headers *Headers) *Headers {
	out := headers.Clone()
	for _, name := range sortedKeys(f.Values) {
		if f.Append {
			out.AddAll(name, f.Values[name])
		} else {
			out.Set(name, f.Values[name]...)
		}
	}
	return out
}

// RequestIDFilter adds a random request ID when none is present
type RequestIDFilter struct {
	// Header defaults to X-Request-ID
	Header   string
	Priority int
}

// Order implements Ordered
func (f *RequestIDFilter) Order() int { return f.Priority }

// Filter implements HeaderFilter
func (f *RequestIDFilter) Filter(headers *Headers) *Headers {
	name := f.Header
	if name == "" {
		name = DefaultRequestIDHeader
	}
	out := headers.Clone()
	if out.First(name) == "" {
		out.Set(name, uuid.NewString())
	}
	return out
}
