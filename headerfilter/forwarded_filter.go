package headerfilter

import "strings"

// ForwardedHeadersFilter re-emits the Forwarded header in normalized form.
// Every other header is copied unchanged. Each parsed hop record becomes one
// Forwarded value; values that do not parse are dropped.
type ForwardedHeadersFilter struct {
	// SplitElements splits comma-separated elements of a value into separate records
	SplitElements bool
	// Metrics counts emitted and dropped records
	Metrics *Metrics
}

// NewForwardedHeadersFilter creates a filter with default settings
func NewForwardedHeadersFilter() *ForwardedHeadersFilter {
	return &ForwardedHeadersFilter{}
}

// Order runs the filter before the other header filters
func (f *ForwardedHeadersFilter) Order() int {
	return HighestPrecedence
}

// Filter implements HeaderFilter
func (f *ForwardedHeadersFilter) Filter(original *Headers) *Headers {
	updated := NewHeaders()

	for _, e := range original.Entries() {
		if strings.EqualFold(e.Name, ForwardedHeader) {
			continue
		}
		updated.AddAll(e.Name, e.Values)
	}

	values := original.Get(ForwardedHeader)
	if f.SplitElements {
		values = splitAll(values)
	}

	dropped := 0
	for _, record := range ParseAllForwarded(values) {
		if record == nil {
			dropped++
			continue
		}
		updated.Add(ForwardedHeader, record.String())
	}
	f.Metrics.recordForwarded(len(values)-dropped, dropped)

	return updated
}

func splitAll(values []string) []string {
	var out []string
	for _, v := range values {
		elements := SplitForwardedElements(v)
		if len(elements) == 0 {
			// keep the blank value so it is counted as dropped
			out = append(out, v)
			continue
		}
		out = append(out, elements...)
	}
	return out
}
