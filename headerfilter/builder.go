package headerfilter

// Builder provides a fluent API for assembling a Chain
type Builder struct {
	filters []FilterDescriptor
	opts    []ChainOption
}

// NewBuilder creates an empty chain builder
func NewBuilder() *Builder {
	return &Builder{
		filters: make([]FilterDescriptor, 0),
	}
}

// Add appends a filter, taking its order from Ordered when implemented
func (b *Builder) Add(name string, filter HeaderFilter) *Builder {
	b.filters = append(b.filters, Describe(name, filter))
	return b
}

// AddWithOrder appends a filter with an explicit order
func (b *Builder) AddWithOrder(name string, order int, filter HeaderFilter) *Builder {
	b.filters = append(b.filters, FilterDescriptor{Name: name, Order: order, Filter: filter})
	return b
}

// AddForwarded appends a ForwardedHeadersFilter
func (b *Builder) AddForwarded() *Builder {
	return b.Add(TypeForwarded, NewForwardedHeadersFilter())
}

// AddMapping appends a MappingFilter for a single mapping
func (b *Builder) AddMapping(from, to string, transform TransformFunc) *Builder {
	return b.Add(TypeMapping, &MappingFilter{
		Mappings: []HeaderMapping{{From: from, To: to, Transform: transform}},
	})
}

// RemoveHeaders appends a RemoveHeadersFilter
func (b *Builder) RemoveHeaders(names ...string) *Builder {
	return b.Add(TypeRemove, &RemoveHeadersFilter{Headers: names})
}

// WithOrder sets the order of the last added filter
func (b *Builder) WithOrder(order int) *Builder {
	if len(b.filters) > 0 {
		b.filters[len(b.filters)-1].Order = order
	}
	return b
}

// WithLogger sets the chain logger
func (b *Builder) WithLogger(logger Logger) *Builder {
	b.opts = append(b.opts, WithLogger(logger))
	return b
}

// WithMetrics sets the chain metrics
func (b *Builder) WithMetrics(m *Metrics) *Builder {
	b.opts = append(b.opts, WithMetrics(m))
	return b
}

// Debug enables debug logging
func (b *Builder) Debug(debug bool) *Builder {
	b.opts = append(b.opts, WithDebug(debug))
	return b
}

// SkipPaths excludes request paths and gRPC methods from the integrations
func (b *Builder) SkipPaths(paths ...string) *Builder {
	b.opts = append(b.opts, WithSkipPaths(paths...))
	return b
}

// Build creates the Chain
func (b *Builder) Build() (*Chain, error) {
	return NewChain(b.filters, b.opts...)
}
