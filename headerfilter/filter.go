package headerfilter

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync/atomic"
	"time"
)

// Execution order bounds. Lower values run earlier.
const (
	HighestPrecedence = math.MinInt32
	LowestPrecedence  = math.MaxInt32
)

var (
	// ErrNilFilter is returned when a chain is built with a nil filter
	ErrNilFilter = errors.New("header filter is nil")
)

// HeaderFilter transforms a header set. Implementations must not mutate the
// input and must be safe for concurrent use.
type HeaderFilter interface {
	Filter(headers *Headers) *Headers
}

// Ordered is implemented by filters that declare their own execution order
type Ordered interface {
	Order() int
}

// FilterFunc adapts a function to HeaderFilter
type FilterFunc func(headers *Headers) *Headers

// Filter calls f(headers)
func (f FilterFunc) Filter(headers *Headers) *Headers {
	return f(headers)
}

// FilterDescriptor is a filter plus its execution order
type FilterDescriptor struct {
	Name   string
	Order  int
	Filter HeaderFilter
}

// Describe creates a descriptor, taking the order from the filter when it implements Ordered
func Describe(name string, filter HeaderFilter) FilterDescriptor {
	d := FilterDescriptor{Name: name, Filter: filter}
	if o, ok := filter.(Ordered); ok {
		d.Order = o.Order()
	}
	return d
}

// Logger interface for logging (can be implemented by any logger)
type Logger interface {
	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})
}

// NoOpLogger is a no-operation logger
type NoOpLogger struct{}

func (n NoOpLogger) Debug(args ...interface{}) {}
func (n NoOpLogger) Info(args ...interface{})  {}
func (n NoOpLogger) Warn(args ...interface{})  {}
func (n NoOpLogger) Error(args ...interface{}) {}

// sortDescriptors returns a copy sorted by Order, keeping declaration order for ties
func sortDescriptors(filters []FilterDescriptor) []FilterDescriptor {
	sorted := append([]FilterDescriptor(nil), filters...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Order < sorted[j].Order
	})
	return sorted
}

// Validate reports the first descriptor without a filter
func Validate(filters []FilterDescriptor) error {
	for i, d := range filters {
		if d.Filter == nil {
			return fmt.Errorf("filter %d (%q): %w", i, d.Name, ErrNilFilter)
		}
	}
	return nil
}

// Run applies filters in ascending order. Each filter receives the previous
// filter's output. With no filters the initial set is returned as is.
//
// Run does not check its input and panics on a descriptor with a nil Filter.
// Call Validate first, or build a Chain once with NewChain and reuse it.
func Run(filters []FilterDescriptor, initial *Headers) *Headers {
	if len(filters) == 0 {
		return initial
	}
	filtered := initial
	for _, d := range sortDescriptors(filters) {
		filtered = apply(d, filtered)
	}
	return filtered
}

func apply(d FilterDescriptor, headers *Headers) *Headers {
	out := d.Filter.Filter(headers)
	if out == nil {
		return NewHeaders()
	}
	return out
}

// Chain is an immutable, pre-sorted list of filters. It is safe for concurrent use.
type Chain struct {
	filters []FilterDescriptor
	chainOptions

	runs           atomic.Int64
	filtersApplied atomic.Int64
	lastRun        atomic.Int64
}

type chainOptions struct {
	logger    Logger
	metrics   *Metrics
	debug     bool
	skipPaths map[string]bool
}

func resolveOptions(opts []ChainOption) chainOptions {
	o := chainOptions{logger: NoOpLogger{}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ChainOption configures a Chain
type ChainOption func(*chainOptions)

// WithLogger sets a custom logger
func WithLogger(logger Logger) ChainOption {
	return func(o *chainOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics records chain activity in m
func WithMetrics(m *Metrics) ChainOption {
	return func(o *chainOptions) {
		o.metrics = m
	}
}

// WithDebug enables logging of the header set after every filter
func WithDebug(debug bool) ChainOption {
	return func(o *chainOptions) {
		o.debug = debug
	}
}

// WithSkipPaths lists request paths and gRPC full method names the
// integrations leave untouched. Run itself never skips.
func WithSkipPaths(paths ...string) ChainOption {
	return func(o *chainOptions) {
		if len(paths) == 0 {
			return
		}
		if o.skipPaths == nil {
			o.skipPaths = make(map[string]bool, len(paths))
		}
		for _, path := range paths {
			o.skipPaths[path] = true
		}
	}
}

// NewChain validates and sorts filters once
func NewChain(filters []FilterDescriptor, opts ...ChainOption) (*Chain, error) {
	if err := Validate(filters); err != nil {
		return nil, err
	}
	return &Chain{
		filters:      sortDescriptors(filters),
		chainOptions: resolveOptions(opts),
	}, nil
}

// skips reports whether path is excluded from filtering
func (c *Chain) skips(path string) bool {
	return c == nil || c.skipPaths[path]
}

// MustNewChain is like NewChain but panics on error
func MustNewChain(filters []FilterDescriptor, opts ...ChainOption) *Chain {
	c, err := NewChain(filters, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// Filters returns a copy of the sorted descriptors
func (c *Chain) Filters() []FilterDescriptor {
	return append([]FilterDescriptor(nil), c.filters...)
}

// Len returns the number of filters
func (c *Chain) Len() int {
	if c == nil {
		return 0
	}
	return len(c.filters)
}

// Run applies every filter in order to headers
func (c *Chain) Run(headers *Headers) *Headers {
	if c == nil || len(c.filters) == 0 {
		return headers
	}

	filtered := headers
	for _, d := range c.filters {
		filtered = apply(d, filtered)
		c.metrics.recordFilter(d.Name)
		if c.debug {
			c.logger.Debug("Headers after filter ", d.Name, ":\n", filtered)
		}
	}

	c.runs.Add(1)
	c.filtersApplied.Add(int64(len(c.filters)))
	c.lastRun.Store(time.Now().UnixNano())
	c.metrics.recordRun()
	return filtered
}

// Stats provides statistics about chain executions
type Stats struct {
	Runs           int64
	FiltersApplied int64
	LastRun        time.Time
}

// GetStats returns statistics about the chain
func (c *Chain) GetStats() *Stats {
	s := &Stats{
		Runs:           c.runs.Load(),
		FiltersApplied: c.filtersApplied.Load(),
	}
	if ns := c.lastRun.Load(); ns != 0 {
		s.LastRun = time.Unix(0, ns)
	}
	return s
}
