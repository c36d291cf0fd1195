package headerfilter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"dario.cat/mergo"
	"golang.org/x/net/http/httpguts"
	"gopkg.in/yaml.v3"
)

// Filter types understood by BuildChain
const (
	TypeForwarded = "forwarded"
	TypeMapping   = "mapping"
	TypeRemove    = "remove"
	TypeSet       = "set"
	TypeRequestID = "request_id"
)

// ErrUnknownFilterType is returned for a filter type with no registered factory
var ErrUnknownFilterType = errors.New("unknown filter type")

// Config holds the request and response filter chains
type Config struct {
	// Request filters run on headers sent upstream
	Request []FilterConfig `json:"request" yaml:"request"`
	// Response filters run on headers returned to the client
	Response []FilterConfig `json:"response" yaml:"response"`
	// Debug enables debug logging
	Debug bool `json:"debug" yaml:"debug"`
	// SkipPaths are request paths and gRPC methods left unfiltered by the
	// HTTP handler, the gateway and the interceptors
	SkipPaths []string `json:"skip_paths,omitempty" yaml:"skip_paths,omitempty"`
}

// FilterConfig declares one filter of a chain. Which fields apply depends on Type.
type FilterConfig struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
	// Order overrides the filter's own execution order
	Order *int `json:"order,omitempty" yaml:"order,omitempty"`

	// remove
	Headers  []string `json:"headers,omitempty" yaml:"headers,omitempty"`
	HopByHop bool     `json:"hop_by_hop,omitempty" yaml:"hop_by_hop,omitempty"`

	// set
	Values map[string][]string `json:"values,omitempty" yaml:"values,omitempty"`
	Append bool                `json:"append,omitempty" yaml:"append,omitempty"`

	// mapping
	Mappings          []MappingConfig `json:"mappings,omitempty" yaml:"mappings,omitempty"`
	OverwriteExisting bool            `json:"overwrite_existing,omitempty" yaml:"overwrite_existing,omitempty"`

	// forwarded
	SplitElements bool `json:"split_elements,omitempty" yaml:"split_elements,omitempty"`

	// request_id
	Header string `json:"header,omitempty" yaml:"header,omitempty"`
}

// MappingConfig is the declarative form of HeaderMapping
type MappingConfig struct {
	From         string            `json:"from" yaml:"from"`
	To           string            `json:"to" yaml:"to"`
	Required     bool              `json:"required,omitempty" yaml:"required,omitempty"`
	DefaultValue string            `json:"default_value,omitempty" yaml:"default_value,omitempty"`
	KeepSource   bool              `json:"keep_source,omitempty" yaml:"keep_source,omitempty"`
	Transforms   []TransformConfig `json:"transforms,omitempty" yaml:"transforms,omitempty"`
}

// TransformConfig names a transform and its arguments, see LookupTransform
type TransformConfig struct {
	Name string   `json:"name" yaml:"name"`
	Args []string `json:"args,omitempty" yaml:"args,omitempty"`
}

// DefaultConfig returns a request chain holding only the Forwarded filter
func DefaultConfig() *Config {
	return &Config{
		Request: []FilterConfig{
			{Name: TypeForwarded, Type: TypeForwarded},
		},
	}
}

// ApplyDefaults fills empty fields of config from DefaultConfig and names
// unnamed filters after their type
func ApplyDefaults(config *Config) error {
	if err := mergo.Merge(config, DefaultConfig()); err != nil {
		return fmt.Errorf("failed to apply config defaults: %w", err)
	}
	for _, filters := range [][]FilterConfig{config.Request, config.Response} {
		for i := range filters {
			if filters[i].Name == "" {
				filters[i].Name = filters[i].Type
			}
		}
	}
	return nil
}

// LoadConfigFromFile loads configuration from a file (JSON or YAML)
func LoadConfigFromFile(filename string) (*Config, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config

	// Try YAML first, then JSON
	if err := yaml.Unmarshal(data, &config); err != nil {
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file as YAML or JSON: %w", err)
		}
	}

	return &config, nil
}

// SaveConfigToFile saves configuration to a file
func SaveConfigToFile(config *Config, filename string, format string) error {
	var data []byte
	var err error

	switch format {
	case "yaml", "yml":
		data, err = yaml.Marshal(config)
	case "json":
		data, err = json.MarshalIndent(config, "", "  ")
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(filename, data, 0644)
}

// ValidateConfig checks filter types, header names and transforms
func ValidateConfig(config *Config) error {
	if config == nil {
		return fmt.Errorf("configuration is nil")
	}
	if err := validateFilters("request", config.Request); err != nil {
		return err
	}
	return validateFilters("response", config.Response)
}

func validateFilters(chain string, filters []FilterConfig) error {
	seen := make(map[string]bool)
	for i, fc := range filters {
		if fc.Type == "" {
			return fmt.Errorf("%s filter %d: type cannot be empty", chain, i)
		}
		if _, ok := lookupFactory(fc.Type); !ok {
			return fmt.Errorf("%s filter %d: %w: %s", chain, i, ErrUnknownFilterType, fc.Type)
		}
		if fc.Name != "" {
			if seen[fc.Name] {
				return fmt.Errorf("%s filter %d: duplicate name %q", chain, i, fc.Name)
			}
			seen[fc.Name] = true
		}

		names := append([]string(nil), fc.Headers...)
		if fc.Header != "" {
			names = append(names, fc.Header)
		}
		for name := range fc.Values {
			names = append(names, name)
		}
		for j, m := range fc.Mappings {
			if m.From == "" || m.To == "" {
				return fmt.Errorf("%s filter %d mapping %d: from and to cannot be empty", chain, i, j)
			}
			names = append(names, m.From, m.To)
			for _, t := range m.Transforms {
				if _, err := LookupTransform(t.Name, t.Args...); err != nil {
					return fmt.Errorf("%s filter %d mapping %d: %w", chain, i, j, err)
				}
			}
		}
		for _, name := range names {
			if !httpguts.ValidHeaderFieldName(name) {
				return fmt.Errorf("%s filter %d: invalid header name %q", chain, i, name)
			}
		}
	}
	return nil
}

// FilterEnv carries shared collaborators into filter factories
type FilterEnv struct {
	Logger  Logger
	Metrics *Metrics
}

// FilterFactory creates a filter from its configuration
type FilterFactory func(config FilterConfig, env FilterEnv) (HeaderFilter, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]FilterFactory{
		TypeForwarded: newForwardedFromConfig,
		TypeMapping:   newMappingFromConfig,
		TypeRemove:    newRemoveFromConfig,
		TypeSet:       newSetFromConfig,
		TypeRequestID: newRequestIDFromConfig,
	}
)

// RegisterFilterType makes a custom filter type available to configuration
func RegisterFilterType(name string, factory FilterFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

func lookupFactory(name string) (FilterFactory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[name]
	return f, ok
}

// BuildChain creates a chain from filter configurations
func BuildChain(filters []FilterConfig, opts ...ChainOption) (*Chain, error) {
	resolved := resolveOptions(opts)
	env := FilterEnv{Logger: resolved.logger, Metrics: resolved.metrics}

	descriptors := make([]FilterDescriptor, 0, len(filters))
	for i, fc := range filters {
		factory, ok := lookupFactory(fc.Type)
		if !ok {
			return nil, fmt.Errorf("filter %d: %w: %s", i, ErrUnknownFilterType, fc.Type)
		}
		filter, err := factory(fc, env)
		if err != nil {
			return nil, fmt.Errorf("filter %d (%s): %w", i, fc.Type, err)
		}

		name := fc.Name
		if name == "" {
			name = fc.Type
		}
		d := Describe(name, filter)
		if fc.Order != nil {
			d.Order = *fc.Order
		}
		descriptors = append(descriptors, d)
	}

	return NewChain(descriptors, opts...)
}

// BuildChains creates the request and response chains of config
func BuildChains(config *Config, opts ...ChainOption) (request, response *Chain, err error) {
	if err := ValidateConfig(config); err != nil {
		return nil, nil, err
	}
	opts = append([]ChainOption{WithDebug(config.Debug), WithSkipPaths(config.SkipPaths...)}, opts...)
	if request, err = BuildChain(config.Request, opts...); err != nil {
		return nil, nil, fmt.Errorf("request chain: %w", err)
	}
	if response, err = BuildChain(config.Response, opts...); err != nil {
		return nil, nil, fmt.Errorf("response chain: %w", err)
	}
	return request, response, nil
}

func priority(config FilterConfig) int {
	if config.Order != nil {
		return *config.Order
	}
	return 0
}

func newForwardedFromConfig(config FilterConfig, env FilterEnv) (HeaderFilter, error) {
	return &ForwardedHeadersFilter{
		SplitElements: config.SplitElements,
		Metrics:       env.Metrics,
	}, nil
}

func newMappingFromConfig(config FilterConfig, env FilterEnv) (HeaderFilter, error) {
	f := &MappingFilter{
		OverwriteExisting: config.OverwriteExisting,
		Priority:          priority(config),
		Logger:            env.Logger,
	}
	for _, mc := range config.Mappings {
		var transforms []TransformFunc
		for _, tc := range mc.Transforms {
			t, err := LookupTransform(tc.Name, tc.Args...)
			if err != nil {
				return nil, err
			}
			transforms = append(transforms, t)
		}
		m := HeaderMapping{
			From:         mc.From,
			To:           mc.To,
			Required:     mc.Required,
			DefaultValue: mc.DefaultValue,
			KeepSource:   mc.KeepSource,
		}
		if len(transforms) > 0 {
			m.Transform = ChainTransforms(transforms...)
		}
		f.Mappings = append(f.Mappings, m)
	}
	return f, nil
}

func newRemoveFromConfig(config FilterConfig, _ FilterEnv) (HeaderFilter, error) {
	return &RemoveHeadersFilter{
		Headers:  config.Headers,
		HopByHop: config.HopByHop,
		Priority: priority(config),
	}, nil
}

func newSetFromConfig(config FilterConfig, _ FilterEnv) (HeaderFilter, error) {
	return &SetHeadersFilter{
		Values:   config.Values,
		Append:   config.Append,
		Priority: priority(config),
	}, nil
}

func newRequestIDFromConfig(config FilterConfig, _ FilterEnv) (HeaderFilter, error) {
	return &RequestIDFilter{
		Header:   config.Header,
		Priority: priority(config),
	}, nil
}

// ConfigBuilder helps build configurations programmatically
type ConfigBuilder struct {
	config *Config
}

// NewConfigBuilder creates a new configuration builder
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{
		config: &Config{},
	}
}

// AddRequestFilter appends a filter to the request chain
func (cb *ConfigBuilder) AddRequestFilter(filter FilterConfig) *ConfigBuilder {
	cb.config.Request = append(cb.config.Request, filter)
	return cb
}

// AddResponseFilter appends a filter to the response chain
func (cb *ConfigBuilder) AddResponseFilter(filter FilterConfig) *ConfigBuilder {
	cb.config.Response = append(cb.config.Response, filter)
	return cb
}

// WithDebug sets debug mode
func (cb *ConfigBuilder) WithDebug(debug bool) *ConfigBuilder {
	cb.config.Debug = debug
	return cb
}

// WithSkipPaths adds paths the integrations leave unfiltered
func (cb *ConfigBuilder) WithSkipPaths(paths ...string) *ConfigBuilder {
	cb.config.SkipPaths = append(cb.config.SkipPaths, paths...)
	return cb
}

// Build returns the built configuration
func (cb *ConfigBuilder) Build() *Config {
	return cb.config
}
