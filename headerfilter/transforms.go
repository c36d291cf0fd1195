package headerfilter

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// TransformFunc is a function that transforms a header value
type TransformFunc func(value string) string

// ErrUnknownTransform is returned when a named transform is not registered
var ErrUnknownTransform = errors.New("unknown transform")

var versionPattern = regexp.MustCompile(`\d+\.\d+(\.\d+)*`)

// ToLower lowercases a header value
func ToLower(value string) string {
	return strings.ToLower(value)
}

// ToUpper uppercases a header value
func ToUpper(value string) string {
	return strings.ToUpper(value)
}

// TrimSpace trims whitespace from a header value
func TrimSpace(value string) string {
	return strings.TrimSpace(value)
}

// Normalize trims and lowercases a header value
func Normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// SanitizeUserAgent replaces version numbers in a user agent with x.x.x
func SanitizeUserAgent(value string) string {
	return versionPattern.ReplaceAllString(value, "x.x.x")
}

// FormatTimestamp formats a Unix timestamp as RFC 3339
func FormatTimestamp(value string) string {
	if ts, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Unix(ts, 0).UTC().Format(time.RFC3339)
	}
	return value
}

// ParseTimestamp converts an RFC 3339 time to a Unix timestamp
func ParseTimestamp(value string) string {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return strconv.FormatInt(t.Unix(), 10)
	}
	return value
}

// ExtractBearerToken strips the "Bearer " scheme
func ExtractBearerToken(value string) string {
	const bearerPrefix = "Bearer "
	if strings.HasPrefix(value, bearerPrefix) {
		return strings.TrimSpace(value[len(bearerPrefix):])
	}
	return value
}

// AddPrefix adds a prefix to a header value
func AddPrefix(prefix string) TransformFunc {
	return func(value string) string {
		return prefix + value
	}
}

// RemovePrefix removes a prefix from a header value
func RemovePrefix(prefix string) TransformFunc {
	return func(value string) string {
		return strings.TrimPrefix(value, prefix)
	}
}

// AddSuffix adds a suffix to a header value
func AddSuffix(suffix string) TransformFunc {
	return func(value string) string {
		return value + suffix
	}
}

// RemoveSuffix removes a suffix from a header value
func RemoveSuffix(suffix string) TransformFunc {
	return func(value string) string {
		return strings.TrimSuffix(value, suffix)
	}
}

// DefaultIfEmpty returns defaultValue for blank input
func DefaultIfEmpty(defaultValue string) TransformFunc {
	return func(value string) string {
		if strings.TrimSpace(value) == "" {
			return defaultValue
		}
		return value
	}
}

// Truncate cuts the value to maxLength bytes
func Truncate(maxLength int) TransformFunc {
	return func(value string) string {
		if len(value) <= maxLength {
			return value
		}
		return value[:maxLength]
	}
}

// MaskSensitive masks a value, showing only showChars characters at each end
func MaskSensitive(showChars int) TransformFunc {
	return func(value string) string {
		if len(value) <= showChars*2 {
			return strings.Repeat("*", len(value))
		}
		return value[:showChars] + strings.Repeat("*", len(value)-showChars*2) + value[len(value)-showChars:]
	}
}

// RegexReplace replaces matches of pattern with replacement
func RegexReplace(pattern, replacement string) (TransformFunc, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	return func(value string) string {
		return re.ReplaceAllString(value, replacement)
	}, nil
}

// ConditionalTransform applies transform only when condition holds
func ConditionalTransform(condition func(string) bool, transform TransformFunc) TransformFunc {
	return func(value string) string {
		if condition(value) {
			return transform(value)
		}
		return value
	}
}

// ChainTransforms chains multiple transformation functions
func ChainTransforms(transforms ...TransformFunc) TransformFunc {
	return func(value string) string {
		result := value
		for _, transform := range transforms {
			if transform != nil {
				result = transform(result)
			}
		}
		return result
	}
}

// LookupTransform resolves a transform by its configuration name
func LookupTransform(name string, args ...string) (TransformFunc, error) {
	arg := func(n int) (string, error) {
		if len(args) <= n {
			return "", fmt.Errorf("transform %q: missing argument %d", name, n+1)
		}
		return args[n], nil
	}
	intArg := func() (int, error) {
		s, err := arg(0)
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("transform %q: invalid length %q", name, s)
		}
		return n, nil
	}

	switch name {
	case "lower":
		return ToLower, nil
	case "upper":
		return ToUpper, nil
	case "trim_space":
		return TrimSpace, nil
	case "normalize":
		return Normalize, nil
	case "sanitize_user_agent":
		return SanitizeUserAgent, nil
	case "format_timestamp":
		return FormatTimestamp, nil
	case "parse_timestamp":
		return ParseTimestamp, nil
	case "extract_bearer_token":
		return ExtractBearerToken, nil
	case "add_prefix", "remove_prefix", "add_suffix", "remove_suffix", "default_if_empty":
		a, err := arg(0)
		if err != nil {
			return nil, err
		}
		return map[string]func(string) TransformFunc{
			"add_prefix":       AddPrefix,
			"remove_prefix":    RemovePrefix,
			"add_suffix":       AddSuffix,
			"remove_suffix":    RemoveSuffix,
			"default_if_empty": DefaultIfEmpty,
		}[name](a), nil
	case "truncate":
		n, err := intArg()
		if err != nil {
			return nil, err
		}
		return Truncate(n), nil
	case "mask":
		n, err := intArg()
		if err != nil {
			return nil, err
		}
		return MaskSensitive(n), nil
	case "regex_replace":
		pattern, err := arg(0)
		if err != nil {
			return nil, err
		}
		replacement, err := arg(1)
		if err != nil {
			return nil, err
		}
		return RegexReplace(pattern, replacement)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownTransform, name)
}
