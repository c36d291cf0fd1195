package headerfilter

import (
	"reflect"
	"testing"
)

func TestParseForwarded(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []ForwardedPair
	}{
		{
			name:     "single pair",
			input:    "for=1.2.3.4",
			expected: []ForwardedPair{{"for", "1.2.3.4"}},
		},
		{
			name:     "trailing empty token",
			input:    "for=1.2.3.4;",
			expected: []ForwardedPair{{"for", "1.2.3.4"}},
		},
		{
			name:     "whitespace trimmed",
			input:    "  for = 5.6.7.8 ;proto= https  ",
			expected: []ForwardedPair{{"for", "5.6.7.8"}, {"proto", "https"}},
		},
		{
			name:     "token without equals skipped",
			input:    "garbage;for=1.2.3.4",
			expected: []ForwardedPair{{"for", "1.2.3.4"}},
		},
		{
			name:     "split on first equals only",
			input:    "host=a=b",
			expected: []ForwardedPair{{"host", "a=b"}},
		},
		{
			name:     "duplicate key overwrites in place",
			input:    "for=1.1.1.1;proto=http;FOR=2.2.2.2",
			expected: []ForwardedPair{{"for", "2.2.2.2"}, {"proto", "http"}},
		},
		{
			name:     "quoted value kept verbatim",
			input:    `for="[2001:db8:cafe::17]:4711"`,
			expected: []ForwardedPair{{"for", `"[2001:db8:cafe::17]:4711"`}},
		},
		{
			name:     "empty value kept",
			input:    "by=",
			expected: []ForwardedPair{{"by", ""}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseForwarded(tt.input)
			if got == nil {
				t.Fatalf("ParseForwarded(%q) = nil", tt.input)
			}
			if !reflect.DeepEqual(got.Pairs(), tt.expected) {
				t.Errorf("ParseForwarded(%q) = %v, want %v", tt.input, got.Pairs(), tt.expected)
			}
		})
	}
}

func TestParseForwarded_Absent(t *testing.T) {
	for _, input := range []string{"", "   ", ";;", "garbage", "=value", " ; nokey ; "} {
		if got := ParseForwarded(input); got != nil {
			t.Errorf("ParseForwarded(%q) = %v, want nil", input, got)
		}
	}
}

func TestParseAllForwarded(t *testing.T) {
	records := ParseAllForwarded([]string{"for=1.2.3.4", "", "for=5.6.7.8;proto=https"})
	if len(records) != 3 {
		t.Fatalf("ParseAllForwarded() returned %d records, want 3", len(records))
	}
	if records[1] != nil {
		t.Errorf("records[1] = %v, want nil", records[1])
	}
	if records[2].For() != "5.6.7.8" || records[2].Proto() != "https" {
		t.Errorf("records[2] = %v", records[2])
	}
}

func TestForwardedRecord_String(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"for=1.2.3.4", "for=1.2.3.4"},
		{"for=5.6.7.8;proto=https", "for=5.6.7.8; proto=https"},
		{"For=a ; By=b;host=c", "For=a; By=b; host=c"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseForwarded(tt.input).String(); got != tt.expected {
				t.Errorf("String() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestForwardedRecord_RoundTrip(t *testing.T) {
	input := "for=192.0.2.60; proto=http; by=203.0.113.43; host=example.com"
	record := ParseForwarded(input)
	if got := record.String(); got != input {
		t.Errorf("round trip = %q, want %q", got, input)
	}
	if again := ParseForwarded(record.String()).String(); again != input {
		t.Errorf("second round trip = %q, want %q", again, input)
	}
}

func TestForwardedRecord_Accessors(t *testing.T) {
	record := ParseForwarded("FOR=1.2.3.4;By=proxy;Host=example.com;proto=https")
	if record.For() != "1.2.3.4" || record.By() != "proxy" || record.Host() != "example.com" || record.Proto() != "https" {
		t.Errorf("accessors returned for=%q by=%q host=%q proto=%q", record.For(), record.By(), record.Host(), record.Proto())
	}
	if _, ok := record.Get("secret"); ok {
		t.Error("Get(secret) should report absent")
	}
	if want := []string{"FOR", "By", "Host", "proto"}; !reflect.DeepEqual(record.Keys(), want) {
		t.Errorf("Keys() = %v, want %v", record.Keys(), want)
	}

	var nilRecord *ForwardedRecord
	if nilRecord.For() != "" || nilRecord.Len() != 0 || nilRecord.String() != "" {
		t.Error("nil record should behave as empty")
	}
}

func TestSplitForwardedElements(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{"for=1.2.3.4", []string{"for=1.2.3.4"}},
		{"for=1.2.3.4, for=5.6.7.8;proto=https", []string{"for=1.2.3.4", "for=5.6.7.8;proto=https"}},
		{`for="a,b";by=c, for=d`, []string{`for="a,b";by=c`, "for=d"}},
		{`for="a\",b", for=d`, []string{`for="a\",b"`, "for=d"}},
		{" , ,", nil},
		{"", nil},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := SplitForwardedElements(tt.input); !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("SplitForwardedElements(%q) = %#v, want %#v", tt.input, got, tt.expected)
			}
		})
	}
}
