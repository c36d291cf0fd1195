package headerfilter

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// appendFilter records its name in the X-Trail header
func appendFilter(name string) HeaderFilter {
	return FilterFunc(func(h *Headers) *Headers {
		out := h.Clone()
		out.Add("X-Trail", name)
		return out
	})
}

func trail(h *Headers) []string {
	return h.Get("X-Trail")
}

func TestRun_EmptyChain(t *testing.T) {
	input := headersOf("B", "2", "A", "1", "a", "3")
	if got := Run(nil, input); got != input {
		t.Error("Run() with no filters should return its input")
	}
	if got := Run([]FilterDescriptor{}, input); !got.Equal(headersOf("B", "2", "A", "1", "A", "3")) {
		t.Errorf("Run() = %s", got)
	}
}

func TestRun_Order(t *testing.T) {
	tests := []struct {
		name     string
		filters  []FilterDescriptor
		expected []string
	}{
		{
			name: "ascending order",
			filters: []FilterDescriptor{
				{Name: "c", Order: 30, Filter: appendFilter("c")},
				{Name: "a", Order: -10, Filter: appendFilter("a")},
				{Name: "b", Order: 0, Filter: appendFilter("b")},
			},
			expected: []string{"a", "b", "c"},
		},
		{
			name: "ties keep declaration order",
			filters: []FilterDescriptor{
				{Name: "first", Order: 5, Filter: appendFilter("first")},
				{Name: "second", Order: 5, Filter: appendFilter("second")},
				{Name: "early", Order: HighestPrecedence, Filter: appendFilter("early")},
				{Name: "third", Order: 5, Filter: appendFilter("third")},
				{Name: "late", Order: LowestPrecedence, Filter: appendFilter("late")},
			},
			expected: []string{"early", "first", "second", "third", "late"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := trail(Run(tt.filters, NewHeaders()))
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Run() trail = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestRun_OutputReplacesWorkingSet(t *testing.T) {
	dropAll := FilterFunc(func(*Headers) *Headers { return NewHeaders() })
	filters := []FilterDescriptor{
		{Name: "drop", Order: 1, Filter: dropAll},
		{Name: "mark", Order: 2, Filter: appendFilter("mark")},
	}

	got := Run(filters, headersOf("Authorization", "secret"))
	if got.Has("Authorization") {
		t.Error("later filters should only see the previous filter's output")
	}
	if !reflect.DeepEqual(trail(got), []string{"mark"}) {
		t.Errorf("trail = %v", trail(got))
	}
}

func TestRun_NilOutput(t *testing.T) {
	filters := []FilterDescriptor{
		{Name: "nil", Filter: FilterFunc(func(*Headers) *Headers { return nil })},
		{Name: "mark", Order: 1, Filter: appendFilter("mark")},
	}
	got := Run(filters, headersOf("A", "1"))
	if got.Len() != 1 || !reflect.DeepEqual(trail(got), []string{"mark"}) {
		t.Errorf("Run() = %s", got)
	}
}

func TestRun_DoesNotSortCallerSlice(t *testing.T) {
	filters := []FilterDescriptor{
		{Name: "b", Order: 2, Filter: appendFilter("b")},
		{Name: "a", Order: 1, Filter: appendFilter("a")},
	}
	Run(filters, NewHeaders())
	if filters[0].Name != "b" {
		t.Error("Run() reordered the caller's slice")
	}
}

func TestNewChain(t *testing.T) {
	_, err := NewChain([]FilterDescriptor{
		{Name: "ok", Filter: appendFilter("ok")},
		{Name: "broken"},
	})
	if !errors.Is(err, ErrNilFilter) {
		t.Errorf("NewChain() error = %v, want ErrNilFilter", err)
	}

	chain, err := NewChain(nil)
	if err != nil {
		t.Fatalf("NewChain(nil) error = %v", err)
	}
	input := headersOf("A", "1")
	if chain.Run(input) != input {
		t.Error("empty chain should return its input")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		filters []FilterDescriptor
		wantErr bool
	}{
		{name: "empty"},
		{name: "all set", filters: []FilterDescriptor{{Name: "a", Filter: appendFilter("a")}}},
		{name: "nil filter", filters: []FilterDescriptor{{Name: "a", Filter: appendFilter("a")}, {Name: "b"}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.filters)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrNilFilter) {
				t.Errorf("Validate() error = %v, want ErrNilFilter", err)
			}
		})
	}
}

func TestChain_Run(t *testing.T) {
	chain := MustNewChain([]FilterDescriptor{
		Describe("forwarded", NewForwardedHeadersFilter()),
		{Name: "mark", Order: 10, Filter: appendFilter("mark")},
	}, WithLogger(&testLogger{}), WithDebug(true))

	got := chain.Run(headersOf("Forwarded", "for=1.2.3.4;", "Host", "example.com"))

	want := headersOf("Host", "example.com", "Forwarded", "for=1.2.3.4", "X-Trail", "mark")
	if !got.Equal(want) {
		t.Errorf("Run() =\n%s\nwant\n%s", got, want)
	}

	names := []string{}
	for _, d := range chain.Filters() {
		names = append(names, d.Name)
	}
	if !reflect.DeepEqual(names, []string{"forwarded", "mark"}) {
		t.Errorf("Filters() = %v", names)
	}

	stats := chain.GetStats()
	if stats.Runs != 1 || stats.FiltersApplied != 2 || stats.LastRun.IsZero() {
		t.Errorf("GetStats() = %+v", stats)
	}
}

func TestChain_DebugLogging(t *testing.T) {
	logger := &testLogger{}
	chain := MustNewChain([]FilterDescriptor{
		{Name: "mark", Filter: appendFilter("mark")},
	}, WithLogger(logger), WithDebug(true))

	chain.Run(NewHeaders())
	if len(logger.debugs) != 1 {
		t.Errorf("expected 1 debug message, got %d", len(logger.debugs))
	}
}

func TestChain_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}
	chain := MustNewChain([]FilterDescriptor{
		{Name: "mark", Filter: appendFilter("mark")},
	}, WithMetrics(m))

	chain.Run(NewHeaders())
	chain.Run(NewHeaders())

	if got := testutil.ToFloat64(m.chainRuns); got != 2 {
		t.Errorf("chain runs = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.filterApplied.WithLabelValues("mark")); got != 2 {
		t.Errorf("filter applied = %v, want 2", got)
	}

	if _, err := NewMetrics(reg); err == nil {
		t.Error("registering twice should fail")
	}
}

func TestChain_ConcurrentRuns(t *testing.T) {
	chain := MustNewChain([]FilterDescriptor{
		Describe("forwarded", NewForwardedHeadersFilter()),
		{Name: "mark", Filter: appendFilter("mark")},
	})

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			addr := fmt.Sprintf("for=10.0.0.%d", i)
			got := chain.Run(headersOf("Forwarded", addr))
			if got.First(ForwardedHeader) != addr {
				t.Errorf("goroutine %d: Forwarded = %q", i, got.First(ForwardedHeader))
			}
		}(i)
	}
	wg.Wait()

	if chain.GetStats().Runs != 32 {
		t.Errorf("Runs = %d, want 32", chain.GetStats().Runs)
	}
}

func TestBuilder(t *testing.T) {
	chain, err := NewBuilder().
		RemoveHeaders("X-Internal").
		WithOrder(5).
		AddMapping("X-User", "X-User-ID", TrimSpace).
		AddForwarded().
		AddWithOrder("mark", 100, appendFilter("mark")).
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	var names []string
	for _, d := range chain.Filters() {
		names = append(names, d.Name)
	}
	if want := []string{TypeForwarded, TypeMapping, TypeRemove, "mark"}; !reflect.DeepEqual(names, want) {
		t.Errorf("filter order = %v, want %v", names, want)
	}

	got := chain.Run(headersOf("X-Internal", "1", "X-User", " alice ", "Forwarded", "for=1.2.3.4"))
	if got.Has("X-Internal") || got.First("X-User-ID") != "alice" || got.Has("X-User") {
		t.Errorf("Run() = %s", got)
	}

	if _, err := NewBuilder().Add("nil", nil).Build(); !errors.Is(err, ErrNilFilter) {
		t.Errorf("Build() with nil filter error = %v", err)
	}
}

// Custom logger for testing
type testLogger struct {
	mu     sync.Mutex
	debugs []string
	infos  []string
	warns  []string
	errors []string
}

func (l *testLogger) Debug(args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.debugs = append(l.debugs, fmt.Sprint(args...))
}

func (l *testLogger) Info(args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infos = append(l.infos, fmt.Sprint(args...))
}

func (l *testLogger) Warn(args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, fmt.Sprint(args...))
}

func (l *testLogger) Error(args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, fmt.Sprint(args...))
}
