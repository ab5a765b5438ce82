package warmer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"prewarmd/internal/config"
	"prewarmd/internal/tools"
	logx "prewarmd/pkg/logx"
)

// fakeTool is a scriptable tool for exercising the warm paths.
type fakeTool struct {
	name  string
	value any
	err   error
	panic any
	calls int
}

func (f *fakeTool) Name() string { return f.name }

func (f *fakeTool) Fetch(ctx context.Context, params map[string]any) (any, error) {
	f.calls++
	if f.panic != nil {
		panic(f.panic)
	}
	return f.value, f.err
}

func src(tool string) config.SourceConfig {
	return config.SourceConfig{Name: "test-source", ToolName: tool, Enabled: true, IntervalMinutes: 5}
}

func TestWarmSourceSuccessCountsListItems(t *testing.T) {
	ft := &fakeTool{name: "echo", value: []string{"a", "b", "c"}}
	w := New([]tools.Tool{ft}, logx.Nop())

	res := w.WarmSource(context.Background(), src("echo"))
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.ItemsCached != 3 {
		t.Fatalf("items = %d, want 3", res.ItemsCached)
	}
	if res.SourceName != "test-source" {
		t.Fatalf("source name = %q", res.SourceName)
	}
	if res.Timestamp.IsZero() {
		t.Fatal("timestamp not set")
	}
}

func TestWarmSourceNonListCountsAsOne(t *testing.T) {
	ft := &fakeTool{name: "scalar", value: map[string]any{"k": "v"}}
	w := New([]tools.Tool{ft}, logx.Nop())

	res := w.WarmSource(context.Background(), src("scalar"))
	if !res.Success || res.ItemsCached != 1 {
		t.Fatalf("expected success with 1 item, got %+v", res)
	}
}

func TestWarmSourceToolNotFound(t *testing.T) {
	w := New(nil, logx.Nop())

	res := w.WarmSource(context.Background(), src("ghost"))
	if res.Success {
		t.Fatal("expected failure for unknown tool")
	}
	if !strings.Contains(res.ErrorMessage, "tool not found: ghost") {
		t.Fatalf("unexpected error message: %q", res.ErrorMessage)
	}
}

func TestWarmSourceToolError(t *testing.T) {
	ft := &fakeTool{name: "boom", err: errors.New("boom")}
	w := New([]tools.Tool{ft}, logx.Nop())

	res := w.WarmSource(context.Background(), src("boom"))
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.ErrorMessage != "boom" {
		t.Fatalf("error message = %q, want %q", res.ErrorMessage, "boom")
	}
	if res.ItemsCached != 0 {
		t.Fatalf("items = %d, want 0", res.ItemsCached)
	}
}

func TestWarmSourceToolPanicBecomesFailure(t *testing.T) {
	ft := &fakeTool{name: "panicky", panic: "kaboom"}
	w := New([]tools.Tool{ft}, logx.Nop())

	res := w.WarmSource(context.Background(), src("panicky"))
	if res.Success {
		t.Fatal("expected failure after tool panic")
	}
	if !strings.Contains(res.ErrorMessage, "kaboom") {
		t.Fatalf("panic value lost: %q", res.ErrorMessage)
	}
}

func TestWarmSourceSync(t *testing.T) {
	ft := &fakeTool{name: "echo", value: []int{1, 2}}
	w := New([]tools.Tool{ft}, logx.Nop())

	res := w.WarmSourceSync(src("echo"))
	if !res.Success || res.ItemsCached != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestWarmSourceSyncNeverPanics(t *testing.T) {
	ft := &fakeTool{name: "panicky", panic: errors.New("deep failure")}
	w := New([]tools.Tool{ft}, logx.Nop())

	res := w.WarmSourceSync(src("panicky"))
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.ErrorMessage == "" {
		t.Fatal("expected error message")
	}
}

func TestToolsCountsDistinctNames(t *testing.T) {
	a := &fakeTool{name: "echo"}
	b := &fakeTool{name: "echo"} // later registration wins, same name
	c := &fakeTool{name: "other"}
	w := New([]tools.Tool{a, b, nil, c}, logx.Nop())

	if got := w.Tools(); got != 2 {
		t.Fatalf("Tools() = %d, want 2", got)
	}
}

func TestWithRateLimit(t *testing.T) {
	ft := &fakeTool{name: "echo", value: []string{"a"}}

	w := New([]tools.Tool{ft}, logx.Nop(), WithRateLimit(0, 1))
	if w.limiter != nil {
		t.Fatal("zero rate should leave the limiter off")
	}

	w = New([]tools.Tool{ft}, logx.Nop(), WithRateLimit(5, 0))
	if w.limiter == nil {
		t.Fatal("limiter not installed")
	}
	if got := w.limiter.Burst(); got != 1 {
		t.Fatalf("burst = %d, want the minimum of 1", got)
	}

	res := w.WarmSource(context.Background(), src("echo"))
	if !res.Success {
		t.Fatalf("limited warm failed: %+v", res)
	}
}

func TestWarmSourceRateLimitCanceledContext(t *testing.T) {
	ft := &fakeTool{name: "echo", value: []string{"a"}}
	w := New([]tools.Tool{ft}, logx.Nop(), WithRateLimit(1, 1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := w.WarmSource(ctx, src("echo"))
	if res.Success {
		t.Fatal("expected failure when the limiter wait is canceled")
	}
	if ft.calls != 0 {
		t.Fatalf("tool invoked despite canceled wait: %d calls", ft.calls)
	}
}

func TestWarmResultString(t *testing.T) {
	ok := WarmResult{SourceName: "hn", Success: true, DurationSeconds: 1.234, ItemsCached: 30}
	if got := ok.String(); got != "[SUCCESS] hn (1.23s) - 30 items" {
		t.Fatalf("String() = %q", got)
	}
	bad := WarmResult{SourceName: "hn", Success: false, DurationSeconds: 0.5, ErrorMessage: "timeout"}
	if got := bad.String(); got != "[FAILED] hn (0.50s) - timeout" {
		t.Fatalf("String() = %q", got)
	}
}

func TestCountItems(t *testing.T) {
	cases := []struct {
		name string
		v    any
		want int
	}{
		{"slice", []string{"a", "b"}, 2},
		{"empty slice", []int{}, 0},
		{"array", [3]int{1, 2, 3}, 3},
		{"map", map[string]int{"a": 1}, 1},
		{"string", "hello", 1},
		{"nil", nil, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := countItems(tc.v); got != tc.want {
				t.Fatalf("countItems(%v) = %d, want %d", tc.v, got, tc.want)
			}
		})
	}
}
