package manager

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"prewarmd/internal/tools"
	"prewarmd/internal/warmer"
	logx "prewarmd/pkg/logx"
)

type countingTool struct {
	name  string
	calls atomic.Int64
}

func (c *countingTool) Name() string { return c.name }

func (c *countingTool) Fetch(ctx context.Context, params map[string]any) (any, error) {
	c.calls.Add(1)
	return []string{"a", "b"}, nil
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prewarm.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const oneSourceConfig = `{
	"sources": [
		{"name": "hn", "tool_name": "counter", "interval_minutes": 25}
	]
}`

func newTestManager(t *testing.T, cfg string, opts ...Option) (*Manager, *countingTool) {
	t.Helper()
	ct := &countingTool{name: "counter"}
	opts = append([]Option{WithRegistry([]tools.Tool{ct})}, opts...)
	m := New(writeConfig(t, cfg), logx.Nop(), opts...)
	return m, ct
}

func TestStartWithNoSourcesStaysStopped(t *testing.T) {
	m, _ := newTestManager(t, `{"sources": []}`)
	m.Start()
	if st := m.GetStatus(); st.Running {
		t.Fatal("manager should not run without sources")
	}
}

func TestStartWithOnlyDisabledSourcesStaysStopped(t *testing.T) {
	m, ct := newTestManager(t, `{"sources": [
		{"name": "hn", "tool_name": "counter", "enabled": false},
		{"name": "feeds", "tool_name": "counter", "enabled": false}
	]}`)
	m.Start()

	st := m.GetStatus()
	if st.Running {
		t.Fatal("manager must not run when every source is disabled")
	}
	if len(st.Jobs) != 0 {
		t.Fatalf("unexpected jobs: %+v", st.Jobs)
	}
	if got := ct.calls.Load(); got != 0 {
		t.Fatalf("disabled sources were warmed: %d calls", got)
	}
}

func TestStartWithEmptyRegistryStaysStopped(t *testing.T) {
	m := New(writeConfig(t, oneSourceConfig), logx.Nop(), WithRegistry([]tools.Tool{}))
	m.Start()
	if m.GetStatus().Running {
		t.Fatal("manager must not run without any tools")
	}
}

func TestStartSchedulesAndWarmsInitially(t *testing.T) {
	m, ct := newTestManager(t, oneSourceConfig)
	m.Start()
	defer m.Stop()

	st := m.GetStatus()
	if !st.Running {
		t.Fatal("expected running")
	}
	if len(st.Jobs) != 1 || st.Jobs[0].ID != "warm_hn" {
		t.Fatalf("unexpected jobs: %+v", st.Jobs)
	}
	if st.Jobs[0].NextRunTime.IsZero() {
		t.Fatal("scheduled job has no next run time")
	}

	// the initial warm pass runs each enabled source once
	if got := ct.calls.Load(); got != 1 {
		t.Fatalf("tool calls = %d, want 1", got)
	}
	sm, ok := m.Metrics().GetSourceMetrics("hn")
	if !ok || sm.TotalRuns != 1 || sm.SuccessfulRuns != 1 || sm.LastItems != 2 {
		t.Fatalf("initial warm not recorded: %+v ok=%v", sm, ok)
	}
}

func TestStartTwiceWarnsOnly(t *testing.T) {
	m, ct := newTestManager(t, oneSourceConfig)
	m.Start()
	defer m.Stop()

	m.Start()
	if got := ct.calls.Load(); got != 1 {
		t.Fatalf("second Start re-ran the warm pass: %d calls", got)
	}
}

func TestStopAndStatus(t *testing.T) {
	m, _ := newTestManager(t, oneSourceConfig)
	m.Stop() // stopped: warning only

	m.Start()
	m.Stop()

	st := m.GetStatus()
	if st.Running {
		t.Fatal("expected stopped")
	}
	if len(st.Jobs) != 0 {
		t.Fatalf("stopped manager must report no jobs, got %+v", st.Jobs)
	}
	// metrics remain readable after stop
	if _, ok := m.Metrics().GetSourceMetrics("hn"); !ok {
		t.Fatal("metrics lost on stop")
	}
}

func TestResultObserverSeesWarms(t *testing.T) {
	var observed atomic.Int64
	obs := func(r warmer.WarmResult) {
		if r.SourceName == "hn" && r.Success {
			observed.Add(1)
		}
	}
	m, _ := newTestManager(t, oneSourceConfig, WithResultObserver(obs))
	m.Start()
	defer m.Stop()

	if got := observed.Load(); got != 1 {
		t.Fatalf("observer saw %d results, want 1", got)
	}
}

func TestReloadConfigReschedules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prewarm.json")
	two := `{"sources": [
		{"name": "hn", "tool_name": "counter"},
		{"name": "feeds", "tool_name": "counter"}
	]}`
	if err := os.WriteFile(path, []byte(two), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	ct := &countingTool{name: "counter"}
	m := New(path, logx.Nop(), WithRegistry([]tools.Tool{ct}))
	m.Start()
	defer m.Stop()

	if st := m.GetStatus(); len(st.Jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %+v", st.Jobs)
	}

	one := `{"sources": [
		{"name": "hn", "tool_name": "counter", "interval_minutes": 90},
		{"name": "feeds", "tool_name": "counter", "enabled": false}
	]}`
	if err := os.WriteFile(path, []byte(one), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	m.ReloadConfig()

	st := m.GetStatus()
	if len(st.Jobs) != 1 || st.Jobs[0].ID != "warm_hn" {
		t.Fatalf("disabled source still scheduled: %+v", st.Jobs)
	}
	if st.Jobs[0].Trigger != "every 90 minutes" {
		t.Fatalf("interval change not applied: %+v", st.Jobs[0])
	}
}

func TestReloadConfigWhileStoppedWarnsOnly(t *testing.T) {
	m, _ := newTestManager(t, oneSourceConfig)
	m.ReloadConfig() // must not panic or start anything
	if m.GetStatus().Running {
		t.Fatal("reload must not start a stopped manager")
	}
}

func TestWarmerOptionsPlumbed(t *testing.T) {
	m, ct := newTestManager(t, oneSourceConfig,
		WithWarmerOptions(warmer.WithRateLimit(1000, 10)))
	m.Start()
	defer m.Stop()

	if !m.GetStatus().Running {
		t.Fatal("expected running")
	}
	if got := ct.calls.Load(); got != 1 {
		t.Fatalf("rate-limited warm pass made %d calls, want 1", got)
	}
}

func TestControlCallsFromMultipleGoroutines(t *testing.T) {
	m, _ := newTestManager(t, oneSourceConfig)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Start()
			m.ReloadConfig()
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.GetStatus()
			m.Stop()
		}()
	}
	wg.Wait()

	m.Stop()
	if m.GetStatus().Running {
		t.Fatal("expected stopped after final Stop")
	}
}

func TestReloadConfigKeepsJobsOnLoadError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prewarm.json")
	if err := os.WriteFile(path, []byte(oneSourceConfig), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	ct := &countingTool{name: "counter"}
	m := New(path, logx.Nop(), WithRegistry([]tools.Tool{ct}))
	m.Start()
	defer m.Stop()

	if err := os.WriteFile(path, []byte(`{"broken`), 0o644); err != nil {
		t.Fatalf("corrupt config: %v", err)
	}
	m.ReloadConfig()

	st := m.GetStatus()
	if len(st.Jobs) != 1 || st.Jobs[0].ID != "warm_hn" {
		t.Fatalf("jobs should survive a failed reload: %+v", st.Jobs)
	}
}
