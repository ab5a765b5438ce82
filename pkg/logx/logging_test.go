package logx

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"bogus", zerolog.InfoLevel},
		{"WARN", zerolog.WarnLevel},
	}
	for _, tc := range cases {
		if got := parseLevel(tc.in, zerolog.InfoLevel); got != tc.want {
			t.Fatalf("parseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestZeroLoggerIsSafe(t *testing.T) {
	var l Logger
	if !l.IsZero() {
		t.Fatal("zero Logger should report IsZero")
	}
	// must not panic
	l.Info("hello", String("k", "v"))
	l.With(Int("n", 1)).Error("still fine", Err(nil))
}

func TestNopLogger(t *testing.T) {
	l := Nop()
	if l.IsZero() {
		t.Fatal("Nop logger should carry a base")
	}
	l.Debug("discarded")
}

func TestServiceApplyChangesLevel(t *testing.T) {
	svc, log := New(Config{Level: "error", Console: false})
	defer svc.Close()

	if log.Enabled(LevelDebug) {
		t.Fatal("debug should be off at error level")
	}
	svc.Apply(Config{Level: "debug", Console: false})
	if !log.Enabled(LevelDebug) {
		t.Fatal("debug should be on after Apply")
	}
}
