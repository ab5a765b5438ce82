package alert

import (
	"context"
	"strings"
	"testing"

	"prewarmd/internal/warmer"
	logx "prewarmd/pkg/logx"
)

func TestNewDisabled(t *testing.T) {
	s, err := New(Config{}, logx.Nop())
	if err != nil || s != nil {
		t.Fatalf("disabled config: got %v, %v", s, err)
	}
}

func TestNewRequiresTokenAndChat(t *testing.T) {
	if _, err := New(Config{Enabled: true}, logx.Nop()); err == nil {
		t.Fatal("expected error without token/chat_id")
	}
	if _, err := New(Config{Enabled: true, Token: "t"}, logx.Nop()); err == nil {
		t.Fatal("expected error without chat_id")
	}
}

func TestNilServiceIsSafe(t *testing.T) {
	var s *Service
	s.Start(context.Background())
	s.Observe(warmer.WarmResult{SourceName: "hn"})
	s.Stop()
}

func testService(threshold int) *Service {
	return &Service{
		log:     logx.Nop(),
		cfg:     Config{ConsecutiveFailures: threshold},
		streaks: make(map[string]int),
		queue:   make(chan string, queueSize),
	}
}

func fail(name, msg string) warmer.WarmResult {
	return warmer.WarmResult{SourceName: name, Success: false, ErrorMessage: msg}
}

func ok(name string) warmer.WarmResult {
	return warmer.WarmResult{SourceName: name, Success: true}
}

func TestObserveAlertsAtThresholdOnly(t *testing.T) {
	s := testService(3)

	s.Observe(fail("hn", "timeout"))
	s.Observe(fail("hn", "timeout"))
	if len(s.queue) != 0 {
		t.Fatalf("alerted below threshold: %d queued", len(s.queue))
	}

	s.Observe(fail("hn", "timeout"))
	if len(s.queue) != 1 {
		t.Fatalf("expected 1 alert at threshold, got %d", len(s.queue))
	}
	msg := <-s.queue
	if !strings.Contains(msg, "hn") || !strings.Contains(msg, "timeout") {
		t.Fatalf("alert message incomplete: %q", msg)
	}

	// the streak keeps growing but alerts only once
	s.Observe(fail("hn", "timeout"))
	if len(s.queue) != 0 {
		t.Fatalf("duplicate alert past threshold: %d queued", len(s.queue))
	}
}

func TestObserveRecoveryMessage(t *testing.T) {
	s := testService(2)

	s.Observe(fail("hn", "x"))
	s.Observe(fail("hn", "x"))
	<-s.queue // the threshold alert

	s.Observe(ok("hn"))
	if len(s.queue) != 1 {
		t.Fatalf("expected recovery message, got %d queued", len(s.queue))
	}
	if msg := <-s.queue; !strings.Contains(msg, "recovered") {
		t.Fatalf("unexpected recovery message: %q", msg)
	}

	// a short streak that never alerted must not announce recovery
	s.Observe(fail("hn", "x"))
	s.Observe(ok("hn"))
	if len(s.queue) != 0 {
		t.Fatalf("recovery announced for unalerted streak: %d queued", len(s.queue))
	}
}

func TestObserveTracksSourcesIndependently(t *testing.T) {
	s := testService(2)

	s.Observe(fail("a", "x"))
	s.Observe(fail("b", "y"))
	if len(s.queue) != 0 {
		t.Fatalf("cross-source streaks mixed: %d queued", len(s.queue))
	}
	s.Observe(fail("a", "x"))
	if len(s.queue) != 1 {
		t.Fatalf("expected alert for a only, got %d", len(s.queue))
	}
}
