package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, Event) {
	s.count.Add(1)
}

type gateSink struct {
	gate chan struct{}
}

func (s *gateSink) Emit(context.Context, Event) {
	<-s.gate
}

type panicSink struct {
	calls atomic.Int64
}

func (s *panicSink) Emit(_ context.Context, event Event) {
	s.calls.Add(1)
	if event.EventType == "boom" {
		panic("sink exploded")
	}
}

func TestDispatcherDisabledReturnsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, &countingSink{}, nil)
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	d.Emit(context.Background(), Event{EventType: "login_success"})
	d.Close()
	if d.Dropped() != 0 || d.Delivered() != 0 {
		t.Fatal("nil dispatcher must report zero counters")
	}
}

func TestDispatcherCloseDrainsQueue(t *testing.T) {
	sink := &countingSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 64}, sink, nil)
	for i := 0; i < 50; i++ {
		d.Emit(context.Background(), Event{EventType: "renewal_success"})
	}
	d.Close()

	if got := sink.count.Load(); got != 50 {
		t.Fatalf("expected 50 delivered events, got %d", got)
	}
	if d.Delivered() != 50 {
		t.Fatalf("expected delivered counter 50, got %d", d.Delivered())
	}

	d.Emit(context.Background(), Event{EventType: "late"})
	if sink.count.Load() != 50 {
		t.Fatal("emit after close must be ignored")
	}
}

func TestDispatcherDropIfFullCountsDrops(t *testing.T) {
	sink := &gateSink{gate: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink, nil)

	for i := 0; i < 20; i++ {
		d.Emit(context.Background(), Event{EventType: "login_failure"})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected drops with a blocked sink and buffer of one")
	}

	close(sink.gate)
	d.Close()
}

func TestDispatcherBlockingEmitHonoursContext(t *testing.T) {
	sink := &gateSink{gate: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1}, sink, nil)
	defer func() {
		close(sink.gate)
		d.Close()
	}()

	d.Emit(context.Background(), Event{EventType: "first"})
	d.Emit(context.Background(), Event{EventType: "second"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	d.Emit(ctx, Event{EventType: "third"})
	if time.Since(start) > time.Second {
		t.Fatal("blocking emit ignored context deadline")
	}
}

func TestDispatcherSurvivesSinkPanic(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	sink := &panicSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 8}, sink, logger)

	d.Emit(context.Background(), Event{EventType: "boom"})
	d.Emit(context.Background(), Event{EventType: "after"})
	d.Close()

	if sink.calls.Load() != 2 {
		t.Fatalf("expected both events to reach the sink, got %d", sink.calls.Load())
	}
	if d.Delivered() != 1 {
		t.Fatalf("expected one delivered event, got %d", d.Delivered())
	}
	if !strings.Contains(logs.String(), "audit sink panicked") {
		t.Fatalf("panic not logged: %s", logs.String())
	}
}

func TestJSONWriterSinkWritesOneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)
	sink.Emit(context.Background(), Event{EventType: "logout", Principal: "alice", Success: true})
	sink.Emit(context.Background(), Event{EventType: "logout", Principal: "bob", Success: true})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var decoded Event
	if err := json.Unmarshal([]byte(lines[1]), &decoded); err != nil {
		t.Fatalf("decode line: %v", err)
	}
	if decoded.Principal != "bob" {
		t.Fatalf("unexpected principal %q", decoded.Principal)
	}
}

func TestSlogSinkLevels(t *testing.T) {
	var buf bytes.Buffer
	sink := NewSlogSink(slog.New(slog.NewJSONHandler(&buf, nil)))

	sink.Emit(context.Background(), Event{EventType: "login_success", Principal: "alice", Success: true})
	sink.Emit(context.Background(), Event{
		EventType: "login_failure",
		Principal: "alice",
		Error:     "invalid_credentials",
		Metadata:  map[string]string{"reason": "bad_credentials"},
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 records, got %d", len(lines))
	}

	var first, second map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if first["level"] != "INFO" || second["level"] != "WARN" {
		t.Fatalf("unexpected levels %v / %v", first["level"], second["level"])
	}
	meta, ok := second["metadata"].(map[string]any)
	if !ok || meta["reason"] != "bad_credentials" {
		t.Fatalf("metadata group missing: %v", second)
	}
}
