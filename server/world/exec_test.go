package world

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestExecRunsBeforeTick(t *testing.T) {
	e := newTestEngine(t, newTestHost(), nil)
	var seen int64 = -1
	done := e.Exec(func(e *Engine) { seen = e.CurrentTick() })

	select {
	case <-done:
		t.Fatalf("expected Exec not to run before a tick")
	default:
	}
	e.Tick(context.Background())
	select {
	case <-done:
	default:
		t.Fatalf("expected Exec to have run during the tick")
	}
	if seen != 0 {
		t.Fatalf("expected Exec to run before the tick counter advanced, got %v", seen)
	}
}

func TestExecPanicClosesChannel(t *testing.T) {
	e := newTestEngine(t, newTestHost(), nil)
	done := e.Exec(func(*Engine) { panic("boom") })
	e.Tick(context.Background())
	select {
	case <-done:
	default:
		t.Fatalf("expected channel to be closed after a panic")
	}
	if e.Metrics().Ticks != 1 {
		t.Fatalf("expected the tick to complete after a panicking Exec")
	}
}

func TestExecServedByRun(t *testing.T) {
	e, err := Config{Log: discardLogger(), Host: newTestHost(), TickInterval: time.Hour}.New()
	if err != nil {
		t.Fatalf("create engine: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx)

	ran := false
	select {
	case <-e.Exec(func(*Engine) { ran = true }):
	case <-time.After(5 * time.Second):
		t.Fatalf("expected Exec to be served between ticks")
	}
	if !ran || e.Metrics().Ticks != 0 {
		t.Fatalf("expected Exec to run without ticking")
	}
}

func TestExecContextFullQueue(t *testing.T) {
	e := newTestEngine(t, newTestHost(), nil)
	for range execQueueSize {
		e.Exec(nil)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := e.ExecContext(ctx, func(*Engine) {}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected ExecContext to give up on a full queue, got %v", err)
	}

	e.Tick(context.Background())
	ran := false
	done, err := e.ExecContext(context.Background(), func(*Engine) { ran = true })
	if err != nil {
		t.Fatalf("expected the drained queue to accept a function, got %v", err)
	}
	e.Tick(context.Background())
	select {
	case <-done:
	default:
		t.Fatalf("expected the function to run during the tick")
	}
	if !ran {
		t.Fatalf("expected the function to run")
	}
}
