package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLoop_ExitsWhenEmpty(t *testing.T) {
	s := New(nil, testLogger())
	co := &scriptedCoroutine{statuses: []ResumeStatus{Yielded, Yielded}}
	s.EnqueueCoroutine(co)

	l := NewLoop(s, Config{TickInterval: time.Millisecond, ExitWhenEmpty: true}, testLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := l.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if co.resumes != 3 {
		t.Errorf("resumes = %d, want 3", co.resumes)
	}
	if l.Ticks() != 3 {
		t.Errorf("Ticks() = %d, want 3", l.Ticks())
	}
}

func TestLoop_ContextCancel(t *testing.T) {
	s := New(nil, testLogger())
	s.EnqueueCoroutine(&scriptedCoroutine{statuses: make([]ResumeStatus, 0)})
	forever := &foreverCoroutine{}
	s.EnqueueCoroutine(forever)

	l := NewLoop(s, Config{TickInterval: time.Millisecond, ExitWhenEmpty: true}, testLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := l.Start(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Start = %v, want DeadlineExceeded", err)
	}
	if s.Empty() {
		t.Error("forever-yielding coroutine should still be queued")
	}
}

func TestLoop_Stop(t *testing.T) {
	s := New(nil, testLogger())
	s.EnqueueCoroutine(&foreverCoroutine{})

	l := NewLoop(s, DefaultConfig(), testLogger())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Start(context.Background()) }()

	time.Sleep(10 * time.Millisecond)
	if err := l.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Errorf("Start returned %v after Stop", err)
	}
}

func TestRun_DrainsQueue(t *testing.T) {
	s := New(nil, testLogger())
	s.EnqueueCoroutine(&scriptedCoroutine{statuses: []ResumeStatus{Yielded}})
	s.Enqueue(func() {})

	ticks, err := Run(context.Background(), s)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if ticks != 2 {
		t.Errorf("ticks = %d, want 2", ticks)
	}
	if !s.Empty() {
		t.Error("queue should be empty")
	}
}

func TestRun_CancelledContext(t *testing.T) {
	s := New(nil, testLogger())
	s.EnqueueCoroutine(&foreverCoroutine{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := Run(ctx, s); !errors.Is(err, context.Canceled) {
		t.Errorf("Run = %v, want Canceled", err)
	}
}

type foreverCoroutine struct{}

func (foreverCoroutine) Resume() ResumeStatus { return Yielded }
