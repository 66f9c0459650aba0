package collector

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mm-osint/newswire/internal/telegram"
)

type mockRunner struct {
	mu          sync.Mutex
	calls       int
	collectFunc func(ctx context.Context, run *Run, opts RunOptions)
}

func (m *mockRunner) Collect(ctx context.Context, run *Run, opts RunOptions) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.collectFunc != nil {
		m.collectFunc(ctx, run, opts)
	}
}

func (m *mockRunner) GetTelegramStatus() telegram.Status { return telegram.StatusReady }

func (m *mockRunner) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func waitForIdle(t *testing.T, m *RunManager) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for m.Current() != nil {
		if time.Now().After(deadline) {
			t.Fatal("run did not clear in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRunManager_SingleRunAtATime(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	runner := &mockRunner{collectFunc: func(ctx context.Context, run *Run, opts RunOptions) {
		close(started)
		<-release
		run.Finish(RunCompleted)
	}}
	m := NewRunManager(runner)

	run, err := m.Start(RunOptions{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	<-started

	if m.Current() == nil || m.Current().ID != run.ID {
		t.Fatal("current run not tracked")
	}

	if _, err := m.Start(RunOptions{}); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second start err = %v, want ErrAlreadyRunning", err)
	}

	close(release)
	waitForIdle(t, m)

	last := m.Last()
	if last == nil || last.ID != run.ID {
		t.Fatal("finished run not moved to last")
	}
	if got := last.Status(); got != RunCompleted {
		t.Errorf("last status = %s, want %s", got, RunCompleted)
	}
	if runner.callCount() != 1 {
		t.Errorf("collect calls = %d, want 1", runner.callCount())
	}

	// a new run can start once the previous one cleared
	release2 := make(chan struct{})
	runner.collectFunc = func(ctx context.Context, run *Run, opts RunOptions) {
		<-release2
		run.Finish(RunCompleted)
	}
	if _, err := m.Start(RunOptions{}); err != nil {
		t.Fatalf("restart after finish: %v", err)
	}
	close(release2)
	waitForIdle(t, m)
}

func TestRunManager_CancelPropagatesContext(t *testing.T) {
	started := make(chan struct{})
	runner := &mockRunner{collectFunc: func(ctx context.Context, run *Run, opts RunOptions) {
		close(started)
		<-ctx.Done()
		run.Finish(RunCancelled)
	}}
	m := NewRunManager(runner)

	run, err := m.Start(RunOptions{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	<-started

	m.Cancel()
	waitForIdle(t, m)

	last := m.Last()
	if last == nil || last.ID != run.ID {
		t.Fatal("cancelled run not moved to last")
	}
	if got := last.Status(); got != RunCancelled {
		t.Errorf("status = %s, want %s", got, RunCancelled)
	}
}

func TestRunManager_CancelWhenIdleIsSafe(t *testing.T) {
	m := NewRunManager(&mockRunner{})
	m.Cancel()

	if m.Current() != nil {
		t.Error("current should be nil")
	}
}

func TestRunManager_GetTelegramStatus(t *testing.T) {
	m := NewRunManager(&mockRunner{})
	if got := m.GetTelegramStatus(); got != telegram.StatusReady {
		t.Errorf("status = %s, want %s", got, telegram.StatusReady)
	}
}
