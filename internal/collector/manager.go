package collector

import (
	"context"
	"errors"
	"sync"

	"github.com/mm-osint/newswire/internal/telegram"
)

// ErrAlreadyRunning is returned when a run is requested while one is active.
var ErrAlreadyRunning = errors.New("a collection run is already in progress")

// Runner is the collection engine driven by the manager.
type Runner interface {
	Collect(ctx context.Context, run *Run, opts RunOptions)
	GetTelegramStatus() telegram.Status
}

// RunManager serializes collection runs: at most one is active at a time,
// and it survives the HTTP request that started it.
type RunManager struct {
	mu      sync.Mutex
	current *Run
	last    *Run
	cancel  context.CancelFunc

	runner Runner
}

func NewRunManager(runner Runner) *RunManager {
	return &RunManager{runner: runner}
}

// Start launches a new run in the background and returns immediately.
// Returns ErrAlreadyRunning if another run is still active.
func (m *RunManager) Start(opts RunOptions) (*Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		return nil, ErrAlreadyRunning
	}

	// IMPORTANT: the run gets its own background context. Tying it to the
	// HTTP request context would cancel the run the moment the handler
	// returns its 202.
	ctx, cancel := context.WithCancel(context.Background())

	run := NewRun()
	m.current = run
	m.cancel = cancel

	go m.execute(ctx, run, opts)

	return run, nil
}

func (m *RunManager) execute(ctx context.Context, run *Run, opts RunOptions) {
	defer func() {
		m.mu.Lock()
		if m.current != nil && m.current.ID == run.ID {
			m.last = m.current
			m.current = nil
			m.cancel = nil
		}
		m.mu.Unlock()
	}()

	m.runner.Collect(ctx, run, opts)
}

// Cancel asks the active run to stop. The run object moves to Last once its
// workers have wound down. Safe to call when nothing is running.
func (m *RunManager) Cancel() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		m.cancel()
	}
}

// Current returns the active run, or nil when idle.
func (m *RunManager) Current() *Run {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Last returns the most recently finished run, or nil if none finished yet.
func (m *RunManager) Last() *Run {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// GetTelegramStatus reports the state of the message source connection.
func (m *RunManager) GetTelegramStatus() telegram.Status {
	return m.runner.GetTelegramStatus()
}
