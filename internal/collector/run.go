package collector

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// ChannelState tracks where a channel currently is in its collection cycle.
// A channel moves Fetching -> Processing -> Committing once per batch and
// returns to Idle when it is done, or lands in Failed and stays there.
type ChannelState string

const (
	StateIdle       ChannelState = "IDLE"
	StateFetching   ChannelState = "FETCHING"
	StateProcessing ChannelState = "PROCESSING"
	StateCommitting ChannelState = "COMMITTING"
	StateFailed     ChannelState = "FAILED"
)

// RunStatus is the overall state of a collection run.
type RunStatus string

const (
	RunRunning   RunStatus = "RUNNING"
	RunCompleted RunStatus = "COMPLETED"
	RunCancelled RunStatus = "CANCELLED"
	RunFailed    RunStatus = "FAILED"
)

// ChannelCounters tallies the outcomes for one channel during a run.
type ChannelCounters struct {
	Fetched     int `json:"fetched"`
	Original    int `json:"original"`
	Duplicate   int `json:"duplicate"`
	Forwarded   int `json:"forwarded"`
	Rejected    int `json:"rejected"`
	Invalid     int `json:"invalid"`
	ImageFailed int `json:"image_failed"`
}

// ChannelProgress is the live view of one channel inside a run.
type ChannelProgress struct {
	Name       string          `json:"name"`
	State      ChannelState    `json:"state"`
	Counters   ChannelCounters `json:"counters"`
	Error      string          `json:"error,omitempty"`
	StartedAt  *time.Time      `json:"started_at,omitempty"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}

// RunSnapshot is a point-in-time copy of a run, safe to serialize.
type RunSnapshot struct {
	ID         uuid.UUID         `json:"run_id"`
	Status     RunStatus         `json:"status"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt *time.Time        `json:"finished_at,omitempty"`
	Channels   []ChannelProgress `json:"channels"`
}

// Run tracks one collection sweep over a set of channels. Channel workers
// update it concurrently, so all access goes through the mutex.
type Run struct {
	ID        uuid.UUID
	StartedAt time.Time

	mu         sync.RWMutex
	status     RunStatus
	finishedAt *time.Time
	channels   map[string]*ChannelProgress
	order      []string
}

func NewRun() *Run {
	return &Run{
		ID:        uuid.New(),
		StartedAt: time.Now().UTC(),
		status:    RunRunning,
		channels:  make(map[string]*ChannelProgress),
	}
}

// Track registers a channel with the run in the Idle state.
func (r *Run) Track(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.channels[name]; ok {
		return
	}
	r.channels[name] = &ChannelProgress{Name: name, State: StateIdle}
	r.order = append(r.order, name)
}

// StartChannel marks a channel as picked up by a worker.
func (r *Run) StartChannel(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.channels[name]
	if !ok {
		return
	}
	now := time.Now().UTC()
	p.StartedAt = &now
	p.State = StateFetching
}

func (r *Run) SetState(name string, state ChannelState) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.channels[name]; ok {
		p.State = state
	}
}

func (r *Run) SetCounters(name string, c ChannelCounters) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.channels[name]; ok {
		p.Counters = c
	}
}

// FailChannel marks a channel as failed. The failure is isolated: other
// channels in the run keep going.
func (r *Run) FailChannel(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.channels[name]
	if !ok {
		return
	}
	now := time.Now().UTC()
	p.State = StateFailed
	p.Error = err.Error()
	p.FinishedAt = &now
}

// FinishChannel returns a channel to Idle after a successful pass.
func (r *Run) FinishChannel(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.channels[name]
	if !ok {
		return
	}
	now := time.Now().UTC()
	p.State = StateIdle
	p.FinishedAt = &now
}

// Progress returns a copy of one channel's progress.
func (r *Run) Progress(name string) (ChannelProgress, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.channels[name]
	if !ok {
		return ChannelProgress{}, false
	}
	return *p, true
}

func (r *Run) Status() RunStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// Finish seals the run with its final status.
func (r *Run) Finish(status RunStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	r.status = status
	r.finishedAt = &now
}

// Snapshot copies the run state for serialization. Channels appear in the
// order they were registered.
func (r *Run) Snapshot() RunSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := RunSnapshot{
		ID:        r.ID,
		Status:    r.status,
		StartedAt: r.StartedAt,
		Channels:  make([]ChannelProgress, 0, len(r.order)),
	}
	if r.finishedAt != nil {
		t := *r.finishedAt
		snap.FinishedAt = &t
	}
	for _, name := range r.order {
		snap.Channels = append(snap.Channels, *r.channels[name])
	}
	return snap
}
