package collector

import (
	"errors"
	"sync"
	"testing"
)

func TestRun_SnapshotKeepsRegistrationOrder(t *testing.T) {
	run := NewRun()
	for _, name := range []string{"mizzima", "dvb", "khitthit"} {
		run.Track(name)
	}
	run.Track("dvb") // repeated registration is a no-op

	snap := run.Snapshot()
	if len(snap.Channels) != 3 {
		t.Fatalf("channels = %d, want 3", len(snap.Channels))
	}
	for i, want := range []string{"mizzima", "dvb", "khitthit"} {
		if snap.Channels[i].Name != want {
			t.Errorf("channels[%d] = %s, want %s", i, snap.Channels[i].Name, want)
		}
	}
	if snap.Status != RunRunning {
		t.Errorf("status = %s, want %s", snap.Status, RunRunning)
	}
	if snap.FinishedAt != nil {
		t.Error("FinishedAt set on a running snapshot")
	}
}

func TestRun_ChannelLifecycle(t *testing.T) {
	run := NewRun()
	run.Track("mizzima")

	prog, ok := run.Progress("mizzima")
	if !ok || prog.State != StateIdle {
		t.Fatalf("initial state = %+v", prog)
	}

	run.StartChannel("mizzima")
	prog, _ = run.Progress("mizzima")
	if prog.State != StateFetching || prog.StartedAt == nil {
		t.Fatalf("after start: %+v", prog)
	}

	run.SetState("mizzima", StateProcessing)
	run.SetCounters("mizzima", ChannelCounters{Fetched: 10, Original: 7})
	run.SetState("mizzima", StateCommitting)
	run.FinishChannel("mizzima")

	prog, _ = run.Progress("mizzima")
	if prog.State != StateIdle {
		t.Errorf("final state = %s, want %s", prog.State, StateIdle)
	}
	if prog.FinishedAt == nil {
		t.Error("FinishedAt not set")
	}
	if prog.Counters.Fetched != 10 || prog.Counters.Original != 7 {
		t.Errorf("counters = %+v", prog.Counters)
	}
}

func TestRun_FailChannelRecordsError(t *testing.T) {
	run := NewRun()
	run.Track("deadchan")
	run.StartChannel("deadchan")
	run.FailChannel("deadchan", errors.New("resolve channel: not found"))

	prog, _ := run.Progress("deadchan")
	if prog.State != StateFailed {
		t.Errorf("state = %s, want %s", prog.State, StateFailed)
	}
	if prog.Error != "resolve channel: not found" {
		t.Errorf("error = %q", prog.Error)
	}
	if prog.FinishedAt == nil {
		t.Error("FinishedAt not set on failure")
	}
}

func TestRun_FinishSealsStatus(t *testing.T) {
	run := NewRun()
	run.Finish(RunCompleted)

	if got := run.Status(); got != RunCompleted {
		t.Errorf("status = %s, want %s", got, RunCompleted)
	}
	snap := run.Snapshot()
	if snap.FinishedAt == nil {
		t.Error("FinishedAt not set")
	}
}

func TestRun_UnknownChannelUpdatesAreIgnored(t *testing.T) {
	run := NewRun()
	run.SetState("ghost", StateFetching)
	run.SetCounters("ghost", ChannelCounters{Fetched: 1})
	run.FailChannel("ghost", errors.New("x"))

	if _, ok := run.Progress("ghost"); ok {
		t.Error("untracked channel appeared")
	}
	if len(run.Snapshot().Channels) != 0 {
		t.Error("snapshot should be empty")
	}
}

func TestRun_ConcurrentUpdates(t *testing.T) {
	run := NewRun()
	names := []string{"a1bcd", "b2cde", "c3def"}
	for _, n := range names {
		run.Track(n)
	}

	var wg sync.WaitGroup
	for _, n := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			run.StartChannel(name)
			for i := 0; i < 100; i++ {
				run.SetState(name, StateProcessing)
				run.SetCounters(name, ChannelCounters{Fetched: i})
				run.Snapshot()
			}
			run.FinishChannel(name)
		}(n)
	}
	wg.Wait()

	snap := run.Snapshot()
	for _, ch := range snap.Channels {
		if ch.State != StateIdle {
			t.Errorf("%s state = %s, want %s", ch.Name, ch.State, StateIdle)
		}
		if ch.Counters.Fetched != 99 {
			t.Errorf("%s fetched = %d, want 99", ch.Name, ch.Counters.Fetched)
		}
	}
}
